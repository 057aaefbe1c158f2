// Package pipeline 定义了异步入库任务的消费端流程。
package pipeline

import (
	"context"
	"fmt"

	"docsage-go/internal/service"
	"docsage-go/pkg/log"
	"docsage-go/pkg/tasks"
)

// TextFetcher 按对象名取回并清理归档的文档原文，pkg/storage.Archive 是其生产实现。
type TextFetcher interface {
	GetText(ctx context.Context, objectName string) (string, error)
	Remove(ctx context.Context, objectName string) error
}

// Processor 封装了异步入库任务的所有依赖和逻辑。
type Processor struct {
	fetcher   TextFetcher
	ingestSvc service.IngestService
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(fetcher TextFetcher, ingestSvc service.IngestService) *Processor {
	return &Processor{
		fetcher:   fetcher,
		ingestSvc: ingestSvc,
	}
}

// Process 是入库任务的主函数：取回原文后走同步入库流水线。
// 对同一 documentID 重复消费是幂等的，Kafka 重投不会产生重复记录。
func (p *Processor) Process(ctx context.Context, task tasks.IngestTask) error {
	log.Infof("[Processor] 开始处理入库任务, documentID: %s, filename: %s", task.DocumentID, task.Filename)

	// 1. 从对象存储取回原文
	log.Infof("[Processor] 步骤1: 取回归档原文, object: %s", task.ObjectName)
	rawText, err := p.fetcher.GetText(ctx, task.ObjectName)
	if err != nil {
		log.Errorf("[Processor] 取回归档原文失败, object: %s, error: %v", task.ObjectName, err)
		return fmt.Errorf("取回归档原文失败: %w", err)
	}
	if rawText == "" {
		log.Warnf("[Processor] 归档原文为空, 处理中止, documentID: %s", task.DocumentID)
		return fmt.Errorf("归档原文为空: %s", task.ObjectName)
	}

	// 2. 以任务携带的文档 ID 执行完整入库流水线
	log.Info("[Processor] 步骤2: 执行入库流水线")
	result, err := p.ingestSvc.IngestAs(ctx, task.DocumentID, task.Filename, rawText)
	if err != nil {
		log.Errorf("[Processor] 入库失败, documentID: %s, error: %v", task.DocumentID, err)
		return err
	}

	// 3. 入库成功后清理归档原文。清理失败只记警告，残留对象不影响正确性
	log.Infof("[Processor] 步骤3: 清理归档原文, object: %s", task.ObjectName)
	if err := p.fetcher.Remove(ctx, task.ObjectName); err != nil {
		log.Warnf("[Processor] 清理归档原文失败, object: %s, error: %v", task.ObjectName, err)
	}

	log.Infof("[Processor] 入库任务完成, documentID: %s, genre: %s, chunks: %d",
		result.DocumentID, result.Genre, result.ChunkCount)
	return nil
}
