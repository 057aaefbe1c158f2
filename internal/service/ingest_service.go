// Package service 提供了文档入库与问答检索的业务逻辑。
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"docsage-go/internal/chunker"
	"docsage-go/internal/config"
	"docsage-go/internal/detector"
	"docsage-go/internal/model"
	"docsage-go/internal/repository"
	"docsage-go/pkg/embedding"
	"docsage-go/pkg/log"
	"docsage-go/pkg/ragerr"
	"docsage-go/pkg/tasks"
)

// VectorIndex 抽象向量索引的写入与查询操作，pkg/es.Index 是其生产实现。
type VectorIndex interface {
	Insert(ctx context.Context, records []model.EsChunk) error
	Search(ctx context.Context, vector []float32, k int) ([]model.RetrievedChunk, error)
	DeleteByDocument(ctx context.Context, documentID string) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// Archiver 抽象原文归档存储，pkg/storage.Archive 是其生产实现。
type Archiver interface {
	PutText(ctx context.Context, objectName, text string) error
}

// TaskProducer 抽象入库任务的投递。
type TaskProducer func(task tasks.IngestTask) error

// IngestService 接口定义了文档入库操作。
type IngestService interface {
	// Ingest 同步入库一篇文档，返回完整处理结果。
	Ingest(ctx context.Context, req model.IngestRequest) (*model.IngestResult, error)
	// IngestAs 以指定的文档 ID 入库，重复调用对同一 ID 幂等覆盖。
	IngestAs(ctx context.Context, documentID, filename, rawText string) (*model.IngestResult, error)
	// IngestBatch 并发入库多篇文档，单篇失败不影响其余文档。
	IngestBatch(ctx context.Context, reqs []model.IngestRequest) []model.BatchItemResult
	// Enqueue 归档原文并投递异步入库任务。
	Enqueue(ctx context.Context, req model.IngestRequest) (*model.IngestResult, error)
}

type ingestService struct {
	detector        *detector.Detector
	chunker         *chunker.Chunker
	embeddingClient embedding.Client
	index           VectorIndex
	docRepo         repository.DocumentRepository
	archive         Archiver
	produce         TaskProducer
	cfg             config.IngestConfig

	// 写入序号，进程内单调递增，检索同分并列时按它稳定排序
	seq atomic.Int64
}

// NewIngestService 创建一个新的 IngestService 实例。
// archive 与 produce 仅异步路径需要，纯同步部署可传 nil。
func NewIngestService(
	det *detector.Detector,
	ch *chunker.Chunker,
	embeddingClient embedding.Client,
	index VectorIndex,
	docRepo repository.DocumentRepository,
	archive Archiver,
	produce TaskProducer,
	cfg config.IngestConfig,
) IngestService {
	s := &ingestService{
		detector:        det,
		chunker:         ch,
		embeddingClient: embeddingClient,
		index:           index,
		docRepo:         docRepo,
		archive:         archive,
		produce:         produce,
		cfg:             cfg,
	}
	s.seq.Store(time.Now().UnixNano())
	return s
}

func (s *ingestService) validate(filename, rawText string) error {
	if strings.TrimSpace(filename) == "" {
		return ragerr.Validation("filename 不能为空")
	}
	if strings.TrimSpace(rawText) == "" {
		return ragerr.Validation("raw_text 不能为空")
	}
	if s.cfg.MaxDocumentBytes > 0 && len(rawText) > s.cfg.MaxDocumentBytes {
		return ragerr.Validation("文档大小 %d 字节超过上限 %d 字节", len(rawText), s.cfg.MaxDocumentBytes)
	}
	if !utf8.ValidString(rawText) {
		return ragerr.Validation("raw_text 不是合法的 UTF-8 文本")
	}
	return nil
}

func (s *ingestService) Ingest(ctx context.Context, req model.IngestRequest) (*model.IngestResult, error) {
	return s.IngestAs(ctx, uuid.NewString(), req.Filename, req.RawText)
}

// IngestAs 执行完整入库流水线：体裁判定、分块、向量化、覆盖写入索引与元数据库。
// 向量化先于删除旧数据执行，中途失败时旧版本保持完整可查。
func (s *ingestService) IngestAs(ctx context.Context, documentID, filename, rawText string) (*model.IngestResult, error) {
	log.Infof("[IngestService] 开始入库文档, documentID: %s, filename: %s, size: %d", documentID, filename, len(rawText))

	if err := s.validate(filename, rawText); err != nil {
		return nil, err
	}

	// 1. 体裁判定
	log.Info("[IngestService] 步骤1: 判定文档体裁")
	genre := s.detector.Detect(rawText)
	log.Infof("[IngestService] 步骤1: 体裁判定结果: %s", genre)

	// 2. 自适应分块
	log.Info("[IngestService] 步骤2: 按体裁自适应分块")
	chunks, err := s.chunker.Chunk(documentID, rawText, genre)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ragerr.Validation("文档 %s 分块后为空", filename)
	}
	log.Infof("[IngestService] 步骤2: 分块完成, 共 %d 块", len(chunks))

	// 3. 批量向量化
	log.Info("[IngestService] 步骤3: 批量向量化分块")
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embeddingClient.EmbedMany(ctx, texts)
	if err != nil {
		log.Errorf("[IngestService] 向量化失败, documentID: %s, error: %v", documentID, err)
		return nil, err
	}
	log.Infof("[IngestService] 步骤3: 向量化完成, %d 个向量", len(vectors))

	// 4. 清理同 ID 的旧数据，保证重灌幂等
	log.Info("[IngestService] 步骤4: 清理旧版本数据")
	if deleted, err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("清理旧向量记录失败: %w", err)
	} else if deleted > 0 {
		log.Infof("[IngestService] 步骤4: 删除了 %d 条旧向量记录", deleted)
	}
	if err := s.docRepo.DeleteChunksByDocumentID(ctx, documentID); err != nil {
		return nil, fmt.Errorf("清理旧分块元数据失败: %w", err)
	}

	// 5. 写入向量索引
	log.Info("[IngestService] 步骤5: 写入向量索引")
	records := make([]model.EsChunk, len(chunks))
	for i, c := range chunks {
		records[i] = model.NewEsChunk(c, filename, vectors[i], s.embeddingClient.Model(), s.seq.Add(1))
	}
	if err := s.index.Insert(ctx, records); err != nil {
		log.Errorf("[IngestService] 写入向量索引失败, documentID: %s, error: %v", documentID, err)
		return nil, fmt.Errorf("写入向量索引失败: %w", err)
	}

	// 6. 持久化文档与分块元数据
	log.Info("[IngestService] 步骤6: 持久化文档元数据")
	chunkRecords := make([]model.ChunkRecord, len(chunks))
	for i, c := range chunks {
		chunkRecords[i] = *model.NewChunkRecord(c)
	}
	if err := s.docRepo.BatchCreateChunks(ctx, chunkRecords); err != nil {
		return nil, fmt.Errorf("持久化分块元数据失败: %w", err)
	}
	doc := &model.Document{
		ID:         documentID,
		Filename:   filename,
		Genre:      string(genre),
		CharCount:  utf8.RuneCountInString(rawText),
		ChunkCount: len(chunks),
	}
	if err := s.docRepo.SaveDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("持久化文档记录失败: %w", err)
	}

	log.Infof("[IngestService] 入库完成, documentID: %s, chunks: %d", documentID, len(chunks))
	return &model.IngestResult{
		DocumentID:   documentID,
		Filename:     filename,
		Genre:        genre,
		ChunkCount:   len(chunks),
		IndexedCount: len(records),
	}, nil
}

// IngestBatch 以有界并发入库多篇文档，失败的文档记录错误后跳过。
func (s *ingestService) IngestBatch(ctx context.Context, reqs []model.IngestRequest) []model.BatchItemResult {
	concurrency := s.cfg.BatchConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	log.Infof("[IngestService] 开始批量入库, 文档数: %d, 并发度: %d", len(reqs), concurrency)

	results := make([]model.BatchItemResult, len(reqs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, req := range reqs {
		wg.Add(1)
		go func(i int, req model.IngestRequest) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := s.Ingest(ctx, req)
			results[i] = model.BatchItemResult{Filename: req.Filename}
			if err != nil {
				// 单篇失败只记录，不中断其余文档
				log.Errorf("[IngestService] 批量入库中文档 %s 失败: %v", req.Filename, err)
				results[i].Err = err.Error()
				return
			}
			results[i].Result = res
		}(i, req)
	}
	wg.Wait()
	return results
}

// Enqueue 把原文归档到对象存储后投递 Kafka 任务，由消费者异步执行入库。
func (s *ingestService) Enqueue(ctx context.Context, req model.IngestRequest) (*model.IngestResult, error) {
	if err := s.validate(req.Filename, req.RawText); err != nil {
		return nil, err
	}
	if s.archive == nil || s.produce == nil {
		return nil, ragerr.Configuration("异步入库未启用: 缺少对象存储或消息队列配置")
	}

	documentID := uuid.NewString()
	objectName := fmt.Sprintf("raw/%s.txt", documentID)

	log.Infof("[IngestService] 异步入库, 归档原文到 %s", objectName)
	if err := s.archive.PutText(ctx, objectName, req.RawText); err != nil {
		return nil, fmt.Errorf("归档原文失败: %w", err)
	}

	task := tasks.IngestTask{
		DocumentID: documentID,
		Filename:   req.Filename,
		ObjectName: objectName,
	}
	if err := s.produce(task); err != nil {
		return nil, fmt.Errorf("投递入库任务失败: %w", err)
	}

	log.Infof("[IngestService] 入库任务已投递, documentID: %s", documentID)
	return &model.IngestResult{
		DocumentID: documentID,
		Filename:   req.Filename,
		Queued:     true,
	}, nil
}
