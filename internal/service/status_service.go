package service

import (
	"context"

	"docsage-go/internal/repository"
	"docsage-go/pkg/perf"
)

// SystemStatus 汇总系统当前的存量与性能概况。
type SystemStatus struct {
	Documents   int64                 `json:"documents"`
	Chunks      int64                 `json:"chunks"`
	Vectors     int64                 `json:"vectors"`
	Performance map[string]perf.Stats `json:"performance"`
}

// StatusService 接口定义了系统状态查询操作。
type StatusService interface {
	Status(ctx context.Context) (*SystemStatus, error)
}

type statusService struct {
	docRepo repository.DocumentRepository
	index   VectorIndex
	monitor *perf.Monitor
}

// NewStatusService 创建一个新的 StatusService 实例。
func NewStatusService(docRepo repository.DocumentRepository, index VectorIndex, monitor *perf.Monitor) StatusService {
	return &statusService{docRepo: docRepo, index: index, monitor: monitor}
}

func (s *statusService) Status(ctx context.Context) (*SystemStatus, error) {
	documents, err := s.docRepo.CountDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.docRepo.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := s.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	return &SystemStatus{
		Documents:   documents,
		Chunks:      chunks,
		Vectors:     vectors,
		Performance: s.monitor.Summary(),
	}, nil
}
