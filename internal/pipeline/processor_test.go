package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docsage-go/internal/model"
	"docsage-go/pkg/tasks"
)

type fakeFetcher struct {
	texts     map[string]string
	err       error
	removeErr error
	removed   []string
}

func (f *fakeFetcher) GetText(_ context.Context, objectName string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[objectName], nil
}

func (f *fakeFetcher) Remove(_ context.Context, objectName string) error {
	f.removed = append(f.removed, objectName)
	return f.removeErr
}

type fakeIngest struct {
	lastDocumentID string
	lastFilename   string
	lastText       string
	err            error
}

func (f *fakeIngest) Ingest(_ context.Context, _ model.IngestRequest) (*model.IngestResult, error) {
	panic("not used")
}

func (f *fakeIngest) IngestAs(_ context.Context, documentID, filename, rawText string) (*model.IngestResult, error) {
	f.lastDocumentID = documentID
	f.lastFilename = filename
	f.lastText = rawText
	if f.err != nil {
		return nil, f.err
	}
	return &model.IngestResult{DocumentID: documentID, Filename: filename, ChunkCount: 2}, nil
}

func (f *fakeIngest) IngestBatch(_ context.Context, _ []model.IngestRequest) []model.BatchItemResult {
	panic("not used")
}

func (f *fakeIngest) Enqueue(_ context.Context, _ model.IngestRequest) (*model.IngestResult, error) {
	panic("not used")
}

func TestProcess_FetchesAndIngests(t *testing.T) {
	fetcher := &fakeFetcher{texts: map[string]string{"raw/doc-1.txt": "archived document body"}}
	ingest := &fakeIngest{}
	p := NewProcessor(fetcher, ingest)

	err := p.Process(context.Background(), tasks.IngestTask{
		DocumentID: "doc-1",
		Filename:   "report.txt",
		ObjectName: "raw/doc-1.txt",
	})

	require.NoError(t, err)
	assert.Equal(t, "doc-1", ingest.lastDocumentID)
	assert.Equal(t, "report.txt", ingest.lastFilename)
	assert.Equal(t, "archived document body", ingest.lastText)
	assert.Equal(t, []string{"raw/doc-1.txt"}, fetcher.removed, "入库成功后应清理归档对象")
}

func TestProcess_ArchiveCleanupFailureIsNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{
		texts:     map[string]string{"raw/doc-1.txt": "body"},
		removeErr: errors.New("minio down"),
	}
	p := NewProcessor(fetcher, &fakeIngest{})

	err := p.Process(context.Background(), tasks.IngestTask{
		DocumentID: "doc-1",
		Filename:   "report.txt",
		ObjectName: "raw/doc-1.txt",
	})
	require.NoError(t, err)
}

func TestProcess_FetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("minio down")}
	p := NewProcessor(fetcher, &fakeIngest{})

	err := p.Process(context.Background(), tasks.IngestTask{DocumentID: "doc-1", ObjectName: "raw/doc-1.txt"})
	require.Error(t, err)
}

func TestProcess_EmptyArchive(t *testing.T) {
	fetcher := &fakeFetcher{texts: map[string]string{}}
	p := NewProcessor(fetcher, &fakeIngest{})

	err := p.Process(context.Background(), tasks.IngestTask{DocumentID: "doc-1", ObjectName: "raw/missing.txt"})
	require.Error(t, err)
}

func TestProcess_IngestFailurePropagates(t *testing.T) {
	fetcher := &fakeFetcher{texts: map[string]string{"raw/doc-1.txt": "body"}}
	ingest := &fakeIngest{err: errors.New("es down")}
	p := NewProcessor(fetcher, ingest)

	err := p.Process(context.Background(), tasks.IngestTask{DocumentID: "doc-1", ObjectName: "raw/doc-1.txt"})
	assert.ErrorContains(t, err, "es down")
	assert.Empty(t, fetcher.removed, "入库失败时保留归档对象供重试")
}
