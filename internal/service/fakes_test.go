package service

import (
	"context"
	"sync"

	"docsage-go/internal/model"
	"docsage-go/pkg/llm"
)

// fakeEmbedder 返回确定性的 4 维向量。
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.EmbedMany(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (f *fakeEmbedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t) % 7), 0.1, 0.2, 0.3}
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed-v1" }

// fakeIndex 把向量记录存在内存里，Search 返回预置结果。
type fakeIndex struct {
	mu            sync.Mutex
	records       map[string][]model.EsChunk // documentID -> records
	searchResults []model.RetrievedChunk
	searchErr     error
	insertErr     error
	deleteCalls   int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string][]model.EsChunk)}
}

func (f *fakeIndex) Insert(_ context.Context, records []model.EsChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	for _, r := range records {
		f.records[r.DocumentID] = append(f.records[r.DocumentID], r)
	}
	return nil
}

func (f *fakeIndex) Search(_ context.Context, _ []float32, k int) ([]model.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if k > len(f.searchResults) {
		k = len(f.searchResults)
	}
	return f.searchResults[:k], nil
}

func (f *fakeIndex) DeleteByDocument(_ context.Context, documentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	n := int64(len(f.records[documentID]))
	delete(f.records, documentID)
	return n, nil
}

func (f *fakeIndex) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, recs := range f.records {
		n += int64(len(recs))
	}
	return n, nil
}

// fakeDocRepo 是 DocumentRepository 的内存实现。
type fakeDocRepo struct {
	mu     sync.Mutex
	docs   map[string]model.Document
	chunks map[string][]model.ChunkRecord
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{
		docs:   make(map[string]model.Document),
		chunks: make(map[string][]model.ChunkRecord),
	}
}

func (f *fakeDocRepo) SaveDocument(_ context.Context, doc *model.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeDocRepo) GetDocument(_ context.Context, documentID string) (*model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (f *fakeDocRepo) ListDocuments(_ context.Context, _, _ int) ([]model.Document, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Document, 0, len(f.docs))
	for _, d := range f.docs {
		out = append(out, d)
	}
	return out, int64(len(out)), nil
}

func (f *fakeDocRepo) BatchCreateChunks(_ context.Context, chunks []model.ChunkRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range chunks {
		f.chunks[c.DocumentID] = append(f.chunks[c.DocumentID], c)
	}
	return nil
}

func (f *fakeDocRepo) DeleteChunksByDocumentID(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chunks, documentID)
	return nil
}

func (f *fakeDocRepo) CountDocuments(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.docs)), nil
}

func (f *fakeDocRepo) CountChunks(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, cs := range f.chunks {
		n += int64(len(cs))
	}
	return n, nil
}

// fakeLLM 返回固定答案并记录最后一次调用。
type fakeLLM struct {
	answer      string
	err         error
	calls       int
	lastPrompt  string
	lastHistory []llm.Message
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, history []llm.Message) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	f.lastHistory = history
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeLLM) StreamGenerate(ctx context.Context, prompt string, history []llm.Message, writer llm.MessageWriter) (string, error) {
	answer, err := f.Generate(ctx, prompt, history)
	if err != nil {
		return "", err
	}
	if err := writer.WriteMessage(1, []byte(answer)); err != nil {
		return "", err
	}
	return answer, nil
}

// fakeArchive 记录归档的对象。
type fakeArchive struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string]string)}
}

func (f *fakeArchive) PutText(_ context.Context, objectName, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.objects[objectName] = text
	return nil
}
