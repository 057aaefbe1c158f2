// Package es 提供了与 Elasticsearch 向量索引交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"docsage-go/internal/config"
	"docsage-go/internal/model"
	"docsage-go/pkg/log"
	"docsage-go/pkg/ragerr"
)

// Index 封装单个 dense_vector 索引上的全部操作。
type Index struct {
	client    *elasticsearch.Client
	indexName string
	dims      int
}

// Open 连接 Elasticsearch 并挂载（或创建）配置的索引。
// 索引已存在时校验向量维度与 dims 一致，不一致立即报配置错误，
// 避免写入时才发现维度漂移。重复调用是幂等的。
func Open(esCfg config.ElasticsearchConfig, dims int) (*Index, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{esCfg.Addresses},
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	idx := &Index{client: client, indexName: esCfg.IndexName, dims: dims}
	if err := idx.ensureIndex(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (i *Index) ensureIndex() error {
	res, err := i.client.Indices.Exists([]string{i.indexName})
	if err != nil {
		log.Errorf("[ES] 检查索引是否存在时出错: %v", err)
		return err
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		log.Infof("[ES] 索引 '%s' 已存在，校验向量维度", i.indexName)
		return i.verifyDims()
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("[ES] 检查索引 '%s' 是否存在时收到意外的状态码: %d", i.indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}
	return i.createIndex()
}

func (i *Index) createIndex() error {
	mapping := fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"vector_id":          { "type": "keyword" },
				"document_id":        { "type": "keyword" },
				"ordinal":            { "type": "integer" },
				"filename":           { "type": "keyword" },
				"text_content":       { "type": "text" },
				"vector": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"genre":              { "type": "keyword" },
				"keywords":           { "type": "keyword" },
				"position_label":     { "type": "keyword" },
				"total_chunks":       { "type": "integer" },
				"char_start":         { "type": "integer" },
				"char_end":           { "type": "integer" },
				"contains_structure": { "type": "boolean" },
				"model_version":      { "type": "keyword" },
				"seq":                { "type": "long" }
			}
		}
	}`, i.dims)

	res, err := i.client.Indices.Create(
		i.indexName,
		i.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		log.Errorf("[ES] 创建索引 '%s' 失败: %v", i.indexName, err)
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[ES] 创建索引 '%s' 时 Elasticsearch 返回错误: %s", i.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}
	log.Infof("[ES] 索引 '%s' 创建成功, dims: %d", i.indexName, i.dims)
	return nil
}

// verifyDims 读取现有 mapping，校验 vector 字段维度。
func (i *Index) verifyDims() error {
	res, err := i.client.Indices.GetMapping(
		i.client.Indices.GetMapping.WithIndex(i.indexName),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("读取索引 '%s' mapping 失败: %s", i.indexName, res.Status())
	}

	var body map[string]struct {
		Mappings struct {
			Properties map[string]struct {
				Type string `json:"type"`
				Dims int    `json:"dims"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("解析索引 mapping 失败: %w", err)
	}
	for _, idx := range body {
		vec, ok := idx.Mappings.Properties["vector"]
		if !ok {
			return ragerr.Configuration("索引 '%s' 缺少 vector 字段", i.indexName)
		}
		if vec.Dims != i.dims {
			return ragerr.Configuration("索引 '%s' 的向量维度为 %d, 与配置的 %d 不一致", i.indexName, vec.Dims, i.dims)
		}
	}
	return nil
}

// Insert 将分块记录写入索引。VectorID 作为文档 ID，重复写入即覆盖。
func (i *Index) Insert(ctx context.Context, records []model.EsChunk) error {
	for _, rec := range records {
		if len(rec.Vector) != i.dims {
			return ragerr.Configuration("记录 %s 的向量维度为 %d, 索引要求 %d", rec.VectorID, len(rec.Vector), i.dims)
		}
		docBytes, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		req := esapi.IndexRequest{
			Index:      i.indexName,
			DocumentID: rec.VectorID,
			Body:       bytes.NewReader(docBytes),
			Refresh:    "true",
		}
		res, err := req.Do(ctx, i.client)
		if err != nil {
			return err
		}
		if res.IsError() {
			msg := res.String()
			res.Body.Close()
			log.Errorf("[ES] 索引记录 %s 出错: %s", rec.VectorID, msg)
			return errors.New("failed to index document")
		}
		res.Body.Close()
	}
	return nil
}

type knnQuery struct {
	KNN struct {
		Field         string    `json:"field"`
		QueryVector   []float32 `json:"query_vector"`
		K             int       `json:"k"`
		NumCandidates int       `json:"num_candidates"`
	} `json:"knn"`
	Size int `json:"size"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64       `json:"_score"`
			Source model.EsChunk `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 用 knn 查询返回 top-k 命中，按得分降序、同分按写入序号升序稳定排序。
func (i *Index) Search(ctx context.Context, vector []float32, k int) ([]model.RetrievedChunk, error) {
	if len(vector) != i.dims {
		return nil, ragerr.Configuration("查询向量维度为 %d, 索引要求 %d", len(vector), i.dims)
	}
	if k <= 0 {
		return nil, nil
	}

	var q knnQuery
	q.KNN.Field = "vector"
	q.KNN.QueryVector = vector
	q.KNN.K = k
	q.KNN.NumCandidates = k * 10
	q.Size = k

	queryBytes, err := json.Marshal(q)
	if err != nil {
		return nil, err
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.indexName),
		i.client.Search.WithBody(bytes.NewReader(queryBytes)),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[ES] knn 查询出错: %s", res.String())
		return nil, errors.New("failed to search index")
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("解析查询响应失败: %w", err)
	}

	chunks := make([]model.RetrievedChunk, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		rc, err := hit.Source.ToRetrieved(hit.Score)
		if err != nil {
			// 索引记录损坏属于基础设施故障，整个查询失败
			return nil, err
		}
		chunks = append(chunks, rc)
	}
	sortByScore(chunks)
	return chunks, nil
}

// sortByScore 按得分降序排序，同分时按写入序号升序，保证结果确定。
func sortByScore(chunks []model.RetrievedChunk) {
	sort.SliceStable(chunks, func(a, b int) bool {
		if chunks[a].Score != chunks[b].Score {
			return chunks[a].Score > chunks[b].Score
		}
		return chunks[a].Seq < chunks[b].Seq
	})
}

// DeleteByDocument 删除某文档的全部分块记录，返回删除的条数。
func (i *Index) DeleteByDocument(ctx context.Context, documentID string) (int64, error) {
	query := fmt.Sprintf(`{"query":{"term":{"document_id":%q}}}`, documentID)
	res, err := i.client.DeleteByQuery(
		[]string{i.indexName},
		strings.NewReader(query),
		i.client.DeleteByQuery.WithContext(ctx),
		i.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[ES] 删除文档 %s 的记录出错: %s", documentID, res.String())
		return 0, errors.New("failed to delete document chunks")
	}

	var body struct {
		Deleted int64 `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Deleted, nil
}

// Count 返回索引中的记录总数。
func (i *Index) Count(ctx context.Context) (int64, error) {
	res, err := i.client.Count(
		i.client.Count.WithContext(ctx),
		i.client.Count.WithIndex(i.indexName),
	)
	if err != nil {
		return 0, err
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, fmt.Errorf("统计索引记录数失败: %s", res.Status())
	}

	var body struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return 0, err
	}
	return body.Count, nil
}
