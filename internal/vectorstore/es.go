package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"

	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/pkg/embedding"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

// esChunkDoc 是存储在 Elasticsearch 索引中的文档结构。
type esChunkDoc struct {
	ChunkID      string    `json:"chunk_id"`
	Source       string    `json:"source"`
	Page         string    `json:"page,omitempty"`
	Language     string    `json:"language"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// ESStore 是基于 Elasticsearch 的 Store 实现。
type ESStore struct {
	client       *elasticsearch.Client
	index        string
	language     model.Language
	embedder     embedding.Client
	modelVersion string
}

// NewESStore 创建指定语言分区的向量库客户端。
func NewESStore(client *elasticsearch.Client, index string, language model.Language, embedder embedding.Client, modelVersion string) *ESStore {
	return &ESStore{
		client:       client,
		index:        index,
		language:     language,
		embedder:     embedder,
		modelVersion: modelVersion,
	}
}

// Add 嵌入并写入一批 chunk。嵌入全部完成后才开始写索引，
// 因此嵌入失败时索引不会被写入任何数据。
func (s *ESStore) Add(ctx context.Context, chunks []model.Chunk) ([]model.ChunkRef, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	// 校验先行：任何 chunk 缺 source 都在写库之前失败。
	texts := make([]string, 0, len(chunks))
	for i := range chunks {
		if chunks[i].Source == "" {
			return nil, fmt.Errorf("%w (第 %d 个 chunk)", ErrMissingSource, i)
		}
		texts = append(texts, chunks[i].Content)
	}

	vectors, err := s.embedder.CreateEmbeddings(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("嵌入失败: %w", err)
	}

	refs := make([]model.ChunkRef, 0, len(chunks))
	for i := range chunks {
		id := uuid.NewString()
		doc := esChunkDoc{
			ChunkID:      id,
			Source:       chunks[i].Source,
			Page:         chunks[i].Page,
			Language:     string(s.language),
			Content:      chunks[i].Content,
			Vector:       vectors[i],
			ModelVersion: s.modelVersion,
		}
		if err := s.indexDoc(ctx, doc); err != nil {
			return nil, &PartialWriteError{Written: refs, Err: err}
		}
		refs = append(refs, model.ChunkRef{ID: id, Source: chunks[i].Source, Page: chunks[i].Page})
	}
	return refs, nil
}

// Delete 按 id 删除，404 视为成功（幂等）。
func (s *ESStore) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		req := esapi.DeleteRequest{
			Index:      s.index,
			DocumentID: id,
			Refresh:    "true",
		}
		res, err := req.Do(ctx, s.client)
		if err != nil {
			return fmt.Errorf("删除向量文档 %s 失败: %w", id, err)
		}
		if res.IsError() && res.StatusCode != http.StatusNotFound {
			msg := res.String()
			res.Body.Close()
			return fmt.Errorf("删除向量文档 %s 时 Elasticsearch 返回错误: %s", id, msg)
		}
		res.Body.Close()
	}
	return nil
}

// GetByIDs 通过 mget 取回文档快照（含向量）。未找到的 id 被跳过。
func (s *ESStore) GetByIDs(ctx context.Context, ids []string) ([]model.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(map[string]interface{}{"ids": ids})
	if err != nil {
		return nil, err
	}
	req := esapi.MgetRequest{
		Index: s.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("mget 向量文档失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("mget 向量文档时 Elasticsearch 返回错误: %s", res.String())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Docs []struct {
			Found  bool       `json:"found"`
			Source esChunkDoc `json:"_source"`
		} `json:"docs"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("解析 mget 响应失败: %w", err)
	}

	chunks := make([]model.Chunk, 0, len(parsed.Docs))
	for _, d := range parsed.Docs {
		if !d.Found {
			continue
		}
		chunks = append(chunks, model.Chunk{
			ID:       d.Source.ChunkID,
			Source:   d.Source.Source,
			Page:     d.Source.Page,
			Language: model.Language(d.Source.Language),
			Content:  d.Source.Content,
			Vector:   d.Source.Vector,
		})
	}
	return chunks, nil
}

// Restore 将快照按原 id 写回索引。快照必须携带原向量。
func (s *ESStore) Restore(ctx context.Context, chunks []model.Chunk) error {
	for i := range chunks {
		if chunks[i].ID == "" {
			return errors.New("快照 chunk 缺少 id，无法恢复")
		}
		if len(chunks[i].Vector) == 0 {
			return fmt.Errorf("快照 chunk %s 缺少向量，无法恢复", chunks[i].ID)
		}
		doc := esChunkDoc{
			ChunkID:      chunks[i].ID,
			Source:       chunks[i].Source,
			Page:         chunks[i].Page,
			Language:     string(s.language),
			Content:      chunks[i].Content,
			Vector:       chunks[i].Vector,
			ModelVersion: s.modelVersion,
		}
		if err := s.indexDoc(ctx, doc); err != nil {
			return fmt.Errorf("恢复向量文档 %s 失败: %w", chunks[i].ID, err)
		}
	}
	return nil
}

// indexDoc 将单个文档写入索引，文档 id 即 chunk id。
func (s *ESStore) indexDoc(ctx context.Context, doc esChunkDoc) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      s.index,
		DocumentID: doc.ChunkID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引向量文档到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("索引向量文档失败 (status %d)", res.StatusCode)
	}
	return nil
}
