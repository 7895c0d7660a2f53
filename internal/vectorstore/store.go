// Package vectorstore 实现了按语言分区的向量库客户端。
// 每个语言对应一个 Elasticsearch 索引，chunk 内容与向量存储在索引中，
// chunk id 由客户端在写入时生成，是与元数据库的连接键。
package vectorstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/szhou12/rag-clean-energy/internal/model"
)

// ErrMissingSource 表示待写入的 chunk 缺少来源标识。
// 这是校验错误，必须在任何存储被写入之前返回。
var ErrMissingSource = errors.New("chunk 缺少 source 元数据")

// Store 是单个语言分区的向量库客户端接口。
type Store interface {
	// Add 为每个 chunk 生成向量和全局唯一 id 并写入，返回写入引用。
	// 嵌入阶段全部完成后才开始写索引，嵌入失败不会留下任何脏数据；
	// 索引阶段中途失败时返回 *PartialWriteError，携带已写入的引用。
	Add(ctx context.Context, chunks []model.Chunk) ([]model.ChunkRef, error)
	// Delete 按 id 删除，删除不存在的 id 不算错误。
	Delete(ctx context.Context, ids []string) error
	// GetByIDs 取回 chunk 内容与向量，仅用于破坏性操作前的快照。
	GetByIDs(ctx context.Context, ids []string) ([]model.Chunk, error)
	// Restore 将快照按原 id 原向量写回，用于补偿回滚，不重新嵌入。
	Restore(ctx context.Context, chunks []model.Chunk) error
}

// PartialWriteError 表示批量索引写入中途失败。
// Written 是失败前已成功写入的引用，补偿删除以它为目标。
type PartialWriteError struct {
	Written []model.ChunkRef
	Err     error
}

func (e *PartialWriteError) Error() string {
	return fmt.Sprintf("向量批量写入中途失败 (已写入 %d 条): %v", len(e.Written), e.Err)
}

func (e *PartialWriteError) Unwrap() error {
	return e.Err
}
