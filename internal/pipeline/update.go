package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/internal/vectorstore"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

// UpdateWebPage 用重新抓取的内容替换单个网页的全部 chunk，
// 并把 scraped_at 重置为当前时间。每次调用是一个独立工作单元。
// 状态机：start → old_snapshotted → old_deleted → new_written →
// metadata_written → committed。失败时先回滚关系事务，再删除新写入
// 的向量，最后将快照写回向量库。
func (c *Coordinator) UpdateWebPage(ctx context.Context, source string, chunks []model.Chunk) ([]model.ChunkRef, error) {
	if source == "" {
		return nil, errors.New("更新目标缺少 source")
	}
	lang, err := c.webRepo.LanguageBySource(source)
	if err != nil {
		return nil, fmt.Errorf("查询 %s 的语言失败: %w", source, err)
	}
	store, err := c.store(lang)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if chunks[i].Source == "" {
			return nil, fmt.Errorf("%w (第 %d 个 chunk)", vectorstore.ErrMissingSource, i)
		}
	}

	unlock := c.locks.lockAll([]string{source})
	defer unlock()

	u := newUnit("update_web")

	oldIDs, err := c.webRepo.ChunkIDsBySource(source)
	if err != nil {
		u.to(stateFailed)
		return nil, fmt.Errorf("查询 %s 的旧 chunk id 失败: %w", source, err)
	}

	// 破坏性操作前先快照旧向量，供失败时恢复。
	oldChunks, err := store.GetByIDs(ctx, oldIDs)
	if err != nil {
		u.to(stateFailed)
		return nil, fmt.Errorf("快照 %s 的旧向量失败: %w", source, err)
	}
	u.to(stateOldSnapshotted)

	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		u.to(stateFailed)
		return nil, tx.Error
	}

	// 关系侧先删旧 chunk 行，向量侧随后删旧向量。
	if err := c.webRepo.DeleteChunksByIDs(tx, oldIDs); err != nil {
		tx.Rollback()
		u.to(stateFailed)
		return nil, err
	}
	// 向量删除可能中途失败，写回快照即可覆盖式恢复。
	if err := store.Delete(ctx, oldIDs); err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, nil, oldChunks, err)
	}
	vectorDeleted := true
	u.to(stateOldDeleted)

	if err := c.webRepo.ResetScrapedAt(tx, []string{source}, c.now()); err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, nil, restoreSnapshot(vectorDeleted, oldChunks), err)
	}

	newRefs, err := store.Add(ctx, chunks)
	if err != nil {
		tx.Rollback()
		var pw *vectorstore.PartialWriteError
		if errors.As(err, &pw) {
			return nil, c.compensate(ctx, u, store, refIDs(pw.Written), restoreSnapshot(vectorDeleted, oldChunks), err)
		}
		return nil, c.compensate(ctx, u, store, nil, restoreSnapshot(vectorDeleted, oldChunks), err)
	}
	u.to(stateNewWritten)

	chunkRows := make([]*model.WebPageChunk, 0, len(newRefs))
	for _, ref := range newRefs {
		chunkRows = append(chunkRows, &model.WebPageChunk{ID: ref.ID, Source: ref.Source})
	}
	if err := c.webRepo.BatchCreateChunks(tx, chunkRows); err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, refIDs(newRefs), restoreSnapshot(vectorDeleted, oldChunks), err)
	}
	u.to(stateMetadataWritten)

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, refIDs(newRefs), restoreSnapshot(vectorDeleted, oldChunks), err)
	}
	u.to(stateCommitted)
	log.Infof("[Pipeline] update_web 完成: source=%s, old_chunks=%d, new_chunks=%d", source, len(oldIDs), len(newRefs))
	return newRefs, nil
}

// restoreSnapshot 只有在旧向量已经被删除后才需要写回快照。
func restoreSnapshot(vectorDeleted bool, snapshot []model.Chunk) []model.Chunk {
	if !vectorDeleted {
		return nil
	}
	return snapshot
}
