package pipeline

import (
	"context"
	"fmt"

	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

// DeleteWebPages 以单个工作单元删除一批同语言网页：元数据行、chunk 行
// 和向量全部移除。删除向量前先快照，失败时事务回滚并把快照写回。
func (c *Coordinator) DeleteWebPages(ctx context.Context, sources []string, lang model.Language) error {
	if len(sources) == 0 {
		return nil
	}
	store, err := c.store(lang)
	if err != nil {
		return err
	}

	unlock := c.locks.lockAll(sources)
	defer unlock()

	u := newUnit("delete_web")

	ids, err := c.webRepo.ChunkIDsBySources(sources)
	if err != nil {
		u.to(stateFailed)
		return fmt.Errorf("查询待删网页的 chunk id 失败: %w", err)
	}
	snapshot, err := store.GetByIDs(ctx, ids)
	if err != nil {
		u.to(stateFailed)
		return fmt.Errorf("快照待删网页的向量失败: %w", err)
	}
	u.to(stateOldSnapshotted)

	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		u.to(stateFailed)
		return tx.Error
	}

	// 先删子表再删主表，避免外键约束冲突。
	if err := c.webRepo.DeleteChunksByIDs(tx, ids); err != nil {
		tx.Rollback()
		u.to(stateFailed)
		return err
	}
	if err := c.webRepo.DeletePagesBySources(tx, sources); err != nil {
		tx.Rollback()
		u.to(stateFailed)
		return err
	}
	// 向量删除可能中途失败，写回快照即可覆盖式恢复。
	if err := store.Delete(ctx, ids); err != nil {
		tx.Rollback()
		return c.compensate(ctx, u, store, nil, snapshot, err)
	}
	u.to(stateOldDeleted)

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return c.compensate(ctx, u, store, nil, snapshot, err)
	}
	u.to(stateCommitted)
	log.Infof("[Pipeline] delete_web 完成: sources=%d, chunks=%d, lang=%s", len(sources), len(ids), lang)
	return nil
}

// DeleteFilePages 以单个工作单元删除一批同语言的文件页，
// 标识键为 (source, page)，流程与 DeleteWebPages 相同。
func (c *Coordinator) DeleteFilePages(ctx context.Context, pairs []model.SourcePage, lang model.Language) error {
	if len(pairs) == 0 {
		return nil
	}
	store, err := c.store(lang)
	if err != nil {
		return err
	}

	sources := make([]string, 0, len(pairs))
	for _, p := range pairs {
		sources = append(sources, p.Source)
	}
	unlock := c.locks.lockAll(sources)
	defer unlock()

	u := newUnit("delete_file")

	ids, err := c.fileRepo.ChunkIDsByPages(pairs)
	if err != nil {
		u.to(stateFailed)
		return fmt.Errorf("查询待删文件页的 chunk id 失败: %w", err)
	}
	snapshot, err := store.GetByIDs(ctx, ids)
	if err != nil {
		u.to(stateFailed)
		return fmt.Errorf("快照待删文件页的向量失败: %w", err)
	}
	u.to(stateOldSnapshotted)

	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		u.to(stateFailed)
		return tx.Error
	}

	if err := c.fileRepo.DeleteChunksByIDs(tx, ids); err != nil {
		tx.Rollback()
		u.to(stateFailed)
		return err
	}
	if err := c.fileRepo.DeletePages(tx, pairs); err != nil {
		tx.Rollback()
		u.to(stateFailed)
		return err
	}
	if err := store.Delete(ctx, ids); err != nil {
		tx.Rollback()
		return c.compensate(ctx, u, store, nil, snapshot, err)
	}
	u.to(stateOldDeleted)

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return c.compensate(ctx, u, store, nil, snapshot, err)
	}
	u.to(stateCommitted)
	log.Infof("[Pipeline] delete_file 完成: pages=%d, chunks=%d, lang=%s", len(pairs), len(ids), lang)
	return nil
}
