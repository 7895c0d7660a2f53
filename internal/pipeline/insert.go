package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/szhou12/rag-clean-energy/internal/model"
	"github.com/szhou12/rag-clean-energy/internal/vectorstore"
	"github.com/szhou12/rag-clean-energy/pkg/log"
)

// InsertWebPages 以单个工作单元插入一批新网页及其 chunk。
// 状态机：start → embedded → metadata_written → committed；
// 元数据写入或提交失败时回滚关系事务，再补偿删除已写入的向量。
func (c *Coordinator) InsertWebPages(ctx context.Context, pages []WebPageInfo, chunks []model.Chunk, lang model.Language) ([]model.ChunkRef, error) {
	store, err := c.store(lang)
	if err != nil {
		return nil, err
	}
	// 校验先行：任何存储被写入之前发现问题就中止。
	sources := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Source == "" {
			return nil, errors.New("网页元数据缺少 source")
		}
		sources = append(sources, p.Source)
	}
	for i := range chunks {
		if chunks[i].Source == "" {
			return nil, fmt.Errorf("%w (第 %d 个 chunk)", vectorstore.ErrMissingSource, i)
		}
	}

	unlock := c.locks.lockAll(sources)
	defer unlock()

	u := newUnit("insert_web")

	// 阶段一：向量库写入，拿到生成的 chunk id。
	refs, err := store.Add(ctx, chunks)
	if err != nil {
		var pw *vectorstore.PartialWriteError
		if errors.As(err, &pw) && len(pw.Written) > 0 {
			return nil, c.compensate(ctx, u, store, refIDs(pw.Written), nil, err)
		}
		u.to(stateFailed)
		return nil, err
	}
	u.to(stateEmbedded)

	if err := ctx.Err(); err != nil {
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, err)
	}

	// 阶段二：单个关系事务内写 Document 行和 Chunk 行。
	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, tx.Error)
	}

	now := c.now()
	pageRows := make([]*model.WebPage, 0, len(pages))
	for _, p := range pages {
		pageRows = append(pageRows, &model.WebPage{
			Source:      p.Source,
			Checksum:    model.SourceChecksum(p.Source),
			ScrapedAt:   now,
			RefreshDays: p.RefreshDays,
			Language:    p.Language,
		})
	}
	chunkRows := make([]*model.WebPageChunk, 0, len(refs))
	for _, ref := range refs {
		chunkRows = append(chunkRows, &model.WebPageChunk{ID: ref.ID, Source: ref.Source})
	}

	if err := c.webRepo.BatchCreatePages(tx, pageRows); err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, err)
	}
	if err := c.webRepo.BatchCreateChunks(tx, chunkRows); err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, err)
	}
	u.to(stateMetadataWritten)

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, err)
	}
	u.to(stateCommitted)
	log.Infof("[Pipeline] insert_web 完成: pages=%d, chunks=%d, lang=%s", len(pageRows), len(refs), lang)
	return refs, nil
}

// InsertFilePages 以单个工作单元插入一批新文件页及其 chunk，
// 流程与 InsertWebPages 相同，标识键为 (source, page)。
func (c *Coordinator) InsertFilePages(ctx context.Context, pages []FilePageInfo, chunks []model.Chunk, lang model.Language) ([]model.ChunkRef, error) {
	store, err := c.store(lang)
	if err != nil {
		return nil, err
	}
	sources := make([]string, 0, len(pages))
	for _, p := range pages {
		if p.Source == "" {
			return nil, errors.New("文件页元数据缺少 source")
		}
		sources = append(sources, p.Source)
	}
	for i := range chunks {
		if chunks[i].Source == "" {
			return nil, fmt.Errorf("%w (第 %d 个 chunk)", vectorstore.ErrMissingSource, i)
		}
	}

	unlock := c.locks.lockAll(sources)
	defer unlock()

	u := newUnit("insert_file")

	refs, err := store.Add(ctx, chunks)
	if err != nil {
		var pw *vectorstore.PartialWriteError
		if errors.As(err, &pw) && len(pw.Written) > 0 {
			return nil, c.compensate(ctx, u, store, refIDs(pw.Written), nil, err)
		}
		u.to(stateFailed)
		return nil, err
	}
	u.to(stateEmbedded)

	if err := ctx.Err(); err != nil {
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, err)
	}

	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, tx.Error)
	}

	now := c.now()
	pageRows := make([]*model.FilePage, 0, len(pages))
	for _, p := range pages {
		pageRows = append(pageRows, &model.FilePage{
			Source:    p.Source,
			Page:      p.Page,
			ScrapedAt: now,
			Language:  p.Language,
		})
	}
	chunkRows := make([]*model.FilePageChunk, 0, len(refs))
	for _, ref := range refs {
		chunkRows = append(chunkRows, &model.FilePageChunk{ID: ref.ID, Source: ref.Source, Page: ref.Page})
	}

	if err := c.fileRepo.BatchCreatePages(tx, pageRows); err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, err)
	}
	if err := c.fileRepo.BatchCreateChunks(tx, chunkRows); err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, err)
	}
	u.to(stateMetadataWritten)

	if err := tx.Commit().Error; err != nil {
		tx.Rollback()
		return nil, c.compensate(ctx, u, store, refIDs(refs), nil, err)
	}
	u.to(stateCommitted)
	log.Infof("[Pipeline] insert_file 完成: pages=%d, chunks=%d, lang=%s", len(pageRows), len(refs), lang)
	return refs, nil
}

// compensate 执行向量侧的补偿动作：删除本单元新写入的向量 (newIDs)，
// 并把破坏性操作前的快照写回 (restore)。关系侧已由事务回滚自愈。
// 补偿本身失败时升级为 ErrInconsistent；成功时返回原始错误 cause。
func (c *Coordinator) compensate(ctx context.Context, u *unit, store vectorstore.Store, newIDs []string, restore []model.Chunk, cause error) error {
	u.to(stateCompensating)
	// 补偿不受调用方取消影响，否则取消本身就会制造不一致。
	detached := context.WithoutCancel(ctx)

	if len(newIDs) > 0 {
		if err := store.Delete(detached, newIDs); err != nil {
			u.to(stateFailed)
			log.Errorw("[Pipeline] 补偿删除向量失败，出现致命不一致，需要人工对账",
				"op", u.op, "chunk_ids", newIDs, "cause", cause, "error", err)
			return fmt.Errorf("%w: %s 失败(%v)后补偿删除也失败: %v", ErrInconsistent, u.op, cause, err)
		}
	}
	if len(restore) > 0 {
		if err := store.Restore(detached, restore); err != nil {
			u.to(stateFailed)
			log.Errorw("[Pipeline] 补偿恢复向量快照失败，出现致命不一致，需要人工对账",
				"op", u.op, "snapshot_size", len(restore), "cause", cause, "error", err)
			return fmt.Errorf("%w: %s 失败(%v)后快照恢复也失败: %v", ErrInconsistent, u.op, cause, err)
		}
	}
	u.to(stateFailed)
	return cause
}

func refIDs(refs []model.ChunkRef) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids
}
