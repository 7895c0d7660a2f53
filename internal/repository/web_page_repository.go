// Package repository 实现了元数据库（MySQL）的数据访问层。
// 只读方法使用仓库自身的连接；写方法显式接收事务句柄，
// 因为跨存储的原子性由 pipeline 统一负责，不在这一层。
package repository

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/szhou12/rag-clean-energy/internal/model"
)

// WebPageRepository 定义了对 web_pages / web_page_chunks 表的数据操作接口。
type WebPageRepository interface {
	// FindByChecksum 按来源校验和查找页面；不存在时返回 (nil, nil)。
	FindByChecksum(checksum string) (*model.WebPage, error)
	// ActiveSources 返回未到刷新期的页面来源集合，即爬虫的去重台账快照。
	ActiveSources(now time.Time) (map[string]struct{}, error)
	ListPages() ([]model.WebPage, error)
	LanguageBySource(source string) (model.Language, error)
	// GroupSourcesByLanguage 将给定来源按存储的语言分组。
	GroupSourcesByLanguage(sources []string) (map[model.Language][]string, error)
	ChunkIDsBySource(source string) ([]string, error)
	ChunkIDsBySources(sources []string) ([]string, error)

	BatchCreatePages(tx *gorm.DB, pages []*model.WebPage) error
	BatchCreateChunks(tx *gorm.DB, chunks []*model.WebPageChunk) error
	// ResetScrapedAt 将给定来源的抓取时间重置为 now（刷新成功后调用）。
	ResetScrapedAt(tx *gorm.DB, sources []string, now time.Time) error
	DeletePagesBySources(tx *gorm.DB, sources []string) error
	DeleteChunksByIDs(tx *gorm.DB, ids []string) error
}

type webPageRepository struct {
	db *gorm.DB
}

// NewWebPageRepository 创建一个新的 WebPageRepository 实例。
func NewWebPageRepository(db *gorm.DB) WebPageRepository {
	return &webPageRepository{db: db}
}

// FindByChecksum 按校验和查找页面。
func (r *webPageRepository) FindByChecksum(checksum string) (*model.WebPage, error) {
	var page model.WebPage
	err := r.db.Where("checksum = ?", checksum).First(&page).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// ActiveSources 返回所有不需要刷新的页面来源。
// 刷新判定是 ScrapedAt 和 RefreshDays 的纯函数，在内存中过滤。
func (r *webPageRepository) ActiveSources(now time.Time) (map[string]struct{}, error) {
	var pages []model.WebPage
	if err := r.db.Find(&pages).Error; err != nil {
		return nil, err
	}
	active := make(map[string]struct{}, len(pages))
	for i := range pages {
		if !pages[i].IsRefreshNeeded(now) {
			active[pages[i].Source] = struct{}{}
		}
	}
	return active, nil
}

// ListPages 返回全部网页元数据。
func (r *webPageRepository) ListPages() ([]model.WebPage, error) {
	var pages []model.WebPage
	err := r.db.Find(&pages).Error
	return pages, err
}

// LanguageBySource 返回指定来源页面的语言。
func (r *webPageRepository) LanguageBySource(source string) (model.Language, error) {
	var page model.WebPage
	if err := r.db.Select("language").Where("source = ?", source).First(&page).Error; err != nil {
		return "", err
	}
	return page.Language, nil
}

// GroupSourcesByLanguage 将来源按语言分组，未入库的来源被忽略。
func (r *webPageRepository) GroupSourcesByLanguage(sources []string) (map[model.Language][]string, error) {
	grouped := map[model.Language][]string{
		model.LanguageEN: nil,
		model.LanguageZH: nil,
	}
	if len(sources) == 0 {
		return grouped, nil
	}
	var pages []model.WebPage
	if err := r.db.Select("source", "language").Where("source IN ?", sources).Find(&pages).Error; err != nil {
		return nil, err
	}
	for i := range pages {
		grouped[pages[i].Language] = append(grouped[pages[i].Language], pages[i].Source)
	}
	return grouped, nil
}

// ChunkIDsBySource 返回来源对应的全部 chunk id。
func (r *webPageRepository) ChunkIDsBySource(source string) ([]string, error) {
	var ids []string
	err := r.db.Model(&model.WebPageChunk{}).Where("source = ?", source).Pluck("id", &ids).Error
	return ids, err
}

// ChunkIDsBySources 返回一批来源对应的全部 chunk id。
func (r *webPageRepository) ChunkIDsBySources(sources []string) ([]string, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.Model(&model.WebPageChunk{}).Where("source IN ?", sources).Pluck("id", &ids).Error
	return ids, err
}

// BatchCreatePages 批量创建网页元数据记录。
func (r *webPageRepository) BatchCreatePages(tx *gorm.DB, pages []*model.WebPage) error {
	if len(pages) == 0 {
		return nil
	}
	return tx.CreateInBatches(pages, 100).Error
}

// BatchCreateChunks 批量创建网页 chunk 记录。
func (r *webPageRepository) BatchCreateChunks(tx *gorm.DB, chunks []*model.WebPageChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return tx.CreateInBatches(chunks, 100).Error
}

// ResetScrapedAt 重置给定来源的抓取时间。
func (r *webPageRepository) ResetScrapedAt(tx *gorm.DB, sources []string, now time.Time) error {
	if len(sources) == 0 {
		return nil
	}
	return tx.Model(&model.WebPage{}).Where("source IN ?", sources).Update("scraped_at", now).Error
}

// DeletePagesBySources 按来源批量删除网页元数据。
func (r *webPageRepository) DeletePagesBySources(tx *gorm.DB, sources []string) error {
	if len(sources) == 0 {
		return nil
	}
	return tx.Where("source IN ?", sources).Delete(&model.WebPage{}).Error
}

// DeleteChunksByIDs 按 chunk id 批量删除。
func (r *webPageRepository) DeleteChunksByIDs(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("id IN ?", ids).Delete(&model.WebPageChunk{}).Error
}
