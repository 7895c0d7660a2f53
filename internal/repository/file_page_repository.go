package repository

import (
	"gorm.io/gorm"

	"github.com/szhou12/rag-clean-energy/internal/model"
)

// FilePageRepository 定义了对 file_pages / file_page_chunks 表的数据操作接口。
// 文件页以 (source, page) 组合键标识。
type FilePageRepository interface {
	// SourceExists 报告某个文件来源是否已摄入过（任意一页存在即视为存在）。
	SourceExists(source string) (bool, error)
	ListPages() ([]model.FilePage, error)
	// GroupPagesByLanguage 将给定 (source, page) 组合按存储的语言分组。
	GroupPagesByLanguage(pairs []model.SourcePage) (map[model.Language][]model.SourcePage, error)
	ChunkIDsByPages(pairs []model.SourcePage) ([]string, error)
	// PagesBySource 返回某个来源的全部 (source, page) 组合。
	PagesBySource(source string) ([]model.SourcePage, error)

	BatchCreatePages(tx *gorm.DB, pages []*model.FilePage) error
	BatchCreateChunks(tx *gorm.DB, chunks []*model.FilePageChunk) error
	DeletePages(tx *gorm.DB, pairs []model.SourcePage) error
	DeleteChunksByIDs(tx *gorm.DB, ids []string) error
}

type filePageRepository struct {
	db *gorm.DB
}

// NewFilePageRepository 创建一个新的 FilePageRepository 实例。
func NewFilePageRepository(db *gorm.DB) FilePageRepository {
	return &filePageRepository{db: db}
}

// SourceExists 检查文件来源是否已存在。
func (r *filePageRepository) SourceExists(source string) (bool, error) {
	var count int64
	err := r.db.Model(&model.FilePage{}).Where("source = ?", source).Count(&count).Error
	return count > 0, err
}

// ListPages 返回全部文件页元数据。
func (r *filePageRepository) ListPages() ([]model.FilePage, error) {
	var pages []model.FilePage
	err := r.db.Find(&pages).Error
	return pages, err
}

// GroupPagesByLanguage 将 (source, page) 组合按语言分组，未入库的组合被忽略。
func (r *filePageRepository) GroupPagesByLanguage(pairs []model.SourcePage) (map[model.Language][]model.SourcePage, error) {
	grouped := map[model.Language][]model.SourcePage{
		model.LanguageEN: nil,
		model.LanguageZH: nil,
	}
	if len(pairs) == 0 {
		return grouped, nil
	}
	var pages []model.FilePage
	if err := r.db.Select("source", "page", "language").Where("(source, page) IN ?", pairsToTuples(pairs)).Find(&pages).Error; err != nil {
		return nil, err
	}
	for i := range pages {
		grouped[pages[i].Language] = append(grouped[pages[i].Language], model.SourcePage{
			Source: pages[i].Source,
			Page:   pages[i].Page,
		})
	}
	return grouped, nil
}

// ChunkIDsByPages 返回一批 (source, page) 组合对应的全部 chunk id。
func (r *filePageRepository) ChunkIDsByPages(pairs []model.SourcePage) ([]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	var ids []string
	err := r.db.Model(&model.FilePageChunk{}).
		Where("(source, page) IN ?", pairsToTuples(pairs)).
		Pluck("id", &ids).Error
	return ids, err
}

// PagesBySource 返回某个来源的全部 (source, page) 组合。
func (r *filePageRepository) PagesBySource(source string) ([]model.SourcePage, error) {
	var pages []model.FilePage
	if err := r.db.Select("source", "page").Where("source = ?", source).Find(&pages).Error; err != nil {
		return nil, err
	}
	pairs := make([]model.SourcePage, 0, len(pages))
	for i := range pages {
		pairs = append(pairs, model.SourcePage{Source: pages[i].Source, Page: pages[i].Page})
	}
	return pairs, nil
}

// BatchCreatePages 批量创建文件页元数据记录。
func (r *filePageRepository) BatchCreatePages(tx *gorm.DB, pages []*model.FilePage) error {
	if len(pages) == 0 {
		return nil
	}
	return tx.CreateInBatches(pages, 100).Error
}

// BatchCreateChunks 批量创建文件页 chunk 记录。
func (r *filePageRepository) BatchCreateChunks(tx *gorm.DB, chunks []*model.FilePageChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return tx.CreateInBatches(chunks, 100).Error
}

// DeletePages 按 (source, page) 组合批量删除文件页元数据。
func (r *filePageRepository) DeletePages(tx *gorm.DB, pairs []model.SourcePage) error {
	if len(pairs) == 0 {
		return nil
	}
	return tx.Where("(source, page) IN ?", pairsToTuples(pairs)).Delete(&model.FilePage{}).Error
}

// DeleteChunksByIDs 按 chunk id 批量删除。
func (r *filePageRepository) DeleteChunksByIDs(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("id IN ?", ids).Delete(&model.FilePageChunk{}).Error
}

// pairsToTuples 将 (source, page) 组合转换为 gorm 行构造器 IN 查询需要的形式。
func pairsToTuples(pairs []model.SourcePage) [][]interface{} {
	tuples := make([][]interface{}, 0, len(pairs))
	for _, p := range pairs {
		tuples = append(tuples, []interface{}{p.Source, p.Page})
	}
	return tuples
}
