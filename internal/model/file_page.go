package model

import "time"

// FilePage 对应于 file_pages 表，记录上传文件的一页（PDF）或一个工作表（Excel）。
// 文件没有自动刷新周期，重新摄入由运维端先删后加。
type FilePage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	Source    string    `gorm:"type:varchar(255);not null;uniqueIndex:uk_file_source_page"`
	Page      string    `gorm:"type:varchar(255);not null;uniqueIndex:uk_file_source_page"`
	ScrapedAt time.Time `gorm:"not null"`
	Language  Language  `gorm:"type:varchar(10);not null;default:en"`

	Chunks []FilePageChunk `gorm:"foreignKey:Source,Page;references:Source,Page;constraint:OnDelete:CASCADE"`
}

func (FilePage) TableName() string {
	return "file_pages"
}

// DaysSinceScraped 返回该页入库至今的天数。
func (p *FilePage) DaysSinceScraped(now time.Time) int {
	return int(now.Sub(p.ScrapedAt).Hours() / 24)
}

// FilePageChunk 对应于 file_page_chunks 表。
type FilePageChunk struct {
	ID     string `gorm:"type:char(36);primaryKey"`
	Source string `gorm:"type:varchar(255);not null;index:idx_file_chunk_source_page"`
	Page   string `gorm:"type:varchar(255);not null;index:idx_file_chunk_source_page"`
}

func (FilePageChunk) TableName() string {
	return "file_page_chunks"
}

// SourcePage 标识一个 (source, page) 组合，用于文件页的批量查询与删除。
type SourcePage struct {
	Source string `json:"source"`
	Page   string `json:"page"`
}
