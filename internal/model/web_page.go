package model

import "time"

// WebPage 对应于数据库中的 web_pages 表，记录一个已摄入网页的元数据。
type WebPage struct {
	ID          uint      `gorm:"primaryKey;autoIncrement"`
	Source      string    `gorm:"type:varchar(255);uniqueIndex;not null"`
	Checksum    string    `gorm:"type:char(64);uniqueIndex;not null"` // SHA-256(source)
	ScrapedAt   time.Time `gorm:"not null"`
	RefreshDays *int      // 刷新周期（天）；NULL 表示不自动刷新
	Language    Language  `gorm:"type:varchar(10);not null;default:en"`

	Chunks []WebPageChunk `gorm:"foreignKey:Source;references:Source;constraint:OnDelete:CASCADE"`
}

func (WebPage) TableName() string {
	return "web_pages"
}

// NextRefreshDue 返回下次应刷新的时间；未设置刷新周期时返回 nil。
func (p *WebPage) NextRefreshDue() *time.Time {
	if p.RefreshDays == nil {
		return nil
	}
	due := p.ScrapedAt.AddDate(0, 0, *p.RefreshDays)
	return &due
}

// IsRefreshNeeded 判断页面是否到期需要重新抓取。
// 边界为闭区间：正好到期视为需要刷新。
func (p *WebPage) IsRefreshNeeded(now time.Time) bool {
	due := p.NextRefreshDue()
	if due == nil {
		return false
	}
	return !now.Before(*due)
}

// WebPageChunk 对应于 web_page_chunks 表。
// id 是向量库生成的 UUID，是向量库与元数据库之间的连接键。
type WebPageChunk struct {
	ID     string `gorm:"type:char(36);primaryKey"`
	Source string `gorm:"type:varchar(255);not null;index"`
}

func (WebPageChunk) TableName() string {
	return "web_page_chunks"
}
