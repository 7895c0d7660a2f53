package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intPtr(n int) *int { return &n }

func TestIsRefreshNeeded(t *testing.T) {
	scrapedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		refreshDays *int
		now         time.Time
		want        bool
	}{
		{
			name:        "无刷新周期永不过期",
			refreshDays: nil,
			now:         scrapedAt.AddDate(10, 0, 0),
			want:        false,
		},
		{
			name:        "未到期",
			refreshDays: intPtr(7),
			now:         scrapedAt.AddDate(0, 0, 6),
			want:        false,
		},
		{
			name:        "正好到期视为需要刷新",
			refreshDays: intPtr(7),
			now:         scrapedAt.AddDate(0, 0, 7),
			want:        true,
		},
		{
			name:        "到期一秒前",
			refreshDays: intPtr(7),
			now:         scrapedAt.AddDate(0, 0, 7).Add(-time.Second),
			want:        false,
		},
		{
			name:        "已过期",
			refreshDays: intPtr(7),
			now:         scrapedAt.AddDate(0, 0, 30),
			want:        true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &WebPage{ScrapedAt: scrapedAt, RefreshDays: tt.refreshDays}
			assert.Equal(t, tt.want, p.IsRefreshNeeded(tt.now))
		})
	}
}

func TestNextRefreshDue(t *testing.T) {
	scrapedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	p := &WebPage{ScrapedAt: scrapedAt}
	assert.Nil(t, p.NextRefreshDue())

	p.RefreshDays = intPtr(3)
	due := p.NextRefreshDue()
	assert.NotNil(t, due)
	assert.Equal(t, scrapedAt.AddDate(0, 0, 3), *due)
}

func TestSourceChecksum(t *testing.T) {
	sum := SourceChecksum("https://example.org/a")

	// 十六进制 SHA-256，固定 64 字符。
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, SourceChecksum("https://example.org/a"))
	assert.NotEqual(t, sum, SourceChecksum("https://example.org/b"))
}

func TestParseLanguage(t *testing.T) {
	lang, err := ParseLanguage("en")
	assert.NoError(t, err)
	assert.Equal(t, LanguageEN, lang)

	lang, err = ParseLanguage("zh")
	assert.NoError(t, err)
	assert.Equal(t, LanguageZH, lang)

	_, err = ParseLanguage("fr")
	assert.Error(t, err)

	assert.False(t, Language("").Valid())
}
