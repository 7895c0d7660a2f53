package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/szhou12/rag-clean-energy/internal/config"
	"github.com/szhou12/rag-clean-energy/internal/model"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"空白压缩与空行合并", "A\n\n\n\nB   C", "A\n\nB C"},
		{"CRLF 归一化", "a\r\nb\rc", "a\nb\nc"},
		{"换行周围空格剔除", "a  \n  b", "a\nb"},
		{"制表符压成空格", "a\t\tb", "a b"},
		{"去首尾空白", "  \n hello \n ", "hello"},
		{"空串", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestSplitPreservesAllContent(t *testing.T) {
	p := New(config.SplitterConfig{ChunkSize: 50, ChunkOverlap: 0})
	text := strings.Repeat("清洁能源的发展离不开跨境数据协作。", 20)
	docs := []*model.Document{{Source: "s", Content: text}}

	chunks := p.Split(docs)
	require.NotEmpty(t, chunks)

	// 无重叠时所有 chunk 拼接应还原原文，切分不丢字符。
	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(c.Content)
	}
	assert.Equal(t, text, joined.String())
}

func TestSplitChunkSizeBound(t *testing.T) {
	p := New(config.SplitterConfig{ChunkSize: 30, ChunkOverlap: 5})
	text := strings.Repeat("word ", 100)
	docs := []*model.Document{{Source: "s", Content: text}}

	for _, c := range p.Split(docs) {
		assert.LessOrEqual(t, len([]rune(c.Content)), 30, "chunk 超过上限: %q", c.Content)
	}
}

func TestSplitPropagatesMetadata(t *testing.T) {
	p := New(config.SplitterConfig{ChunkSize: 20, ChunkOverlap: 0})
	docs := []*model.Document{
		{Source: "https://example.org/a", Page: "", Language: model.LanguageEN, Content: strings.Repeat("alpha beta ", 10)},
		{Source: "/tmp/report.pdf", Page: "3", Language: model.LanguageZH, Content: strings.Repeat("能源数据 ", 10)},
	}

	chunks := p.Split(docs)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		switch c.Source {
		case "https://example.org/a":
			assert.Equal(t, model.LanguageEN, c.Language)
			assert.Empty(t, c.Page)
		case "/tmp/report.pdf":
			assert.Equal(t, model.LanguageZH, c.Language)
			assert.Equal(t, "3", c.Page)
		default:
			t.Fatalf("chunk 携带了未知 source: %q", c.Source)
		}
	}
}

func TestSplitSkipsWhitespaceOnlyPieces(t *testing.T) {
	p := New(config.SplitterConfig{ChunkSize: 5, ChunkOverlap: 0})
	docs := []*model.Document{{Source: "s", Content: "abcdefgh\n\n  \n"}}

	for _, c := range p.Split(docs) {
		assert.NotEmpty(t, strings.TrimSpace(c.Content))
	}
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	p := New(config.SplitterConfig{ChunkSize: 1000, ChunkOverlap: 200})
	docs := []*model.Document{{Source: "s", Content: "短文本不切分"}}

	chunks := p.Split(docs)
	require.Len(t, chunks, 1)
	assert.Equal(t, "短文本不切分", chunks[0].Content)
}

func TestHardSplitOverlap(t *testing.T) {
	p := New(config.SplitterConfig{ChunkSize: 10, ChunkOverlap: 3})
	// 无任何分隔符命中，退化为固定窗口切分。
	text := strings.Repeat("x", 25)

	chunks := p.hardSplit(text)
	require.True(t, len(chunks) > 1)
	for i := 1; i < len(chunks); i++ {
		// 相邻窗口之间保留 3 个字符的重叠。
		prev := []rune(chunks[i-1])
		assert.True(t, strings.HasPrefix(chunks[i], string(prev[len(prev)-3:])))
	}
}
