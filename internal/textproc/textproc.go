// Package textproc 实现了文本清洗与切分。
// 清洗在切分前原地执行；切分按分隔符级联递归进行，
// 相邻 chunk 之间保留重叠，避免语义上下文在边界处丢失。
package textproc

import (
	"regexp"
	"strings"

	"github.com/szhou12/rag-clean-energy/internal/config"
	"github.com/szhou12/rag-clean-energy/internal/model"
)

var (
	// 非换行的空白字符连续段。
	spaceRun = regexp.MustCompile(`[^\S\n]+`)
	// 换行周围的空格。
	spacedNewline = regexp.MustCompile(` *\n *`)
	// 连续两个以上换行。
	newlineRun = regexp.MustCompile(`\n{2,}`)
)

// Processor 封装清洗与切分逻辑。
type Processor struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// 分隔符级联：段落、换行、空格、中西文句读符号，最后退化为逐字符切分。
var defaultSeparators = []string{"\n\n", "\n", " ", "。", "．", ".", "！", "？", "，", ",", ""}

// New 创建一个 Processor。chunkSize/chunkOverlap 为零时使用默认值。
func New(cfg config.SplitterConfig) *Processor {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 1000
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = 200
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Processor{
		chunkSize:    size,
		chunkOverlap: overlap,
		separators:   defaultSeparators,
	}
}

// Clean 原地清洗文档内容：去 BOM，统一换行，
// 把非换行空白连续段压成单个空格，把连续空行压成一个空行，去首尾空白。
func (p *Processor) Clean(docs []*model.Document) {
	for _, doc := range docs {
		doc.Content = CleanText(doc.Content)
	}
}

// CleanText 清洗单段文本。
func CleanText(text string) string {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = spaceRun.ReplaceAllString(text, " ")
	text = spacedNewline.ReplaceAllString(text, "\n")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Split 将文档切分为 chunk。每个 chunk 继承父文档的
// source/page/language 元数据，该传递是强制的。
func (p *Processor) Split(docs []*model.Document) []model.Chunk {
	var chunks []model.Chunk
	for _, doc := range docs {
		for _, piece := range p.splitText(doc.Content, p.separators) {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			chunks = append(chunks, model.Chunk{
				Source:   doc.Source,
				Page:     doc.Page,
				Language: doc.Language,
				Content:  piece,
			})
		}
	}
	return chunks
}

// splitText 按分隔符级联递归切分文本。
// 使用 SplitAfter 保留分隔符，保证任何字符都不会在切分中丢失。
func (p *Processor) splitText(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	if runeLen(text) <= p.chunkSize {
		return []string{text}
	}
	if len(separators) == 0 || separators[0] == "" {
		return p.hardSplit(text)
	}

	sep := separators[0]
	parts := strings.SplitAfter(text, sep)
	if len(parts) == 1 {
		// 当前分隔符未命中，换下一个。
		return p.splitText(text, separators[1:])
	}
	return p.merge(parts, separators[1:])
}

// merge 将切出的片段合并成不超过 chunkSize 的 chunk，
// 超长片段交给下一级分隔符递归处理，chunk 之间保留重叠。
func (p *Processor) merge(parts []string, nextSeparators []string) []string {
	var (
		out    []string
		cur    strings.Builder
		curLen int
	)
	for _, part := range parts {
		pl := runeLen(part)
		if pl > p.chunkSize {
			if curLen > 0 {
				out = append(out, cur.String())
				cur.Reset()
				curLen = 0
			}
			out = append(out, p.splitText(part, nextSeparators)...)
			continue
		}
		if curLen+pl > p.chunkSize && curLen > 0 {
			chunk := cur.String()
			out = append(out, chunk)
			overlap := tailRunes(chunk, p.chunkOverlap)
			cur.Reset()
			cur.WriteString(overlap)
			curLen = runeLen(overlap)
		}
		cur.WriteString(part)
		curLen += pl
	}
	if curLen > 0 {
		out = append(out, cur.String())
	}
	return out
}

// hardSplit 按固定窗口逐字符切分，窗口之间保留重叠。
func (p *Processor) hardSplit(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := p.chunkSize - p.chunkOverlap
	if step <= 0 {
		step = p.chunkSize
	}
	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + p.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

func runeLen(s string) int {
	return len([]rune(s))
}

// tailRunes 返回 s 末尾最多 n 个 rune。
func tailRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
