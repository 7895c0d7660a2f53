package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/szhou12/rag-clean-energy/internal/model"
)

// parsePDF 逐页提取 PDF 文本，每页产出一个 Document。
// 提取失败或为空的页被跳过。
func parsePDF(path string, language model.Language) ([]*model.Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 PDF 失败: %w", err)
	}
	defer f.Close()

	var docs []*model.Document
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		docs = append(docs, &model.Document{
			Source:   path,
			Page:     strconv.Itoa(i),
			Language: language,
			Content:  text,
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("PDF 中未提取到任何文本: %s", path)
	}
	return docs, nil
}
