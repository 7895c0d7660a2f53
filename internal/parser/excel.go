package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/szhou12/rag-clean-energy/internal/model"
)

// parseExcel 逐工作表读取 Excel，把行数据渲染为 Markdown 表格文本，
// 每个非空工作表产出一个 Document，page 为工作表名。
func parseExcel(path string, language model.Language) ([]*model.Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("打开 Excel 失败: %w", err)
	}
	defer f.Close()

	var docs []*model.Document
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		var content strings.Builder
		for i, row := range rows {
			content.WriteString("| " + strings.Join(row, " | ") + " |\n")
			// 首行视为表头，补一条分隔线。
			if i == 0 {
				content.WriteString("|" + strings.Repeat(" --- |", len(row)) + "\n")
			}
		}

		docs = append(docs, &model.Document{
			Source:   path,
			Page:     sheet,
			Language: language,
			Content:  content.String(),
		})
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("Excel 中未读取到任何数据: %s", path)
	}
	return docs, nil
}
