// Package parser 实现了上传/下载文件的解析。
// 支持的文件种类是封闭枚举，按扩展名纯映射选择解析器。
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/szhou12/rag-clean-energy/internal/model"
)

// Kind 表示受支持的文件种类。
type Kind int

const (
	KindPDF Kind = iota
	KindSpreadsheet
)

// KindForPath 按扩展名返回文件种类。
func KindForPath(path string) (Kind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF, nil
	case ".xlsx", ".xls":
		return KindSpreadsheet, nil
	}
	return 0, fmt.Errorf("不支持的文件类型: %s", filepath.Ext(path))
}

// Parse 解析文件，PDF 按页、Excel 按工作表各产出一个 Document。
// 每个 Document 携带 source(文件路径)、page(页码/表名) 和 language。
func Parse(path string, language model.Language) ([]*model.Document, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("文件不存在: %s", path)
	}

	kind, err := KindForPath(path)
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindPDF:
		return parsePDF(path, language)
	case KindSpreadsheet:
		return parseExcel(path, language)
	}
	return nil, fmt.Errorf("未知的文件种类: %d", kind)
}
