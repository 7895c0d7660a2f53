package parser

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/szhou12/rag-clean-energy/internal/model"
)

func TestKindForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    Kind
		wantErr bool
	}{
		{"report.pdf", KindPDF, false},
		{"REPORT.PDF", KindPDF, false},
		{"data.xlsx", KindSpreadsheet, false},
		{"legacy.xls", KindSpreadsheet, false},
		{"notes.txt", 0, true},
		{"noext", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			kind, err := KindForPath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse("/nonexistent/report.pdf", model.LanguageEN)
	assert.Error(t, err)
}

func TestParseExcel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.xlsx")

	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", "Capacity"))
	require.NoError(t, f.SetSheetRow("Capacity", "A1", &[]interface{}{"country", "gw"}))
	require.NoError(t, f.SetSheetRow("Capacity", "A2", &[]interface{}{"China", 1200}))
	_, err := f.NewSheet("Empty")
	require.NoError(t, err)
	require.NoError(t, f.SaveAs(path))

	docs, err := Parse(path, model.LanguageZH)
	require.NoError(t, err)
	require.NotEmpty(t, docs)

	bySheet := make(map[string]*model.Document, len(docs))
	for _, d := range docs {
		assert.Equal(t, path, d.Source)
		assert.Equal(t, model.LanguageZH, d.Language)
		bySheet[d.Page] = d
	}
	require.Contains(t, bySheet, "Capacity")
	// 工作表内容渲染为 Markdown 表格。
	assert.Contains(t, bySheet["Capacity"].Content, "| country | gw |")
	assert.Contains(t, bySheet["Capacity"].Content, "| China | 1200 |")
}
