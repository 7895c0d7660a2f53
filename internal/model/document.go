// Package model 定义了领域对象和与数据库表对应的 Go 结构体。
package model

import (
	"crypto/sha256"
	"encoding/hex"
)

// Document 表示一个待摄入的内容单元：一个网页，或一个文件的一页（PDF 页码）/
// 一个工作表（Excel 表名）。
type Document struct {
	Source   string   // 唯一来源标识：URL 或文件路径
	Page     string   // 次级标识：网页为空；文件为页码或工作表名
	Language Language // 决定向量数据落入哪个语言索引
	Content  string   // 原始文本内容，经清洗和切分后入库
}

// Chunk 表示 Document 切分后的一个可嵌入片段。
// ID 在写入向量库时生成；Vector 仅在快照/恢复路径上携带。
type Chunk struct {
	ID       string
	Source   string
	Page     string
	Language Language
	Content  string
	Vector   []float32
}

// ChunkRef 是向量库写入成功后返回的引用，
// 携带元数据表建立关联所需的全部字段。
type ChunkRef struct {
	ID     string
	Source string
	Page   string
}

// SourceChecksum 计算来源字符串的 SHA-256 校验和（十六进制），
// 作为独立于自增主键的稳定存在性键。
func SourceChecksum(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
