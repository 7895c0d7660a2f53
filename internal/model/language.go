package model

import "fmt"

// Language 表示内容语言。向量数据按语言分索引存储，
// 因此这里用封闭的枚举而不是任意字符串。
type Language string

const (
	LanguageEN Language = "en"
	LanguageZH Language = "zh"
)

// Languages 列出所有受支持的语言。
var Languages = []Language{LanguageEN, LanguageZH}

// ParseLanguage 校验并返回语言枚举值。
func ParseLanguage(s string) (Language, error) {
	switch Language(s) {
	case LanguageEN:
		return LanguageEN, nil
	case LanguageZH:
		return LanguageZH, nil
	}
	return "", fmt.Errorf("不支持的语言: %q (仅支持 en/zh)", s)
}

// Valid 报告语言是否受支持。
func (l Language) Valid() bool {
	return l == LanguageEN || l == LanguageZH
}
