// Package prompt 生成记录的固定提示词与参考条目回答文本。
// 所有函数为纯计算，相同输入得到逐字节相同的输出。
package prompt

import "strings"

// DefaultSubject 默认知识库主题。
const DefaultSubject = "AutoHotkey"

// Snippet 构造源码片段记录的 prompt。
func Snippet(subject, category, exampleID, sourcePath string) string {
	subject = subjectOr(subject)
	lines := []string{
		"You are maintaining a knowledge base of " + subject + " examples.",
		"Category: " + category,
		"Example ID: " + exampleID,
		"Source Path: " + sourcePath,
		"Return the exact " + subject + " snippet associated with this reference.",
	}
	return strings.Join(lines, "\n")
}

// ReferenceEntry: 参考表中一行的已清洗字段（首尾空白已去除）。
type ReferenceEntry struct {
	Name          string
	Description   string
	ElementType   string
	SourceFile    string
	CategoryPath  string
	SignatureType string
	ReturnType    string
	Symbol        string
	Parameters    string
}

// Reference 构造参考条目的 prompt；SourceFile/CategoryPath 为空时省略对应行。
func Reference(subject string, e ReferenceEntry) string {
	lines := []string{
		"You are maintaining a knowledge base of " + subjectOr(subject) + " reference entries.",
		"Element Type: " + e.ElementType,
		"Element Name: " + e.Name,
	}
	if e.SourceFile != "" {
		lines = append(lines, "Source File: "+e.SourceFile)
	}
	if e.CategoryPath != "" {
		lines = append(lines, "Category Path: "+e.CategoryPath)
	}
	lines = append(lines, "Provide the official description and any pertinent usage details.")
	return strings.Join(lines, "\n")
}

// ReferenceResponse 构造参考条目的回答：描述 + 可选细节行，去除首尾空白后以单个换行结尾。
func ReferenceResponse(e ReferenceEntry) string {
	parts := []string{e.Description}
	if e.SignatureType != "" {
		parts = append(parts, "Signature Type: "+e.SignatureType)
	}
	if e.ReturnType != "" {
		parts = append(parts, "Return Type: "+e.ReturnType)
	}
	if e.Symbol != "" {
		parts = append(parts, "Symbol: "+e.Symbol)
	}
	if e.Parameters != "" {
		parts = append(parts, "Parameters: "+e.Parameters)
	}
	return strings.TrimSpace(strings.Join(parts, "\n")) + "\n"
}

func subjectOr(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return DefaultSubject
	}
	return s
}
