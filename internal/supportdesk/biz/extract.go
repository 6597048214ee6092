package biz

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor 从上传文件中提取纯文本。
type Extractor interface {
	// Extract 读取文件并返回纯文本内容。
	Extract(path string) (string, error)
	// Extensions 返回支持的文件扩展名（含点，小写）。
	Extensions() []string
}

// PlainTextExtractor 处理纯文本类文件。
type PlainTextExtractor struct{}

// Extract 读取文件内容并校验 UTF-8 编码。
func (e *PlainTextExtractor) Extract(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("file %s is not valid UTF-8 text", filepath.Base(path))
	}
	return string(data), nil
}

// Extensions 返回支持的扩展名。
func (e *PlainTextExtractor) Extensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

// ExtractorRegistry 按扩展名分发提取器。
type ExtractorRegistry struct {
	extractors map[string]Extractor
}

// NewExtractorRegistry 创建提取器注册表，内置纯文本提取器。
func NewExtractorRegistry() *ExtractorRegistry {
	r := &ExtractorRegistry{extractors: make(map[string]Extractor)}
	r.Register(&PlainTextExtractor{})
	return r
}

// Register 注册提取器，后注册者覆盖同扩展名的先注册者。
func (r *ExtractorRegistry) Register(e Extractor) {
	for _, ext := range e.Extensions() {
		r.extractors[strings.ToLower(ext)] = e
	}
}

// Supported 检查扩展名是否受支持。
func (r *ExtractorRegistry) Supported(filename string) bool {
	_, ok := r.extractors[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// SupportedExtensions 返回所有受支持的扩展名。
func (r *ExtractorRegistry) SupportedExtensions() []string {
	exts := make([]string, 0, len(r.extractors))
	for ext := range r.extractors {
		exts = append(exts, ext)
	}
	return exts
}

// Extract 按文件扩展名选择提取器并提取文本。
func (r *ExtractorRegistry) Extract(path, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	e, ok := r.extractors[ext]
	if !ok {
		return "", fmt.Errorf("unsupported file type: %s", ext)
	}
	return e.Extract(path)
}
