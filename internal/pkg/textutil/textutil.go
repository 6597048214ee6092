// Package textutil 提供检索与对话相关的文本处理工具函数。
package textutil

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/supportdesk/pkg/utils/json"
)

// CosineSimilarity 计算两个向量的余弦相似度。
// 返回值范围为 [-1, 1]，1 表示完全相同，-1 表示完全相反。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TruncateString 截断字符串到指定的最大 Unicode 字符数。
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// sentenceEndRegex matches a sentence-terminal punctuation run. Latin
// terminators need trailing whitespace or end of text so decimals and
// abbreviations survive; CJK terminators split directly since CJK prose
// carries no inter-sentence whitespace. Closing quotes and brackets stay
// attached to the sentence.
var sentenceEndRegex = regexp.MustCompile(`[.!?]+["')\]]*(\s+|$)|[。！？]+[”’"'）」』\]]*\s*`)

// SplitIntoSentences 将文本按句子终结符分割。
// 终结符保留在句子末尾；没有终结符的尾部作为最后一句返回。
func SplitIntoSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var sentences []string
	rest := text
	for {
		loc := sentenceEndRegex.FindStringIndex(rest)
		if loc == nil {
			break
		}
		sentence := strings.TrimSpace(rest[:loc[1]])
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		rest = rest[loc[1]:]
	}
	if tail := strings.TrimSpace(rest); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// TrailingWords 返回字符串末尾最多 n 个以空白分隔的词。
func TrailingWords(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	if len(words) <= n {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-n:], " ")
}

// ParseJSONObject 从文本中提取并解析第一个 JSON 对象到 v。
// 模型输出常在对象前后夹带解释性文字或代码栅栏。
func ParseJSONObject(s string, v any) error {
	re := regexp.MustCompile(`\{[\s\S]*\}`)
	match := re.FindString(s)
	if match == "" {
		return fmt.Errorf("未找到 JSON 对象")
	}
	return json.Unmarshal([]byte(match), v)
}

// ContainsString 检查字符串切片是否包含指定元素。
func ContainsString(slice []string, item string) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}
