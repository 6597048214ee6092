package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    []float32
		b    []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0.0},
		{"empty", nil, nil, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 2}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "hello", TruncateString("hello", 10))
	assert.Equal(t, "hel", TruncateString("hello", 3))
	assert.Equal(t, "你好", TruncateString("你好世界", 2))
}

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty",
			text: "   ",
			want: nil,
		},
		{
			name: "single sentence",
			text: "Restart the router.",
			want: []string{"Restart the router."},
		},
		{
			name: "multiple english sentences",
			text: "Restart the router. Wait two minutes! Did it help?",
			want: []string{"Restart the router.", "Wait two minutes!", "Did it help?"},
		},
		{
			name: "decimal not split",
			text: "The fee is 3.50 dollars per month. Tax is extra.",
			want: []string{"The fee is 3.50 dollars per month.", "Tax is extra."},
		},
		{
			name: "chinese sentences without whitespace",
			text: "请先重启路由器。等待两分钟！问题解决了吗？",
			want: []string{"请先重启路由器。", "等待两分钟！", "问题解决了吗？"},
		},
		{
			name: "trailing text without terminator",
			text: "First sentence. trailing fragment",
			want: []string{"First sentence.", "trailing fragment"},
		},
		{
			name: "closing quote stays attached",
			text: `He said "stop." Then he left.`,
			want: []string{`He said "stop."`, "Then he left."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitIntoSentences(tt.text))
		})
	}
}

func TestTrailingWords(t *testing.T) {
	assert.Equal(t, "", TrailingWords("a b c", 0))
	assert.Equal(t, "c", TrailingWords("a b c", 1))
	assert.Equal(t, "b c", TrailingWords("a b c", 2))
	assert.Equal(t, "a b c", TrailingWords("a b c", 10))
	assert.Equal(t, "", TrailingWords("", 3))
}

func TestParseJSONObject(t *testing.T) {
	type payload struct {
		Category   string  `json:"category"`
		Confidence float64 `json:"confidence"`
	}

	t.Run("plain object", func(t *testing.T) {
		var p payload
		require.NoError(t, ParseJSONObject(`{"category":"billing","confidence":0.9}`, &p))
		assert.Equal(t, "billing", p.Category)
		assert.InDelta(t, 0.9, p.Confidence, 1e-9)
	})

	t.Run("fenced with prose", func(t *testing.T) {
		var p payload
		text := "Sure, here is the result:\n```json\n{\"category\": \"technical\", \"confidence\": 0.8}\n```\nHope that helps."
		require.NoError(t, ParseJSONObject(text, &p))
		assert.Equal(t, "technical", p.Category)
	})

	t.Run("no object", func(t *testing.T) {
		var p payload
		assert.Error(t, ParseJSONObject("no json here", &p))
	})
}

func TestContainsString(t *testing.T) {
	assert.True(t, ContainsString([]string{"a", "b"}, "b"))
	assert.False(t, ContainsString([]string{"a", "b"}, "c"))
	assert.False(t, ContainsString(nil, "a"))
}
