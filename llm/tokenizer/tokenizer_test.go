package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer("m", 0)
	assert.Equal(t, 128000, e.MaxTokens())
	assert.Equal(t, "estimator", e.Name())

	n, err := e.CountTokens("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.CountTokens("a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = e.CountTokens(strings.Repeat("abcd", 100))
	require.NoError(t, err)
	assert.Equal(t, 100, n)

	n, err = e.CountTokens("你好世界你好世")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestEstimator_CountMessages(t *testing.T) {
	e := NewEstimatorTokenizer("m", 100)
	n, err := e.CountMessages([]Message{
		{Role: "system", Content: strings.Repeat("a", 40)},
		{Role: "user", Content: strings.Repeat("b", 80)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3+(10+4)+(20+4), n)
}

func TestForModel(t *testing.T) {
	assert.Equal(t, "estimator", ForModel("openai:gpt-4o", false).Name())
	assert.Equal(t, "estimator", ForModel("local:llama3", true).Name())
	assert.Equal(t, "tiktoken[o200k_base]", ForModel("openai:gpt-4o-mini", true).Name())
	assert.Equal(t, "tiktoken[cl100k_base]", ForModel("gpt-4", true).Name())
}

func TestLookupEncoding_LongestPrefixFirst(t *testing.T) {
	info, ok := lookupEncoding("gpt-4-turbo-preview")
	require.True(t, ok)
	assert.Equal(t, 128000, info.maxTokens)

	info, ok = lookupEncoding("gpt-4-0613")
	require.True(t, ok)
	assert.Equal(t, 8192, info.maxTokens)

	_, ok = lookupEncoding("claude-3")
	assert.False(t, ok)
}

func TestEstimator_Monotonic(t *testing.T) {
	e := NewEstimatorTokenizer("m", 0)
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.String().Draw(t, "a")
		b := rapid.String().Draw(t, "b")
		na, _ := e.CountTokens(a)
		nab, _ := e.CountTokens(a + b)
		if nab < na {
			t.Fatalf("count(%q)=%d > count(%q)=%d", a, na, a+b, nab)
		}
	})
}
