package structured

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
		ok    bool
	}{
		{"plain object", `{"a":1}`, `{"a":1}`, true},
		{"whitespace", "  \n{\"a\":1}\n ", `{"a":1}`, true},
		{"json fence", "Here you go:\n```json\n{\"a\":1}\n```\nThanks", `{"a":1}`, true},
		{"bare fence", "```\n[1,2]\n```", `[1,2]`, true},
		{"prose around", `Sure! The result is {"a":{"b":"}"}} as requested.`, `{"a":{"b":"}"}}`, true},
		{"escaped quote", `x {"s":"he said \"hi\" {"} y`, `{"s":"he said \"hi\" {"}`, true},
		{"skips invalid braces", `set {x} then {"ok":true}`, `{"ok":true}`, true},
		{"second fence valid", "```\nnot json\n```\n```json\n{\"b\":2}\n```", `{"b":2}`, true},
		{"empty", "   ", "", false},
		{"no json", "I cannot help with that.", "", false},
		{"unbalanced", `{"a":1`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSON(tt.reply)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseReply(t *testing.T) {
	schema := NewObjectSchema().AddProperty("n", NewIntegerSchema()).AddRequired("n")

	doc, err := ParseReply("```json\n{\"n\":3}\n```", schema, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":3}`, string(doc))

	doc, err = ParseReply(`{"n":"three"}`, schema, NewValidator())
	var ve *ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.JSONEq(t, `{"n":"three"}`, string(doc), "invalid document is still returned for repair prompts")

	_, err = ParseReply("nothing here", schema, nil)
	assert.ErrorIs(t, err, ErrNoJSON)
}

type decodeTarget struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

func TestDecode(t *testing.T) {
	schema, err := SchemaFor[decodeTarget]()
	require.NoError(t, err)

	v, err := Decode[decodeTarget]([]byte(`{"title":"x","tags":["a"]}`), schema, nil)
	require.NoError(t, err)
	assert.Equal(t, &decodeTarget{Title: "x", Tags: []string{"a"}}, v)

	_, err = Decode[decodeTarget]([]byte(`{"tags":["a"]}`), schema, nil)
	assert.Error(t, err)

	// schema-less decode still reports type errors from encoding/json
	_, err = Decode[decodeTarget]([]byte(`{"title":5}`), nil, nil)
	var ve *ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Error(), "JSON parse error")
}
