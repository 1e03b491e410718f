package api

import (
	"encoding/json"
	"testing"

	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructureRequest_Validate(t *testing.T) {
	obj := structured.NewObjectSchema()

	tests := []struct {
		name string
		req  StructureRequest
		code types.ErrorCode
	}{
		{"valid", StructureRequest{Content: "hello", Schema: obj}, ""},
		{"blank content", StructureRequest{Content: "  ", Schema: obj}, types.ErrInvalidRequest},
		{"missing schema", StructureRequest{Content: "hello"}, types.ErrInvalidRequest},
		{"non-object schema", StructureRequest{Content: "hello", Schema: structured.NewStringSchema()}, types.ErrSchemaInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, types.IsErrorCode(err, tt.code), "got %v", err)
		})
	}
}

func TestGenerateModelRequest_Validate(t *testing.T) {
	assert.NoError(t, (&GenerateModelRequest{SampleData: "{}", ModelName: "Person"}).Validate())
	assert.Error(t, (&GenerateModelRequest{ModelName: "Person"}).Validate())
	assert.Error(t, (&GenerateModelRequest{SampleData: "{}"}).Validate())
}

func TestRawResponse_DecodesEnvelope(t *testing.T) {
	body := `{"success":false,"error":{"code":"RATE_LIMITED","message":"slow down","retryable":true},"timestamp":"2026-01-02T03:04:05Z","request_id":"r-1"}`

	var resp RawResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.NotNil(t, resp.Error)

	err := resp.Error.ToError(429)
	assert.Equal(t, types.ErrRateLimited, err.Code)
	assert.True(t, err.Retryable)
	assert.Equal(t, 429, err.HTTPStatus)
	assert.Equal(t, "r-1", resp.RequestID)
}
