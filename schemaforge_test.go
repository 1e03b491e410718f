package schemaforge

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invoice struct {
	Number string  `json:"number"`
	Total  float64 `json:"total"`
}

func TestStructureThroughRootPackage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.Response{
			Success: true,
			Data:    api.StructureResponse{Data: json.RawMessage(`{"number":"INV-7","total":12.5}`)},
		})
	}))
	defer srv.Close()

	c, err := New(WithAPIBase(srv.URL), WithMaxRetries(0))
	require.NoError(t, err)

	inv, err := Structure[invoice](testutil.TestContext(t), c, "Invoice INV-7, total 12.50", WithModel("mock:m"))
	require.NoError(t, err)
	assert.Equal(t, "INV-7", inv.Number)
	assert.Equal(t, 12.5, inv.Total)
}

func TestSchemaFor(t *testing.T) {
	s, err := SchemaFor[invoice]()
	require.NoError(t, err)
	assert.Equal(t, "invoice", s.Title)
	assert.True(t, s.IsRequired("number"))
	assert.True(t, s.IsRequired("total"))
}
