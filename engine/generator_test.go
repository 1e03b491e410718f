package engine

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BaSui01/schemaforge/store"
	"github.com/BaSui01/schemaforge/structured"
	"github.com/BaSui01/schemaforge/testutil"
	"github.com/BaSui01/schemaforge/testutil/fixtures"
	"github.com/BaSui01/schemaforge/testutil/mocks"
	"github.com/BaSui01/schemaforge/types"
)

func personInput() GenerateInput {
	return GenerateInput{
		SampleData:  fixtures.PersonSample,
		ModelName:   "Person",
		Description: "People in the address book",
	}
}

func TestModelGenerator_Success(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse(fixtures.FencedJSON(fixtures.PersonModelsReply))
	memStore := store.NewMemoryStore()
	g := NewModelGenerator(newRegistry(provider), testOptions(), WithStore(memStore))

	out, err := g.Generate(testutil.TestContext(t), personInput())
	require.NoError(t, err)

	require.Contains(t, out.Models, "Person")
	require.Contains(t, out.Models, "Address")
	main := out.MainModel()
	assert.Equal(t, "Person", main.Title)
	assert.Equal(t, "A person", main.Description)
	assert.Equal(t, "Address", out.Models["Address"].Title)
	assert.Equal(t, []string{"Address"}, main.Refs())
	assert.Equal(t, "mock:test-model", out.Model)
	assert.Equal(t, 1, out.Attempts)

	assert.Contains(t, out.Code, "package models")
	assert.Contains(t, out.Code, "type Person struct")
	assert.Contains(t, out.Code, "type Address struct")

	// 生成的 schema 能校验样例数据
	bundled, err := structured.Bundle("Person", out.Models)
	require.NoError(t, err)
	assert.NoError(t, structured.NewValidator().Validate([]byte(fixtures.PersonSample), bundled))

	prompt := provider.LastRequest().Messages
	assert.Contains(t, prompt[0].Content, `"Person"`)
	assert.Contains(t, prompt[1].Content, "Description: People in the address book")
	assert.Contains(t, prompt[1].Content, fixtures.PersonSample)

	stored, err := memStore.Get(context.Background(), "Person")
	require.NoError(t, err)
	assert.Equal(t, out.Code, stored.Code)
	assert.Equal(t, "People in the address book", stored.Description)
	models, err := stored.Models()
	require.NoError(t, err)
	assert.Len(t, models, 2)
}

func TestModelGenerator_DescriptionFallback(t *testing.T) {
	reply := `{"models":{"Note":{"properties":{"text":{"type":"string"}}}}}`
	provider := mocks.NewMockProvider().WithResponse(reply)
	g := NewModelGenerator(newRegistry(provider), testOptions())

	out, err := g.Generate(testutil.TestContext(t), GenerateInput{SampleData: "a note", ModelName: "Note", Description: "Short notes"})
	require.NoError(t, err)
	assert.Equal(t, structured.TypeObject, out.MainModel().Type)
	assert.Equal(t, "Short notes", out.MainModel().Description)
}

func TestModelGenerator_RepairMissingMain(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponses(fixtures.PersonModelsReplyMissingMain, fixtures.PersonModelsReply)
	g := NewModelGenerator(newRegistry(provider), testOptions())

	out, err := g.Generate(testutil.TestContext(t), personInput())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Attempts)

	msgs := provider.LastRequest().Messages
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[3].Content, `main model "Person" is missing`)
}

func TestModelGenerator_Failure(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  string
	}{
		{"missing main", fixtures.PersonModelsReplyMissingMain, "missing"},
		{"dangling ref", fixtures.PersonModelsReplyDanglingRef, `undefined model "Address"`},
		{"no json", "sorry", "no JSON"},
		{"not an object", `{"models":{"Person":{"type":"string"}}}`, "not an object schema"},
		{"bad name", `{"models":{"Person":{"type":"object","properties":{}},"bad name":{"type":"object"}}}`, "not a valid identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := mocks.NewMockProvider().WithResponse(tt.reply)
			memStore := store.NewMemoryStore()
			g := NewModelGenerator(newRegistry(provider), testOptions(), WithStore(memStore))

			out, err := g.Generate(testutil.TestContext(t), personInput())
			assert.Nil(t, out)
			require.Error(t, err)
			assert.True(t, types.IsErrorCode(err, types.ErrGenerationFailed))
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, 3, provider.CallCount())

			list, _ := memStore.List(context.Background())
			assert.Empty(t, list)
		})
	}
}

func TestModelGenerator_InputValidation(t *testing.T) {
	provider := mocks.NewMockProvider()
	g := NewModelGenerator(newRegistry(provider), testOptions())
	ctx := testutil.TestContext(t)

	for _, name := range []string{"", "1Person", "Per son", "Person-Record"} {
		_, err := g.Generate(ctx, GenerateInput{SampleData: "x", ModelName: name})
		assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest), "name %q", name)
	}
	_, err := g.Generate(ctx, GenerateInput{SampleData: " ", ModelName: "Person"})
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidRequest))
	assert.Equal(t, 0, provider.CallCount())
}

func TestModelGenerator_HoistsNestedDefs(t *testing.T) {
	reply := `{"models":{"Order":{"type":"object","properties":{
		"customer":{"$ref":"#/$defs/Customer"}},
		"$defs":{"Customer":{"type":"object","properties":{"id":{"type":"string"}}}}}}}`
	provider := mocks.NewMockProvider().WithResponse(reply)
	g := NewModelGenerator(newRegistry(provider), testOptions())

	out, err := g.Generate(testutil.TestContext(t), GenerateInput{SampleData: `{"customer":{"id":"c1"}}`, ModelName: "Order"})
	require.NoError(t, err)
	require.Contains(t, out.Models, "Customer")
	assert.Nil(t, out.MainModel().Defs)
	assert.Equal(t, "Customer", out.Models["Customer"].Title)
}

func TestModelGenerator_SingleSchemaReply(t *testing.T) {
	reply := `{"type":"object","properties":{"title":{"type":"string"}},"required":["title"]}`
	provider := mocks.NewMockProvider().WithResponse(reply)
	g := NewModelGenerator(newRegistry(provider), testOptions())

	out, err := g.Generate(testutil.TestContext(t), GenerateInput{SampleData: "Title: Dune", ModelName: "Book"})
	require.NoError(t, err)
	assert.Equal(t, "Book", out.MainModel().Title)
	assert.True(t, strings.Contains(out.Code, "type Book struct"))
}

func TestModelGenerator_SingleflightCollapsesDuplicates(t *testing.T) {
	provider := mocks.NewMockProvider().
		WithDelay(100 * time.Millisecond).
		WithResponse(fixtures.PersonModelsReply)
	g := NewModelGenerator(newRegistry(provider), testOptions())
	ctx := testutil.TestContext(t)

	const n = 5
	var wg sync.WaitGroup
	results := make([]*GenerateOutput, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = g.Generate(ctx, personInput())
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Contains(t, results[i].Models, "Person")
	}
	assert.Equal(t, 1, provider.CallCount())
}

func TestModelGenerator_CallerCancellation(t *testing.T) {
	provider := mocks.NewMockProvider().WithDelay(time.Second).WithResponse(fixtures.PersonModelsReply)
	g := NewModelGenerator(newRegistry(provider), testOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, personInput())
	assert.True(t, types.IsErrorCode(err, types.ErrTimeout))
}

func TestModelGenerator_PersistsToGormStore(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(t.TempDir()+"/models.db"), &gorm.Config{})
	require.NoError(t, err)
	gormStore := store.NewGormStore(db, nil)
	require.NoError(t, gormStore.Migrate(context.Background()))

	provider := mocks.NewMockProvider().WithResponse(fixtures.PersonModelsReply)
	g := NewModelGenerator(newRegistry(provider), testOptions(), WithStore(gormStore))

	_, err = g.Generate(testutil.TestContext(t), personInput())
	require.NoError(t, err)

	stored, err := gormStore.Get(context.Background(), "Person")
	require.NoError(t, err)
	assert.Equal(t, "mock:test-model", stored.LLMModel)
}

func TestValidModelName(t *testing.T) {
	assert.True(t, ValidModelName("Person"))
	assert.True(t, ValidModelName("order_line2"))
	assert.False(t, ValidModelName("_Person"))
	assert.False(t, ValidModelName(""))
}

func TestOptionsAttempts(t *testing.T) {
	assert.Equal(t, 1, Options{MaxRepairAttempts: -3}.attempts())
	assert.Equal(t, 3, Options{MaxRepairAttempts: 2}.attempts())
}
