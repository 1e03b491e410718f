// Package schemaforge turns unstructured text into typed, schema-validated data.
//
// Usage:
//
//	import "github.com/BaSui01/schemaforge"
//
//	c, err := schemaforge.New(schemaforge.WithAPIKey(key))
//	product, err := schemaforge.Structure[Product](ctx, c, text)
//	result, err := c.GenerateModel(ctx, schemaforge.GenerateModelRequest{SampleData: sample, ModelName: "Person"})
//
// This is a thin wrapper around [client]; both produce identical results.
// Use this package when you prefer the shorter import path.
package schemaforge

import (
	"context"
	"encoding/json"

	"github.com/BaSui01/schemaforge/api"
	"github.com/BaSui01/schemaforge/client"
	"github.com/BaSui01/schemaforge/structured"
)

// Client is the structuring client. See [client.Client].
type Client = client.Client

// Option configures the client created by [New].
type Option = client.Option

// StructureOption configures a single structuring call.
type StructureOption = client.StructureOption

// GenerationResult is the outcome of [Client.GenerateModel].
type GenerationResult = client.GenerationResult

// GenerateModelRequest asks the service to derive models from sample data.
type GenerateModelRequest = api.GenerateModelRequest

// JSONSchema is the schema type accepted by [Client.StructureRaw].
type JSONSchema = structured.JSONSchema

// APIError is returned for error responses from the service.
type APIError = client.APIError

// Future is the handle returned by the async calls.
type Future[T any] = client.Future[T]

// ErrGenerationFailed is returned when the service could not generate a model.
var ErrGenerationFailed = client.ErrGenerationFailed

// New creates a structuring client.
func New(opts ...Option) (*Client, error) {
	return client.New(opts...)
}

// NewFromEnv creates a client from SCHEMAFORGE_CLIENT_* environment variables.
func NewFromEnv(opts ...Option) (*Client, error) {
	return client.NewFromEnv(opts...)
}

// Structure extracts a T from content. See [client.Structure].
func Structure[T any](ctx context.Context, c *Client, content string, opts ...StructureOption) (*T, error) {
	return client.Structure[T](ctx, c, content, opts...)
}

// StructureAsync is the non-blocking form of [Structure].
func StructureAsync[T any](ctx context.Context, c *Client, content string, opts ...StructureOption) *Future[T] {
	return client.StructureAsync[T](ctx, c, content, opts...)
}

// StructureAll structures every content concurrently, keeping input order.
func StructureAll[T any](ctx context.Context, c *Client, contents []string, opts ...StructureOption) ([]*T, error) {
	return client.StructureAll[T](ctx, c, contents, opts...)
}

// StructureRaw structures content against a dynamic schema.
func StructureRaw(ctx context.Context, c *Client, content string, schema *JSONSchema, opts ...StructureOption) (json.RawMessage, error) {
	return c.StructureRaw(ctx, content, schema, opts...)
}

// SchemaFor reflects the JSON Schema sent for T.
func SchemaFor[T any]() (*JSONSchema, error) {
	return structured.SchemaFor[T]()
}

// Re-export client options so callers never need to import client/.

// WithAPIKey sets the API key sent as bearer token and X-API-Key.
var WithAPIKey = client.WithAPIKey

// WithAPIBase sets the service base URL.
var WithAPIBase = client.WithAPIBase

// WithDefaultModel sets the provider:model used when a call names none.
var WithDefaultModel = client.WithDefaultModel

// WithTimeout sets the per-attempt HTTP timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the retry budget for transient failures.
var WithMaxRetries = client.WithMaxRetries

// WithRetryDelay sets the initial backoff.
var WithRetryDelay = client.WithRetryDelay

// WithRetryJitter toggles backoff jitter.
var WithRetryJitter = client.WithRetryJitter

// WithVerbose enables development logging.
var WithVerbose = client.WithVerbose

// WithLogger sets the zap logger.
var WithLogger = client.WithLogger

// WithHTTPClient replaces the HTTP client.
var WithHTTPClient = client.WithHTTPClient

// WithCAFile trusts an extra PEM CA bundle.
var WithCAFile = client.WithCAFile

// WithRateLimit enables client-side rate limiting.
var WithRateLimit = client.WithRateLimit

// WithMaxConcurrency bounds StructureAll fan-out.
var WithMaxConcurrency = client.WithMaxConcurrency

// WithMetrics registers client metrics on a Prometheus registerer.
var WithMetrics = client.WithMetrics

// WithConfig replaces the whole client configuration.
var WithConfig = client.WithConfig

// Per-call options.
var (
	WithSystemPrompt      = client.WithSystemPrompt
	WithModel             = client.WithModel
	WithSchemaDescription = client.WithSchemaDescription
	WithSchemaName        = client.WithSchemaName
)
