// Package api defines the SchemaForge wire contract shared by the service
// and the Go client: request and response types, the response envelope and
// the OpenAPI 3.0 document.
//
// # Endpoints
//
//	POST /api/v1/structure        structure text against a JSON Schema
//	POST /api/v1/generate-model   infer models from sample data
//	GET  /api/v1/models           list stored models
//	GET  /api/v1/models/{name}    get one stored model
//	GET  /health /healthz /ready /version /openapi.json
//
// # Authentication
//
// When the service has credentials configured, requests carry either
//
//	Authorization: Bearer <api key or JWT>
//	X-API-Key: <api key>
//
// # OpenAPI Specification
//
// openapi.yaml is embedded into the binary; LoadSpec parses and validates it
// with kin-openapi.
package api
