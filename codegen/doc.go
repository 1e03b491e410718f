// Package codegen renders Go source for models inferred by model generation.
//
// Each model becomes one exported struct. Property names map to exported
// field names, required properties carry a jsonschema:"required" tag and
// optional ones an omitempty json option, so the output round-trips through
// structured.SchemaFor to an equivalent schema.
package codegen
