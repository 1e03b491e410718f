package structured

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultSystemPrompt is used when a structuring call does not override it.
const DefaultSystemPrompt = "You are a precise information extraction engine. " +
	"Read the user's content and produce a JSON object that captures its information " +
	"according to the target schema. Do not invent facts that are not supported by the content."

// PromptOptions controls how the structuring system prompt is rendered.
type PromptOptions struct {
	// SystemPrompt replaces DefaultSystemPrompt when non-empty.
	SystemPrompt string
	// SchemaName names the target model in the instructions.
	SchemaName string
	// IncludeDescriptions renders model and field descriptions as a guide.
	// When false, descriptions are stripped from the embedded schema too.
	IncludeDescriptions bool
}

// BuildSystemPrompt renders the system message that instructs a model to emit
// JSON conforming to schema.
func BuildSystemPrompt(schema *JSONSchema, opts PromptOptions) (string, error) {
	embedded := schema
	if !opts.IncludeDescriptions {
		embedded = StripDescriptions(schema)
	}
	schemaJSON, err := embedded.ToJSONIndent()
	if err != nil {
		return "", fmt.Errorf("failed to marshal schema: %w", err)
	}

	var sb strings.Builder
	if opts.SystemPrompt != "" {
		sb.WriteString(strings.TrimSpace(opts.SystemPrompt))
	} else {
		sb.WriteString(DefaultSystemPrompt)
	}
	sb.WriteString("\n\n")

	name := opts.SchemaName
	if name == "" {
		name = schema.Title
	}
	if name != "" {
		fmt.Fprintf(&sb, "Target model: %s\n\n", name)
	}

	if opts.IncludeDescriptions {
		if guide := DescribeSchema(schema); guide != "" {
			sb.WriteString("Field guide:\n")
			sb.WriteString(guide)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("IMPORTANT INSTRUCTIONS:\n")
	sb.WriteString("1. Respond with a single JSON object that conforms to the schema below.\n")
	sb.WriteString("2. Do NOT include any text before or after the JSON.\n")
	sb.WriteString("3. Include every required field; use null only where the schema allows it.\n")
	sb.WriteString("4. Follow all constraints in the schema (enum values, min/max, formats, patterns).\n\n")
	sb.WriteString("JSON Schema:\n```json\n")
	sb.Write(schemaJSON)
	sb.WriteString("\n```")
	return sb.String(), nil
}

// BuildRepairPrompt renders the follow-up user message sent after a reply
// failed validation.
func BuildRepairPrompt(err error) string {
	var sb strings.Builder
	sb.WriteString("Your previous reply did not satisfy the JSON Schema.\n")
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		sb.WriteString("Problems found:\n")
		for _, pe := range ve.Errors {
			fmt.Fprintf(&sb, "- %s\n", pe.Error())
		}
	} else if err != nil {
		fmt.Fprintf(&sb, "Problem: %v\n", err)
	}
	sb.WriteString("Reply again with ONLY the corrected JSON object.")
	return sb.String()
}

// DescribeSchema renders model and field descriptions as an indented bullet
// list. Referenced definitions are described once, after the root.
func DescribeSchema(schema *JSONSchema) string {
	if schema == nil {
		return ""
	}
	var sb strings.Builder
	if schema.Description != "" {
		name := schema.Title
		if name == "" {
			name = "root"
		}
		fmt.Fprintf(&sb, "%s: %s\n", name, schema.Description)
	}
	describeProperties(&sb, schema, "")

	for _, name := range sortedDefNames(schema.Defs) {
		def := schema.Defs[name]
		var body strings.Builder
		describeProperties(&body, def, "  ")
		if def.Description == "" && body.Len() == 0 {
			continue
		}
		if def.Description != "" {
			fmt.Fprintf(&sb, "%s: %s\n", name, def.Description)
		} else {
			fmt.Fprintf(&sb, "%s:\n", name)
		}
		sb.WriteString(body.String())
	}
	return sb.String()
}

func describeProperties(sb *strings.Builder, schema *JSONSchema, indent string) {
	for _, name := range schema.OrderedPropertyNames() {
		prop := schema.Properties[name]
		desc := propertyDescription(prop)
		if desc == "" {
			continue
		}
		req := "optional"
		if schema.IsRequired(name) {
			req = "required"
		}
		fmt.Fprintf(sb, "%s- %s (%s, %s): %s\n", indent, name, typeLabel(prop), req, desc)
	}
}

func propertyDescription(s *JSONSchema) string {
	if s.Description != "" {
		return s.Description
	}
	if len(s.AllOf) == 1 {
		return s.AllOf[0].Description
	}
	return ""
}

// typeLabel renders a short human readable type for s.
func typeLabel(s *JSONSchema) string {
	if name, ok := s.RefName(); ok {
		return name
	}
	if len(s.AllOf) == 1 {
		return typeLabel(s.AllOf[0])
	}
	switch s.Type {
	case TypeArray:
		if s.Items != nil {
			return "array of " + typeLabel(s.Items)
		}
		return "array"
	case "":
		return "any"
	}
	label := string(s.Type)
	if s.Format != "" {
		label += " (" + string(s.Format) + ")"
	}
	return label
}

// StripDescriptions returns a copy of schema without description keywords.
func StripDescriptions(schema *JSONSchema) *JSONSchema {
	c := schema.Clone()
	strip(c)
	return c
}

func strip(s *JSONSchema) {
	if s == nil {
		return
	}
	s.walk(func(n *JSONSchema) { n.Description = "" })
	for _, def := range s.Defs {
		strip(def)
	}
}
