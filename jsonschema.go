package tempora

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// eraDescriptorSchema is the JSON Schema a file-based era descriptor document
// must satisfy before FileEraRegistry accepts it.
var eraDescriptorSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"schema":       {Type: "string"},
		"table":        {Type: "string"},
		"era_name":     {Type: "string"},
		"identity":     {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		"lookup_keys":  {Type: "array", Items: &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}}},
		"mode":         {Type: "string", Enum: []any{"bounds_only", "bounds_plus_inclusive_end", "bounds_plus_range", "all_three"}},
		"domain":       {Type: "string", Enum: []any{"integer", "bigint", "date", "timestamp", "timestamptz", "numeric"}},
		"valid_from":   {Type: "string"},
		"valid_until":  {Type: "string"},
		"valid_to":     {Type: "string"},
		"validity":     {Type: "string"},
		"range_ctor":   {Type: "string"},
		"ephemeral":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
	},
	Required: []string{"schema", "table", "era_name", "identity", "mode", "domain"},
}

// ValidateEraDescriptorDocument validates a decoded JSON document (as
// map[string]any) against the era descriptor schema before it is parsed
// into an EraDescriptor.
func ValidateEraDescriptorDocument(doc map[string]any) error {
	resolved, err := eraDescriptorSchema.Resolve(nil)
	if err != nil {
		return NewInternalError("resolve era descriptor schema", err)
	}
	if err := resolved.Validate(doc); err != nil {
		return NewValidationError(fmt.Sprintf("era descriptor document failed schema validation: %v", err))
	}
	return nil
}

// mergeRequestSchema checks a merge request document with snake_case keys
// and object-valued target_table/source_table. That is neither the layout of
// cmd/server's wire payload (string-valued target_table) nor that of
// MergeRequest's own JSON encoding (untagged field names), and nothing in
// this module calls ValidateMergeRequestDocument.
var mergeRequestSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"target_table":     {Type: "object"},
		"source_table":     {Type: "object"},
		"identity_columns": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		"mode": {
			Type: "string",
			Enum: []any{
				string(ModeMergeEntityUpsert), string(ModeMergeEntityPatch), string(ModeMergeEntityReplace),
				string(ModeUpdateForPortionOf), string(ModePatchForPortionOf), string(ModeReplaceForPortionOf),
				string(ModeInsertNewEntities), string(ModeDeleteForPortionOf),
			},
		},
	},
	Required: []string{"target_table", "source_table", "identity_columns", "mode"},
}

// ValidateMergeRequestDocument validates a decoded JSON merge request
// document before it is unmarshalled into a MergeRequest.
func ValidateMergeRequestDocument(doc map[string]any) error {
	resolved, err := mergeRequestSchema.Resolve(nil)
	if err != nil {
		return NewInternalError("resolve merge request schema", err)
	}
	if err := resolved.Validate(doc); err != nil {
		return NewValidationError(fmt.Sprintf("merge request failed schema validation: %v", err))
	}
	return nil
}
