package intent

// schema.go renders tool definitions as JSON Schemas. The schemas guard the
// one untyped edge of the pipeline: argument maps produced by the generative
// extractor are validated here before they are converted into typed argument
// structs. Heuristic extraction never needs this path because it only
// produces fields it knows about.

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaMu    sync.Mutex
	schemaCache = map[Intent]*jsonschema.Schema{}
)

// Schema returns the compiled JSON Schema for def's arguments. Required
// parameters must be present and non-empty; unknown keys are rejected.
// Compiled schemas are cached per tool.
func Schema(def Definition) (*jsonschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if s, ok := schemaCache[def.Name]; ok {
		return s, nil
	}
	doc, err := schemaDoc(def)
	if err != nil {
		return nil, fmt.Errorf("render schema for %s: %w", def.Name, err)
	}
	s, err := jsonschema.CompileString(string(def.Name)+".schema.json", doc)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", def.Name, err)
	}
	schemaCache[def.Name] = s
	return s, nil
}

// ValidateArgs checks an argument map against def's schema.
func ValidateArgs(def Definition, args map[string]string) error {
	s, err := Schema(def)
	if err != nil {
		return err
	}
	doc := make(map[string]any, len(args))
	for k, v := range args {
		doc[k] = v
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("arguments for %s: %w", def.Name, err)
	}
	return nil
}

// schemaDoc renders def as a draft 2020-12 schema document.
func schemaDoc(def Definition) (string, error) {
	props := make(map[string]any, len(def.Parameters))
	required := make([]string, 0, len(def.Parameters))
	for _, p := range def.Parameters {
		prop := map[string]any{
			"type":        "string",
			"description": p.Description,
		}
		if p.Required {
			prop["minLength"] = 1
			required = append(required, p.Name)
		}
		props[p.Name] = prop
	}
	doc := map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
