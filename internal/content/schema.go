package content

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Payload schemas. They pin down what the rest of the application relies
// on and ignore everything else.
var (
	categorySchema = map[string]any{
		"type":     "object",
		"required": []any{"category", "questions"},
		"properties": map[string]any{
			"category": map[string]any{"type": "string", "minLength": 1},
			"questions": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"id", "type", "q", "correct"},
					"properties": map[string]any{
						"id":        map[string]any{"type": "integer"},
						"type":      map[string]any{"enum": []any{"basic", "specialist"}},
						"q":         map[string]any{"type": "string"},
						"correct":   map[string]any{"type": "string", "minLength": 1},
						"media":     map[string]any{"type": []any{"string", "null"}},
						"mediaType": map[string]any{"type": []any{"string", "null"}},
					},
				},
			},
		},
	}

	rulesSchema = map[string]any{
		"type": "object",
		"required": []any{
			"basicQuestions", "specialistQuestions", "basicTimeSeconds",
			"specialistTimeSeconds", "totalTimeSeconds", "basicPoints",
			"specialistPoints", "maxPoints", "passThreshold",
		},
		"properties": map[string]any{
			"basicQuestions":        map[string]any{"type": "integer", "minimum": 0},
			"specialistQuestions":   map[string]any{"type": "integer", "minimum": 0},
			"basicTimeSeconds":      map[string]any{"type": "integer", "minimum": 1},
			"specialistTimeSeconds": map[string]any{"type": "integer", "minimum": 1},
			"totalTimeSeconds":      map[string]any{"type": "integer", "minimum": 1},
			"basicPoints":           map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
			"specialistPoints":      map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
			"maxPoints":             map[string]any{"type": "integer", "minimum": 0},
			"passThreshold":         map[string]any{"type": "integer", "minimum": 0},
		},
	}

	metaSchema = map[string]any{
		"type":     "object",
		"required": []any{"categories", "exam"},
		"properties": map[string]any{
			"version": map[string]any{"type": "string"},
			"categories": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []any{"id"},
					"properties": map[string]any{
						"id":   map[string]any{"type": "string", "minLength": 1},
						"exam": rulesSchema,
					},
				},
			},
			"exam": rulesSchema,
		},
	}
)

var compiled sync.Map // name → *jsonschema.Schema

// validatePayload checks raw against the named schema definition.
func validatePayload(name string, def map[string]any, raw []byte) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	sch, err := compile(name, def)
	if err != nil {
		return err
	}
	if err := sch.Validate(parsed); err != nil {
		return fmt.Errorf("%s payload: %w", name, err)
	}
	return nil
}

func compile(name string, def map[string]any) (*jsonschema.Schema, error) {
	if cached, ok := compiled.Load(name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler wants plain decoded JSON, so round-trip the Go literal.
	defBytes, err := json.Marshal(def)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %q: %w", name, err)
	}
	var doc any
	if err := json.Unmarshal(defBytes, &doc); err != nil {
		return nil, fmt.Errorf("parse schema %q: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", name)
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("add schema %q: %w", name, err)
	}
	sch, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema %q: %w", name, err)
	}
	compiled.Store(name, sch)
	return sch, nil
}
