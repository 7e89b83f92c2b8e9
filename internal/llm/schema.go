package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"
)

// Schema is a reflected output contract shared by the provider request and
// the local validator.
type Schema struct {
	Name string
	// Doc is the schema document as sent to providers.
	Doc map[string]any
	// JSON is Doc serialized, for file-based agents.
	JSON     string
	compiled *gojsonschema.Schema
}

// SchemaFor reflects the JSON schema of T. T must be a struct; providers
// require an object at the top level.
func SchemaFor[T any](name string) (*Schema, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		Anonymous:                 true,
	}
	var v T
	reflected := reflector.Reflect(v)

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", name, err)
	}
	if doc["type"] != "object" {
		return nil, fmt.Errorf("schema %s: top level must be an object, got %v", name, doc["type"])
	}
	delete(doc, "$schema")
	delete(doc, "$id")
	delete(doc, "$defs")

	return NewSchema(name, doc)
}

// MustSchema is SchemaFor for package-level schemas.
func MustSchema[T any](name string) *Schema {
	s, err := SchemaFor[T](name)
	if err != nil {
		panic(err)
	}
	return s
}

// NewSchema compiles an explicit schema document.
func NewSchema(name string, doc map[string]any) (*Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Schema{Name: name, Doc: doc, JSON: string(raw), compiled: compiled}, nil
}

// Validate checks a JSON document against the schema. Violations are
// reported as ErrSchemaViolation.
func (s *Schema) Validate(data []byte) error {
	result, err := s.compiled.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSchemaViolation, s.Name, err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		details = append(details, e.String())
	}
	return fmt.Errorf("%w: %s: %s", ErrSchemaViolation, s.Name, strings.Join(details, "; "))
}

// Decode parses backend output into T. The output must be a single bare JSON
// document; prose or code fences around it are a schema violation.
func Decode[T any](s *Schema, text string) (T, error) {
	var out T
	data := bytes.TrimSpace([]byte(text))
	if !json.Valid(data) {
		return out, fmt.Errorf("%w: %s: output is not a single bare JSON document", ErrSchemaViolation, s.Name)
	}
	if err := s.Validate(data); err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrSchemaViolation, s.Name, err)
	}
	return out, nil
}
