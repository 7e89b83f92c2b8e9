package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON string

var settingsSchema = gojsonschema.NewStringLoader(schemaJSON)

// ValidateSettings validates raw config settings against the JSON schema.
// Errors are sorted so the message is stable across runs.
func ValidateSettings(settings map[string]any) error {
	result, err := gojsonschema.Validate(settingsSchema, gojsonschema.NewGoLoader(pruneNil(settings)))
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	errs := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		// if/then branches report a generic "must match then schema" line next to the real cause.
		if schemaErr.Type() == "number_all_of" || schemaErr.Type() == "condition_then" {
			continue
		}
		errs = append(errs, schemaErr.String())
	}
	if len(errs) == 0 {
		for _, schemaErr := range result.Errors() {
			errs = append(errs, schemaErr.String())
		}
	}
	sort.Strings(errs)

	return fmt.Errorf("config schema validation failed: %s", strings.Join(errs, "; "))
}

// pruneNil drops unset keys (bound env vars without a value) before validation.
func pruneNil(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = pruneNil(val)
		default:
			out[k] = v
		}
	}
	return out
}
