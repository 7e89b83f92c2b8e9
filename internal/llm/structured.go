package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// SchemaRetries is how many times a schema violation is re-asked with
// corrective feedback before it is returned to the caller.
const SchemaRetries = 1

// Call is a typed structured invocation.
type Call[T any] struct {
	Invocation
	// Check enforces domain constraints the schema cannot express.
	// A non-nil error is treated as a schema violation.
	Check func(T) error
}

// Structured invokes b and decodes the output into T. Schema violations,
// including failed checks, are retried once with the rejection appended to
// the instructions. Timeouts and transport errors are returned immediately.
func Structured[T any](ctx context.Context, b Backend, call Call[T]) (T, error) {
	var zero T
	inv := call.Invocation
	if inv.Schema == nil {
		s, err := SchemaFor[T](inv.Name)
		if err != nil {
			return zero, err
		}
		inv.Schema = s
	}
	base := inv.Instructions

	var lastErr error
	for attempt := 0; attempt <= SchemaRetries; attempt++ {
		if attempt > 0 {
			inv.Instructions = correctiveInstructions(base, lastErr)
		}

		start := time.Now()
		res, err := b.Invoke(ctx, inv)
		if err != nil {
			err = classify(ctx, inv.Name, err)
			if !errors.Is(err, ErrSchemaViolation) {
				return zero, err
			}
			lastErr = err
		} else {
			val, err := Decode[T](inv.Schema, res.Text)
			if err == nil && call.Check != nil {
				if checkErr := call.Check(val); checkErr != nil {
					err = fmt.Errorf("%w: %s: %w", ErrSchemaViolation, inv.Name, checkErr)
				}
			}
			if err == nil {
				log.Debug().
					Str("capability", inv.Name).
					Int("attempt", attempt+1).
					Int("prompt_tokens", res.PromptTokens).
					Int("completion_tokens", res.CompletionTokens).
					Dur("duration", time.Since(start)).
					Msg("structured call completed")
				return val, nil
			}
			lastErr = err
		}

		if attempt < SchemaRetries {
			log.Warn().Err(lastErr).Str("capability", inv.Name).Msg("output rejected, retrying with feedback")
		}
	}
	return zero, lastErr
}

func correctiveInstructions(base string, rejection error) string {
	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\nYour previous response was rejected: ")
	b.WriteString(rejection.Error())
	b.WriteString("\nRespond again with a single JSON document that satisfies the output schema and every constraint above. Output only JSON.")
	return b.String()
}
