// Package llm is the strict capability boundary to generative backends.
//
// Every structured call goes through a JSON schema reflected from a Go type:
// the schema is handed to the provider for constrained decoding and the
// returned document is validated again locally before it is decoded.
package llm

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrSchemaViolation is returned when a backend cannot produce output
	// conforming to the requested schema.
	ErrSchemaViolation = errors.New("schema violation")
	// ErrTimeout is returned when a call exceeds the caller's deadline.
	ErrTimeout = errors.New("generative call timed out")
)

// Invocation is a single request to a generative backend.
type Invocation struct {
	// Name identifies the capability, e.g. "milestone_planner".
	Name         string
	Instructions string
	Input        string
	// Schema constrains the output. Nil requests free text.
	Schema    *Schema
	MaxTokens int
}

// Result is the raw output of a backend call.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}

// Backend invokes a generative model.
type Backend interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
	Describe() Info
}

// Info describes how a backend is reached.
type Info struct {
	Type  string
	Model string
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, inv Invocation) (Result, error)

// Invoke calls f.
func (f BackendFunc) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	return f(ctx, inv)
}

// Describe reports a static description for function backends.
func (f BackendFunc) Describe() Info {
	return Info{Type: "func"}
}

// classify maps context expiry onto ErrTimeout and keeps cancellation as-is,
// so callers can tell a slow backend from a user abort.
func classify(ctx context.Context, name string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrSchemaViolation) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", name, ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w", name, err)
}

// IsTimeout reports whether err is a generative timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
