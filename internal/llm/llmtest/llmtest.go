// Package llmtest provides a scripted backend for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/metalagman/consultant/internal/llm"
)

// Response is one scripted reply.
type Response struct {
	Text  string
	Err   error
	Delay time.Duration
}

// Backend replays scripted responses keyed by capability name. Queued
// responses are consumed first, then the standing response is repeated.
type Backend struct {
	mu       sync.Mutex
	queues   map[string][]Response
	standing map[string]Response
	calls    []llm.Invocation
}

// New returns an empty script.
func New() *Backend {
	return &Backend{
		queues:   make(map[string][]Response),
		standing: make(map[string]Response),
	}
}

// Push queues responses for name.
func (b *Backend) Push(name string, rs ...Response) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[name] = append(b.queues[name], rs...)
	return b
}

// Always sets the response returned once the queue for name is empty.
func (b *Backend) Always(name string, r Response) *Backend {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.standing[name] = r
	return b
}

// JSON sets a standing response holding v marshaled as JSON.
func (b *Backend) JSON(name string, v any) *Backend {
	return b.Always(name, Response{Text: MustJSON(v)})
}

// Invoke returns the next scripted response for inv.Name.
func (b *Backend) Invoke(ctx context.Context, inv llm.Invocation) (llm.Result, error) {
	b.mu.Lock()
	b.calls = append(b.calls, inv)
	var (
		r  Response
		ok bool
	)
	if q := b.queues[inv.Name]; len(q) > 0 {
		r, ok = q[0], true
		b.queues[inv.Name] = q[1:]
	} else {
		r, ok = b.standing[inv.Name]
	}
	b.mu.Unlock()

	if !ok {
		return llm.Result{}, fmt.Errorf("llmtest: no scripted response for %q", inv.Name)
	}
	if r.Delay > 0 {
		timer := time.NewTimer(r.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return llm.Result{}, ctx.Err()
		case <-timer.C:
		}
	}
	if r.Err != nil {
		return llm.Result{}, r.Err
	}
	return llm.Result{Text: r.Text}, nil
}

// Describe identifies the script backend.
func (b *Backend) Describe() llm.Info {
	return llm.Info{Type: "script"}
}

// Calls returns the invocations recorded for name, or all when name is empty.
func (b *Backend) Calls(name string) []llm.Invocation {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []llm.Invocation
	for _, c := range b.calls {
		if name == "" || c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// MustJSON marshals v or panics.
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
