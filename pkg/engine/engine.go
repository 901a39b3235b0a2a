package engine

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Options are sampling parameters forwarded to the backing model.
type Options struct {
	Temperature float64
	TopP        float64
	TopK        int
}

// Request describes one generation call.
type Request struct {
	Model   string
	Prompt  string
	Options Options
}

// ChunkHandler receives each streamed text fragment as it is produced.
// Returning an error aborts the call.
type ChunkHandler func(delta string) error

// Engine produces a sequence of text chunks followed by completion, or
// fails at any point before completion. Partial output from a failed call
// must be treated as void by the caller.
type Engine interface {
	Generate(ctx context.Context, req Request, onChunk ChunkHandler) (string, error)
}

// Selector is a parsed "provider/model" engine identifier, e.g.
// "ollama/llama3.2:3b" or "openai/gpt-4o-mini".
type Selector struct {
	Provider string
	Model    string
}

func (s Selector) String() string { return s.Provider + "/" + s.Model }

func ParseSelector(raw string) (Selector, error) {
	provider, model, ok := strings.Cut(strings.TrimSpace(raw), "/")
	if !ok || provider == "" || model == "" {
		return Selector{}, errors.Errorf("invalid engine selector %q, want provider/model", raw)
	}
	return Selector{Provider: provider, Model: model}, nil
}

// Registry maps provider names to engines. Selectors are resolved against
// it when a dialogue configuration is validated.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Engine
}

func NewRegistry() *Registry {
	return &Registry{providers: map[string]Engine{}}
}

func (r *Registry) Register(provider string, eng Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider] = eng
}

// Resolve parses a selector and returns the engine registered for its
// provider.
func (r *Registry) Resolve(raw string) (Engine, Selector, error) {
	sel, err := ParseSelector(raw)
	if err != nil {
		return nil, Selector{}, err
	}
	r.mu.RLock()
	eng, ok := r.providers[sel.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, Selector{}, errors.Errorf("unknown engine provider %q", sel.Provider)
	}
	return eng, sel, nil
}

// Providers lists registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for p := range r.providers {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
