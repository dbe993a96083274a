package mathtool

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Tool is one external computation engine the Execute stage can dispatch
// to (Wolfram Alpha, a local evaluator, ...).
type Tool interface {
	Name() string
	Description() string
	Compute(ctx context.Context, query string) (string, error)
}

// Spec describes a tool for prompt construction.
type Spec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds the tools available to a run.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Specs returns the registered tools in stable name order.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.tools))
	for _, t := range r.tools {
		specs = append(specs, Spec{Name: t.Name(), Description: t.Description()})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Compute dispatches a query to a named tool.
func (r *Registry) Compute(ctx context.Context, name, query string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("mathtool: unknown tool %q", name)
	}
	return t.Compute(ctx, query)
}
