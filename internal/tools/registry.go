package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tutorverse-go/pkg/llm"
)

// ExecutorFunc defines a server-side tool executor.
type ExecutorFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

type entry struct {
	def  llm.Tool
	exec ExecutorFunc
}

// Registry stores tool definitions and executors keyed by tool name.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
	order   []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a tool definition together with its executor.
func (r *Registry) Register(def llm.Tool, exec ExecutorFunc) error {
	name := def.Function.Name
	if name == "" {
		return fmt.Errorf("tool name is required")
	}
	if exec == nil {
		return fmt.Errorf("executor is required")
	}
	if def.Type == "" {
		def.Type = "function"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("executor already registered for %s", name)
	}
	r.entries[name] = entry{def: def, exec: exec}
	r.order = append(r.order, name)
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(def llm.Tool, exec ExecutorFunc) {
	if err := r.Register(def, exec); err != nil {
		panic(err)
	}
}

// Definitions returns the definitions of the named tools in registration order.
// With no names it returns every registered tool.
func (r *Registry) Definitions(names ...string) []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var defs []llm.Tool
	for _, n := range r.order {
		if len(names) == 0 || want[n] {
			defs = append(defs, r.entries[n].def)
		}
	}
	return defs
}

// Execute runs the executor for the tool name.
func (r *Registry) Execute(ctx context.Context, toolName string, args json.RawMessage) (json.RawMessage, error) {
	if toolName == "" {
		return nil, fmt.Errorf("tool name is required")
	}
	r.mu.RLock()
	e, ok := r.entries[toolName]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no executor registered for %s", toolName)
	}
	return e.exec(ctx, args)
}
