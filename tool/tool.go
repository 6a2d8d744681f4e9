// Package tool defines the opaque tool abstraction the graph runtime calls
// into, plus the compensation registry used to undo tool side effects when
// execution rolls back past their invocation.
package tool

import (
	"context"
	"fmt"
	"sync"
)

// Tool is an invocable named capability. The runtime treats its semantics
// as opaque.
type Tool interface {
	Name() string
	Execute(ctx context.Context, args any) (any, error)
}

// FuncTool adapts a plain function into a Tool.
type FuncTool struct {
	name string
	fn   func(ctx context.Context, args any) (any, error)
}

// NewFuncTool creates a Tool backed by fn.
func NewFuncTool(name string, fn func(ctx context.Context, args any) (any, error)) *FuncTool {
	return &FuncTool{name: name, fn: fn}
}

// Name returns the tool name.
func (t *FuncTool) Name() string {
	return t.name
}

// Execute invokes the wrapped function.
func (t *FuncTool) Execute(ctx context.Context, args any) (any, error) {
	return t.fn(ctx, args)
}

// Registry is a name→tool mapping, safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool, replacing any tool with the same name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute invokes the named tool.
func (r *Registry) Execute(ctx context.Context, name string, args any) (any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return t.Execute(ctx, args)
}

// CompensationRegistry maps a forward tool name to the tool that undoes its
// side effects. Forward tools without a registered compensation are left
// as-is on rollback.
type CompensationRegistry struct {
	mu            sync.RWMutex
	compensations map[string]Tool
}

// NewCompensationRegistry creates an empty compensation registry.
func NewCompensationRegistry() *CompensationRegistry {
	return &CompensationRegistry{compensations: make(map[string]Tool)}
}

// Register maps the forward tool name to its compensating tool.
func (r *CompensationRegistry) Register(forwardName string, compensating Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compensations[forwardName] = compensating
}

// CompensationFor returns the compensating tool for a forward tool name.
func (r *CompensationRegistry) CompensationFor(forwardName string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.compensations[forwardName]
	return t, ok
}
