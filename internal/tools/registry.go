package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/legionai/legion/internal/collective"
)

// MaxToolNameLength bounds a registered tool's name, guarding against
// malformed or adversarial tool definitions reaching a provider.
const MaxToolNameLength = 256

// Registry maps tool names to implementations. It supports registration,
// lookup, and duplicate-name rejection.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry builds an empty tool Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds tool to the registry. It rejects an empty name, a name
// exceeding MaxToolNameLength, and a name already registered.
func (r *Registry) Register(tool Tool) error {
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tools: tool name cannot be empty")
	}
	if len(name) > MaxToolNameLength {
		return fmt.Errorf("tools: tool name %q exceeds max length %d", name, MaxToolNameLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tools: tool %q is already registered", name)
	}
	r.tools[name] = tool
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool, sorted by name for determinism.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Tool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// Definitions returns the LLM-facing Definition for every tool in tools,
// in the same order.
func Definitions(toolList []Tool) []Definition {
	defs := make([]Definition, 0, len(toolList))
	for _, t := range toolList {
		defs = append(defs, t.Definition())
	}
	return defs
}

// EffectiveTools computes a participant's effective tool set: every
// registered tool if its granted list includes the wildcard "*", otherwise
// the intersection of its granted list and the registry.
func (r *Registry) EffectiveTools(p *collective.Participant) []Tool {
	if p.GrantsAllTools() {
		return r.List()
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(p.Tools))
	for _, name := range p.Tools {
		if t, ok := r.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}
