package tool

import (
	"fmt"
	"sort"
	"sync"

	"quill/internal/llm"
)

// Capability binds a tool to the policy the agent applies before running it.
type Capability struct {
	Tool       Tool
	Permission Permission
	ReadOnly   bool
}

type Registry struct {
	capabilities map[string]*Capability
	mu           sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]*Capability),
	}
}

// Register adds a tool with the default policy: ask before each call.
func (r *Registry) Register(tool Tool) error {
	return r.RegisterWithPolicy(tool, PermissionAsk, false)
}

// RegisterWithPolicy adds a tool with an explicit permission class.
// Read-only tools stay callable in plan mode without approval.
func (r *Registry) RegisterWithPolicy(tool Tool, perm Permission, readOnly bool) error {
	if !ValidPermission(perm) {
		return fmt.Errorf("invalid permission %q for tool %s", perm, tool.Name())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.capabilities[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.capabilities[name] = &Capability{
		Tool:       tool,
		Permission: perm,
		ReadOnly:   readOnly,
	}
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cap, exists := r.capabilities[name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", name)
	}

	return cap.Tool, nil
}

// Capability returns a tool together with its execution policy.
func (r *Registry) Capability(name string) (*Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cap, exists := r.capabilities[name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", name)
	}

	return cap, nil
}

// SetPermission updates the permission class for a registered tool.
// An allow-always approval persists through this.
func (r *Registry) SetPermission(name string, perm Permission) error {
	if !ValidPermission(perm) {
		return fmt.Errorf("invalid permission %q for tool %s", perm, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cap, exists := r.capabilities[name]
	if !exists {
		return fmt.Errorf("tool %s not found", name)
	}

	cap.Permission = perm
	return nil
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)

	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, r.capabilities[name].Tool)
	}
	return tools
}

func (r *Registry) GetToolDefinitions() []*llm.ToolDefinition {
	tools := r.List()
	defs := make([]*llm.ToolDefinition, len(tools))

	for i, t := range tools {
		defs[i] = &llm.ToolDefinition{
			Type: "function",
			Function: &llm.FunctionDef{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		}
	}

	return defs
}

// GetToolBestPractices collects best practices from all registered tools
func (r *Registry) GetToolBestPractices() string {
	tools := r.List()
	var practices []string

	for _, t := range tools {
		if bp := t.BestPractices(); bp != "" {
			practices = append(practices, bp)
		}
	}

	if len(practices) == 0 {
		return ""
	}

	result := "# Tool Usage Best Practices\n\n"
	for i, practice := range practices {
		result += practice
		if i < len(practices)-1 {
			result += "\n\n"
		}
	}

	return result
}
