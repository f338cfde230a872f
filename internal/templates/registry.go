package templates

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/guildai/guildflow/pkg/schema"
)

// Template is an opaque, reusable node configuration keyed by id and tagged
// with a human category. Instantiating a template produces a concrete Node.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Kind        schema.NodeKind `json:"kind"`
	Description string          `json:"description,omitempty"`
	Config      map[string]any  `json:"config,omitempty"`
}

// Registry is a thread-safe template catalog.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// DefaultRegistry returns a Registry preloaded with the built-in templates.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range builtinTemplates {
		if err := r.Register(t); err != nil {
			panic("templates: register built-in: " + err.Error())
		}
	}
	return r
}

// Register adds a template. Returns error on duplicate id or unknown kind.
func (r *Registry) Register(t *Template) error {
	if t == nil || t.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "template is nil or has no id")
	}
	if !schema.ValidNodeKinds[t.Kind] {
		return schema.NewErrorf(schema.ErrCodeValidation, "template %s has unknown kind %q", t.ID, t.Kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[t.ID]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "template %q already registered", t.ID)
	}
	r.templates[t.ID] = t
	return nil
}

// Get retrieves a template by id.
func (r *Registry) Get(id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "template %q not found", id)
	}
	return t, nil
}

// List returns all templates, optionally filtered by category, sorted by id.
func (r *Registry) List(category string) []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		if category != "" && t.Category != category {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Instantiate builds a fresh Node from a template. The node gets its own id
// and a deep copy of the template config; overrides are merged on top.
func (r *Registry) Instantiate(templateID, name string, overrides map[string]any) (*schema.Node, error) {
	t, err := r.Get(templateID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = t.Name
	}

	config := copyConfig(t.Config)
	for k, v := range overrides {
		config[k] = v
	}

	return &schema.Node{
		ID:          uuid.NewString(),
		Kind:        t.Kind,
		Name:        name,
		Description: t.Description,
		Config:      config,
		Status:      schema.NodeStatusPending,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func copyConfig(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case map[string]any:
			out[k] = copyConfig(val)
		case []any:
			out[k] = append([]any(nil), val...)
		default:
			out[k] = v
		}
	}
	return out
}
