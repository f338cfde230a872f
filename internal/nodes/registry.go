package nodes

import (
	"sort"
	"sync"

	"github.com/guildai/guildflow/internal/expressions"
	"github.com/guildai/guildflow/pkg/schema"
)

// Constructor builds an Executor for one node. Constructors validate the
// parts of the node configuration that can be checked without running it.
type Constructor func(node *schema.Node, deps Deps) (Executor, error)

// Deps are the external collaborators node executors may need. Nil members
// are tolerated at registry construction; a node that actually needs a
// missing collaborator fails at execution time with a clear error.
type Deps struct {
	Agent AgentRunner
	Skill SkillRunner
	Query *expressions.QueryEngine
}

// Registry maps node kinds to their constructors. The closed set of kinds is
// registered up front; lookup by kind replaces any dynamic name dispatch.
type Registry struct {
	mu           sync.RWMutex
	constructors map[schema.NodeKind]Constructor
	deps         Deps
}

// NewRegistry creates an empty Registry bound to the given collaborators.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		constructors: make(map[schema.NodeKind]Constructor),
		deps:         deps,
	}
}

// DefaultRegistry returns a Registry with all built-in node kinds registered.
func DefaultRegistry(deps Deps) *Registry {
	r := NewRegistry(deps)
	// Built-in kinds never collide, so errors here are programming mistakes.
	for kind, ctor := range map[schema.NodeKind]Constructor{
		schema.NodeKindAgent:       NewAgentNode,
		schema.NodeKindVisualSkill: NewVisualSkillNode,
		schema.NodeKindLogic:       NewLogicNode,
		schema.NodeKindInput:       NewInputNode,
		schema.NodeKindOutput:      NewOutputNode,
	} {
		if err := r.Register(kind, ctor); err != nil {
			panic("nodes: register built-in kind: " + err.Error())
		}
	}
	return r
}

// Register adds a constructor for a node kind. Returns error on duplicate.
func (r *Registry) Register(kind schema.NodeKind, ctor Constructor) error {
	if ctor == nil {
		return schema.NewError(schema.ErrCodeValidation, "node constructor is nil")
	}
	if kind == "" {
		return schema.NewError(schema.ErrCodeValidation, "node kind is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[kind]; exists {
		return schema.NewErrorf(schema.ErrCodeConflict, "node kind %q already registered", kind)
	}
	r.constructors[kind] = ctor
	return nil
}

// New instantiates an Executor for the given node.
func (r *Registry) New(node *schema.Node) (Executor, error) {
	if node == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "node is nil")
	}

	r.mu.RLock()
	ctor, ok := r.constructors[node.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown node kind %q", node.Kind).WithNode(node.ID)
	}
	return ctor(node, r.deps)
}

// Has checks whether a kind is registered.
func (r *Registry) Has(kind schema.NodeKind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.constructors[kind]
	return ok
}

// Kinds returns the registered node kinds, sorted.
func (r *Registry) Kinds() []schema.NodeKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]schema.NodeKind, 0, len(r.constructors))
	for k := range r.constructors {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
