package tools

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

var ErrToolNotFound = errors.New("tool not found")

// Registry is a thread-safe set of tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Definition
}

func NewRegistry(defs ...*Definition) (*Registry, error) {
	r := &Registry{tools: map[string]*Definition{}}
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Register(d *Definition) error {
	if d == nil || d.Name == "" {
		return errors.New("tool name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[d.Name]; exists {
		return errors.Errorf("tool %s already registered", d.Name)
	}
	r.tools[d.Name] = d
	return nil
}

func (r *Registry) Get(name string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	if !ok {
		return nil, errors.Wrapf(ErrToolNotFound, "%s", name)
	}
	return d, nil
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ret := make([]*Definition, 0, len(r.tools))
	for _, d := range r.tools {
		ret = append(ret, d)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Name < ret[j].Name })
	return ret
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
