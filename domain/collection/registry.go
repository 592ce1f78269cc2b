package collection

import (
	"github.com/lsst-sqre/vo-siav2/domain/fault"
)

// Registry holds the configured collections. It is built once at startup
// and is safe for concurrent reads.
type Registry struct {
	collections []DataCollection
	byLabel     map[string]int
	byName      map[string]int
}

// NewRegistry builds a registry in configuration order. It fails with a
// FatalFault when no collections are configured.
func NewRegistry(collections []DataCollection) (*Registry, error) {
	if len(collections) == 0 {
		return nil, errNoCollections()
	}

	r := &Registry{
		collections: make([]DataCollection, len(collections)),
		byLabel:     make(map[string]int, len(collections)),
		byName:      make(map[string]int, len(collections)),
	}
	copy(r.collections, collections)

	for i, c := range r.collections {
		if c.Label != "" {
			if _, dup := r.byLabel[c.Label]; dup {
				return nil, fault.Fatalf("Duplicate Data collection label %s", c.Label)
			}
			r.byLabel[c.Label] = i
		}
		if c.Name != "" {
			if _, dup := r.byName[c.Name]; dup {
				return nil, fault.Fatalf("Duplicate Data collection name %s", c.Name)
			}
			r.byName[c.Name] = i
		}
	}
	return r, nil
}

// ByLabel returns the collection with exactly this label.
func (r *Registry) ByLabel(label string) (DataCollection, error) {
	if r != nil {
		if i, ok := r.byLabel[label]; ok {
			return r.collections[i], nil
		}
	}
	return DataCollection{}, fault.Usagef("Label %s not found in Data collections: %w", label, ErrNotFound)
}

// ByName returns the collection with exactly this name.
func (r *Registry) ByName(name string) (DataCollection, error) {
	if r != nil {
		if i, ok := r.byName[name]; ok {
			return r.collections[i], nil
		}
	}
	return DataCollection{}, fault.Usagef("Name %s not found in Data collections: %w", name, ErrNotFound)
}

// Default returns the first collection marked default, in configuration
// order.
func (r *Registry) Default() (DataCollection, error) {
	if r == nil || len(r.collections) == 0 {
		return DataCollection{}, errNoCollections()
	}
	for _, c := range r.collections {
		if c.Default {
			return c, nil
		}
	}
	return DataCollection{}, fault.Fatalf("No default Collection found. Please configure a default.")
}

// DefaultCount returns how many collections are marked default.
func (r *Registry) DefaultCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, c := range r.collections {
		if c.Default {
			n++
		}
	}
	return n
}

// RepositoryBindings maps label to repository for every collection that
// has both.
func (r *Registry) RepositoryBindings() map[string]string {
	out := make(map[string]string)
	if r == nil {
		return out
	}
	for _, c := range r.collections {
		if c.HasBinding() {
			out[c.Label] = c.Repository
		}
	}
	return out
}

// All returns the collections in configuration order.
func (r *Registry) All() []DataCollection {
	if r == nil {
		return nil
	}
	out := make([]DataCollection, len(r.collections))
	copy(out, r.collections)
	return out
}

// Names returns the collection names in configuration order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c.Name)
	}
	return out
}

// HasBackend reports whether any collection uses the given backend.
func (r *Registry) HasBackend(kind BackendKind) bool {
	if r == nil {
		return false
	}
	for _, c := range r.collections {
		if c.Backend == kind {
			return true
		}
	}
	return false
}

func errNoCollections() error {
	return fault.Fatalf("No Data Collections configured. Please configure at least one Data collection.")
}
