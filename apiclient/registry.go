package apiclient

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry maps stable method IDs to compiled method descriptions.
//
// Build it once at startup, either in code:
//
//	reg := apiclient.NewRegistry()
//	err := reg.Register(apiclient.MethodDescription{
//	    ID:     "GetUser",
//	    Method: http.MethodGet,
//	    Path:   "users/{id}",
//	    Parameters: []apiclient.Parameter{
//	        {Name: "id", In: apiclient.InPath},
//	    },
//	    ExpectedCodes: []int{http.StatusNotFound},
//	})
//
// or from a YAML document with LoadRegistry.
type Registry struct {
	mu      sync.RWMutex
	methods map[string]*compiledMethod
	order   []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]*compiledMethod)}
}

// Register validates and compiles desc. Invalid descriptions and duplicate
// IDs are configuration errors.
func (r *Registry) Register(desc MethodDescription) error {
	m, err := compile(desc)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.methods[m.desc.ID]; ok {
		return newConfigError(m.desc.ID, "method already registered")
	}
	r.methods[m.desc.ID] = m
	r.order = append(r.order, m.desc.ID)
	return nil
}

// MustRegister registers every description and panics on the first error.
// Intended for package-level registries built from literals.
func (r *Registry) MustRegister(descs ...MethodDescription) *Registry {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Lookup returns the normalized description registered under id.
func (r *Registry) Lookup(id string) (MethodDescription, bool) {
	m, ok := r.get(id)
	if !ok {
		return MethodDescription{}, false
	}
	return m.desc, true
}

// IDs returns the registered method IDs in registration order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) get(id string) (*compiledMethod, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.methods[id]
	return m, ok
}

// registryFile is the YAML layout read by ParseRegistry:
//
//	methods:
//	  - id: GetUser
//	    method: GET
//	    path: users/{id}
//	    expected: [404]
//	    parameters:
//	      - name: id
//	        in: path
//	        type: int
type registryFile struct {
	Methods []MethodDescription `yaml:"methods"`
}

// LoadRegistry reads a YAML registry file.
func LoadRegistry(path string) (*Registry, error) {
	// #nosec G304 -- path is provided by trusted config/flag.
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRegistry(b)
}

// ParseRegistry builds a registry from a YAML document.
func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, newConfigError("", "parse registry: %v", err)
	}

	reg := NewRegistry()
	for _, desc := range file.Methods {
		if err := reg.Register(desc); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
