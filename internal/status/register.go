package status

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
)

// HTTPVerb enumerates supported HTTP operations.
type HTTPVerb int

const (
	// Unknown represents an unspecified HTTP verb.
	Unknown HTTPVerb = iota
	// GET lists or retrieves resources.
	GET
	// DELETE removes resources.
	DELETE
	// POST creates resources.
	POST
)

// RestMethod describes a REST route handler.
type RestMethod struct {
	Verb    HTTPVerb
	Path    string
	Handler gin.HandlerFunc
}

// Registry collects the REST methods mounted under the API group.
type Registry struct {
	methods map[string]RestMethod
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[string]RestMethod)}
}

// RegisterMethod builds a RestMethod and registers it using Register.
func (r *Registry) RegisterMethod(verb HTTPVerb, path string, h gin.HandlerFunc) error {
	return r.Register(RestMethod{Verb: verb, Path: path, Handler: h})
}

// Register inserts a RestMethod preventing duplicates.
func (r *Registry) Register(m RestMethod) error {
	key := fmt.Sprintf("%d_%s", m.Verb, m.Path)
	if _, exists := r.methods[key]; exists {
		return fmt.Errorf("can't add %s, an existing handler in REST method map exists", key)
	}
	r.methods[key] = m
	return nil
}

// RestMethods returns the registered methods ordered by path then verb.
func (r *Registry) RestMethods() []RestMethod {
	ms := make([]RestMethod, 0, len(r.methods))
	for _, m := range r.methods {
		ms = append(ms, m)
	}
	slices.SortFunc(ms, func(a, b RestMethod) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return int(a.Verb) - int(b.Verb)
	})
	return ms
}

func (r *Registry) mount(g *gin.RouterGroup) {
	for _, rm := range r.RestMethods() {
		switch rm.Verb {
		case GET:
			g.GET(rm.Path, rm.Handler)
		case DELETE:
			g.DELETE(rm.Path, rm.Handler)
		case POST:
			g.POST(rm.Path, rm.Handler)
		}
	}
}
