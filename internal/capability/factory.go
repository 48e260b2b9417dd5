package capability

import (
	"sort"
	"sync"

	"github.com/GriffinCanCode/IsolateOS/orchestrator/internal/permissions"
)

// Constructor builds a fresh handler instance for a domain.
type Constructor func() Handler

// Factory maps a domain name to a handler constructor. Stateless
// domains get one shared instance; callers that need isolation (the
// broker's per-isolate database cache) construct fresh instances.
type Factory struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	shared       map[string]Handler
}

// NewFactory creates an empty handler factory.
func NewFactory() *Factory {
	return &Factory{
		constructors: make(map[string]Constructor),
		shared:       make(map[string]Handler),
	}
}

// Register adds a domain constructor. Re-registering a domain replaces
// the constructor and drops any shared instance.
func (f *Factory) Register(domain string, ctor Constructor) {
	f.mu.Lock()
	f.constructors[domain] = ctor
	delete(f.shared, domain)
	f.mu.Unlock()
}

// Handler resolves the shared instance for an operation's domain,
// creating it lazily. Returns nil for unknown domains.
func (f *Factory) Handler(operation string) Handler {
	domain := permissions.Domain(operation)

	f.mu.RLock()
	h, ok := f.shared[domain]
	f.mu.RUnlock()
	if ok {
		return h
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.shared[domain]; ok {
		return h
	}
	ctor, ok := f.constructors[domain]
	if !ok {
		return nil
	}
	h = ctor()
	f.shared[domain] = h
	return h
}

// NewInstance constructs a fresh, unshared handler for an operation's
// domain. Returns nil for unknown domains.
func (f *Factory) NewInstance(operation string) Handler {
	domain := permissions.Domain(operation)
	f.mu.RLock()
	ctor, ok := f.constructors[domain]
	f.mu.RUnlock()
	if !ok {
		return nil
	}
	return ctor()
}

// Domains returns the registered domain names, sorted.
func (f *Factory) Domains() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	domains := make([]string, 0, len(f.constructors))
	for d := range f.constructors {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Operations returns every operation id across registered domains,
// sorted.
func (f *Factory) Operations() []string {
	var ops []string
	for _, domain := range f.Domains() {
		h := f.Handler(domain + ".")
		if h == nil {
			continue
		}
		for _, tool := range h.Definition().Tools {
			ops = append(ops, tool.ID)
		}
	}
	sort.Strings(ops)
	return ops
}

// Count returns the number of registered domains.
func (f *Factory) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.constructors)
}

// ReleaseIsolate fans isolate teardown out to every shared handler that
// keeps per-isolate state.
func (f *Factory) ReleaseIsolate(isolateID string) {
	f.mu.RLock()
	handlers := make([]Handler, 0, len(f.shared))
	for _, h := range f.shared {
		handlers = append(handlers, h)
	}
	f.mu.RUnlock()

	for _, h := range handlers {
		if r, ok := h.(Releaser); ok {
			r.ReleaseIsolate(isolateID)
		}
	}
}
