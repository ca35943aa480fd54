package template

import (
	"slices"
	"sort"
	"sync"

	"github.com/conneroisu/tplc/internal/errors"
)

// GenContext describes the tag a generator is asked to translate.
type GenContext struct {
	Page string
	// Type is the tag type as written, Name the canonical entry name it resolved to.
	Type      string
	Name      string
	Tag       string
	Arguments string
	Line      int
	// Locals are the loop variables declared by enclosing tags, outermost first.
	Locals []string
}

// IsLocal reports whether name is a loop variable in scope.
func (c GenContext) IsLocal(name string) bool {
	return slices.Contains(c.Locals, name)
}

// Output is the code replacing one tag.
type Output struct {
	Code string
	// Locals become visible to the tags nested inside a capturing tag.
	Locals []string
	// Close replaces the matching end tag of a capturing tag; empty means {{end}}.
	Close string
}

// Generator translates one tag into template code.
type Generator interface {
	Generate(c GenContext) (Output, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(c GenContext) (Output, error)

func (f GeneratorFunc) Generate(c GenContext) (Output, error) {
	return f(c)
}

// Entry is a registered generator. Aliases share the entry of their target.
type Entry struct {
	Name      string
	Generator Generator
	Capturing bool
}

// RegisterOption configures an entry at registration.
type RegisterOption func(*Entry)

// Capturing marks the tag as opening a block closed by {{end type}}.
func Capturing() RegisterOption {
	return func(e *Entry) {
		e.Capturing = true
	}
}

// Registry maps tag types to generators. It is filled before the first
// compile and frozen afterwards; lookups are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	frozen  bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds or replaces the generator for name.
func (r *Registry) Register(name string, g Generator, opts ...RegisterOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.RegistryFrozen(name)
	}

	entry := &Entry{Name: name, Generator: g}
	for _, opt := range opts {
		opt(entry)
	}
	r.entries[name] = entry
	return nil
}

// RegisterAlias makes alias invoke the entry registered as original, which
// may itself be an alias.
func (r *Registry) RegisterAlias(original, alias string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.RegistryFrozen(alias)
	}

	entry, ok := r.entries[original]
	if !ok {
		return errors.UnknownGenerator(original, alias)
	}
	r.entries[alias] = entry
	return nil
}

// Lookup returns the entry for a tag type.
func (r *Registry) Lookup(name string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[name]
	if !ok {
		return nil, errors.UnregisteredToken(name)
	}
	return entry, nil
}

// IsCapturing reports whether name resolves to a capturing entry.
func (r *Registry) IsCapturing(name string) bool {
	entry, err := r.Lookup(name)
	return err == nil && entry.Capturing
}

// Invoke runs the generator registered for c.Type.
func (r *Registry) Invoke(c GenContext) (Output, error) {
	entry, err := r.Lookup(c.Type)
	if err != nil {
		return Output{}, errors.Locate(err, c.Page, c.Line)
	}

	c.Name = entry.Name
	out, err := entry.Generator.Generate(c)
	if err != nil {
		return Output{}, errors.Locate(err, c.Page, c.Line)
	}
	return out, nil
}

// Freeze rejects further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// Names lists every registered spelling, aliases included, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
