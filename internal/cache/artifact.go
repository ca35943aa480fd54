// Package cache stores compiled page artifacts.
//
// Artifacts live on disk under <cache dir>/<namespace>/<page>.gotmpl with a
// YAML metadata sidecar next to each one. A bounded in-memory LRU tier with
// TTL expiry sits in front of the disk store, and Manager clears whole
// namespaces the way the CLI and the development server need.
package cache

import (
	"context"
	"slices"
	"time"
)

// Artifact is the compiled, executable form of one page.
type Artifact struct {
	Page         string    `yaml:"page" json:"page"`
	Code         string    `yaml:"-" json:"-"`
	CompiledAt   time.Time `yaml:"compiled_at" json:"compiled_at"`
	Dependencies []string  `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	SourceHash   string    `yaml:"source_hash" json:"source_hash"`
}

// DependsOn reports whether the page included the named fragment.
func (a *Artifact) DependsOn(fragment string) bool {
	return slices.Contains(a.Dependencies, fragment)
}

// Size approximates the memory held by the artifact.
func (a *Artifact) Size() int64 {
	size := int64(len(a.Page) + len(a.Code) + len(a.SourceHash))
	for _, dep := range a.Dependencies {
		size += int64(len(dep))
	}
	return size
}

func (a *Artifact) clone() *Artifact {
	c := *a
	c.Dependencies = slices.Clone(a.Dependencies)
	return &c
}

// Store is the persistence surface for compiled artifacts, keyed by page name.
type Store interface {
	Get(ctx context.Context, page string) (*Artifact, bool, error)
	Put(ctx context.Context, artifact *Artifact) error
	Delete(ctx context.Context, page string) error
	List(ctx context.Context) ([]*Artifact, error)
}
