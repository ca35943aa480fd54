package cache

import (
	"context"
)

// Tiered serves artifacts from memory first and falls back to disk, filling
// memory on a disk hit. Writes go to disk before memory.
type Tiered struct {
	memory *Memory
	disk   *Disk
}

var _ Store = (*Tiered)(nil)

func NewTiered(memory *Memory, disk *Disk) *Tiered {
	return &Tiered{memory: memory, disk: disk}
}

func (t *Tiered) Get(ctx context.Context, page string) (*Artifact, bool, error) {
	if artifact, ok, _ := t.memory.Get(ctx, page); ok {
		return artifact, true, nil
	}

	artifact, ok, err := t.disk.Get(ctx, page)
	if err != nil || !ok {
		return nil, false, err
	}

	_ = t.memory.Put(ctx, artifact)
	return artifact, true, nil
}

func (t *Tiered) Put(ctx context.Context, artifact *Artifact) error {
	if err := t.disk.Put(ctx, artifact); err != nil {
		return err
	}
	return t.memory.Put(ctx, artifact)
}

func (t *Tiered) Delete(ctx context.Context, page string) error {
	_ = t.memory.Delete(ctx, page)
	return t.disk.Delete(ctx, page)
}

// List reports what is on disk, the durable tier.
func (t *Tiered) List(ctx context.Context) ([]*Artifact, error) {
	return t.disk.List(ctx)
}

// Memory exposes the in-process tier for statistics and purging.
func (t *Tiered) Memory() *Memory {
	return t.memory
}

// Disk exposes the durable tier.
func (t *Tiered) Disk() *Disk {
	return t.disk
}
