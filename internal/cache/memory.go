package cache

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Memory caches artifacts in process with LRU eviction and TTL
type Memory struct {
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	ttl         time.Duration
	now         func() time.Time
	// LRU implementation
	head *entry
	tail *entry
	// Statistics tracking (atomic for thread safety)
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

var _ Store = (*Memory)(nil)

// entry is one cached artifact in the LRU list
type entry struct {
	artifact   *Artifact
	storedAt   time.Time
	accessedAt time.Time
	size       int64
	// LRU doubly-linked list pointers
	prev *entry
	next *entry
}

// Stats is a snapshot of the memory tier counters.
type Stats struct {
	Entries   int     `json:"entries" yaml:"entries"`
	Size      int64   `json:"size" yaml:"size"`
	MaxSize   int64   `json:"max_size" yaml:"max_size"`
	Hits      int64   `json:"hits" yaml:"hits"`
	Misses    int64   `json:"misses" yaml:"misses"`
	Sets      int64   `json:"sets" yaml:"sets"`
	Deletes   int64   `json:"deletes" yaml:"deletes"`
	Evictions int64   `json:"evictions" yaml:"evictions"`
	HitRate   float64 `json:"hit_rate" yaml:"hit_rate"`
}

// NewMemory creates a memory tier holding at most maxSize bytes of artifacts,
// each for at most ttl. A non-positive ttl disables expiry.
func NewMemory(maxSize int64, ttl time.Duration) *Memory {
	m := &Memory{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}

	// Initialize LRU doubly-linked list with dummy head and tail
	m.head = &entry{}
	m.tail = &entry{}
	m.head.next = m.tail
	m.tail.prev = m.head

	return m
}

// Get retrieves an artifact. Callers receive a copy.
func (m *Memory) Get(_ context.Context, page string) (*Artifact, bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	e, exists := m.entries[page]
	if !exists {
		atomic.AddInt64(&m.misses, 1)
		return nil, false, nil
	}

	if m.expired(e) {
		m.remove(page, e)
		atomic.AddInt64(&m.misses, 1)
		return nil, false, nil
	}

	// Move to front (mark as recently used)
	m.moveToFront(e)
	e.accessedAt = m.now()
	atomic.AddInt64(&m.hits, 1)
	return e.artifact.clone(), true, nil
}

// Put stores an artifact, replacing any previous one for the same page.
func (m *Memory) Put(_ context.Context, artifact *Artifact) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	size := artifact.Size()
	now := m.now()

	if existing, exists := m.entries[artifact.Page]; exists {
		m.currentSize += size - existing.size
		existing.artifact = artifact.clone()
		existing.size = size
		existing.storedAt = now
		existing.accessedAt = now
		m.moveToFront(existing)
		m.evictIfNeeded(0)
		atomic.AddInt64(&m.sets, 1)
		return nil
	}

	// Artifacts larger than the whole tier are served from disk only
	if size > m.maxSize {
		return nil
	}

	m.evictIfNeeded(size)

	e := &entry{
		artifact:   artifact.clone(),
		storedAt:   now,
		accessedAt: now,
		size:       size,
	}
	m.entries[artifact.Page] = e
	m.currentSize += size
	m.addToFront(e)
	atomic.AddInt64(&m.sets, 1)
	return nil
}

func (m *Memory) Delete(_ context.Context, page string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if e, exists := m.entries[page]; exists {
		m.remove(page, e)
		atomic.AddInt64(&m.deletes, 1)
	}
	return nil
}

// List returns the live artifacts ordered by page name.
func (m *Memory) List(_ context.Context) ([]*Artifact, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	artifacts := make([]*Artifact, 0, len(m.entries))
	for page, e := range m.entries {
		if m.expired(e) {
			m.remove(page, e)
			continue
		}
		artifacts = append(artifacts, e.artifact.clone())
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Page < artifacts[j].Page })
	return artifacts, nil
}

// Purge drops every entry and resets statistics
func (m *Memory) Purge() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.entries = make(map[string]*entry)
	m.currentSize = 0

	m.head.next = m.tail
	m.tail.prev = m.head

	atomic.StoreInt64(&m.hits, 0)
	atomic.StoreInt64(&m.misses, 0)
	atomic.StoreInt64(&m.sets, 0)
	atomic.StoreInt64(&m.deletes, 0)
	atomic.StoreInt64(&m.evictions, 0)
}

// Stats returns cache statistics
func (m *Memory) Stats() Stats {
	m.mutex.Lock()
	count := len(m.entries)
	size := m.currentSize
	m.mutex.Unlock()

	hits := atomic.LoadInt64(&m.hits)
	misses := atomic.LoadInt64(&m.misses)
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}

	return Stats{
		Entries:   count,
		Size:      size,
		MaxSize:   m.maxSize,
		Hits:      hits,
		Misses:    misses,
		Sets:      atomic.LoadInt64(&m.sets),
		Deletes:   atomic.LoadInt64(&m.deletes),
		Evictions: atomic.LoadInt64(&m.evictions),
		HitRate:   rate,
	}
}

func (m *Memory) expired(e *entry) bool {
	return m.ttl > 0 && m.now().Sub(e.storedAt) > m.ttl
}

// evictIfNeeded evicts entries if cache would exceed max size
func (m *Memory) evictIfNeeded(newSize int64) {
	for m.currentSize+newSize > m.maxSize && m.tail.prev != m.head {
		lru := m.tail.prev
		m.remove(lru.artifact.Page, lru)
		atomic.AddInt64(&m.evictions, 1)
	}
}

func (m *Memory) remove(page string, e *entry) {
	m.removeFromList(e)
	delete(m.entries, page)
	m.currentSize -= e.size
}

// LRU doubly-linked list operations
func (m *Memory) addToFront(e *entry) {
	e.prev = m.head
	e.next = m.head.next
	m.head.next.prev = e
	m.head.next = e
}

func (m *Memory) removeFromList(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (m *Memory) moveToFront(e *entry) {
	m.removeFromList(e)
	m.addToFront(e)
}
