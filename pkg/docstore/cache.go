package docstore

import (
	"sync"
	"time"

	"github.com/nimburion/docstream/pkg/document"
)

// snapshot is an immutable view of a collection. Writers publish a modified
// copy; documents inside a published snapshot are never mutated.
type snapshot struct {
	docs  []document.Document
	index map[string]int
	// shadowed maps an _id to older messages carrying the same _id.
	shadowed map[string][]string
	loadedAt time.Time
}

func newSnapshot(loadedAt time.Time, capacity int) *snapshot {
	return &snapshot{
		docs:     make([]document.Document, 0, capacity),
		index:    make(map[string]int, capacity),
		shadowed: map[string][]string{},
		loadedAt: loadedAt,
	}
}

// put adds or replaces a document in place. Only used while building a snapshot.
func (s *snapshot) put(doc document.Document) {
	id, _ := doc.ID()
	if i, ok := s.index[id]; ok {
		s.docs[i] = doc
		return
	}
	s.index[id] = len(s.docs)
	s.docs = append(s.docs, doc)
}

func (s *snapshot) get(id string) (document.Document, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.docs[i], true
}

func (s *snapshot) copy() *snapshot {
	out := newSnapshot(s.loadedAt, len(s.docs)+1)
	out.docs = append(out.docs, s.docs...)
	for k, v := range s.index {
		out.index[k] = v
	}
	for k, v := range s.shadowed {
		out.shadowed[k] = v
	}
	return out
}

// shadow records that messageID holds an older copy of id.
func (s *snapshot) shadow(id, messageID string) {
	s.shadowed[id] = append(s.shadowed[id], messageID)
}

// with returns a copy holding doc.
func (s *snapshot) with(doc document.Document) *snapshot {
	out := s.copy()
	out.put(doc)
	return out
}

// without returns a copy lacking id.
func (s *snapshot) without(id string) *snapshot {
	if _, ok := s.index[id]; !ok {
		return s
	}
	out := newSnapshot(s.loadedAt, len(s.docs))
	for _, doc := range s.docs {
		if docID, _ := doc.ID(); docID != id {
			out.put(doc)
		}
	}
	for k, v := range s.shadowed {
		if k != id {
			out.shadowed[k] = v
		}
	}
	return out
}

// CacheStats describes the cache state.
type CacheStats struct {
	Loaded    bool
	Stale     bool
	Documents int
	LoadedAt  time.Time
	Age       time.Duration
	TTL       time.Duration
	Hits      int64
	Misses    int64
	Reloads   int64
}

// cache owns the current snapshot. A TTL of zero or less disables caching:
// every read reloads.
type cache struct {
	mu      sync.Mutex
	snap    *snapshot
	ttl     time.Duration
	now     func() time.Time
	hits    int64
	misses  int64
	reloads int64
}

func (c *cache) staleLocked() bool {
	if c.snap == nil || c.ttl <= 0 {
		return true
	}
	return c.now().Sub(c.snap.loadedAt) > c.ttl
}

// fresh returns the current snapshot when it is still fresh.
func (c *cache) fresh() (*snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.staleLocked() {
		c.misses++
		return nil, false
	}
	c.hits++
	return c.snap, true
}

// loaded returns the current snapshot regardless of age.
func (c *cache) loaded() (*snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, c.snap != nil
}

func (c *cache) replace(s *snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = s
	c.reloads++
}

// update publishes fn's result when a snapshot is loaded. An empty cache
// stays empty so the next read still reloads the full log.
func (c *cache) update(fn func(*snapshot) *snapshot) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap == nil {
		return 0
	}
	c.snap = fn(c.snap)
	return len(c.snap.docs)
}

func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snap = nil
}

func (c *cache) setTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

func (c *cache) getTTL() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ttl
}

func (c *cache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := CacheStats{
		Loaded:  c.snap != nil,
		Stale:   c.staleLocked(),
		TTL:     c.ttl,
		Hits:    c.hits,
		Misses:  c.misses,
		Reloads: c.reloads,
	}
	if c.snap != nil {
		st.Documents = len(c.snap.docs)
		st.LoadedAt = c.snap.loadedAt
		st.Age = c.now().Sub(c.snap.loadedAt)
	}
	return st
}
