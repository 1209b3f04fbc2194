package overload

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/sync/singleflight"

	"github.com/chazu/jbridge/descriptor"
	"github.com/chazu/jbridge/host"
)

// Key identifies one specificity comparison: the declared parameters of
// both candidates, the varargs flag, and the dispatch kinds of the
// arguments. Argument values are never part of a key.
type Key struct {
	First   string `cbor:"1,keyasint"` // concatenated parameter descriptors
	Second  string `cbor:"2,keyasint"`
	Varargs bool   `cbor:"3,keyasint,omitempty"`
	Kinds   string `cbor:"4,keyasint"` // one byte per argument kind
}

// NewKey builds the key for comparing m1 against m2.
func NewKey(m1, m2 *descriptor.Method, actual []host.Kind, varargs bool) Key {
	kinds := make([]byte, len(actual))
	for i, k := range actual {
		kinds[i] = byte('a' + k)
	}
	return Key{First: params(m1), Second: params(m2), Varargs: varargs, Kinds: string(kinds)}
}

func params(m *descriptor.Method) string {
	var b strings.Builder
	for _, p := range m.Params {
		b.WriteString(p.String())
	}
	return b.String()
}

func (k Key) String() string {
	return fmt.Sprintf("(%s) vs (%s) kinds=%s varargs=%v", k.First, k.Second, k.Kinds, k.Varargs)
}

// Cache memoizes specificity answers. It is safe for concurrent use;
// concurrent misses on the same key compute the answer once.
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]bool
	group   singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]bool)}
}

// Lookup returns the cached answer for k, calling compute on a miss. The
// answer is stored only when compute reports it as keepable.
func (c *Cache) Lookup(k Key, compute func() (answer, keep bool)) bool {
	c.mu.RLock()
	v, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return v
	}

	c.misses.Add(1)
	res, _, _ := c.group.Do(k.String(), func() (any, error) {
		c.mu.RLock()
		v, ok := c.entries[k]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}
		v, keep := compute()
		if !keep {
			log.Debugf("specificity miss: %s -> %v (not kept)", k, v)
			return v, nil
		}
		log.Debugf("specificity miss: %s -> %v", k, v)
		c.mu.Lock()
		c.entries[k] = v
		c.mu.Unlock()
		return v, nil
	})
	return res.(bool)
}

// Len returns the number of cached answers.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats holds cache counters.
type Stats struct {
	Entries int
	Hits    uint64
	Misses  uint64
}

// HitRate returns the hit rate as a percentage (0-100).
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) * 100 / float64(total)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	return Stats{Entries: c.Len(), Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

type snapshotEntry struct {
	Key    Key  `cbor:"1,keyasint"`
	Better bool `cbor:"2,keyasint"`
}

type snapshot struct {
	Version int             `cbor:"1,keyasint"`
	Entries []snapshotEntry `cbor:"2,keyasint"`
}

const snapshotVersion = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("overload: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Marshal serializes the cached answers to CBOR, sorted by key.
func (c *Cache) Marshal() ([]byte, error) {
	c.mu.RLock()
	snap := snapshot{Version: snapshotVersion, Entries: make([]snapshotEntry, 0, len(c.entries))}
	for k, v := range c.entries {
		snap.Entries = append(snap.Entries, snapshotEntry{Key: k, Better: v})
	}
	c.mu.RUnlock()

	sort.Slice(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].Key.String() < snap.Entries[j].Key.String()
	})
	return cborEncMode.Marshal(&snap)
}

// Unmarshal merges answers serialized by Marshal into the cache.
func (c *Cache) Unmarshal(data []byte) error {
	var snap snapshot
	if err := cbor.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("overload: unmarshal cache snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("overload: cache snapshot version %d, want %d", snap.Version, snapshotVersion)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range snap.Entries {
		c.entries[e.Key] = e.Better
	}
	return nil
}

// Save writes a snapshot to path, creating parent directories.
func (c *Cache) Save(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("overload: save cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("overload: save cache: %w", err)
	}
	return nil
}

// Load merges the snapshot at path. A missing file is not an error.
func (c *Cache) Load(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("overload: load cache: %w", err)
	}
	return c.Unmarshal(data)
}
