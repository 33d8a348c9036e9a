// ABOUTME: In-memory response cache keyed by request fingerprint with TTL-based freshness.
// ABOUTME: Entries are never evicted by size; they are judged stale at read time and kept for fallback.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is the freshness window used when none is configured.
const DefaultTTL = 60 * time.Second

// Entry is one cached payload with the time it was fetched.
type Entry struct {
	Fingerprint string
	Payload     []byte
	FetchedAt   time.Time
}

// Cache stores the last successful payload per fingerprint. It is safe for
// concurrent use; every read-modify-write happens under the mutex.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	entries map[string]Entry
	mu      sync.RWMutex
}

// New creates a Cache whose entries are fresh for ttl.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
}

// TTL returns the configured freshness window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the entry for fp regardless of its age.
func (c *Cache) Get(fp string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[fp]
	return e, ok
}

// Put stores payload for fp, replacing any previous entry. The payload is
// copied so later mutation by the caller cannot change what readers see.
func (c *Cache) Put(fp string, payload []byte) {
	stored := bytes.Clone(payload)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[fp] = Entry{
		Fingerprint: fp,
		Payload:     stored,
		FetchedAt:   c.now(),
	}
}

// IsFresh reports whether e is younger than the TTL.
func (c *Cache) IsFresh(e Entry) bool {
	return c.now().Sub(e.FetchedAt) < c.ttl
}

// Len returns the number of entries currently in the cache (including stale ones).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry)
}

// Fingerprint derives the cache key for a request. The body is canonicalized
// (compact JSON, object keys sorted by encoding/json) so logically identical
// requests share one key. path is expected to carry its already-encoded query.
func Fingerprint(method, path string, body any) (string, error) {
	canonical, err := canonicalBody(body)
	if err != nil {
		return "", fmt.Errorf("fingerprinting %s %s: %w", method, path, err)
	}
	sum := sha256.Sum256(canonical)
	return fmt.Sprintf("%s %s %x", strings.ToUpper(method), path, sum[:8]), nil
}

func canonicalBody(body any) ([]byte, error) {
	var raw []byte
	switch b := body.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		raw = b
	case []byte:
		raw = b
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		raw = encoded
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return []byte("{}"), nil
	}
	// Round-trip through a generic value so pre-encoded bodies get sorted keys too.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(v)
}
