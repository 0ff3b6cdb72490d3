// Package store provides the in-memory cache for translated text.
//
// DESIGN: SillyTavern replays the same line whenever a message is re-voiced,
// so translations are kept for a TTL and looked up before the remote call:
//   - Only successful translations are stored
//   - Entries expire after the TTL and are swept every CleanupInterval
//   - When MaxEntries is reached the entry closest to expiry is evicted
//
// Currently only MemoryStore is implemented. For multi-instance deployments,
// implement Store with Redis or similar.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultTTL is used when translate.cache_ttl is set without a value.
	DefaultTTL = 10 * time.Minute

	// DefaultMaxEntries caps the cache size.
	DefaultMaxEntries = 4096

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval = time.Minute
)

// Store defines the interface for the translation cache.
type Store interface {
	// Set stores value under key for the store's TTL.
	Set(key, value string) error

	// Get retrieves a value that has not expired.
	Get(key string) (string, bool)

	// Delete removes key.
	Delete(key string) error

	// Len returns the number of live entries.
	Len() int

	// Close stops background cleanup and drops all entries.
	Close() error
}

// Key builds a cache key from the parts that determine a translation.
// Long request text is hashed so keys stay small.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// MemoryStore is a TTL map guarded by a mutex.
type MemoryStore struct {
	data       map[string]entry
	mu         sync.RWMutex
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	stopChan   chan struct{}
	stopped    bool
}

type entry struct {
	value     string
	expiresAt time.Time
}

// NewMemoryStore creates a store with the given TTL and starts the cleanup
// goroutine. ttl <= 0 uses DefaultTTL, maxEntries <= 0 uses DefaultMaxEntries.
func NewMemoryStore(ttl time.Duration, maxEntries int) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	s := &MemoryStore{
		data:       make(map[string]entry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		stopChan:   make(chan struct{}),
	}

	go s.cleanup(CleanupInterval)

	return s
}

// Set stores value with the store TTL.
func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}

	if _, exists := s.data[key]; !exists && len(s.data) >= s.maxEntries {
		s.evictLocked()
	}
	s.data[key] = entry{
		value:     value,
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Get retrieves a value if it exists and hasn't expired.
func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[key]
	if !exists {
		return "", false
	}

	if s.now().After(e.expiresAt) {
		return "", false
	}

	return e.value, true
}

// Delete removes a value.
func (s *MemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Len returns the number of entries that have not expired.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	n := 0
	for _, e := range s.data {
		if !now.After(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the cleanup goroutine and clears data.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stopped {
		s.stopped = true
		close(s.stopChan)
		s.data = make(map[string]entry)
	}
	return nil
}

// evictLocked drops expired entries, or the one closest to expiry when
// nothing has expired. Caller holds the write lock.
func (s *MemoryStore) evictLocked() {
	if s.sweepLocked() > 0 {
		return
	}
	var oldestKey string
	var oldest time.Time
	for key, e := range s.data {
		if oldestKey == "" || e.expiresAt.Before(oldest) {
			oldestKey, oldest = key, e.expiresAt
		}
	}
	delete(s.data, oldestKey)
}

// sweepLocked removes expired entries and returns how many were removed.
func (s *MemoryStore) sweepLocked() int {
	now := s.now()
	removed := 0
	for key, e := range s.data {
		if now.After(e.expiresAt) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}

// cleanup periodically removes expired entries.
func (s *MemoryStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.mu.Lock()
			if !s.stopped {
				s.sweepLocked()
			}
			s.mu.Unlock()
		}
	}
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
