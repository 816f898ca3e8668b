// Package cachedstore fronts a store.Store with an in-memory hot-entry
// cache. Because entries are content-addressed, a cached value for a given
// key can never go stale, which makes a plain read-through cache safe
// without any invalidation logic.
package cachedstore

import (
	"github.com/VictoriaMetrics/fastcache"

	"github.com/eth2030/merklectx/store"
)

// Store wraps an underlying store.Store with a fastcache.Cache of recently
// read and written entries.
type Store struct {
	underlying store.Store
	cache      *fastcache.Cache
}

// New wraps underlying with an in-memory cache sized maxBytes.
func New(underlying store.Store, maxBytes int) *Store {
	return &Store{
		underlying: underlying,
		cache:      fastcache.New(maxBytes),
	}
}

func (s *Store) Get(key []byte) ([]byte, bool, error) {
	if v := s.cache.Get(nil, key); v != nil {
		return v, true, nil
	}
	v, ok, err := s.underlying.Get(key)
	if err != nil || !ok {
		return v, ok, err
	}
	s.cache.Set(key, v)
	return v, true, nil
}

func (s *Store) ApplyBatch(batch []store.KV) error {
	if err := s.underlying.ApplyBatch(batch); err != nil {
		return err
	}
	for _, kv := range batch {
		s.cache.Set(kv.Key, kv.Value)
	}
	return nil
}

func (s *Store) IsPersisted() bool { return s.underlying.IsPersisted() }

func (s *Store) Close() error { return s.underlying.Close() }

// Reset clears the cache without touching the underlying store; useful in
// tests that want to force a round trip through the backing store.
func (s *Store) Reset() { s.cache.Reset() }
