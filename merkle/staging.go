package merkle

import "github.com/eth2030/merklectx/store"

// staging is the engine's in-memory working area (C4): entries created by
// Set/Copy/Delete land here first, keyed by their structural hash, and are
// only written to the backing store on Commit. Reads check staging before
// falling back to the store, mirroring how the teacher's NodeDatabase
// layers a dirty map in front of disk.
type staging struct {
	entries map[Hash]Entry
	store   store.Store
}

func newStaging(s store.Store) *staging {
	return &staging{entries: make(map[Hash]Entry), store: s}
}

// put records e under its hash and returns that hash. Re-putting an
// already-staged hash is a no-op beyond the overwrite, since entries are
// content-addressed and therefore idempotent.
func (s *staging) put(h *hasher, e Entry) Hash {
	hash := hashEntry(h, e)
	s.entries[hash] = e
	return hash
}

// get resolves hash to an Entry, checking staging before the backing store.
func (s *staging) get(hash Hash) (Entry, error) {
	if e, ok := s.entries[hash]; ok {
		return e, nil
	}
	raw, ok, err := s.store.Get(hash.Bytes())
	if err != nil {
		return Entry{}, &StoreError{Op: "get", Cause: err}
	}
	if !ok {
		return Entry{}, &EntryNotFound{Hash: hash}
	}
	return decodeEntry(raw)
}

// size reports the number of distinct entries currently staged.
func (s *staging) size() int { return len(s.entries) }

// clear discards all staged entries; called after Commit and Checkout.
func (s *staging) clear() {
	s.entries = make(map[Hash]Entry)
}
