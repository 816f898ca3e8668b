// Package pebblestore adapts a cockroachdb/pebble database to the store.Store
// contract, giving the merkle engine crash-durable persistence across
// process restarts. Grounded on the teacher's core/rawdb adapter pattern:
// a thin wrapper translating the engine's narrow interface onto a real
// embedded-database client.
package pebblestore

import (
	"github.com/cockroachdb/pebble"

	"github.com/eth2030/merklectx/log"
	"github.com/eth2030/merklectx/store"
)

var logger = log.Of(log.SubsystemStore).Backend("pebble")

// DB wraps a *pebble.DB as a store.Store.
type DB struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database rooted at dir.
func Open(dir string) (*DB, error) {
	opts := &pebble.Options{}
	pdb, err := pebble.Open(dir, opts)
	if err != nil {
		logger.Error("failed to open pebble database", "dir", dir, "err", err)
		return nil, err
	}
	logger.Info("opened pebble database", "dir", dir)
	return &DB{db: pdb}, nil
}

func (d *DB) Get(key []byte) ([]byte, bool, error) {
	v, closer, err := d.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	closer.Close()
	return out, true, nil
}

// ApplyBatch writes every pair in a single pebble.Batch, committed with an
// fsync so the write survives a crash immediately after Commit returns.
func (d *DB) ApplyBatch(batch []store.KV) error {
	b := d.db.NewBatch()
	defer b.Close()
	for _, kv := range batch {
		if err := b.Set(kv.Key, kv.Value, nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (d *DB) IsPersisted() bool { return true }

func (d *DB) Close() error { return d.db.Close() }
