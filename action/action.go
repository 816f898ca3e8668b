// Package action translates the external tagged action stream into calls
// against a merkle.Engine (C7). The applier is strictly sequential: it
// consumes one Action at a time in the order given and never reorders or
// batches them, mirroring how the teacher's trie_committer replays a
// changeset one node at a time.
package action

import (
	"strings"

	"github.com/eth2030/merklectx/log"
	"github.com/eth2030/merklectx/merkle"
)

var logger = log.Of(log.SubsystemAction)

// Kind discriminates the tagged operations in the action stream.
type Kind int

const (
	Set Kind = iota
	Copy
	Delete
	RemoveRecursively
	Commit
	Checkout
	Other
)

// Action is one tagged record from the external driver. Fields not used
// by Kind are ignored.
type Action struct {
	Kind    Kind
	Ignored bool

	Key     []string
	FromKey []string
	ToKey   []string
	Value   []byte

	Author  string
	Message string
	Date    int64

	ContextHash merkle.Hash
}

func joinKey(key []string) string { return strings.Join(key, "/") }

// Apply replays one Action against engine. Actions marked Ignored, and any
// Action whose Kind is Other, are skipped without error.
func Apply(engine *merkle.Engine, a Action) error {
	if a.Ignored {
		return nil
	}
	switch a.Kind {
	case Set:
		return engine.Set(joinKey(a.Key), a.Value)
	case Copy:
		return engine.Copy(joinKey(a.FromKey), joinKey(a.ToKey))
	case Delete:
		return engine.Delete(joinKey(a.Key))
	case RemoveRecursively:
		return engine.RemoveRecursively(joinKey(a.Key))
	case Commit:
		_, err := engine.Commit(a.Author, a.Message, uint64(a.Date))
		return err
	case Checkout:
		logger.Debug("checking out commit", "hash", log.ShortHash(a.ContextHash))
		return engine.Checkout(a.ContextHash)
	default:
		logger.Debug("ignoring unrecognized action kind", "kind", a.Kind)
		return nil
	}
}

// ApplyStream replays actions in order, stopping at the first error.
func ApplyStream(engine *merkle.Engine, actions []Action) error {
	for i, a := range actions {
		if err := Apply(engine, a); err != nil {
			logger.Error("action replay failed", "index", i, "kind", a.Kind, "err", err)
			return err
		}
	}
	return nil
}
