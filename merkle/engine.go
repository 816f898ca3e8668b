// Package merkle implements the content-addressed, Git-like key/value
// store: a staging area of edits layered over a backing store.Store,
// committed as immutable, hash-identified snapshots. The engine is
// single-writer and not safe for concurrent use; callers needing
// concurrent access must wrap it in their own mutex, the same contract
// the teacher's NodeDatabase places on its callers.
package merkle

import (
	"encoding/json"
	"time"

	"github.com/eth2030/merklectx/log"
	"github.com/eth2030/merklectx/store"
)

var logger = log.Of(log.SubsystemEngine)

// Engine is the store's single-writer entry point (C6).
type Engine struct {
	store   store.Store
	staging *staging
	hasher  *hasher

	root      *Tree
	lastCommit *Hash

	stats commitStats
}

// New returns an Engine backed by s, starting from an empty working tree
// with no commit history.
func New(s store.Store) *Engine {
	return &Engine{
		store:   s,
		staging: newStaging(s),
		hasher:  newHasher(),
		root:    newTree(),
	}
}

func splitKey(key string) []string {
	if key == "" {
		return nil
	}
	return splitNonEmpty(key, '/')
}

func splitNonEmpty(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep {
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// Get returns the blob value stored at key.
func (e *Engine) Get(key string) ([]byte, error) {
	path := splitKey(key)
	if len(path) == 0 {
		return nil, KeyEmpty
	}
	node, err := findNode(e.staging, e.root, path)
	if err != nil {
		return nil, err
	}
	if node.Kind != kindLeaf {
		return nil, &ValueIsNotABlob{Key: key}
	}
	return e.staging.resolveBlob(node.Hash)
}

// Set writes value at key, replacing whatever was there.
func (e *Engine) Set(key string, value []byte) error {
	start := time.Now()
	path := splitKey(key)
	if len(path) == 0 {
		return KeyEmpty
	}
	blobHash := e.staging.put(e.hasher, blobEntry(value))
	newRoot, err := setNodeAtPath(e.staging, e.hasher, e.root, path, leafNode(blobHash))
	if err != nil {
		return err
	}
	e.root = newRoot
	e.stats.recordSet(time.Since(start))
	return nil
}

// Delete removes the leaf or subtree at key, applying empty-tree elision
// up the path to the root. Deleting an already-absent key is a silent
// no-op: it returns nil, not an error. An empty key names the root itself;
// deleting it is also a no-op, leaving the working tree unchanged, rather
// than an error.
func (e *Engine) Delete(key string) error {
	path := splitKey(key)
	if len(path) == 0 {
		return nil
	}
	newRoot, err := deleteAtPath(e.staging, e.hasher, e.root, path)
	if err != nil {
		return err
	}
	e.root = newRoot
	return nil
}

// RemoveRecursively is an alias of Delete: since any node (blob or tree)
// is removed wholesale, there is nothing additional to recurse into.
func (e *Engine) RemoveRecursively(key string) error {
	return e.Delete(key)
}

// Copy grafts the subtree at src onto dst as a NonLeaf node. src need not
// exist (an absent or blob-shaped src yields an empty subtree, mirroring
// findTree's leniency); dst == "" replaces the whole working root. Only
// the tree structure is duplicated, not its contents: entries are
// immutable and content-addressed, so grafting the same hash elsewhere is
// O(depth), never O(size).
func (e *Engine) Copy(src, dst string) error {
	srcPath := splitKey(src)
	dstPath := splitKey(dst)

	subtree, err := findTree(e.staging, e.root, srcPath)
	if err != nil {
		return err
	}
	if len(dstPath) == 0 {
		e.root = subtree
		return nil
	}
	subtreeHash := e.staging.put(e.hasher, treeEntryOf(subtree))
	newRoot, err := setNodeAtPath(e.staging, e.hasher, e.root, dstPath, nonLeafNode(subtreeHash))
	if err != nil {
		return err
	}
	e.root = newRoot
	return nil
}

// Commit seals the current working tree into an immutable Commit entry,
// sweeping every entry reachable from it into one atomic store write, then
// clears staging. Entries from abandoned edits (e.g. a tree replaced by a
// later Set before ever being committed) are swept away with staging and
// never reach the store.
func (e *Engine) Commit(author, message string, ts uint64) (Hash, error) {
	rootHash := e.staging.put(e.hasher, treeEntryOf(e.root))
	c := &Commit{Root: rootHash, Time: ts, Author: author, Message: message}
	if e.lastCommit != nil {
		p := *e.lastCommit
		c.Parent = &p
	}
	commitHash := e.staging.put(e.hasher, commitEntry(c))

	batch, err := e.sweepReachable(commitHash)
	if err != nil {
		return Hash{}, err
	}
	if err := e.store.ApplyBatch(batch); err != nil {
		return Hash{}, &StoreError{Op: "commit", Cause: err}
	}

	e.staging.clear()
	ch := commitHash
	e.lastCommit = &ch
	logger.Info("committed", "hash", commitHash.String(), "root", rootHash.String(), "entries", len(batch))
	return commitHash, nil
}

// sweepReachable walks the staged entry graph depth-first from root,
// collecting every entry reachable from it into an atomic write batch.
// It is iterative (an explicit stack), since a pathologically deep tree
// must not blow the Go call stack the way a recursive walk would.
func (e *Engine) sweepReachable(root Hash) ([]store.KV, error) {
	visited := make(map[Hash]bool)
	stack := []Hash{root}
	var batch []store.KV

	for len(stack) > 0 {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[h] {
			continue
		}
		visited[h] = true

		entry, ok := e.staging.entries[h]
		if !ok {
			// Already persisted in an earlier commit; nothing to sweep.
			continue
		}
		encoded, err := encodeEntry(entry)
		if err != nil {
			return nil, err
		}
		batch = append(batch, store.KV{Key: h.Bytes(), Value: encoded})

		switch entry.Kind {
		case EntryTree:
			for _, child := range entry.Tree.sortedEntries() {
				stack = append(stack, child.node.Hash)
			}
		case EntryCommit:
			// The parent commit was already swept by its own Commit call
			// and lives in the store, not staging; nothing to add here.
			stack = append(stack, entry.Commit.Root)
		}
	}
	return batch, nil
}

// Checkout discards all staged edits and makes commitHash's tree the
// current working tree. If commitHash cannot be resolved to a commit and
// its root tree, the working tree and staging are left unchanged.
func (e *Engine) Checkout(commitHash Hash) error {
	entry, err := e.staging.get(commitHash)
	if err != nil {
		return err
	}
	if entry.Kind != EntryCommit {
		return &FoundUnexpectedStructure{Sought: "commit", Found: entryKindName(entry.Kind)}
	}
	tree, err := e.staging.resolveTree(entry.Commit.Root)
	if err != nil {
		return err
	}
	e.staging.clear()
	e.root = tree
	ch := commitHash
	e.lastCommit = &ch
	return nil
}

// LastCommit returns the hash of the most recent Commit, or
// CommitRootNotFound if nothing has been committed yet.
func (e *Engine) LastCommit() (Hash, error) {
	if e.lastCommit == nil {
		return Hash{}, CommitRootNotFound
	}
	return *e.lastCommit, nil
}

// GetHistory loads commitHash and reads key from its root tree, entirely
// independent of the engine's current staging/working state. The result
// for a given (commitHash, key) never changes: commits are immutable.
func (e *Engine) GetHistory(commitHash Hash, key string) ([]byte, error) {
	path := splitKey(key)
	if len(path) == 0 {
		return nil, KeyEmpty
	}
	root, err := e.resolveCommitRoot(commitHash)
	if err != nil {
		return nil, err
	}
	node, err := findNode(e.staging, root, path)
	if err != nil {
		return nil, err
	}
	if node.Kind != kindLeaf {
		return nil, &ValueIsNotABlob{Key: key}
	}
	return e.staging.resolveBlob(node.Hash)
}

// WalkHistory returns the Commits from commitHash back to the root
// ancestor, most recent first, stopping early once limit commits have
// been collected (limit <= 0 means unbounded).
func (e *Engine) WalkHistory(commitHash Hash, limit int) ([]Commit, error) {
	var out []Commit
	cur := commitHash
	for limit <= 0 || len(out) < limit {
		entry, err := e.staging.get(cur)
		if err != nil {
			return nil, err
		}
		if entry.Kind != EntryCommit {
			return nil, &FoundUnexpectedStructure{Sought: "commit", Found: entryKindName(entry.Kind)}
		}
		out = append(out, *entry.Commit)
		if entry.Commit.Parent == nil {
			return out, nil
		}
		parent := *entry.Commit.Parent
		if _, err := e.staging.get(parent); err != nil {
			if _, ok := err.(*EntryNotFound); ok {
				return nil, &MissingAncestorCommit{Hash: parent}
			}
			return nil, err
		}
		cur = parent
	}
	return out, nil
}

// GetByPrefix returns every blob under key, read from the current working
// tree, as a flat map from full "/" joined key to value.
func (e *Engine) GetByPrefix(key string) (map[string][]byte, error) {
	path := splitKey(key)
	tree, err := findTree(e.staging, e.root, path)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	if err := e.collectBlobs(tree, path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetKeyValuesByPrefix loads commitHash and returns every blob under key
// from ITS root tree, independent of the engine's current staging/working
// state — the commit-addressed counterpart to GetByPrefix, named to mirror
// the RPC surface of the original context layer.
func (e *Engine) GetKeyValuesByPrefix(commitHash Hash, key string) (map[string][]byte, error) {
	root, err := e.resolveCommitRoot(commitHash)
	if err != nil {
		return nil, err
	}
	path := splitKey(key)
	tree, err := findTree(e.staging, root, path)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte)
	if err := e.collectBlobs(tree, path, out); err != nil {
		return nil, err
	}
	return out, nil
}

// resolveCommitRoot loads commitHash and returns its root Tree, the same
// way GetHistory resolves a commit independent of the current working
// tree.
func (e *Engine) resolveCommitRoot(commitHash Hash) (*Tree, error) {
	entry, err := e.staging.get(commitHash)
	if err != nil {
		return nil, err
	}
	if entry.Kind != EntryCommit {
		return nil, &FoundUnexpectedStructure{Sought: "commit", Found: entryKindName(entry.Kind)}
	}
	return e.staging.resolveTree(entry.Commit.Root)
}

func (e *Engine) collectBlobs(tree *Tree, prefix []string, out map[string][]byte) error {
	for _, entry := range tree.sortedEntries() {
		full := append(append([]string{}, prefix...), entry.segment)
		if entry.node.Kind == kindLeaf {
			b, err := e.staging.resolveBlob(entry.node.Hash)
			if err != nil {
				logger.Warn("skipping unreadable blob under prefix", "key", joinPath(full), "err", err)
				continue
			}
			out[joinPath(full)] = b
			continue
		}
		childTree, err := e.staging.resolveTree(entry.node.Hash)
		if err != nil {
			logger.Warn("skipping unreadable subtree under prefix", "key", joinPath(full), "err", err)
			continue
		}
		if err := e.collectBlobs(childTree, full, out); err != nil {
			return err
		}
	}
	return nil
}

// GetContextTreeByPrefix renders the subtree at key from the current
// working tree as JSON: blob leaves become hex strings, subtrees become
// nested objects.
func (e *Engine) GetContextTreeByPrefix(key string) (string, error) {
	path := splitKey(key)
	tree, err := findTree(e.staging, e.root, path)
	if err != nil {
		return "", err
	}
	return e.renderContextTree(tree)
}

// GetContextTreeByPrefixAt loads commitHash and renders the subtree at
// prefix from ITS root tree as JSON, independent of the engine's current
// staging/working state — the commit-addressed counterpart to
// GetContextTreeByPrefix.
func (e *Engine) GetContextTreeByPrefixAt(commitHash Hash, prefix string) (string, error) {
	root, err := e.resolveCommitRoot(commitHash)
	if err != nil {
		return "", err
	}
	tree, err := findTree(e.staging, root, splitKey(prefix))
	if err != nil {
		return "", err
	}
	return e.renderContextTree(tree)
}

func (e *Engine) renderContextTree(tree *Tree) (string, error) {
	jt, err := e.jsonTree(tree)
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(jt)
	if err != nil {
		return "", &SerializationError{Cause: err}
	}
	return string(b), nil
}

func (e *Engine) jsonTree(tree *Tree) (map[string]any, error) {
	out := make(map[string]any, tree.Len())
	for _, entry := range tree.sortedEntries() {
		if entry.node.Kind == kindLeaf {
			b, err := e.staging.resolveBlob(entry.node.Hash)
			if err != nil {
				return nil, err
			}
			out[entry.segment] = hexString(b)
			continue
		}
		childTree, err := e.staging.resolveTree(entry.node.Hash)
		if err != nil {
			return nil, err
		}
		sub, err := e.jsonTree(childTree)
		if err != nil {
			return nil, err
		}
		out[entry.segment] = sub
	}
	return out, nil
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0x0f]
	}
	return string(out)
}

// Stats returns a snapshot of cumulative engine activity.
func (e *Engine) Stats() Stats {
	return Stats{
		SetCalls:       e.stats.setCalls.Load(),
		AverageSetTime: e.stats.averageSetTime(),
		StagingSize:    e.staging.size(),
		TreeSize:       e.root.Len(),
	}
}
