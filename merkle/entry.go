package merkle

import (
	"sort"

	"github.com/eth2030/merklectx/internal/rlp"
)

// Node is an entry of a Tree: a kind tag plus the hash of the referenced
// child (a Blob for Leaf, another Tree for NonLeaf).
type Node struct {
	Kind kind
	Hash Hash
}

func leafNode(h Hash) Node    { return Node{Kind: kindLeaf, Hash: h} }
func nonLeafNode(h Hash) Node { return Node{Kind: kindNonLeaf, Hash: h} }

// Tree is an ordered mapping from path segment to Node. The zero value is
// an empty tree. Tree supports copy-on-write cloning: Clone returns a
// shallow copy whose subsequent edits never mutate the original.
type Tree struct {
	children map[string]Node
}

// newTree returns an empty Tree.
func newTree() *Tree {
	return &Tree{children: make(map[string]Node)}
}

// Len returns the number of direct children.
func (t *Tree) Len() int {
	if t == nil {
		return 0
	}
	return len(t.children)
}

// Get returns the Node at segment and whether it is present.
func (t *Tree) Get(segment string) (Node, bool) {
	if t == nil {
		return Node{}, false
	}
	n, ok := t.children[segment]
	return n, ok
}

// Clone returns a copy-on-write clone: the returned Tree shares no mutable
// state with t, so editing the clone never mutates t.
func (t *Tree) Clone() *Tree {
	nt := newTree()
	if t == nil {
		return nt
	}
	for k, v := range t.children {
		nt.children[k] = v
	}
	return nt
}

// withSet returns a clone of t with segment mapped to n.
func (t *Tree) withSet(segment string, n Node) *Tree {
	nt := t.Clone()
	nt.children[segment] = n
	return nt
}

// withDelete returns a clone of t with segment removed.
func (t *Tree) withDelete(segment string) *Tree {
	nt := t.Clone()
	delete(nt.children, segment)
	return nt
}

// sortedEntries returns the tree's children ordered by ascending segment
// byte order -- the order is load-bearing, it participates in the tree hash.
func (t *Tree) sortedEntries() []treeEntry {
	if t == nil {
		return nil
	}
	entries := make([]treeEntry, 0, len(t.children))
	for seg, n := range t.children {
		entries = append(entries, treeEntry{segment: seg, node: n})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].segment < entries[j].segment })
	return entries
}

// Commit is a named, hash-addressed snapshot: a root tree hash, an
// optional parent commit hash, and caller-supplied metadata.
type Commit struct {
	Parent  *Hash
	Root    Hash
	Time    uint64
	Author  string
	Message string
}

// EntryKind discriminates the tagged union persisted under a single Hash.
type EntryKind byte

const (
	EntryBlob EntryKind = iota
	EntryTree
	EntryCommit
)

// Entry is the unit of persistence: exactly one of Blob, Tree, or Commit
// is meaningful, selected by Kind.
type Entry struct {
	Kind   EntryKind
	Blob   []byte
	Tree   *Tree
	Commit *Commit
}

func blobEntry(b []byte) Entry   { return Entry{Kind: EntryBlob, Blob: b} }
func treeEntryOf(t *Tree) Entry  { return Entry{Kind: EntryTree, Tree: t} }
func commitEntry(c *Commit) Entry { return Entry{Kind: EntryCommit, Commit: c} }

// hashEntry returns the structural Hash of an Entry, per the framing
// pinned in the package-level hasher.
func hashEntry(h *hasher, e Entry) Hash {
	switch e.Kind {
	case EntryBlob:
		return h.hashBlob(e.Blob)
	case EntryTree:
		return h.hashTree(e.Tree.sortedEntries())
	case EntryCommit:
		return h.hashCommit(*e.Commit)
	default:
		panic("merkle: unknown entry kind")
	}
}

// ---------------------------------------------------------------------------
// Codec (C2): a bijective binary encoding of the tagged union, built on the
// package's trimmed RLP codec. Any bijective, stable-across-restarts codec
// satisfies the spec; this one is chosen because it is already the pack's
// idiomatic serialization tool for structured records.
// ---------------------------------------------------------------------------

type rlpTreeChild struct {
	Segment string
	Leaf    bool
	Hash    Hash
}

type rlpTree struct {
	Children []rlpTreeChild
}

type rlpCommit struct {
	HasParent bool
	Parent    Hash
	Root      Hash
	Time      uint64
	Author    string
	Message   string
}

// encodeEntry serializes e to its self-describing byte form: a one-byte
// kind tag followed by the RLP encoding of the kind-specific payload.
func encodeEntry(e Entry) ([]byte, error) {
	var payload []byte
	var err error
	switch e.Kind {
	case EntryBlob:
		payload, err = rlp.EncodeToBytes(e.Blob)
	case EntryTree:
		rt := rlpTree{Children: make([]rlpTreeChild, 0, e.Tree.Len())}
		for _, te := range e.Tree.sortedEntries() {
			rt.Children = append(rt.Children, rlpTreeChild{
				Segment: te.segment,
				Leaf:    te.node.Kind == kindLeaf,
				Hash:    te.node.Hash,
			})
		}
		payload, err = rlp.EncodeToBytes(rt)
	case EntryCommit:
		rc := rlpCommit{Root: e.Commit.Root, Time: e.Commit.Time, Author: e.Commit.Author, Message: e.Commit.Message}
		if e.Commit.Parent != nil {
			rc.HasParent = true
			rc.Parent = *e.Commit.Parent
		}
		payload, err = rlp.EncodeToBytes(rc)
	default:
		panic("merkle: unknown entry kind")
	}
	if err != nil {
		return nil, &SerializationError{Cause: err}
	}
	out := make([]byte, 1+len(payload))
	out[0] = byte(e.Kind)
	copy(out[1:], payload)
	return out, nil
}

// decodeEntry is the inverse of encodeEntry. Decode failures indicate
// corruption or a codec bug and are reported as SerializationError.
func decodeEntry(data []byte) (Entry, error) {
	if len(data) == 0 {
		return Entry{}, &SerializationError{Cause: errEmptyEntry}
	}
	kindTag := EntryKind(data[0])
	body := data[1:]
	switch kindTag {
	case EntryBlob:
		var b []byte
		if err := rlp.DecodeBytes(body, &b); err != nil {
			return Entry{}, &SerializationError{Cause: err}
		}
		return blobEntry(b), nil
	case EntryTree:
		var rt rlpTree
		if err := rlp.DecodeBytes(body, &rt); err != nil {
			return Entry{}, &SerializationError{Cause: err}
		}
		t := newTree()
		for _, c := range rt.Children {
			k := kindNonLeaf
			if c.Leaf {
				k = kindLeaf
			}
			t.children[c.Segment] = Node{Kind: k, Hash: c.Hash}
		}
		return treeEntryOf(t), nil
	case EntryCommit:
		var rc rlpCommit
		if err := rlp.DecodeBytes(body, &rc); err != nil {
			return Entry{}, &SerializationError{Cause: err}
		}
		c := &Commit{Root: rc.Root, Time: rc.Time, Author: rc.Author, Message: rc.Message}
		if rc.HasParent {
			p := rc.Parent
			c.Parent = &p
		}
		return commitEntry(c), nil
	default:
		return Entry{}, &SerializationError{Cause: errUnknownEntryKind}
	}
}
