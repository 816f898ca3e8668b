package merkle

import "strings"

// emptyTreeHash is the structural hash of the empty Tree, computed once at
// package init so callers can compare a root hash against "definitely
// empty" without resolving it.
var emptyTreeHash = newHasher().hashTree(nil)

func entryKindName(k EntryKind) string {
	switch k {
	case EntryBlob:
		return "blob"
	case EntryTree:
		return "tree"
	case EntryCommit:
		return "commit"
	default:
		return "unknown"
	}
}

func joinPath(path []string) string { return strings.Join(path, "/") }

// resolveTree loads the Tree stored under hash, failing with
// FoundUnexpectedStructure if the entry is not a Tree.
func (s *staging) resolveTree(hash Hash) (*Tree, error) {
	if hash == emptyTreeHash {
		return newTree(), nil
	}
	e, err := s.get(hash)
	if err != nil {
		return nil, err
	}
	if e.Kind != EntryTree {
		return nil, &FoundUnexpectedStructure{Sought: "tree", Found: entryKindName(e.Kind)}
	}
	return e.Tree, nil
}

// resolveBlob loads the bytes stored under hash, failing with
// FoundUnexpectedStructure if the entry is not a Blob.
func (s *staging) resolveBlob(hash Hash) ([]byte, error) {
	e, err := s.get(hash)
	if err != nil {
		return nil, err
	}
	if e.Kind != EntryBlob {
		return nil, &FoundUnexpectedStructure{Sought: "blob", Found: entryKindName(e.Kind)}
	}
	return e.Blob, nil
}

// findTree resolves the Tree reachable from root by following path,
// returning root itself for an empty path. A missing segment, or a Blob
// encountered before the path is exhausted, yields an empty Tree rather
// than an error: the caller is expected to treat that as "nothing here
// yet" (Get/GetByPrefix) or "overwrite with a fresh subtree" (Set/Copy).
// A NonLeaf node whose hash resolves to anything other than a Tree (e.g. a
// Commit) fails with FoundUnexpectedStructure from resolveTree.
func findTree(st *staging, root *Tree, path []string) (*Tree, error) {
	cur := root
	for _, seg := range path {
		child, ok := cur.Get(seg)
		if !ok {
			return newTree(), nil
		}
		if child.Kind != kindNonLeaf {
			return newTree(), nil
		}
		t, err := st.resolveTree(child.Hash)
		if err != nil {
			return nil, err
		}
		cur = t
	}
	return cur, nil
}

// findNode resolves the Node at path's final segment, reporting
// ValueNotFound if it is absent. Intermediate segments are resolved via
// the same leniency as findTree.
func findNode(st *staging, root *Tree, path []string) (Node, error) {
	if len(path) == 0 {
		return Node{}, KeyEmpty
	}
	parent, err := findTree(st, root, path[:len(path)-1])
	if err != nil {
		return Node{}, err
	}
	node, ok := parent.Get(path[len(path)-1])
	if !ok {
		return Node{}, &ValueNotFound{Key: joinPath(path)}
	}
	return node, nil
}

// setNodeAtPath returns a copy-on-write root with node placed at path,
// staging every newly created intermediate Tree along the way. A missing
// intermediate segment, or one that currently names a Blob, is silently
// replaced by a fresh empty Tree so the insert can proceed.
func setNodeAtPath(st *staging, h *hasher, root *Tree, path []string, node Node) (*Tree, error) {
	if len(path) == 0 {
		return nil, KeyEmpty
	}
	seg := path[0]
	if len(path) == 1 {
		return root.withSet(seg, node), nil
	}
	childTree := newTree()
	if existing, ok := root.Get(seg); ok && existing.Kind == kindNonLeaf {
		t, err := st.resolveTree(existing.Hash)
		if err != nil {
			return nil, err
		}
		childTree = t
	}
	newChildTree, err := setNodeAtPath(st, h, childTree, path[1:], node)
	if err != nil {
		return nil, err
	}
	newChildHash := st.put(h, treeEntryOf(newChildTree))
	return root.withSet(seg, nonLeafNode(newChildHash)), nil
}

// deleteAtPath removes whatever node (blob or tree) sits at path, applying
// empty-tree elision up the chain: a Tree left with zero children is
// removed from its parent rather than staged as an empty Tree. Deleting an
// already-absent path, or the empty path naming the root itself, is a
// silent no-op: root is returned unchanged.
func deleteAtPath(st *staging, h *hasher, root *Tree, path []string) (*Tree, error) {
	if len(path) == 0 {
		return root, nil
	}
	seg := path[0]
	child, ok := root.Get(seg)
	if !ok {
		return root, nil
	}
	if len(path) == 1 {
		return root.withDelete(seg), nil
	}
	if child.Kind != kindNonLeaf {
		return root, nil
	}
	childTree, err := st.resolveTree(child.Hash)
	if err != nil {
		return nil, err
	}
	newChildTree, err := deleteAtPath(st, h, childTree, path[1:])
	if err != nil {
		return nil, err
	}
	if newChildTree.Len() == 0 {
		return root.withDelete(seg), nil
	}
	newChildHash := st.put(h, treeEntryOf(newChildTree))
	return root.withSet(seg, nonLeafNode(newChildHash)), nil
}
