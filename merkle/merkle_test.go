package merkle

import (
	"encoding/json"
	"testing"

	"github.com/eth2030/merklectx/store"
)

func newTestEngine() *Engine {
	return New(store.NewMemStore())
}

func mustSet(t *testing.T, e *Engine, key string, value []byte) {
	t.Helper()
	if err := e.Set(key, value); err != nil {
		t.Fatalf("Set(%q) = %v", key, err)
	}
}

func mustCommit(t *testing.T, e *Engine, ts uint64, author, message string) Hash {
	t.Helper()
	h, err := e.Commit(author, message, ts)
	if err != nil {
		t.Fatalf("Commit() = %v", err)
	}
	return h
}

func hasPrefix(h Hash, want [4]byte) bool {
	return h[0] == want[0] && h[1] == want[1] && h[2] == want[2] && h[3] == want[3]
}

// -- Pinned hash vectors (spec.md section 8) --

func TestCommitHash_GenesisVector(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "a", []byte{97, 98, 99})
	got := mustCommit(t, e, 0, "Tezos", "Genesis")
	want := [4]byte{0xCF, 0x95, 0x18, 0x33}
	if !hasPrefix(got, want) {
		t.Fatalf("commit hash = %s, want prefix %x", got, want)
	}
}

func TestCommitHash_SecondVector(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "a", []byte{97, 98, 99})
	mustCommit(t, e, 0, "Tezos", "Genesis")

	mustSet(t, e, "data/x", []byte{97})
	got := mustCommit(t, e, 0, "Tezos", "")
	want := [4]byte{0xCA, 0x7B, 0xC7, 0x02}
	if !hasPrefix(got, want) {
		t.Fatalf("commit hash = %s, want prefix %x", got, want)
	}
}

func TestCommitHash_CopyDeleteVector(t *testing.T) {
	e := newTestEngine()
	mustCommit(t, e, 0, "Tezos", "Genesis")

	mustSet(t, e, "data/a/x", []byte{97})
	if err := e.Copy("data/a", "data/b"); err != nil {
		t.Fatalf("Copy() = %v", err)
	}
	if err := e.Delete("data/b/x"); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	got := mustCommit(t, e, 0, "Tezos", "")
	want := [4]byte{0x9B, 0xB0, 0x0D, 0x6E}
	if !hasPrefix(got, want) {
		t.Fatalf("commit hash = %s, want prefix %x", got, want)
	}
}

func TestTreeHash_FiveKeyVector(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "a/foo", []byte{97, 98, 99})
	mustSet(t, e, "b/boo", []byte{97, 98})
	mustSet(t, e, "a/aaa", []byte{97, 98, 99, 100})
	mustSet(t, e, "x", []byte{97})
	mustSet(t, e, "one/two/three", []byte{97})

	got := e.hasher.hashTree(e.root.sortedEntries())
	want := [4]byte{0xDB, 0xAE, 0xD7, 0xB6}
	if !hasPrefix(got, want) {
		t.Fatalf("tree hash = %s, want prefix %x", got, want)
	}
}

// -- Hash invariants --

func TestHashTree_OrderIndependent(t *testing.T) {
	h := newHasher()
	v1 := h.hashBlob([]byte("v1"))
	h2 := h.hashBlob([]byte("v2"))

	a := []treeEntry{
		{segment: "a", node: leafNode(v1)},
		{segment: "b", node: nonLeafNode(h2)},
	}
	b := []treeEntry{
		{segment: "b", node: nonLeafNode(h2)},
		{segment: "a", node: leafNode(v1)},
	}
	if h.hashTree(a) != h.hashTree(b) {
		t.Fatal("tree hash depends on insertion order, want canonical (sorted) order")
	}
}

func TestEntry_RoundTrip(t *testing.T) {
	h := newHasher()
	child := h.hashBlob([]byte("child"))
	tr := newTree()
	tr.children["seg"] = leafNode(child)
	parent := h.hashBlob([]byte("parent"))

	entries := []Entry{
		blobEntry([]byte("hello")),
		treeEntryOf(tr),
		commitEntry(&Commit{Root: child, Parent: &parent, Time: 42, Author: "a", Message: "m"}),
		commitEntry(&Commit{Root: child, Time: 1}),
	}
	for i, e := range entries {
		enc, err := encodeEntry(e)
		if err != nil {
			t.Fatalf("entry %d: encode: %v", i, err)
		}
		dec, err := decodeEntry(enc)
		if err != nil {
			t.Fatalf("entry %d: decode: %v", i, err)
		}
		if hashEntry(h, e) != hashEntry(h, dec) {
			t.Fatalf("entry %d: round trip changed hash", i)
		}
	}
}

// -- Algebraic laws --

func TestSetThenGet(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "k", []byte{1, 2, 3})
	v, err := e.Get("k")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if string(v) != "\x01\x02\x03" {
		t.Fatalf("Get() = %v, want [1 2 3]", v)
	}
}

func TestSetOverwrite(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "k", []byte{1})
	mustSet(t, e, "k", []byte{2})
	v, err := e.Get("k")
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if len(v) != 1 || v[0] != 2 {
		t.Fatalf("Get() = %v, want [2]", v)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "k", []byte{1})
	if err := e.Delete("k"); err != nil {
		t.Fatalf("first Delete() = %v", err)
	}
	if err := e.Delete("k"); err != nil {
		t.Fatalf("second Delete() = %v", err)
	}
	if _, err := e.Get("k"); err == nil {
		t.Fatal("Get() after delete succeeded, want ValueNotFound")
	} else if _, ok := err.(*ValueNotFound); !ok {
		t.Fatalf("Get() after delete = %v (%T), want *ValueNotFound", err, err)
	}
}

func TestDeleteAbsentKeyIsNoOp(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "other", []byte{9})
	beforeRoot := e.root
	if err := e.Delete("never/set"); err != nil {
		t.Fatalf("Delete() on absent key = %v, want nil", err)
	}
	if e.root != beforeRoot {
		t.Fatal("Delete() on absent key mutated the root")
	}
}

func TestDeleteEmptyKeyIsNoOp(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "a/b", []byte{9})
	beforeRoot := e.root
	if err := e.Delete(""); err != nil {
		t.Fatalf("Delete(\"\") = %v, want nil", err)
	}
	if e.root != beforeRoot {
		t.Fatal("Delete(\"\") mutated the root")
	}
	v, err := e.Get("a/b")
	if err != nil || len(v) != 1 || v[0] != 9 {
		t.Fatalf("Get(a/b) after Delete(\"\") = %v, %v, want [9]", v, err)
	}
}

func TestCopyThenGet(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "a/b/c", []byte{1})
	if err := e.Copy("a", "z"); err != nil {
		t.Fatalf("Copy() = %v", err)
	}
	v, err := e.Get("z/b/c")
	if err != nil {
		t.Fatalf("Get(z/b/c) = %v", err)
	}
	if len(v) != 1 || v[0] != 1 {
		t.Fatalf("Get(z/b/c) = %v, want [1]", v)
	}
	// source unchanged
	v2, err := e.Get("a/b/c")
	if err != nil {
		t.Fatalf("Get(a/b/c) = %v", err)
	}
	if len(v2) != 1 || v2[0] != 1 {
		t.Fatalf("Get(a/b/c) = %v, want [1]", v2)
	}
}

func TestCopyToRoot(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "a/b", []byte{5})
	mustSet(t, e, "unrelated", []byte{9})
	if err := e.Copy("a", ""); err != nil {
		t.Fatalf("Copy() = %v", err)
	}
	if _, err := e.Get("unrelated"); err == nil {
		t.Fatal("Get(unrelated) succeeded after Copy to root, want it gone")
	}
	v, err := e.Get("b")
	if err != nil {
		t.Fatalf("Get(b) = %v", err)
	}
	if len(v) != 1 || v[0] != 5 {
		t.Fatalf("Get(b) = %v, want [5]", v)
	}
}

// -- Checkout semantics --

func TestCheckoutDiscardsStaging(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "k", []byte{1})
	c1 := mustCommit(t, e, 0, "", "")
	mustSet(t, e, "k", []byte{3})
	mustCommit(t, e, 0, "", "")
	mustSet(t, e, "k", []byte{8})

	if err := e.Checkout(c1); err != nil {
		t.Fatalf("Checkout() = %v", err)
	}
	v, err := e.Get("k")
	if err != nil {
		t.Fatalf("Get() after checkout = %v", err)
	}
	if len(v) != 1 || v[0] != 1 {
		t.Fatalf("Get() after checkout = %v, want [1]", v)
	}
}

// -- End-to-end scenarios (spec.md section 8) --

func TestScenario_DeletedEntryVisibleInHistory(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "a/b/c", []byte{2})
	c1 := mustCommit(t, e, 0, "", "")
	if err := e.Delete("a/b/c"); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	c2 := mustCommit(t, e, 0, "", "")

	v, err := e.GetHistory(c1, "a/b/c")
	if err != nil {
		t.Fatalf("GetHistory(c1) = %v", err)
	}
	if len(v) != 1 || v[0] != 2 {
		t.Fatalf("GetHistory(c1) = %v, want [2]", v)
	}

	if _, err := e.GetHistory(c2, "a/b/c"); err == nil {
		t.Fatal("GetHistory(c2) succeeded, want ValueNotFound")
	} else if _, ok := err.(*ValueNotFound); !ok {
		t.Fatalf("GetHistory(c2) = %v (%T), want *ValueNotFound", err, err)
	}
}

func TestScenario_PrefixRead(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "data/a/x/y", []byte{5, 6})
	mustSet(t, e, "data/b/x/y", []byte{7, 8})
	mustSet(t, e, "data/c", []byte{1, 2})
	mustSet(t, e, "adata/b/x/y", []byte{9, 10})
	commit := mustCommit(t, e, 0, "Tezos", "")

	// Reads are commit-addressed: they must resolve from the named commit's
	// root, not whatever happens to be staged, so clobber the working tree
	// before reading back.
	mustSet(t, e, "data/c", []byte{0xFF})

	full, err := e.GetContextTreeByPrefixAt(commit, "")
	if err != nil {
		t.Fatalf("GetContextTreeByPrefixAt(commit, \"\") = %v", err)
	}
	const wantFull = `{"adata":{"b":{"x":{"y":"090a"}}},"data":{"a":{"x":{"y":"0506"}},"b":{"x":{"y":"0708"}},"c":"0102"}}`
	assertJSONEqual(t, full, wantFull)

	sub, err := e.GetContextTreeByPrefixAt(commit, "data")
	if err != nil {
		t.Fatalf("GetContextTreeByPrefixAt(commit, data) = %v", err)
	}
	const wantSub = `{"a":{"x":{"y":"0506"}},"b":{"x":{"y":"0708"}},"c":"0102"}`
	assertJSONEqual(t, sub, wantSub)

	kv, err := e.GetKeyValuesByPrefix(commit, "data")
	if err != nil {
		t.Fatalf("GetKeyValuesByPrefix(commit, data) = %v", err)
	}
	want := map[string]string{
		"data/a/x/y": "0506",
		"data/b/x/y": "0708",
		"data/c":     "0102",
	}
	if len(kv) != len(want) {
		t.Fatalf("GetKeyValuesByPrefix(commit, data) = %v, want %v", kv, want)
	}
	for k, wantHex := range want {
		if hexString(kv[k]) != wantHex {
			t.Fatalf("GetKeyValuesByPrefix(commit, data)[%q] = %x, want %s", k, kv[k], wantHex)
		}
	}
}

func assertJSONEqual(t *testing.T, got, want string) {
	t.Helper()
	var g, w any
	if err := json.Unmarshal([]byte(got), &g); err != nil {
		t.Fatalf("invalid JSON produced: %v: %s", err, got)
	}
	if err := json.Unmarshal([]byte(want), &w); err != nil {
		t.Fatalf("invalid JSON in test: %v", err)
	}
	gb, _ := json.Marshal(g)
	wb, _ := json.Marshal(w)
	if string(gb) != string(wb) {
		t.Fatalf("JSON mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestScenario_PersistenceOverReopen(t *testing.T) {
	backing := store.NewMemStore()
	e := New(backing)
	mustSet(t, e, "k", []byte{2})
	c1 := mustCommit(t, e, 0, "", "")

	reopened := New(backing)
	v, err := reopened.GetHistory(c1, "k")
	if err != nil {
		t.Fatalf("GetHistory() after reopen = %v", err)
	}
	if len(v) != 1 || v[0] != 2 {
		t.Fatalf("GetHistory() after reopen = %v, want [2]", v)
	}
}

func TestScenario_ErrorSurfaces(t *testing.T) {
	e := newTestEngine()
	if _, err := e.Get(""); err != KeyEmpty {
		t.Fatalf("Get(\"\") = %v, want KeyEmpty", err)
	}
	if _, err := e.Get("a"); err == nil {
		t.Fatal("Get(a) on empty store succeeded, want ValueNotFound")
	} else if _, ok := err.(*ValueNotFound); !ok {
		t.Fatalf("Get(a) = %v (%T), want *ValueNotFound", err, err)
	}
}

func TestGet_ValueIsNotABlob(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "a/b", []byte{1})
	if _, err := e.Get("a"); err == nil {
		t.Fatal("Get(a) succeeded, want ValueIsNotABlob")
	} else if _, ok := err.(*ValueIsNotABlob); !ok {
		t.Fatalf("Get(a) = %v (%T), want *ValueIsNotABlob", err, err)
	}
}

func TestCheckout_UnknownCommit(t *testing.T) {
	e := newTestEngine()
	if err := e.Checkout(Hash{0xFF}); err == nil {
		t.Fatal("Checkout(unknown) succeeded, want an error")
	}
}

func TestLastCommit_NoneYet(t *testing.T) {
	e := newTestEngine()
	if _, err := e.LastCommit(); err != CommitRootNotFound {
		t.Fatalf("LastCommit() = %v, want CommitRootNotFound", err)
	}
}

func TestWalkHistory(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "k", []byte{1})
	c1 := mustCommit(t, e, 1, "a1", "m1")
	mustSet(t, e, "k", []byte{2})
	c2 := mustCommit(t, e, 2, "a2", "m2")

	commits, err := e.WalkHistory(c2, 0)
	if err != nil {
		t.Fatalf("WalkHistory() = %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("WalkHistory() returned %d commits, want 2", len(commits))
	}
	if commits[0].Message != "m2" || commits[1].Message != "m1" {
		t.Fatalf("WalkHistory() order = %+v, want [m2 m1]", commits)
	}
	_ = c1
}

func TestStats_WarmupDiscard(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < warmupMeasurements+5; i++ {
		mustSet(t, e, "k", []byte{byte(i)})
	}
	s := e.Stats()
	if s.SetCalls != uint64(warmupMeasurements+5) {
		t.Fatalf("SetCalls = %d, want %d", s.SetCalls, warmupMeasurements+5)
	}
}

func TestCommit_EmptyRootAllowed(t *testing.T) {
	e := newTestEngine()
	mustSet(t, e, "k", []byte{1})
	if err := e.Delete("k"); err != nil {
		t.Fatalf("Delete() = %v", err)
	}
	if e.root.Len() != 0 {
		t.Fatalf("root has %d entries after deleting the only key, want 0", e.root.Len())
	}
	if _, err := e.Commit("", "empty", 0); err != nil {
		t.Fatalf("Commit() with empty root = %v", err)
	}
}
