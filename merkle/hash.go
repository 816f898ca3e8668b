package merkle

import (
	"encoding/binary"
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// HashLength is the size in bytes of a Hash.
const HashLength = 32

// Hash is the 32-byte Blake2b digest that identifies every persisted Entry.
type Hash [HashLength]byte

// ZeroHash is the zero value of Hash; it never identifies a real entry.
var ZeroHash Hash

// Bytes returns the hash's byte representation.
func (h Hash) Bytes() []byte { return h[:] }

// String returns the lowercase hex encoding of the hash.
func (h Hash) String() string { return hex.EncodeToString(h[:]) }

// IsZero reports whether h is the zero hash.
func (h Hash) IsZero() bool { return h == ZeroHash }

// BytesToHash converts a 32-byte slice to a Hash. It panics if b is not
// exactly 32 bytes; callers working with externally supplied bytes should
// use HashFromBytes instead.
func BytesToHash(b []byte) Hash {
	h, err := HashFromBytes(b)
	if err != nil {
		panic(err)
	}
	return h
}

// HashFromBytes converts a byte slice to a Hash, returning
// HashConversionError if the slice is not exactly HashLength bytes.
func HashFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != HashLength {
		return h, &HashConversionError{Length: len(b)}
	}
	copy(h[:], b)
	return h, nil
}

// HashFromHex parses a lowercase (or mixed-case) hex string into a Hash,
// returning HashConversionError if it is not exactly HashLength bytes once
// decoded.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, &HashConversionError{Length: len(s) / 2}
	}
	return HashFromBytes(b)
}

// kind tags a Node's referenced child as a Blob (Leaf) or a Tree (NonLeaf).
// The encodings are normative: they participate in the tree hash and must
// match byte-for-byte across implementations.
type kind int

const (
	kindNonLeaf kind = iota
	kindLeaf
)

var (
	nonLeafTag = [8]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	leafTag    = [8]byte{0xFF, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
)

func (k kind) tag() [8]byte {
	if k == kindLeaf {
		return leafTag
	}
	return nonLeafTag
}

// hasher computes the structural Blake2b-256 digest of the three entry
// kinds using the framing pinned by spec vectors. It holds no state beyond
// a scratch buffer and is safe to reuse across calls.
type hasher struct {
	scratch [8]byte
}

func newHasher() *hasher {
	return &hasher{}
}

func (h *hasher) putUint64(w blake2bWriter, v uint64) {
	binary.BigEndian.PutUint64(h.scratch[:], v)
	w.Write(h.scratch[:])
}

// blake2bWriter is the minimal surface hasher needs from hash.Hash.
type blake2bWriter interface {
	Write(p []byte) (int, error)
}

// hashBlob computes Hash(Blob b) = BE64(len(b)) || b.
func (h *hasher) hashBlob(b []byte) Hash {
	d, _ := blake2b.New256(nil)
	h.putUint64(d, uint64(len(b)))
	d.Write(b)
	var out Hash
	copy(out[:], d.Sum(nil))
	return out
}

// hashTree computes Hash(Tree t) over its entries in ascending segment order.
func (h *hasher) hashTree(entries []treeEntry) Hash {
	d, _ := blake2b.New256(nil)
	h.putUint64(d, uint64(len(entries)))
	for _, e := range entries {
		tag := e.node.Kind.tag()
		d.Write(tag[:])
		d.Write([]byte{byte(len(e.segment))})
		d.Write([]byte(e.segment))
		h.putUint64(d, HashLength)
		d.Write(e.node.Hash[:])
	}
	var out Hash
	copy(out[:], d.Sum(nil))
	return out
}

// hashCommit computes Hash(Commit c).
func (h *hasher) hashCommit(c Commit) Hash {
	d, _ := blake2b.New256(nil)
	h.putUint64(d, HashLength)
	d.Write(c.Root[:])
	if c.Parent == nil {
		h.putUint64(d, 0)
	} else {
		h.putUint64(d, 1)
		h.putUint64(d, HashLength)
		d.Write(c.Parent[:])
	}
	h.putUint64(d, c.Time)
	h.putUint64(d, uint64(len(c.Author)))
	d.Write([]byte(c.Author))
	h.putUint64(d, uint64(len(c.Message)))
	d.Write([]byte(c.Message))
	var out Hash
	copy(out[:], d.Sum(nil))
	return out
}

// treeEntry pairs a path segment with the Node it maps to; used only to
// drive canonical (ascending-segment) iteration during hashing/encoding.
type treeEntry struct {
	segment string
	node    Node
}
