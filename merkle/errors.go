package merkle

import (
	"errors"
	"fmt"
)

// errEmptyEntry and errUnknownEntryKind back SerializationError.Cause for
// the codec's own corruption checks.
var (
	errEmptyEntry       = errors.New("merkle: empty entry payload")
	errUnknownEntryKind = errors.New("merkle: unknown entry kind tag")
)

// KeyEmpty is returned by operations that require a non-empty key path.
var KeyEmpty = errors.New("merkle: key is empty")

// StoreError wraps a failure from the backing key/value store.
type StoreError struct {
	Op    string
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("merkle: store error during %s: %v", e.Op, e.Cause)
}

func (e *StoreError) Unwrap() error { return e.Cause }

// SerializationError wraps a failure encoding or decoding an Entry.
type SerializationError struct {
	Cause error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("merkle: serialization error: %v", e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }

// EntryNotFound is returned when a hash has no corresponding entry in
// either the staging area or the backing store.
type EntryNotFound struct {
	Hash Hash
}

func (e *EntryNotFound) Error() string {
	return fmt.Sprintf("merkle: entry not found for hash %s", e.Hash)
}

// CommitRootNotFound is returned by LastCommit when the engine has neither
// committed nor checked out a commit yet.
var CommitRootNotFound = errors.New("merkle: no commit exists yet")

// MissingAncestorCommit is returned when walking commit history encounters
// a parent hash with no corresponding Commit entry.
type MissingAncestorCommit struct {
	Hash Hash
}

func (e *MissingAncestorCommit) Error() string {
	return fmt.Sprintf("merkle: missing ancestor commit %s", e.Hash)
}

// FoundUnexpectedStructure is returned when an entry of one kind is found
// where another was required (e.g. a Blob found where a Tree was expected).
type FoundUnexpectedStructure struct {
	Sought string
	Found  string
}

func (e *FoundUnexpectedStructure) Error() string {
	return fmt.Sprintf("merkle: expected %s, found %s", e.Sought, e.Found)
}

// ValueNotFound is returned by Get when the key path resolves to nothing.
type ValueNotFound struct {
	Key string
}

func (e *ValueNotFound) Error() string {
	return fmt.Sprintf("merkle: value not found for key %q", e.Key)
}

// ValueIsNotABlob is returned by Get when the key path resolves to a Tree
// rather than a Blob.
type ValueIsNotABlob struct {
	Key string
}

func (e *ValueIsNotABlob) Error() string {
	return fmt.Sprintf("merkle: value at key %q is not a blob", e.Key)
}

// HashConversionError is returned when a byte slice of the wrong length is
// converted to a Hash.
type HashConversionError struct {
	Length int
}

func (e *HashConversionError) Error() string {
	return fmt.Sprintf("merkle: cannot convert %d bytes to a hash, want %d", e.Length, HashLength)
}
