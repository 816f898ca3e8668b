package main

import (
	"flag"
	"fmt"
	"strconv"

	"github.com/eth2030/merklectx/merkle"
)

// flagSet wraps flag.FlagSet to add support for flag kinds the standard
// flag package does not provide: uint64 commit timestamps and hex-encoded
// commit hashes, both of which every subcommand that touches history needs.
type flagSet struct {
	*flag.FlagSet
}

// newCustomFlagSet creates a flagSet with ContinueOnError behavior so a bad
// flag produces a returned error rather than exiting the process.
func newCustomFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &flagSet{FlagSet: fs}
}

// Uint64Var defines a uint64 flag.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

type uint64Value struct {
	p *uint64
}

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}

// HashVar defines a merkle.Hash flag, parsed from its hex string form. An
// unset flag leaves *p as the zero Hash, which callers treat as "read the
// live working tree" rather than a historical commit.
func (fs *flagSet) HashVar(p *merkle.Hash, name string, usage string) {
	fs.FlagSet.Var(&hashValue{p: p}, name, usage)
}

type hashValue struct {
	p *merkle.Hash
}

func (v *hashValue) String() string {
	if v.p == nil || v.p.IsZero() {
		return ""
	}
	return v.p.String()
}

func (v *hashValue) Set(s string) error {
	h, err := merkle.HashFromHex(s)
	if err != nil {
		return fmt.Errorf("invalid commit hash %q: %w", s, err)
	}
	*v.p = h
	return nil
}
