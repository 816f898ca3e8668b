package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/eth2030/merklectx/action"
	"github.com/eth2030/merklectx/merkle"
)

// rawAction is the on-disk JSON shape of one action-stream record. Value
// and ContextHash travel as hex strings since JSON has no byte type.
type rawAction struct {
	Kind    string `json:"kind"`
	Ignored bool   `json:"ignored"`

	Key     []string `json:"key,omitempty"`
	FromKey []string `json:"from_key,omitempty"`
	ToKey   []string `json:"to_key,omitempty"`
	Value   string   `json:"value,omitempty"`

	Author  string `json:"author,omitempty"`
	Message string `json:"message,omitempty"`
	Date    int64  `json:"date,omitempty"`

	ContextHash string `json:"context_hash,omitempty"`
}

var kindByName = map[string]action.Kind{
	"set":                action.Set,
	"copy":               action.Copy,
	"delete":             action.Delete,
	"remove_recursively": action.RemoveRecursively,
	"commit":             action.Commit,
	"checkout":           action.Checkout,
}

func loadActions(path string) ([]action.Action, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raws []rawAction
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("parsing action stream: %w", err)
	}

	out := make([]action.Action, 0, len(raws))
	for i, r := range raws {
		kind, ok := kindByName[r.Kind]
		if !ok {
			kind = action.Other
		}
		a := action.Action{
			Kind:    kind,
			Ignored: r.Ignored,
			Key:     r.Key,
			FromKey: r.FromKey,
			ToKey:   r.ToKey,
			Author:  r.Author,
			Message: r.Message,
			Date:    r.Date,
		}
		if r.Value != "" {
			v, err := hex.DecodeString(r.Value)
			if err != nil {
				return nil, fmt.Errorf("action %d: invalid hex value: %w", i, err)
			}
			a.Value = v
		}
		if r.ContextHash != "" {
			b, err := hex.DecodeString(r.ContextHash)
			if err != nil {
				return nil, fmt.Errorf("action %d: invalid hex context_hash: %w", i, err)
			}
			h, err := merkle.HashFromBytes(b)
			if err != nil {
				return nil, fmt.Errorf("action %d: %w", i, err)
			}
			a.ContextHash = h
		}
		out = append(out, a)
	}
	return out, nil
}
