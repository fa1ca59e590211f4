// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache memoizes fragment inlining.
//
// Fragments repeat heavily across a graph: every instance of a node type
// inlines the same source, and nodes wired identically produce identical
// branch and parameter maps. The cache keys results by a digest of all
// three inputs, so a hit is always byte-identical to a fresh Inline call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash"
	"sort"

	"github.com/AleutianAI/graphc/services/graphc/inline"
)

// ErrCacheClosed is returned by GetOrInline after Close.
var ErrCacheClosed = errors.New("fragment cache closed")

// FragmentCache returns the inlined body for a fragment and its inputs.
//
// Implementations must return exactly what inline.Inline returns for the
// same inputs, including errors, and must be safe for concurrent use.
type FragmentCache interface {
	GetOrInline(ctx context.Context, source string, branches, params map[string]string) (string, error)
}

// NoCache calls inline.Inline every time.
type NoCache struct{}

// GetOrInline implements FragmentCache.
func (NoCache) GetOrInline(ctx context.Context, source string, branches, params map[string]string) (string, error) {
	return inline.Inline(ctx, source, branches, params)
}

var _ FragmentCache = NoCache{}

// Key returns the hex SHA-256 digest of an Inline call's inputs.
//
// Every field is length-prefixed and both maps are written in key order,
// so distinct inputs never share an encoding and map iteration order
// does not matter. A nil map and an empty map have the same key.
func Key(source string, branches, params map[string]string) string {
	h := sha256.New()
	writeField(h, source)
	writeMap(h, branches)
	writeMap(h, params)
	return hex.EncodeToString(h.Sum(nil))
}

func writeMap(h hash.Hash, m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(keys)))
	h.Write(n[:])
	for _, k := range keys {
		writeField(h, k)
		writeField(h, m[k])
	}
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}
