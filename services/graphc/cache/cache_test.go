// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/graphc/services/graphc/inline"
)

const branchSource = `func branch(condition bool) {
	if condition {
		exec_output("True")
	} else {
		exec_output("False")
	}
}`

var (
	testBranches = map[string]string{"True": `fmt.Println("yes")`, "False": `fmt.Println("no")`}
	testParams   = map[string]string{"condition": "node_check_result"}
)

func openTestCache(t *testing.T) *BadgerCache {
	t.Helper()
	c, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKey(t *testing.T) {
	base := Key("src", map[string]string{"a": "1", "b": "2"}, nil)

	t.Run("map order does not matter", func(t *testing.T) {
		m := make(map[string]string)
		m["b"] = "2"
		m["a"] = "1"
		assert.Equal(t, base, Key("src", m, nil))
	})

	t.Run("nil and empty maps are equal", func(t *testing.T) {
		assert.Equal(t, Key("src", nil, nil), Key("src", map[string]string{}, map[string]string{}))
	})

	t.Run("branches and params are distinct", func(t *testing.T) {
		assert.NotEqual(t, base, Key("src", nil, map[string]string{"a": "1", "b": "2"}))
	})

	t.Run("field boundaries are unambiguous", func(t *testing.T) {
		k1 := Key("src", map[string]string{"ab": "c"}, nil)
		k2 := Key("src", map[string]string{"a": "bc"}, nil)
		assert.NotEqual(t, k1, k2)
	})

	t.Run("hex sha256", func(t *testing.T) {
		assert.Len(t, base, 64)
	})
}

func TestNoCache(t *testing.T) {
	ctx := context.Background()
	want, err := inline.Inline(ctx, branchSource, testBranches, testParams)
	require.NoError(t, err)

	got, err := NoCache{}.GetOrInline(ctx, branchSource, testBranches, testParams)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBadgerCache_HitMatchesInline(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	want, err := inline.Inline(ctx, branchSource, testBranches, testParams)
	require.NoError(t, err)

	first, err := c.GetOrInline(ctx, branchSource, testBranches, testParams)
	require.NoError(t, err)
	second, err := c.GetOrInline(ctx, branchSource, testBranches, testParams)
	require.NoError(t, err)

	assert.Equal(t, want, first)
	assert.Equal(t, want, second)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate(), 1e-9)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestBadgerCache_ErrorsAreNotStored(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	for i := 0; i < 2; i++ {
		_, err := c.GetOrInline(ctx, "func broken( {", nil, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, inline.ErrParseFailed)
	}

	stats := c.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(2), stats.Errors)

	n, err := c.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBadgerCache_ConcurrentMissesCollapse(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	var calls atomic.Int64
	release := make(chan struct{})
	c.inline = func(ctx context.Context, source string, branches, params map[string]string) (string, error) {
		calls.Add(1)
		<-release
		return "body", nil
	}

	const callers = 8
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			body, err := c.GetOrInline(ctx, "src", nil, nil)
			assert.NoError(t, err)
			results[i] = body
		}(i)
	}

	assert.Eventually(t, func() bool {
		return c.Stats().Misses == callers
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, int64(callers), c.Stats().Shared)
	for _, r := range results {
		assert.Equal(t, "body", r)
	}
}

func TestBadgerCache_Purge(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t)

	_, err := c.GetOrInline(ctx, branchSource, testBranches, testParams)
	require.NoError(t, err)
	require.NoError(t, c.Purge())

	n, err := c.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBadgerCache_PersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.GCInterval = time.Hour

	c, err := Open(cfg)
	require.NoError(t, err)
	want, err := c.GetOrInline(ctx, branchSource, testBranches, testParams)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c, err = Open(cfg)
	require.NoError(t, err)
	defer c.Close()

	c.inline = func(context.Context, string, map[string]string, map[string]string) (string, error) {
		t.Fatal("inline called on a persisted key")
		return "", nil
	}
	got, err := c.GetOrInline(ctx, branchSource, testBranches, testParams)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(1), c.Stats().Hits)
}

func TestBadgerCache_Close(t *testing.T) {
	c, err := OpenInMemory()
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = c.GetOrInline(context.Background(), "src", nil, nil)
	assert.ErrorIs(t, err, ErrCacheClosed)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Path = t.TempDir()
	cfg.GCDiscardRatio = 0
	_, err = Open(cfg)
	assert.Error(t, err)
}
