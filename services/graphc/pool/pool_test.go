// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPool(t *testing.T, cfg Config) *Pool {
	t.Helper()
	cfg.Logger = quietLogger()
	p, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func executors(t *testing.T) map[string]*Pool {
	return map[string]*Pool{
		"sequential":    Sequential(),
		"chunked":       newTestPool(t, Config{Threads: 4}),
		"breadth first": newTestPool(t, Config{Threads: 3, BreadthFirst: true}),
		"single worker": newTestPool(t, Config{Threads: 1}),
	}
}

func TestMap_EveryIndexOnce(t *testing.T) {
	for name, p := range executors(t) {
		t.Run(name, func(t *testing.T) {
			const n = 101
			counts := make([]int32, n)

			err := p.Map(context.Background(), n, func(i int) error {
				atomic.AddInt32(&counts[i], 1)
				return nil
			})
			require.NoError(t, err)
			for i, c := range counts {
				assert.Equal(t, int32(1), c, "index %d", i)
			}
		})
	}
}

func TestMap_LowestIndexErrorWins(t *testing.T) {
	for name, p := range executors(t) {
		t.Run(name, func(t *testing.T) {
			errAt := func(i int) error { return fmt.Errorf("index %d", i) }

			err := p.Map(context.Background(), 10, func(i int) error {
				if i == 3 || i == 7 {
					return errAt(i)
				}
				return nil
			})
			require.Error(t, err)
			assert.Equal(t, "index 3", err.Error())
		})
	}
}

func TestMap_ZeroItems(t *testing.T) {
	p := newTestPool(t, Config{Threads: 2})
	called := false
	require.NoError(t, p.Map(context.Background(), 0, func(int) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func TestMap_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for name, p := range executors(t) {
		t.Run(name, func(t *testing.T) {
			var ran atomic.Int32
			err := p.Map(ctx, 5, func(int) error {
				ran.Add(1)
				return nil
			})
			assert.ErrorIs(t, err, context.Canceled)
			assert.Equal(t, int32(0), ran.Load())
		})
	}
}

func TestMap_RecoversPanics(t *testing.T) {
	for name, p := range map[string]*Pool{
		"queued": newTestPool(t, Config{Threads: 2}),
		"inline": {cfg: Config{Threads: 1, Logger: quietLogger(), NamePrefix: "t"}.withDefaults(), inline: true},
	} {
		t.Run(name, func(t *testing.T) {
			err := p.Map(context.Background(), 4, func(i int) error {
				if i == 2 {
					panic("boom")
				}
				return nil
			})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrTaskPanic)

			var pe *PanicError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, 2, pe.Index)
			assert.Equal(t, "boom", pe.Value)
		})
	}
}

func TestSequential_RunsInOrderOnCaller(t *testing.T) {
	p := Sequential()
	assert.Equal(t, 1, p.Workers())

	// No synchronization: the inline pool never leaves this goroutine.
	var order []int
	require.NoError(t, p.Map(context.Background(), 5, func(i int) error {
		order = append(order, i)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestInit_SecondCallIsAlreadyInitialized(t *testing.T) {
	p := newTestPool(t, Config{Threads: 2})

	require.NoError(t, p.Init(context.Background()))
	err := p.Init(context.Background())
	assert.ErrorIs(t, err, ErrPoolAlreadyInitialized)

	// The pool keeps working.
	var ran atomic.Int32
	require.NoError(t, p.Map(context.Background(), 3, func(int) error {
		ran.Add(1)
		return nil
	}))
	assert.Equal(t, int32(3), ran.Load())
}

func TestInit_WarmsEveryWorker(t *testing.T) {
	for name, cfg := range map[string]Config{
		"chunked":       {Threads: 4},
		"breadth first": {Threads: 3, BreadthFirst: true},
	} {
		t.Run(name, func(t *testing.T) {
			p := newTestPool(t, cfg)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			require.NoError(t, p.Init(ctx))
		})
	}
}

func TestStartBarrier(t *testing.T) {
	t.Run("waits for all", func(t *testing.T) {
		task := startBarrier(context.Background(), 3)
		var done atomic.Int32
		for i := 0; i < 2; i++ {
			go func() {
				if task(i) == nil {
					done.Add(1)
				}
			}()
		}
		assert.Never(t, func() bool { return done.Load() > 0 }, 50*time.Millisecond, 5*time.Millisecond)

		require.NoError(t, task(2))
		assert.Eventually(t, func() bool { return done.Load() == 2 }, time.Second, 5*time.Millisecond)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		task := startBarrier(ctx, 2)
		cancel()
		assert.ErrorIs(t, task(0), context.Canceled)
	})

	t.Run("sequential pool", func(t *testing.T) {
		require.NoError(t, Sequential().Init(context.Background()))
	})
}

func TestMap_LazyInit(t *testing.T) {
	p := newTestPool(t, Config{Threads: 2})
	require.NoError(t, p.Map(context.Background(), 1, func(int) error { return nil }))
	assert.ErrorIs(t, p.Init(context.Background()), ErrPoolAlreadyInitialized)
}

func TestClose(t *testing.T) {
	p, err := New(Config{Threads: 2, Logger: quietLogger()})
	require.NoError(t, err)
	require.NoError(t, p.Map(context.Background(), 2, func(int) error { return nil }))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err = p.Map(context.Background(), 1, func(int) error { return nil })
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.ErrorIs(t, p.Init(context.Background()), ErrPoolClosed)
}

func TestConfig(t *testing.T) {
	_, err := New(Config{Threads: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(Config{StackSize: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	p, err := New(Config{})
	require.NoError(t, err)
	cfg := p.Config()
	assert.Positive(t, cfg.Threads)
	assert.Equal(t, DefaultStackSize, cfg.StackSize)
	assert.Equal(t, DefaultNamePrefix, cfg.NamePrefix)
	assert.NotNil(t, cfg.Logger)
}

func TestSplit(t *testing.T) {
	chunked := &Pool{cfg: Config{Threads: 4}}
	assert.Equal(t, [][2]int{{0, 3}, {3, 6}, {6, 9}, {9, 10}}, chunked.split(10))
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}}, chunked.split(2))

	bf := &Pool{cfg: Config{Threads: 4, BreadthFirst: true}}
	assert.Equal(t, [][2]int{{0, 1}, {1, 2}, {2, 3}}, bf.split(3))
}

func resetDefault(t *testing.T) {
	t.Helper()
	defaultMu.Lock()
	old := defaultPool
	defaultPool = nil
	defaultMu.Unlock()

	t.Cleanup(func() {
		defaultMu.Lock()
		if defaultPool != nil {
			_ = defaultPool.Close()
		}
		defaultPool = old
		defaultMu.Unlock()
	})
}

func TestDefault(t *testing.T) {
	resetDefault(t)

	p := Default()
	assert.Same(t, p, Default())
	assert.Equal(t, DefaultNamePrefix, p.Config().NamePrefix)

	err := InitDefault(context.Background(), Config{Threads: 2})
	assert.ErrorIs(t, err, ErrPoolAlreadyInitialized)
	assert.Same(t, p, Default())
}

func TestInitDefault(t *testing.T) {
	resetDefault(t)

	require.NoError(t, InitDefault(context.Background(), Config{Threads: 3, Logger: quietLogger()}))
	assert.Equal(t, 3, Default().Workers())

	err := InitDefault(context.Background(), Config{Threads: 5})
	assert.ErrorIs(t, err, ErrPoolAlreadyInitialized)
	assert.Equal(t, 3, Default().Workers())
}
