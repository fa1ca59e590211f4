// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pool provides the worker pool used for map-style phases.
//
// A Pool owns a fixed set of long-lived worker goroutines fed from one
// FIFO queue. Map distributes the indices [0, n) across them and blocks
// until every index has run. Results are never collected by the pool:
// callers preallocate one slot per index and merge afterwards, which
// keeps merged output independent of scheduling.
//
// Sequential returns a one-worker pool that runs tasks on the calling
// goroutine, so sequential and parallel callers share a single code path.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/pprof"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultStackSize is the nominal per-worker stack size.
	DefaultStackSize = 2 << 20

	// DefaultNamePrefix prefixes worker labels.
	DefaultNamePrefix = "graphc-worker"

	queueFactor = 4
)

// Config configures a Pool.
type Config struct {
	// Threads is the number of workers. Zero means runtime.NumCPU().
	Threads int

	// StackSize is the requested per-worker stack size in bytes. Go
	// stacks grow on demand, so the value is recorded and reported only.
	// Zero means DefaultStackSize.
	StackSize int

	// NamePrefix labels workers in profiles as "<prefix>-<n>".
	NamePrefix string

	// BreadthFirst queues one task per index instead of one contiguous
	// chunk per worker.
	BreadthFirst bool

	// Logger receives panic reports. Nil means slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns the configuration used by Default.
func DefaultConfig() Config {
	return Config{
		Threads:    runtime.NumCPU(),
		StackSize:  DefaultStackSize,
		NamePrefix: DefaultNamePrefix,
	}
}

// Validate rejects negative sizes.
func (c Config) Validate() error {
	if c.Threads < 0 {
		return fmt.Errorf("%w: threads %d", ErrInvalidConfig, c.Threads)
	}
	if c.StackSize < 0 {
		return fmt.Errorf("%w: stack size %d", ErrInvalidConfig, c.StackSize)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Threads == 0 {
		c.Threads = runtime.NumCPU()
	}
	if c.StackSize == 0 {
		c.StackSize = DefaultStackSize
	}
	if c.NamePrefix == "" {
		c.NamePrefix = DefaultNamePrefix
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Executor runs fn for every index in [0, n).
//
// Map returns the error of the lowest failing index, or the context
// error if dispatch was cancelled. Each index runs at most once.
type Executor interface {
	Map(ctx context.Context, n int, fn func(i int) error) error
	Workers() int
}

// Pool is a fixed-size worker pool.
//
// Thread Safety: Safe for concurrent use. Map must not be called from
// inside a task of the same pool.
type Pool struct {
	cfg    Config
	inline bool

	mu      sync.RWMutex
	started bool
	closed  bool
	tasks   chan func()
	workers sync.WaitGroup
}

// New creates a pool. Workers start on Init or on the first Map.
func New(cfg Config) (*Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pool{cfg: cfg.withDefaults()}, nil
}

// Sequential returns a single-worker pool that runs every task on the
// caller's goroutine, in index order.
func Sequential() *Pool {
	cfg := Config{Threads: 1, NamePrefix: DefaultNamePrefix}.withDefaults()
	return &Pool{cfg: cfg, inline: true}
}

// Config returns the effective configuration.
func (p *Pool) Config() Config {
	return p.cfg
}

// Workers implements Executor.
func (p *Pool) Workers() int {
	return p.cfg.Threads
}

// Init starts the workers and runs one warm-up task on each of them.
//
// Description:
//
//	Each warm-up task waits until all of them are running, so every
//	worker takes exactly one.
//
//	Init is optional; Map starts the workers lazily. Calling Init a
//	second time returns ErrPoolAlreadyInitialized and leaves the pool
//	running.
//
// Inputs:
//
//	ctx - Bounds the warm-up.
//
// Outputs:
//
//	error - ErrPoolAlreadyInitialized, ErrPoolClosed or the context error.
func (p *Pool) Init(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if p.started {
		p.mu.Unlock()
		return ErrPoolAlreadyInitialized
	}
	p.startLocked()
	p.mu.Unlock()

	p.cfg.Logger.Debug("pool initialized",
		slog.String("name", p.cfg.NamePrefix),
		slog.Int("threads", p.cfg.Threads),
		slog.Int("stack_size", p.cfg.StackSize),
		slog.Bool("breadth_first", p.cfg.BreadthFirst),
	)

	n := p.cfg.Threads
	if p.inline {
		n = 1
	}
	return p.Map(ctx, n, startBarrier(ctx, n))
}

// startBarrier returns a task that blocks until n calls have entered it
// or ctx is done.
func startBarrier(ctx context.Context, n int) func(int) error {
	var arrived atomic.Int32
	all := make(chan struct{})
	return func(int) error {
		if arrived.Add(1) == int32(n) {
			close(all)
		}
		select {
		case <-all:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pool) startLocked() {
	p.started = true
	if p.inline {
		return
	}
	p.tasks = make(chan func(), p.cfg.Threads*queueFactor)
	for i := 0; i < p.cfg.Threads; i++ {
		p.workers.Add(1)
		go p.worker(i)
	}
	recordWorkersStarted(p.cfg.NamePrefix, p.cfg.Threads)
}

func (p *Pool) worker(id int) {
	defer p.workers.Done()
	labels := pprof.Labels("pool", p.cfg.NamePrefix, "worker", fmt.Sprintf("%s-%d", p.cfg.NamePrefix, id))
	pprof.Do(context.Background(), labels, func(context.Context) {
		for task := range p.tasks {
			task()
		}
	})
}

// ensureStarted starts the workers if needed and returns with the read
// lock held. The caller must release it.
func (p *Pool) ensureStarted() error {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return ErrPoolClosed
	}
	if p.started {
		return nil
	}
	p.mu.RUnlock()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	if !p.started {
		p.startLocked()
	}
	p.mu.Unlock()
	return p.ensureStarted()
}

// Map implements Executor.
//
// Description:
//
//	With BreadthFirst each index is its own task; otherwise indices are
//	split into one contiguous chunk per worker and a chunk stops at its
//	first error. A cancelled context stops dispatch; tasks already queued
//	still run. Panics are recovered, logged with their stack and
//	returned as *PanicError.
//
// Inputs:
//
//	ctx - Checked before dispatch and between tasks.
//	n - Number of indices. n <= 0 is a no-op.
//	fn - Called once per index. Must only write state owned by index i.
//
// Outputs:
//
//	error - Error of the lowest failing index, the context error, or
//	        ErrPoolClosed.
func (p *Pool) Map(ctx context.Context, n int, fn func(i int) error) error {
	if n <= 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	ctx, span := startMapSpan(ctx, p, n)
	defer span.End()

	var err error
	if p.inline {
		err = p.mapInline(ctx, n, fn)
	} else {
		err = p.mapQueued(ctx, n, fn)
	}

	setMapSpanResult(span, err)
	recordMapMetrics(ctx, p, n, time.Since(start), err)
	return err
}

func (p *Pool) mapInline(ctx context.Context, n int, fn func(int) error) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.started = true
	p.mu.Unlock()

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.call(fn, i); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) mapQueued(ctx context.Context, n int, fn func(int) error) error {
	if err := p.ensureStarted(); err != nil {
		return err
	}
	defer p.mu.RUnlock()

	errs := make([]error, n)
	var wg sync.WaitGroup

	var dispatchErr error
	for _, r := range p.split(n) {
		lo, hi := r[0], r[1]
		wg.Add(1)
		task := func() {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				if ctx.Err() != nil {
					return
				}
				if errs[i] = p.call(fn, i); errs[i] != nil {
					return
				}
			}
		}

		select {
		case p.tasks <- task:
		case <-ctx.Done():
			wg.Done()
			dispatchErr = ctx.Err()
		}
		if dispatchErr != nil {
			break
		}
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	if dispatchErr != nil {
		return dispatchErr
	}
	return ctx.Err()
}

// split returns half-open index ranges in ascending order.
func (p *Pool) split(n int) [][2]int {
	if p.cfg.BreadthFirst {
		ranges := make([][2]int, n)
		for i := range ranges {
			ranges[i] = [2]int{i, i + 1}
		}
		return ranges
	}

	chunks := min(p.cfg.Threads, n)
	size := (n + chunks - 1) / chunks
	ranges := make([][2]int, 0, chunks)
	for lo := 0; lo < n; lo += size {
		ranges = append(ranges, [2]int{lo, min(lo+size, n)})
	}
	return ranges
}

// call runs fn(i), converting a panic into *PanicError.
func (p *Pool) call(fn func(int) error, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			p.cfg.Logger.Error("panic in pool task",
				slog.String("pool", p.cfg.NamePrefix),
				slog.Int("index", i),
				slog.Any("panic", r),
				slog.String("stack", string(buf[:n])),
			)
			recordPanic(p.cfg.NamePrefix)
			err = &PanicError{Index: i, Value: r}
		}
	}()
	return fn(i)
}

// Close stops the workers after queued tasks finish. It is idempotent.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.tasks != nil {
		close(p.tasks)
	}
	p.mu.Unlock()

	p.workers.Wait()
	return nil
}

var _ Executor = (*Pool)(nil)

var (
	defaultMu   sync.Mutex
	defaultPool *Pool
)

// Default returns the process-wide pool, creating it from DefaultConfig
// on first use. Libraries should accept an Executor instead.
func Default() *Pool {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultPool == nil {
		defaultPool = &Pool{cfg: DefaultConfig().withDefaults()}
	}
	return defaultPool
}

// InitDefault builds and warms the process-wide pool from cfg. If the
// pool already exists it returns ErrPoolAlreadyInitialized and the
// existing pool is kept.
func InitDefault(ctx context.Context, cfg Config) error {
	defaultMu.Lock()
	if defaultPool != nil {
		defaultMu.Unlock()
		return ErrPoolAlreadyInitialized
	}
	p, err := New(cfg)
	if err != nil {
		defaultMu.Unlock()
		return err
	}
	defaultPool = p
	defaultMu.Unlock()

	return p.Init(ctx)
}
