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
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/graphc/services/graphc/inline"
)

const keyPrefix = "frag/"

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	// Shared counts misses answered by an inline call that several callers
	// waited on, the caller that ran it included.
	Shared int64 `json:"shared"`
	// Errors counts inline failures. Failures are never stored.
	Errors int64 `json:"errors"`
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type inlineFunc func(ctx context.Context, source string, branches, params map[string]string) (string, error)

// BadgerCache is a FragmentCache backed by badger.
//
// Concurrent misses for the same key collapse into one Inline call.
//
// Thread Safety: Safe for concurrent use.
type BadgerCache struct {
	db     *badger.DB
	gc     *gcRunner
	ttl    time.Duration
	logger *slog.Logger
	flight singleflight.Group
	inline inlineFunc
	closed atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	shared atomic.Int64
	errs   atomic.Int64
}

// Open opens a BadgerCache.
//
// Description:
//
//	Opens the database at cfg.Path, or in memory, and starts the value
//	log GC runner when cfg.GCInterval is positive and the store is on
//	disk.
//
// Inputs:
//
//	cfg - Cache configuration. Path is required unless InMemory is set.
//
// Outputs:
//
//	*BadgerCache - The open cache. Call Close when done.
//	error - Non-nil if the database cannot be opened.
func Open(cfg Config) (*BadgerCache, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &BadgerCache{
		db:     db,
		ttl:    cfg.TTL,
		logger: logger,
		inline: inline.Inline,
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		runner, err := newGCRunner(db, cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("create cache GC runner: %w", err)
		}
		c.gc = runner
		runner.start()
	}
	return c, nil
}

// OpenInMemory opens an in-memory cache with InMemoryConfig.
func OpenInMemory() (*BadgerCache, error) {
	return Open(InMemoryConfig())
}

// GetOrInline implements FragmentCache.
func (c *BadgerCache) GetOrInline(ctx context.Context, source string, branches, params map[string]string) (string, error) {
	if c.closed.Load() {
		return "", ErrCacheClosed
	}
	start := time.Now()
	key := Key(source, branches, params)

	ctx, span := startLookupSpan(ctx, key)
	defer span.End()

	if body, ok := c.get(key); ok {
		c.hits.Add(1)
		setLookupSpanResult(span, "hit", nil)
		recordLookupMetrics(ctx, "hit", time.Since(start))
		return body, nil
	}
	c.misses.Add(1)

	v, err, shared := c.flight.Do(key, func() (interface{}, error) {
		body, err := c.inline(ctx, source, branches, params)
		if err != nil {
			return "", err
		}
		if err := c.put(key, body); err != nil {
			c.logger.Warn("fragment cache write failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return body, nil
	})

	result := "miss"
	if shared {
		c.shared.Add(1)
		result = "shared"
	}
	if err != nil {
		c.errs.Add(1)
		result = "error"
	}
	setLookupSpanResult(span, result, err)
	recordLookupMetrics(ctx, result, time.Since(start))
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *BadgerCache) get(key string) (string, bool) {
	var body []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			c.logger.Warn("fragment cache read failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	return string(body), true
}

func (c *BadgerCache) put(key, body string) error {
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+key), []byte(body))
		if c.ttl > 0 {
			e = e.WithTTL(c.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Len returns the number of live entries.
func (c *BadgerCache) Len() (int, error) {
	n := 0
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Purge removes every entry.
func (c *BadgerCache) Purge() error {
	return c.db.DropPrefix([]byte(keyPrefix))
}

// Stats returns a snapshot of the counters.
func (c *BadgerCache) Stats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Shared: c.shared.Load(),
		Errors: c.errs.Load(),
	}
}

// Close stops GC and closes the database. Safe to call more than once.
func (c *BadgerCache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if c.gc != nil {
		c.gc.stop()
	}
	return c.db.Close()
}

var _ FragmentCache = (*BadgerCache)(nil)
