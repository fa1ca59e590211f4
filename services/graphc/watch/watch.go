// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch recompiles when graph or library files change.
//
// Editors often save by writing a temporary file and renaming it over
// the original, which drops an fsnotify watch on the file itself. The
// watcher therefore watches each file's parent directory and filters
// events down to the tracked paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoFiles is returned by New when no paths are given.
var ErrNoFiles = errors.New("watch: no files to watch")

// Op is the kind of change seen for a file.
type Op int

const (
	OpWrite Op = iota
	OpCreate
	OpRemove
	OpRename
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Change is one debounced file change. When a file changes several
// times within the window only the last operation is kept.
type Change struct {
	Path string
	Op   Op
	Time time.Time
}

// Handler receives each debounced batch, sorted by path. It is called
// from a single goroutine.
type Handler func(ctx context.Context, changes []Change)

// Options configures a Watcher.
type Options struct {
	// Debounce is how long the watcher waits for further changes.
	// Default: 150ms
	Debounce time.Duration

	// BufferSize bounds pending events. Default: 256
	BufferSize int

	Logger *slog.Logger
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:   150 * time.Millisecond,
		BufferSize: 256,
	}
}

// Watcher watches a fixed set of files.
//
// Thread Safety: Start and Stop are safe for concurrent use.
type Watcher struct {
	files    map[string]bool
	dirs     []string
	watcher  *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	logger   *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	mu      sync.Mutex
	running bool
}

// New creates a watcher for paths. The files need not exist yet; their
// directories must.
func New(paths []string, handler Handler, opts Options) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, ErrNoFiles
	}
	if handler == nil {
		return nil, errors.New("watch: handler is required")
	}
	def := DefaultOptions()
	if opts.Debounce <= 0 {
		opts.Debounce = def.Debounce
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = def.BufferSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	files := make(map[string]bool, len(paths))
	dirSet := make(map[string]bool, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("watch: resolve %s: %w", p, err)
		}
		files[abs] = true
		dirSet[filepath.Dir(abs)] = true
	}
	dirs := make([]string, 0, len(dirSet))
	for d := range dirSet {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}

	return &Watcher{
		files:    files,
		dirs:     dirs,
		watcher:  fw,
		handler:  handler,
		debounce: opts.Debounce,
		logger:   opts.Logger.With(slog.String("component", "watch")),
		changes:  make(chan Change, opts.BufferSize),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}, nil
}

// Start adds the directory watches and begins delivering changes.
// Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	for _, d := range w.dirs {
		if err := w.watcher.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	w.running = true

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	w.logger.Debug("watching files", slog.Int("files", len(w.files)), slog.Any("dirs", w.dirs))
	return nil
}

// Stop ends watching and waits for a pending batch to be delivered.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		running := w.running
		w.running = false
		w.mu.Unlock()
		if running {
			<-w.stopped
		}
	})
}

// Run starts the watcher and blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	if err := w.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	w.Stop()
	return nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			path, err := filepath.Abs(event.Name)
			if err != nil || !w.files[path] {
				continue
			}
			change := Change{Path: path, Op: convertOp(event.Op), Time: time.Now()}
			select {
			case w.changes <- change:
			default:
				w.logger.Warn("change buffer full, dropping event", slog.String("path", path))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

func convertOp(op fsnotify.Op) Op {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate
	case op.Has(fsnotify.Write):
		return OpWrite
	case op.Has(fsnotify.Remove):
		return OpRemove
	case op.Has(fsnotify.Rename):
		return OpRename
	default:
		return OpWrite
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer close(w.stopped)

	pending := make(map[string]Change)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		batch := make([]Change, 0, len(pending))
		for _, c := range pending {
			batch = append(batch, c)
		}
		sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
		clear(pending)
		w.handler(ctx, batch)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			flush()
			return
		case c := <-w.changes:
			pending[c.Path] = c
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			flush()
		}
	}
}
