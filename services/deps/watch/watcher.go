// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch reports debounced changes to pattern and measurement files.
//
// # Description
//
// Seamly2D and most editors save by writing a temporary file and renaming it
// over the original, which drops a watch placed on the file itself. The
// watcher therefore watches the parent directories and filters events down
// to the requested files.
//
// # Thread Safety
//
// Safe for concurrent use. The handler is called from a single goroutine.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrNoPaths is returned when a watcher is created without files.
var ErrNoPaths = errors.New("no paths to watch")

// Change represents a file system change event.
type Change struct {
	// Path is the absolute path to the changed file.
	Path string

	// Op is the type of change.
	Op Op

	// Time is when the change was detected.
	Time time.Time
}

// Op represents the type of file operation.
type Op int

const (
	// OpCreate indicates a file was created.
	OpCreate Op = iota

	// OpWrite indicates a file was modified.
	OpWrite

	// OpRemove indicates a file was deleted.
	OpRemove

	// OpRename indicates a file was renamed.
	OpRename
)

// String returns the string representation of the operation.
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

// Handler is called when debounced changes are ready.
type Handler func(changes []Change)

// Options configures the Watcher.
type Options struct {
	// Debounce is how long to wait for more changes before triggering.
	// Default: 250ms
	Debounce time.Duration

	// BufferSize is the size of the change buffer channel.
	// Default: 256
	BufferSize int

	// Logger receives watch errors. Default: slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Debounce:   250 * time.Millisecond,
		BufferSize: 256,
	}
}

// Option is a functional option for configuring a Watcher.
type Option func(*Options)

// WithDebounce sets the debounce window.
func WithDebounce(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.Debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// Watcher watches a fixed set of files with debouncing.
type Watcher struct {
	files    map[string]bool
	dirs     []string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	changes  chan Change
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	handler  Handler
	watching bool
}

// New creates a watcher for the given files.
//
// Inputs:
//
//	paths - Files to watch. Need not exist yet. Must not be empty.
//	handler - Function called with batched changes after debounce.
//	opts - Optional configuration.
//
// Outputs:
//
//	*Watcher - Ready-to-use watcher (call Start to begin watching).
//	error - ErrNoPaths, or the fsnotify error.
//
// Example:
//
//	w, err := watch.New([]string{"shirt.sm2d"}, func(changes []watch.Change) {
//	    rebuild()
//	})
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	if err := w.Start(ctx); err != nil {
//	    return err
//	}
func New(paths []string, handler Handler, opts ...Option) (*Watcher, error) {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	files := make(map[string]bool)
	dirSet := make(map[string]bool)
	var dirs []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		files[abs] = true
		if dir := filepath.Dir(abs); !dirSet[dir] {
			dirSet[dir] = true
			dirs = append(dirs, dir)
		}
	}
	if len(files) == 0 {
		return nil, ErrNoPaths
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		files:    files,
		dirs:     dirs,
		watcher:  fw,
		handler:  handler,
		debounce: options.Debounce,
		logger:   options.Logger,
		changes:  make(chan Change, options.BufferSize),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching.
//
// Description:
//
//	Adds the parent directories to fsnotify and spawns the event processor
//	and the debouncer. Both exit when Stop is called or ctx is cancelled.
//	Calling Start on a running watcher is a no-op.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.watcher.Add(dir); err != nil {
			w.Stop()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching returns true if the watcher is active.
func (w *Watcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

// Files returns the absolute paths being watched.
func (w *Watcher) Files() []string {
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// SetHandler changes the change handler.
func (w *Watcher) SetHandler(handler Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = handler
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
			change, keep := w.convert(event)
			if !keep {
				continue
			}
			select {
			case w.changes <- change:
			default:
				w.logger.Warn("watch buffer full, dropping change", slog.String("path", change.Path))
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// convert maps an fsnotify event onto a Change for a watched file.
func (w *Watcher) convert(event fsnotify.Event) (Change, bool) {
	path, err := filepath.Abs(event.Name)
	if err != nil || !w.files[path] {
		return Change{}, false
	}

	var op Op
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpWrite
	case event.Has(fsnotify.Remove):
		op = OpRemove
	case event.Has(fsnotify.Rename):
		op = OpRename
	default:
		// chmod only
		return Change{}, false
	}
	return Change{Path: path, Op: op, Time: time.Now()}, true
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []Change
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 {
			deduped := dedupe(batch)
			w.mu.RLock()
			handler := w.handler
			w.mu.RUnlock()
			if handler != nil {
				handler(deduped)
			}
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case change := <-w.changes:
			batch = append(batch, change)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe keeps the most recent change per path, in first-seen path order.
func dedupe(changes []Change) []Change {
	seen := make(map[string]int)
	result := make([]Change, 0, len(changes))
	for _, c := range changes {
		if idx, exists := seen[c.Path]; exists {
			result[idx] = c
			continue
		}
		seen[c.Path] = len(result)
		result = append(result, c)
	}
	return result
}
