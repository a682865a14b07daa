// Copyright 2025 The sparsebit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package sparsebit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bpowers/sparsebit/internal/snapfile"
)

// SaveOption configures Save.
type SaveOption func(*saveOptions)

type saveOptions struct {
	logger   *slog.Logger
	compress bool
}

// WithLogger sets an optional logger for Save to use for progress updates.
// If not provided, no logging output will be produced.
func WithLogger(logger *slog.Logger) SaveOption {
	return func(opts *saveOptions) {
		opts.logger = logger
	}
}

// WithCompression zstd-compresses the snapshot payload on disk.
func WithCompression() SaveOption {
	return func(opts *saveOptions) {
		opts.compress = true
	}
}

// Save writes a snapshot of the bitset to path.  The snapshot is written
// to a temporary file in path's directory and atomically renamed into
// place, so a crash mid-save never leaves a torn file at path.
func (b *Bitset) Save(path string, opts ...SaveOption) error {
	var options saveOptions
	options.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	for _, opt := range opts {
		opt(&options)
	}

	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("filepath.Abs: %w", err)
	}
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "sparsebit.*.snap")
	if err != nil {
		return fmt.Errorf("CreateTemp failed (may need permissions for dir %q): %w", dir, err)
	}
	published := false
	defer func() {
		_ = f.Close()
		if !published {
			_ = os.Remove(f.Name())
		}
	}()

	var wopts []snapfile.WriterOption
	if options.compress {
		wopts = append(wopts, snapfile.WithZstd())
	}
	w, err := snapfile.NewWriter(f, wopts...)
	if err != nil {
		return fmt.Errorf("snapfile.NewWriter: %w", err)
	}

	words := b.Words()
	options.logger.Debug("writing snapshot",
		"path", path, "bits", b.Len(), "words", len(words), "compress", options.compress)

	if err := w.WriteBitset(words, b.Len()); err != nil {
		return fmt.Errorf("snapfile.WriteBitset: %w", err)
	}
	if err := w.Finish(); err != nil {
		return fmt.Errorf("snapfile.Finish: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("f.Sync: %w", err)
	}

	// make the file read-only
	if err := os.Chmod(f.Name(), 0444); err != nil {
		return fmt.Errorf("os.Chmod(0444): %w", err)
	}
	if err := os.Rename(f.Name(), path); err != nil {
		return fmt.Errorf("os.Rename: %w", err)
	}
	published = true

	return nil
}

// Open loads a bitset from a snapshot file written by Save.
func Open(path string) (*Bitset, error) {
	r, err := snapfile.NewMMapReaderWithPath(path)
	if err != nil {
		return nil, fmt.Errorf("snapfile.NewMMapReaderWithPath(%s): %w", path, err)
	}
	defer func() {
		_ = r.Close()
	}()

	words, err := r.Words()
	if err != nil {
		return nil, fmt.Errorf("snapfile.Words: %w", err)
	}
	return NewFromWords(words, r.BitLen()), nil
}
