// Copyright 2025 The sparsebit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package snapfile implements the on-disk snapshot format for sparsebit:
// a fixed 64-byte header followed by the bitset's dense word payload,
// little-endian, optionally zstd-compressed, with a farm-hash checksum
// over the stored bytes.
package snapfile

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/dgryski/go-farm"
	"github.com/klauspost/compress/zstd"
)

const defaultBufferSize = 4 * 1024 * 1024

var errAlreadyWritten = errors.New("snapshot payload already written")

type nopWriter struct{}

func (nopWriter) Write([]byte) (int, error) {
	return 0, io.EOF
}

// FileWriter is usually an *os.File, but specified as an interface for
// easier testing.
type FileWriter interface {
	io.Writer
	io.WriterAt
}

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

type writerOptions struct {
	compress bool
}

// WithZstd compresses the word payload with zstd before it hits the file.
func WithZstd() WriterOption {
	return func(opts *writerOptions) {
		opts.compress = true
	}
}

// Writer writes a single bitset snapshot to f.  Construct it, call
// WriteBitset exactly once, then Finish.
type Writer struct {
	f          FileWriter
	h          *fileHeader
	w          *bufio.Writer
	bitLen     uint64
	payloadLen uint64
	checksum   uint64
	wrote      bool
	finished   atomic.Bool
}

func NewWriter(f FileWriter, opts ...WriterOption) (*Writer, error) {
	var options writerOptions
	for _, opt := range opts {
		opt(&options)
	}
	var flags uint32
	if options.compress {
		flags |= flagZstd
	}

	w := &Writer{
		f: f,
		h: newFileHeader(flags),
		w: bufio.NewWriterSize(f, defaultBufferSize),
	}

	if _, err := w.h.WriteTo(w.w); err != nil {
		return nil, fmt.Errorf("fileHeader.WriteTo: %w", err)
	}

	// try to expose errors when writing to the backing file early
	if err := w.w.Flush(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	return w, nil
}

// WriteBitset writes the dense word serialization of a bitset along with
// its logical bit length.  A snapshot holds exactly one bitset; a second
// call is an error.
func (w *Writer) WriteBitset(words []uint64, bitLen uint64) error {
	if w.wrote {
		return errAlreadyWritten
	}
	if bitLen == 0 {
		return errors.New("bitLen must be at least 1")
	}
	if want := (bitLen + 63) >> 6; uint64(len(words)) != want {
		return fmt.Errorf("words/bitLen mismatch: %d words for %d bits (want %d)", len(words), bitLen, want)
	}

	payload := make([]byte, 8*len(words))
	for i, v := range words {
		binary.LittleEndian.PutUint64(payload[8*i:], v)
	}

	if w.h.compressed() {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("zstd.NewWriter: %w", err)
		}
		payload = enc.EncodeAll(payload, nil)
		_ = enc.Close()
	}

	if _, err := w.w.Write(payload); err != nil {
		return fmt.Errorf("bufio.Write: %w", err)
	}

	w.bitLen = bitLen
	w.payloadLen = uint64(len(payload))
	w.checksum = farm.Hash64(payload)
	w.wrote = true

	return nil
}

// Finish flushes the payload and patches the header with the counts and
// checksum.  Safe to call more than once.
func (w *Writer) Finish() error {
	if alreadyFinished := w.finished.Swap(true); alreadyFinished {
		// nothing to do - already cleaned up
		return nil
	}

	defer func() {
		w.w.Reset(&nopWriter{})
		w.w = nil
	}()

	if err := w.w.Flush(); err != nil {
		return fmt.Errorf("bufio.Flush: %w", err)
	}

	return w.h.UpdateTrailer(w.bitLen, w.payloadLen, w.checksum, w.f)
}
