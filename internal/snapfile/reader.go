// Copyright 2025 The sparsebit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package snapfile

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/dgryski/go-farm"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sys/unix"
)

// Reader gives checked access to a snapshot file.  The file contents are
// mmapped rather than read up front; Close unmaps them, after which Words
// must not be called.
//
// The core format is trusting by design; all validation (header bounds,
// payload length, checksum) lives here as a hardening extension so that a
// truncated or corrupted file is rejected before any words reach a
// bitset.
type Reader struct {
	h    fileHeader
	data []byte
}

func NewMMapReaderWithPath(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open(%s): %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("f.Stat: %w", err)
	}
	if st.Size() < fileHeaderSize {
		return nil, fmt.Errorf("snapshot file too short: %d < %d", st.Size(), fileHeaderSize)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(st.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("unix.Mmap(%s): %w", path, err)
	}
	// the payload is consumed in one pass
	if err := unix.Madvise(data, unix.MADV_SEQUENTIAL); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("madvise: %w", err)
	}

	var header fileHeader
	if err := header.UnmarshalBytes(data); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("fileHeader.UnmarshalBytes: %w", err)
	}

	r := &Reader{
		h:    header,
		data: data,
	}
	if err := r.validate(); err != nil {
		_ = unix.Munmap(data)
		return nil, err
	}
	return r, nil
}

func (r *Reader) validate() error {
	if r.h.bitLen == 0 {
		return fmt.Errorf("snapshot holds no bits")
	}
	if stored := uint64(len(r.data) - fileHeaderSize); r.h.payloadLen != stored {
		return fmt.Errorf("payload length mismatch: header says %d, file holds %d", r.h.payloadLen, stored)
	}
	if !r.h.compressed() {
		if want := ((r.h.bitLen + 63) >> 6) * 8; r.h.payloadLen != want {
			return fmt.Errorf("payload length %d inconsistent with %d bits (want %d)", r.h.payloadLen, r.h.bitLen, want)
		}
	}
	if sum := farm.Hash64(r.payload()); sum != r.h.checksum {
		return fmt.Errorf("checksum mismatch: computed %x, header says %x", sum, r.h.checksum)
	}
	return nil
}

func (r *Reader) payload() []byte {
	return r.data[fileHeaderSize:]
}

// BitLen returns the logical bit count of the stored bitset; this is the
// out-of-band size the dense word sequence doesn't carry itself.
func (r *Reader) BitLen() uint64 {
	return r.h.bitLen
}

// Compressed reports whether the payload is zstd-compressed on disk.
func (r *Reader) Compressed() bool {
	return r.h.compressed()
}

// Words decodes the payload into the bitset's dense word sequence.
func (r *Reader) Words() ([]uint64, error) {
	if r.data == nil {
		return nil, fmt.Errorf("reader is closed")
	}

	payload := r.payload()
	if r.h.compressed() {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd.NewReader: %w", err)
		}
		defer dec.Close()
		payload, err = dec.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd.DecodeAll: %w", err)
		}
	}

	wordCount := (r.h.bitLen + 63) >> 6
	if uint64(len(payload)) != wordCount*8 {
		return nil, fmt.Errorf("decoded payload is %d bytes, want %d for %d bits", len(payload), wordCount*8, r.h.bitLen)
	}

	words := make([]uint64, wordCount)
	for i := range words {
		words[i] = binary.LittleEndian.Uint64(payload[8*i:])
	}
	return words, nil
}

// Close unmaps the snapshot.  Safe to call more than once.
func (r *Reader) Close() error {
	if r.data == nil {
		return nil
	}
	data := r.data
	r.data = nil
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
