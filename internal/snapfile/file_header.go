// Copyright 2025 The sparsebit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package snapfile

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	magicSnapHeader   = uint32(0x74_69_62_73) // "sbit", little-endian
	fileFormatVersion = uint32(1)

	// make the header the minimum cache-width we expect to see
	fileHeaderSize = 64

	flagZstd = uint32(1 << 0)

	headerBitLenOff     = 16
	headerPayloadLenOff = 24
	headerChecksumOff   = 32
)

type fileHeader struct {
	magic         uint32
	formatVersion uint32
	flags         uint32
	bitLen        uint64 // logical bit count of the serialized bitset
	payloadLen    uint64 // payload bytes as stored (after compression)
	checksum      uint64 // farm.Hash64 of the stored payload bytes
}

func newFileHeader(flags uint32) *fileHeader {
	return &fileHeader{
		magic:         magicSnapHeader,
		formatVersion: fileFormatVersion,
		flags:         flags,
	}
}

func (h *fileHeader) compressed() bool {
	return h.flags&flagZstd != 0
}

func (h *fileHeader) MarshalTo(b []byte) error {
	if len(b) < fileHeaderSize {
		return fmt.Errorf("buffer too short for header: %d < %d", len(b), fileHeaderSize)
	}
	for i := 0; i < fileHeaderSize; i++ {
		b[i] = 0
	}
	binary.LittleEndian.PutUint32(b[0:4], h.magic)
	binary.LittleEndian.PutUint32(b[4:8], h.formatVersion)
	binary.LittleEndian.PutUint32(b[8:12], h.flags)
	// bytes 12-16 reserved
	binary.LittleEndian.PutUint64(b[headerBitLenOff:headerBitLenOff+8], h.bitLen)
	binary.LittleEndian.PutUint64(b[headerPayloadLenOff:headerPayloadLenOff+8], h.payloadLen)
	binary.LittleEndian.PutUint64(b[headerChecksumOff:headerChecksumOff+8], h.checksum)
	return nil
}

func (h *fileHeader) WriteTo(w io.Writer) (n int64, err error) {
	var headerBuf [fileHeaderSize]byte
	if err := h.MarshalTo(headerBuf[:]); err != nil {
		return 0, err
	}
	if _, err = w.Write(headerBuf[:]); err != nil {
		return 0, fmt.Errorf("write: %w", err)
	}
	return int64(fileHeaderSize), nil
}

// UpdateTrailer patches the three fields only known once the payload has
// been written: logical bit length, stored payload length, and checksum.
func (h *fileHeader) UpdateTrailer(bitLen, payloadLen, checksum uint64, w io.WriterAt) error {
	h.bitLen = bitLen
	h.payloadLen = payloadLen
	h.checksum = checksum

	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.bitLen)
	binary.LittleEndian.PutUint64(buf[8:16], h.payloadLen)
	binary.LittleEndian.PutUint64(buf[16:24], h.checksum)
	if _, err := w.WriteAt(buf[:], headerBitLenOff); err != nil {
		return fmt.Errorf("f.WriteAt: %w", err)
	}

	return nil
}

func (h *fileHeader) UnmarshalBytes(headerBytes []byte) error {
	if len(headerBytes) < fileHeaderSize {
		return fmt.Errorf("headerBytes too short: %d < %d", len(headerBytes), fileHeaderSize)
	}

	headerBytes = headerBytes[:fileHeaderSize]

	h.magic = binary.LittleEndian.Uint32(headerBytes[0:4])
	if h.magic != magicSnapHeader {
		return fmt.Errorf("bad magic number on snapshot file (%x) -- not a sparsebit snapshot or corrupted", h.magic)
	}

	h.formatVersion = binary.LittleEndian.Uint32(headerBytes[4:8])
	if h.formatVersion != fileFormatVersion {
		return fmt.Errorf("this version of the sparsebit library can only read v%d snapshots; found v%d", fileFormatVersion, h.formatVersion)
	}

	h.flags = binary.LittleEndian.Uint32(headerBytes[8:12])
	if h.flags&^flagZstd != 0 {
		return fmt.Errorf("unknown flags (%x) on snapshot file", h.flags)
	}

	h.bitLen = binary.LittleEndian.Uint64(headerBytes[headerBitLenOff : headerBitLenOff+8])
	h.payloadLen = binary.LittleEndian.Uint64(headerBytes[headerPayloadLenOff : headerPayloadLenOff+8])
	h.checksum = binary.LittleEndian.Uint64(headerBytes[headerChecksumOff : headerChecksumOff+8])

	return nil
}
