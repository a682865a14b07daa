// Copyright 2025 The sparsebit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package snapfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHeader_RoundTrip(t *testing.T) {
	origH := newFileHeader(flagZstd)
	require.Equal(t, magicSnapHeader, origH.magic)
	require.Equal(t, fileFormatVersion, origH.formatVersion)
	require.True(t, origH.compressed())
	origH.bitLen = 3
	origH.payloadLen = 129
	origH.checksum = 0xdeadbeef

	// this should be an error
	err := origH.MarshalTo(nil)
	assert.Error(t, err)

	var newH fileHeader
	headerBytes := make([]byte, fileHeaderSize)
	// this should be an error -- missing magic number
	err = newH.UnmarshalBytes(headerBytes)
	assert.Error(t, err)

	err = origH.MarshalTo(headerBytes)
	require.NoError(t, err)

	// this should be an error
	err = newH.UnmarshalBytes(nil)
	assert.Error(t, err)

	err = newH.UnmarshalBytes(headerBytes)
	require.NoError(t, err)

	assert.Equal(t, origH, &newH)

	// test that deserializing an unknown version is broken
	origH.formatVersion = 666
	err = origH.MarshalTo(headerBytes)
	require.NoError(t, err)
	// this should be an error
	err = newH.UnmarshalBytes(headerBytes)
	assert.Error(t, err)
	origH.formatVersion = fileFormatVersion

	// test that deserializing unknown flags is broken
	origH.flags = 0xff00
	err = origH.MarshalTo(headerBytes)
	require.NoError(t, err)
	// this should be an error
	err = newH.UnmarshalBytes(headerBytes)
	assert.Error(t, err)
}

func TestFileHeader_UpdateTrailer(t *testing.T) {
	origH := newFileHeader(0)
	require.False(t, origH.compressed())

	buf := safeBuffer{
		buf: make([]byte, fileHeaderSize),
	}
	require.NoError(t, origH.MarshalTo(buf.buf))

	const (
		newBitLen     = uint64(11111)
		newPayloadLen = uint64(22222)
		newChecksum   = uint64(33333)
	)

	err := origH.UpdateTrailer(newBitLen, newPayloadLen, newChecksum, &buf)
	require.NoError(t, err)

	var newH fileHeader
	err = newH.UnmarshalBytes([]byte(buf.String()))
	require.NoError(t, err)

	assert.Equal(t, origH, &newH)
	assert.Equal(t, newBitLen, newH.bitLen)
	assert.Equal(t, newPayloadLen, newH.payloadLen)
	assert.Equal(t, newChecksum, newH.checksum)
}
