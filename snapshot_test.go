// Copyright 2025 The sparsebit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package sparsebit

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshotBitset() *Bitset {
	b := New()
	for _, id := range []uint32{0, 1, 63, 64, 65, 1000, 262_143, 262_144, 5_000_000} {
		b.Set(id)
	}
	b.Clear(1000)
	return b
}

func TestSaveOpen_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		opts []SaveOption
	}{
		{"plain", nil},
		{"compressed", []SaveOption{WithCompression()}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			b := testSnapshotBitset()
			path := filepath.Join(t.TempDir(), "bits.snap")

			require.NoError(t, b.Save(path, tc.opts...))

			b2, err := Open(path)
			require.NoError(t, err)

			assert.Equal(t, b.Len(), b2.Len())
			assert.Equal(t, b.Count(), b2.Count())
			assert.Equal(t, b.Words(), b2.Words())
			assert.True(t, b2.IsSet(262_144))
			assert.False(t, b2.IsSet(1000))
		})
	}
}

func TestSave_OverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bits.snap")

	b := New()
	b.Set(10)
	b.Set(20)
	require.NoError(t, b.Save(path))

	// a second save replaces the (read-only) published file atomically
	b.Set(30)
	require.NoError(t, b.Save(path))

	b2, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 3, b2.Count())
}

func TestSave_WithLogger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))

	b := New()
	b.Set(7)
	path := filepath.Join(t.TempDir(), "bits.snap")
	require.NoError(t, b.Save(path, WithLogger(logger)))
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("/doesnt/exist")
	assert.Error(t, err)

	_, err = Open("/dev/null")
	assert.Error(t, err)
}
