// Copyright 2025 The sparsebit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Package sparsebit implements a sparse, dynamically growable bitset: a
// mapping from 32-bit identifiers to single bits, backed by fixed-size 4KB
// pages that are allocated lazily as identifiers are touched.  It is built
// for identifier spaces that are huge but sparsely populated in clusters:
// tracking a few million set bits scattered across the 32-bit space costs
// one page per touched 2^18-bit range, not memory proportional to the
// highest identifier.
package sparsebit

import "math/bits"

const (
	pageSize  = 1 << 12        // bytes per page
	pageWords = pageSize >> 3  // 64-bit words per page
	pageBits  = pageWords << 6 // bits per page (2^18)
	pageShift = 18

	// initial length of the page directory; the directory only ever
	// grows from here, by doubling
	initialPages = 1 << 11
)

// Bitset maps 32-bit identifiers to single bits.  The zero value is not
// usable; construct instances with New or NewFromWords.  A Bitset is not
// safe for concurrent use: mutating calls may reallocate the page
// directory, so even reads racing a writer need external locking.
type Bitset struct {
	pages  [][]uint64 // page directory; nil element means no page allocated
	size   uint64     // addressable bits, always a multiple of pageBits
	maxBit uint32     // highest id ever passed to a mutating or loading call
}

// New returns an empty bitset with no pages allocated.
func New() *Bitset {
	return &Bitset{
		pages: make([][]uint64, initialPages),
	}
}

func getOffsets(id uint32) (page, word, bit uint32) {
	page = id >> pageShift
	word = (id >> 6) & (pageWords - 1)
	bit = id & 63
	return
}

// grow ensures the page covering id exists, doubling the page directory
// as needed.  Growing the directory moves the page slots, never the page
// contents.
func (b *Bitset) grow(id uint32) {
	if id > b.maxBit {
		b.maxBit = id
	}
	page := int(id >> pageShift)
	if page >= len(b.pages) {
		newLen := len(b.pages)
		for page >= newLen {
			newLen <<= 1
		}
		pages := make([][]uint64, newLen)
		copy(pages, b.pages)
		b.pages = pages
	}
	if b.pages[page] == nil {
		b.pages[page] = make([]uint64, pageWords)
	}
	if newSize := (uint64(page) + 1) << pageShift; newSize > b.size {
		b.size = newSize
	}
}

// Set sets the bit for id to 1, growing the directory and allocating the
// backing page if needed.
func (b *Bitset) Set(id uint32) {
	b.grow(id)
	page, word, bit := getOffsets(id)
	b.pages[page][word] |= 1 << bit
}

// Clear sets the bit for id to 0.  Like Set it grows the directory and
// allocates the backing page first, even though the net effect is a
// cleared bit.
func (b *Bitset) Clear(id uint32) {
	b.grow(id)
	page, word, bit := getOffsets(id)
	b.pages[page][word] &= ^(uint64(1) << bit)
}

// IsSet returns true if the bit for id is 1.  Identifiers at or above the
// high-water mark read as 0, as do identifiers whose page was never
// allocated.  IsSet never mutates the bitset.
func (b *Bitset) IsSet(id uint32) bool {
	if id >= b.maxBit {
		return false
	}
	page, word, bit := getOffsets(id)
	if int(page) >= len(b.pages) || b.pages[page] == nil {
		return false
	}
	return b.pages[page][word]&(1<<bit) != 0
}

// Count returns the number of bits set to 1.
func (b *Bitset) Count() int {
	count := 0
	for _, page := range b.pages {
		if page == nil {
			continue
		}
		for _, w := range page {
			count += bits.OnesCount64(w)
		}
	}
	return count
}

// Len returns the logical size of the bitset: one past the highest
// identifier ever addressed by a mutating or loading call.
func (b *Bitset) Len() uint64 {
	return uint64(b.maxBit) + 1
}

// allocatedPages reports how many directory slots are backed by a real
// page.
func (b *Bitset) allocatedPages() int {
	n := 0
	for _, page := range b.pages {
		if page != nil {
			n++
		}
	}
	return n
}

// Words returns a dense serialization of the logical bit range
// [0, Len()): exactly ceil(Len()/64) words, with never-allocated pages
// materialized as runs of zero words.  Bit n of the bitset is stored at
// bit n&63 of word n>>6.  The word sequence does not self-describe its
// logical length; callers must carry Len() alongside it.
func (b *Bitset) Words() []uint64 {
	size := b.Len()
	repr := make([]uint64, (size+63)>>6)
	for i, page := range b.pages {
		if page == nil {
			continue
		}
		// first output word covered by this page
		start := uint64(i) * pageWords
		n := uint64(pageWords)
		if bitsRemaining := size - start*64; bitsRemaining < pageBits {
			// final page: copy only the words that cover the
			// remaining logical bits
			n = (bitsRemaining + 63) >> 6
		}
		copy(repr[start:], page[:n])
	}
	return repr
}

// NewFromWords reconstructs a bitset from a dense word sequence produced
// by Words.  size is the logical bit count carried alongside the words
// (the source bitset's Len()) and must be at least 1, with words covering
// ceil(size/64) entries; the pair is trusted, not validated.  The
// reconstruction is sparse: a page-sized run of zero words allocates no
// page.  The resulting high-water mark is size-1 regardless of where the
// highest set bit actually is.
func NewFromWords(words []uint64, size uint64) *Bitset {
	b := New()
	b.grow(uint32(size - 1))
	n := (size + 63) >> 6
	if l := uint64(len(words)); n > l {
		n = l
	}
	for i := uint64(0); i < n; i++ {
		v := words[i]
		if v == 0 {
			continue
		}
		page := i / pageWords
		if b.pages[page] == nil {
			b.pages[page] = make([]uint64, pageWords)
		}
		b.pages[page][i&(pageWords-1)] = v
	}
	b.maxBit = uint32(size - 1)
	return b
}
