// Copyright 2025 The sparsebit Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

// Command snapinfo prints summary statistics for a sparsebit snapshot
// file.
package main

import (
	"fmt"
	"os"

	"github.com/bpowers/sparsebit"
	"github.com/bpowers/sparsebit/internal/snapfile"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <snapshot-file>\n", os.Args[0])
		os.Exit(1)
	}
	path := os.Args[1]

	r, err := snapfile.NewMMapReaderWithPath(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", path, err)
		os.Exit(1)
	}
	defer func() {
		_ = r.Close()
	}()

	words, err := r.Words()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", path, err)
		os.Exit(1)
	}
	b := sparsebit.NewFromWords(words, r.BitLen())

	fmt.Printf("bits:       %d\n", b.Len())
	fmt.Printf("words:      %d\n", len(words))
	fmt.Printf("set:        %d\n", b.Count())
	fmt.Printf("compressed: %v\n", r.Compressed())
}
