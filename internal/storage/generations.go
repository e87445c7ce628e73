package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ListGenerations reads dir and returns the generation numbers of every
// <gen>.log regular file present, sorted ascending. Entries whose name
// does not parse as <uint64>.log are ignored, matching the spec's
// "unknown files in the directory are ignored" contract.
func ListGenerations(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var gens []uint64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".log") {
			continue
		}
		gen, err := strconv.ParseUint(strings.TrimSuffix(name, ".log"), 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

// LogPath joins dir with the canonical file name for generation gen.
func LogPath(dir string, gen uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%d.log", gen))
}

// UnlinkGeneration removes the on-disk file for generation gen.
func UnlinkGeneration(dir string, gen uint64) error {
	return os.Remove(LogPath(dir, gen))
}

// OpenGenerationReader opens a positioned reader at offset 0 on
// generation gen's file.
func OpenGenerationReader(dir string, gen uint64) (*ReaderWithPos, error) {
	return NewReaderWithPos(LogPath(dir, gen))
}

// OpenGenerationWriter opens (creating if absent) an append-mode
// positioned writer on generation gen's file.
func OpenGenerationWriter(dir string, gen uint64) (*WriterWithPos, error) {
	return NewWriterWithPos(LogPath(dir, gen))
}
