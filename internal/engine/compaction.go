package engine

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/genlogkv/gkvs/internal/storage"
)

// compact rewrites every live index entry into a fresh compaction
// generation, opens a new active generation beyond it, retargets the
// index, and unlinks every generation older than the compaction output.
// Must be called with s.mu held.
func (s *KvStore) compact() error {
	compactionGen := s.activeGen + 1
	newActiveGen := s.activeGen + 2

	compactionWriter, err := storage.OpenGenerationWriter(s.dir, compactionGen)
	if err != nil {
		return fmt.Errorf("engine: compact: open compaction generation %d: %w", compactionGen, err)
	}
	newWriter, err := storage.OpenGenerationWriter(s.dir, newActiveGen)
	if err != nil {
		compactionWriter.Close()
		return fmt.Errorf("engine: compact: open new active generation %d: %w", newActiveGen, err)
	}
	newActiveReader, err := storage.OpenGenerationReader(s.dir, newActiveGen)
	if err != nil {
		compactionWriter.Close()
		newWriter.Close()
		return fmt.Errorf("engine: compact: open reader for new active generation %d: %w", newActiveGen, err)
	}

	oldWriter := s.writer
	oldActiveGen := s.activeGen
	s.writer = newWriter
	s.activeGen = newActiveGen
	s.readers[newActiveGen] = newActiveReader
	if err := oldWriter.Close(); err != nil {
		slog.Warn("engine: compact: error closing superseded active writer", "generation", oldActiveGen, "error", err)
	}

	// Retargets land in a local map, not s.index directly: until
	// compactionReader is installed below, s.index must keep pointing at
	// whatever generation each key's bytes actually live in, so a
	// mid-loop failure (seek/copy error) leaves every key's entry still
	// resolvable by the readers already in s.readers.
	retargeted := make(index, len(s.index))
	for key, loc := range s.index {
		r, ok := s.readers[loc.Generation]
		if !ok {
			compactionWriter.Close()
			return fmt.Errorf("%w: compact: no reader for generation %d (key %q)", ErrCorrupt, loc.Generation, key)
		}
		if _, err := r.Seek(loc.Offset, io.SeekStart); err != nil {
			compactionWriter.Close()
			return fmt.Errorf("engine: compact: seek generation %d offset %d: %w", loc.Generation, loc.Offset, err)
		}

		newPos := compactionWriter.Pos()
		if _, err := io.CopyN(compactionWriter, r, loc.Length); err != nil {
			compactionWriter.Close()
			return fmt.Errorf("engine: compact: copy key %q from generation %d: %w", key, loc.Generation, err)
		}
		retargeted[key] = CommandLocation{Generation: compactionGen, Offset: newPos, Length: loc.Length}
	}

	if err := compactionWriter.Flush(s.cfg.FsyncOnWrite); err != nil {
		return fmt.Errorf("engine: compact: flush compaction generation %d: %w", compactionGen, err)
	}
	if err := compactionWriter.Close(); err != nil {
		return fmt.Errorf("engine: compact: close compaction writer %d: %w", compactionGen, err)
	}

	compactionReader, err := storage.OpenGenerationReader(s.dir, compactionGen)
	if err != nil {
		return fmt.Errorf("engine: compact: open compaction reader %d: %w", compactionGen, err)
	}
	s.readers[compactionGen] = compactionReader

	// Only now, with a reader for compactionGen in place, is it safe to
	// point the live index at it.
	for key, loc := range retargeted {
		s.index[key] = loc
	}

	for gen, r := range s.readers {
		if gen >= compactionGen {
			continue
		}
		if err := r.Close(); err != nil {
			slog.Warn("engine: compact: error closing superseded reader", "generation", gen, "error", err)
		}
		delete(s.readers, gen)
		if err := storage.UnlinkGeneration(s.dir, gen); err != nil {
			slog.Warn("engine: compact: error unlinking superseded generation", "generation", gen, "error", err)
		}
	}

	s.staleBytes = 0
	slog.Info("engine: compacted", "compaction_generation", compactionGen, "new_active_generation", newActiveGen, "live_keys", len(s.index))
	return nil
}
