package engine

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/genlogkv/gkvs/internal/format"
	"github.com/genlogkv/gkvs/internal/storage"
)

// loadGeneration scans generation gen sequentially from the start of r,
// folding every command into idx, and returns the number of bytes that
// became stale as a result (overwritten Set entries, removed entries,
// and the tombstone records themselves).
//
// A decode failure that occurs because the generation's trailing record
// was torn by an interrupted write (io.ErrUnexpectedEOF, or an io.EOF
// with no command yet decoded from the current position) is treated as
// the end of the generation, not an error: per the pinned Open Question
// in SPEC_FULL.md §10, a torn trailing write is recoverable, and replay
// simply stops there. Any other decode error is corruption and is
// surfaced to the caller.
func loadGeneration(gen uint64, r *storage.ReaderWithPos, idx index) (uint64, error) {
	dec := format.NewDecoder(r)
	var staleBytes uint64
	count := 0
	var prevEnd int64 // dec.Offset() tracks the logical stream position

	for {
		start := prevEnd
		cmd, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err == io.ErrUnexpectedEOF {
			slog.Warn("engine: torn trailing record during replay, ignoring remainder",
				"generation", gen, "offset", start)
			break
		}
		if err != nil {
			return staleBytes, fmt.Errorf("engine: replay generation %d at offset %d: %w", gen, start, err)
		}

		end := dec.Offset()
		length := end - start
		prevEnd = end

		switch cmd.Kind {
		case format.KindSet:
			if prev, ok := idx[cmd.Key]; ok {
				staleBytes += uint64(prev.Length)
			}
			idx[cmd.Key] = CommandLocation{Generation: gen, Offset: start, Length: length}
		case format.KindRemove:
			if prev, ok := idx[cmd.Key]; ok {
				staleBytes += uint64(prev.Length)
				delete(idx, cmd.Key)
			}
			staleBytes += uint64(length)
		default:
			return staleBytes, fmt.Errorf("%w: generation %d offset %d: unknown command kind %q", ErrCorrupt, gen, start, cmd.Kind)
		}
		count++
	}

	slog.Debug("engine: replayed generation", "generation", gen, "commands", count, "stale_bytes", staleBytes)
	return staleBytes, nil
}
