// Package cli provides the interactive read-eval-print loop for the
// key-value store, started by the gkvs repl subcommand and calling the
// engine's KvStore directly.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/genlogkv/gkvs/internal/engine"
)

// Handler manages the interactive command-line session for the
// key-value store.
type Handler struct {
	store   *engine.KvStore
	scanner *bufio.Scanner
	out     io.Writer
}

// NewHandler creates a new REPL handler reading from in and writing
// prompts and results to out.
func NewHandler(store *engine.KvStore, in io.Reader, out io.Writer) *Handler {
	return &Handler{
		store:   store,
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// Run starts the interactive command loop, processing input until an
// EXIT/QUIT command is received, the input stream ends, or a scan error
// occurs.
func (h *Handler) Run() error {
	fmt.Fprintln(h.out, "gkvs - log-structured key-value store")
	fmt.Fprintln(h.out, "Commands: PUT <key> <value>, GET <key>, DELETE <key>, COMPACT, EXIT")
	fmt.Fprint(h.out, "> ")

	for h.scanner.Scan() {
		line := strings.TrimSpace(h.scanner.Text())
		if line == "" {
			fmt.Fprint(h.out, "> ")
			continue
		}

		parts := strings.Fields(line)
		command := strings.ToUpper(parts[0])

		switch command {
		case "PUT":
			h.handlePut(parts)
		case "GET":
			h.handleGet(parts)
		case "DELETE":
			h.handleDelete(parts)
		case "COMPACT":
			h.handleCompact()
		case "EXIT", "QUIT":
			slog.Info("cli: shutdown requested by user")
			fmt.Fprintln(h.out, "Goodbye!")
			return nil
		default:
			slog.Warn("cli: unknown command received", "command", command)
			fmt.Fprintf(h.out, "Unknown command: %s\n", command)
			fmt.Fprintln(h.out, "Commands: PUT <key> <value>, GET <key>, DELETE <key>, COMPACT, EXIT")
		}

		fmt.Fprint(h.out, "> ")
	}

	if err := h.scanner.Err(); err != nil {
		return fmt.Errorf("cli: read input: %w", err)
	}
	return nil
}

func (h *Handler) handlePut(parts []string) {
	if len(parts) < 3 {
		fmt.Fprintln(h.out, "Usage: PUT <key> <value>")
		return
	}
	key := parts[1]
	value := strings.Join(parts[2:], " ")

	if err := h.store.Set(key, value); err != nil {
		slog.Error("cli: PUT command failed", "key", key, "error", err)
		fmt.Fprintf(h.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(h.out, "OK")
}

func (h *Handler) handleGet(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(h.out, "Usage: GET <key>")
		return
	}
	key := parts[1]

	value, ok, err := h.store.Get(key)
	if err != nil {
		slog.Error("cli: GET command failed", "key", key, "error", err)
		fmt.Fprintf(h.out, "Error: %v\n", err)
		return
	}
	if !ok {
		fmt.Fprintln(h.out, "Key not found")
		return
	}
	fmt.Fprintln(h.out, value)
}

func (h *Handler) handleDelete(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintln(h.out, "Usage: DELETE <key>")
		return
	}
	key := parts[1]

	if err := h.store.Remove(key); err != nil {
		if err == engine.ErrKeyNotFound {
			fmt.Fprintln(h.out, "Key not found")
			return
		}
		slog.Error("cli: DELETE command failed", "key", key, "error", err)
		fmt.Fprintf(h.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(h.out, "OK")
}

func (h *Handler) handleCompact() {
	if err := h.store.Compact(); err != nil {
		slog.Error("cli: COMPACT command failed", "error", err)
		fmt.Fprintf(h.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(h.out, "OK (%d live keys)\n", h.store.KeyCount())
}
