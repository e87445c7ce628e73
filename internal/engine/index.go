package engine

// CommandLocation denotes the byte range [Offset, Offset+Length) of a
// single encoded command inside generation file <Generation>.log.
type CommandLocation struct {
	Generation uint64
	Offset     int64
	Length     int64
}

// index maps a live key to the location of its last-winning Set command.
// A plain map is sufficient: the engine is single-writer, and nothing in
// the public API requires iteration in key order.
type index map[string]CommandLocation
