package engine

import "errors"

// ErrKeyNotFound is returned by Remove when the key has no live entry in
// the index. Get on an absent key is not an error; see KvStore.Get.
var ErrKeyNotFound = errors.New("key not found")

// ErrCorrupt signals that an index entry resolved to something other
// than the Set command it points at (or to a generation with no open
// reader), or that replay met a record of unknown kind. Generation file
// names that do not parse are skipped by storage.ListGenerations, not
// reported with this error. It means an invariant of the engine has
// been broken and the current KvStore should not be trusted further.
var ErrCorrupt = errors.New("corrupt index entry")
