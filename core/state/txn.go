package state

import (
	"sort"

	"loantender/storage"
)

// Txn is a buffered overlay over a database. Writes land in memory and reads
// fall through to the parent for keys the transaction has not touched. Commit
// flushes every buffered write to the parent; dropping the Txn without
// committing discards them, which is how the node gets all-or-nothing
// semantics for engine operations.
//
// Txn is not safe for concurrent use; the node serializes operations.
type Txn struct {
	parent storage.Database
	writes map[string][]byte
	order  []string
}

// NewTxn creates an overlay transaction on top of the parent store.
func NewTxn(parent storage.Database) *Txn {
	return &Txn{
		parent: parent,
		writes: make(map[string][]byte),
	}
}

func (t *Txn) Put(key []byte, value []byte) error {
	k := string(key)
	if _, seen := t.writes[k]; !seen {
		t.order = append(t.order, k)
	}
	t.writes[k] = append([]byte(nil), value...)
	return nil
}

func (t *Txn) Get(key []byte) ([]byte, error) {
	if value, ok := t.writes[string(key)]; ok {
		return append([]byte(nil), value...), nil
	}
	return t.parent.Get(key)
}

// Close satisfies storage.Database. A Txn owns no resources.
func (t *Txn) Close() error { return nil }

// Pending reports the number of buffered writes.
func (t *Txn) Pending() int {
	return len(t.writes)
}

// Commit flushes buffered writes to the parent in insertion order. On error
// the overlay is left intact so the caller can inspect or retry; partially
// flushed writes are possible only if the parent store itself fails, which
// the backends treat as fatal.
func (t *Txn) Commit() error {
	keys := t.order
	if keys == nil {
		keys = make([]string, 0, len(t.writes))
		for k := range t.writes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	}
	for _, k := range keys {
		if err := t.parent.Put([]byte(k), t.writes[k]); err != nil {
			return err
		}
	}
	t.writes = make(map[string][]byte)
	t.order = nil
	return nil
}
