package state

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"fxoracle/storage"
)

// ErrReadOnly is returned when a write is attempted inside a View.
var ErrReadOnly = errors.New("kv: transaction is read-only")

// Manager provides transactional access to RLP-encoded records persisted in a
// storage.Database. Writers are serialised so each Update observes and commits
// a consistent view of every record it touches.
type Manager struct {
	mu sync.RWMutex
	db storage.Database
}

// NewManager wraps the supplied database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Update runs fn inside a write transaction. Staged writes are committed in a
// single batch when fn returns nil and discarded otherwise.
func (m *Manager) Update(fn func(tx *Tx) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("kv: manager not initialised")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := newTx(m.db, false)
	if err := fn(tx); err != nil {
		return err
	}
	return m.db.Write(tx.batch())
}

// View runs fn inside a read-only transaction.
func (m *Manager) View(fn func(tx *Tx) error) error {
	if m == nil || m.db == nil {
		return fmt.Errorf("kv: manager not initialised")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m.db, true))
}

type pendingWrite struct {
	value   []byte
	deleted bool
}

// Tx stages writes in memory and serves reads from the staged set before
// falling back to the database.
type Tx struct {
	db       storage.Database
	readOnly bool
	pending  map[string]pendingWrite
	order    []string
}

func newTx(db storage.Database, readOnly bool) *Tx {
	return &Tx{db: db, readOnly: readOnly, pending: make(map[string]pendingWrite)}
}

func (tx *Tx) stage(key []byte, w pendingWrite) {
	k := string(key)
	if _, ok := tx.pending[k]; !ok {
		tx.order = append(tx.order, k)
	}
	tx.pending[k] = w
}

func (tx *Tx) raw(key []byte) ([]byte, error) {
	if w, ok := tx.pending[string(key)]; ok {
		if w.deleted {
			return nil, nil
		}
		return w.value, nil
	}
	data, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return data, err
}

// KVPut RLP-encodes value and stages it under key.
func (tx *Tx) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if tx.readOnly {
		return ErrReadOnly
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	tx.stage(key, pendingWrite{value: encoded})
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (tx *Tx) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := tx.raw(key)
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVHas reports whether a value is present under key.
func (tx *Tx) KVHas(key []byte) (bool, error) {
	return tx.KVGet(key, nil)
}

// KVDelete stages removal of key.
func (tx *Tx) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if tx.readOnly {
		return ErrReadOnly
	}
	tx.stage(key, pendingWrite{deleted: true})
	return nil
}

// KVScan visits every record under prefix in key order, staged writes
// included. decode RLP-decodes the current value into out.
func (tx *Tx) KVScan(prefix []byte, fn func(key []byte, decode func(out interface{}) error) error) error {
	merged := make(map[string][]byte)
	err := tx.db.Iterate(prefix, func(key, value []byte) error {
		merged[string(key)] = value
		return nil
	})
	if err != nil {
		return err
	}
	for k, w := range tx.pending {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if w.deleted {
			delete(merged, k)
			continue
		}
		merged[k] = w.value
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data := merged[k]
		decode := func(out interface{}) error { return rlp.DecodeBytes(data, out) }
		if err := fn([]byte(k), decode); err != nil {
			return err
		}
	}
	return nil
}

func (tx *Tx) batch() *storage.Batch {
	b := storage.NewBatch()
	for _, k := range tx.order {
		w := tx.pending[k]
		if w.deleted {
			b.Delete([]byte(k))
			continue
		}
		b.Put([]byte(k), w.value)
	}
	return b
}
