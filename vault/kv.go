package vault

import (
	"errors"
	"sync"

	"github.com/dgraph-io/badger/v4"
)

// PersistentMap is the minimal key-value capability the vault needs. It
// exists so the crypto logic stays substitutable in tests with an
// in-memory fake.
type PersistentMap interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// BadgerMap backs the local tier with an embedded BadgerDB.
type BadgerMap struct {
	db *badger.DB
}

// OpenBadger opens (or creates) the local store at path. With inMemory
// set, nothing touches disk; used in tests and ephemeral deployments.
func OpenBadger(path string, inMemory bool) (*BadgerMap, error) {
	if !inMemory && path == "" {
		return nil, errors.New("path is required for persistent local store")
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(path)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerMap{db: db}, nil
}

func (m *BadgerMap) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *BadgerMap) Set(key string, value []byte) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (m *BadgerMap) Delete(key string) error {
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (m *BadgerMap) Close() error {
	return m.db.Close()
}

// MemoryMap is an in-memory PersistentMap for tests.
type MemoryMap struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemoryMap() *MemoryMap {
	return &MemoryMap{data: make(map[string][]byte)}
}

func (m *MemoryMap) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (m *MemoryMap) Set(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[key] = stored
	return nil
}

func (m *MemoryMap) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
