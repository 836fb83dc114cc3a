// Package memorydb implements an in-memory key/value store for tests and
// for bootstrapping a safety kernel before a durable backend is wired up.
package memorydb

import (
	"errors"
	"sort"
	"sync"

	"github.com/tos-network/safetyrules/tosdb"
)

var (
	// ErrMemorydbClosed is returned on any read/write against a closed Database.
	ErrMemorydbClosed = errors.New("memorydb: closed")
	// ErrMemorydbNotFound is returned for Get misses; Delete of a missing key
	// succeeds.
	ErrMemorydbNotFound = errors.New("memorydb: not found")
)

// Database is an ephemeral key/value store backed by a plain Go map. Safe
// for concurrent use.
type Database struct {
	lock sync.RWMutex
	db   map[string][]byte
}

// New returns an empty Database.
func New() *Database {
	return &Database{
		db: make(map[string][]byte),
	}
}

func (d *Database) Has(key []byte) (bool, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return false, ErrMemorydbClosed
	}
	_, ok := d.db[string(key)]
	return ok, nil
}

func (d *Database) Get(key []byte) ([]byte, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return nil, ErrMemorydbClosed
	}
	if v, ok := d.db[string(key)]; ok {
		return append([]byte(nil), v...), nil
	}
	return nil, ErrMemorydbNotFound
}

func (d *Database) Put(key []byte, value []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.db == nil {
		return ErrMemorydbClosed
	}
	d.db[string(key)] = append([]byte(nil), value...)
	return nil
}

func (d *Database) Delete(key []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.db == nil {
		return ErrMemorydbClosed
	}
	delete(d.db, string(key))
	return nil
}

func (d *Database) Stat(property string) (string, error) {
	return "", nil
}

func (d *Database) Compact(start []byte, limit []byte) error {
	return nil
}

func (d *Database) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.db = nil
	return nil
}

func (d *Database) NewBatch() tosdb.Batch {
	return &batch{db: d}
}

func (d *Database) NewIterator(prefix []byte, start []byte) tosdb.Iterator {
	d.lock.RLock()
	defer d.lock.RUnlock()

	keys := make([]string, 0, len(d.db))
	for k := range d.db {
		if len(k) < len(prefix) || k[:len(prefix)] != string(prefix) {
			continue
		}
		if k < string(prefix)+string(start) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = append([]byte(nil), d.db[k]...)
	}
	return &iterator{keys: keys, values: values, index: -1}
}

type keyvalue struct {
	key   []byte
	value []byte
}

// batch is a write-only memory batch that commits changes atomically to its
// host Database when Write is called.
type batch struct {
	db     *Database
	writes []keyvalue
	size   int
}

func (b *batch) Put(key []byte, value []byte) error {
	b.writes = append(b.writes, keyvalue{append([]byte(nil), key...), append([]byte(nil), value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.writes = append(b.writes, keyvalue{append([]byte(nil), key...), nil})
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	b.db.lock.Lock()
	defer b.db.lock.Unlock()

	if b.db.db == nil {
		return ErrMemorydbClosed
	}
	for _, kv := range b.writes {
		if kv.value == nil {
			delete(b.db.db, string(kv.key))
			continue
		}
		b.db.db[string(kv.key)] = kv.value
	}
	return nil
}

func (b *batch) Reset() {
	b.writes = b.writes[:0]
	b.size = 0
}

type iterator struct {
	keys   []string
	values [][]byte
	index  int
}

func (it *iterator) Next() bool {
	it.index++
	return it.index < len(it.keys)
}

func (it *iterator) Error() error { return nil }

func (it *iterator) Key() []byte {
	if it.index < 0 || it.index >= len(it.keys) {
		return nil
	}
	return []byte(it.keys[it.index])
}

func (it *iterator) Value() []byte {
	if it.index < 0 || it.index >= len(it.values) {
		return nil
	}
	return it.values[it.index]
}

func (it *iterator) Release() {}
