// Package leveldb implements the tosdb.KeyValueStore interface on top of
// github.com/syndtr/goleveldb, the durable backend a production safety
// kernel points its persistent store at.
package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tos-network/safetyrules/tosdb"
)

// Database wraps a goleveldb instance and implements tosdb.KeyValueStore.
type Database struct {
	db *leveldb.DB
}

// New opens a LevelDB instance rooted at file, creating it if necessary.
func New(file string, cache int, handles int, readonly bool) (*Database, error) {
	options := &opt.Options{
		OpenFilesCacheCapacity: handles,
		BlockCacheCapacity:     cache / 2 * opt.MiB,
		WriteBuffer:            cache / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
		ReadOnly:               readonly,
	}
	db, err := leveldb.OpenFile(file, options)
	if err != nil {
		return nil, err
	}
	return &Database{db: db}, nil
}

func (d *Database) Has(key []byte) (bool, error) {
	return d.db.Has(key, nil)
}

func (d *Database) Get(key []byte) ([]byte, error) {
	dat, err := d.db.Get(key, nil)
	if err != nil {
		if err == errors.ErrNotFound {
			return nil, err
		}
		return nil, err
	}
	return dat, nil
}

func (d *Database) Put(key []byte, value []byte) error {
	return d.db.Put(key, value, nil)
}

func (d *Database) Delete(key []byte) error {
	return d.db.Delete(key, nil)
}

func (d *Database) Stat(property string) (string, error) {
	return d.db.GetProperty(property)
}

func (d *Database) Compact(start []byte, limit []byte) error {
	var r *util.Range
	if start != nil || limit != nil {
		r = &util.Range{Start: start, Limit: limit}
	}
	return d.db.CompactRange(*r)
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) NewBatch() tosdb.Batch {
	return &batch{db: d.db, b: new(leveldb.Batch)}
}

func (d *Database) NewIterator(prefix []byte, start []byte) tosdb.Iterator {
	return d.db.NewIterator(bytesPrefixRange(prefix, start), nil)
}

// bytesPrefixRange mirrors goleveldb's util.BytesPrefix but also seeds an
// initial key offset within the prefixed range.
func bytesPrefixRange(prefix, start []byte) *util.Range {
	r := util.BytesPrefix(prefix)
	r.Start = append(r.Start, start...)
	return r
}

type batch struct {
	db   *leveldb.DB
	b    *leveldb.Batch
	size int
}

func (b *batch) Put(key []byte, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *batch) ValueSize() int {
	return b.size
}

func (b *batch) Write() error {
	return b.db.Write(b.b, nil)
}

func (b *batch) Reset() {
	b.b.Reset()
	b.size = 0
}
