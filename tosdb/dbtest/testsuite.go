// Package dbtest provides a reusable conformance suite for tosdb.KeyValueStore
// implementations, run against both memorydb and leveldb.
package dbtest

import (
	"bytes"
	"testing"

	"github.com/tos-network/safetyrules/tosdb"
)

// TestDatabaseSuite runs a battery of read/write/iterate/batch checks against
// a freshly constructed KeyValueStore.
func TestDatabaseSuite(t *testing.T, New func() tosdb.KeyValueStore) {
	t.Run("HasGet", func(t *testing.T) {
		db := New()
		defer db.Close()

		key, value := []byte("k"), []byte("v")
		if ok, err := db.Has(key); err != nil || ok {
			t.Fatalf("Has on empty db: ok=%v err=%v", ok, err)
		}
		if err := db.Put(key, value); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if ok, err := db.Has(key); err != nil || !ok {
			t.Fatalf("Has after Put: ok=%v err=%v", ok, err)
		}
		got, err := db.Get(key)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if !bytes.Equal(got, value) {
			t.Fatalf("Get mismatch: have %x want %x", got, value)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := New()
		defer db.Close()

		key := []byte("k")
		_ = db.Put(key, []byte("v"))
		if err := db.Delete(key); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if ok, _ := db.Has(key); ok {
			t.Fatal("key still present after Delete")
		}
	})

	t.Run("Overwrite", func(t *testing.T) {
		db := New()
		defer db.Close()

		key := []byte("k")
		_ = db.Put(key, []byte("v1"))
		_ = db.Put(key, []byte("v2"))
		got, _ := db.Get(key)
		if !bytes.Equal(got, []byte("v2")) {
			t.Fatalf("overwrite did not take effect, got %q", got)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		db := New()
		defer db.Close()

		b := db.NewBatch()
		for i := 0; i < 10; i++ {
			k := []byte{byte('a' + i)}
			if err := b.Put(k, k); err != nil {
				t.Fatalf("batch Put: %v", err)
			}
		}
		if b.ValueSize() == 0 {
			t.Fatal("ValueSize should reflect queued writes")
		}
		if err := b.Write(); err != nil {
			t.Fatalf("batch Write: %v", err)
		}
		for i := 0; i < 10; i++ {
			k := []byte{byte('a' + i)}
			if ok, _ := db.Has(k); !ok {
				t.Fatalf("key %q missing after batch write", k)
			}
		}
		b.Reset()
		if b.ValueSize() != 0 {
			t.Fatal("Reset should clear queued writes")
		}
	})

	t.Run("Iterator", func(t *testing.T) {
		db := New()
		defer db.Close()

		want := [][2]string{{"p/a", "1"}, {"p/b", "2"}, {"p/c", "3"}, {"q/a", "4"}}
		for _, kv := range want {
			_ = db.Put([]byte(kv[0]), []byte(kv[1]))
		}
		it := db.NewIterator([]byte("p/"), nil)
		defer it.Release()

		var got int
		for it.Next() {
			got++
		}
		if err := it.Error(); err != nil {
			t.Fatalf("iterator error: %v", err)
		}
		if got != 3 {
			t.Fatalf("expected 3 keys under prefix p/, got %d", got)
		}
	})
}
