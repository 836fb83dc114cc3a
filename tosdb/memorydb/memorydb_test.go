package memorydb

import (
	"testing"

	"github.com/tos-network/safetyrules/tosdb"
	"github.com/tos-network/safetyrules/tosdb/dbtest"
)

func TestMemoryDB(t *testing.T) {
	t.Run("DatabaseSuite", func(t *testing.T) {
		dbtest.TestDatabaseSuite(t, func() tosdb.KeyValueStore {
			return New()
		})
	})
}

func TestMemoryDBClosed(t *testing.T) {
	db := New()
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := db.Get([]byte("k")); err != ErrMemorydbClosed {
		t.Fatalf("Get on closed db: want %v, got %v", ErrMemorydbClosed, err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != ErrMemorydbClosed {
		t.Fatalf("Put on closed db: want %v, got %v", ErrMemorydbClosed, err)
	}
}
