package recorder

import (
	"fmt"
	"path/filepath"
	"testing"
)

func TestStoreInsertAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.db")
	store, err := Open(path, 1<<30)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	for i := 0; i < 5; i++ {
		payload := []byte(fmt.Sprintf(`{"market_ticker":"MKT-A","price":%d}`, 40+i))
		if err := store.Insert("ticker", "MKT-A", payload); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	if n := store.Count(); n != 5 {
		t.Errorf("Count = %d, want 5", n)
	}
}

func TestStoreReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.db")

	store, err := Open(path, 1<<30)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Insert("trade", "MKT-A", []byte(`{"count":1}`)); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := Open(path, 1<<30)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if n := reopened.Count(); n != 1 {
		t.Errorf("Count after reopen = %d, want 1", n)
	}
}

func TestStoreEvictsWhenOverBudget(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.db")

	// A tiny byte budget forces eviction at the first size check.
	store, err := Open(path, 4096)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	payload := make([]byte, 1024)
	for i := 0; i < 200; i++ {
		if err := store.Insert("ticker", "MKT-A", payload); err != nil {
			t.Fatalf("Insert %d: %v", i, err)
		}
	}

	if n := store.Count(); n >= 200 {
		t.Errorf("Count = %d; no rows were evicted", n)
	}
}

func TestStoreCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "feed.db")
	store, err := Open(path, 1<<30)
	if err != nil {
		t.Fatalf("Open with missing parent dir: %v", err)
	}
	store.Close()
}
