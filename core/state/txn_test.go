package state

import (
	"bytes"
	"testing"

	"loantender/storage"
)

func TestTxnBuffersWrites(t *testing.T) {
	parent := storage.NewMemDB()
	txn := NewTxn(parent)

	if err := txn.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if txn.Pending() != 1 {
		t.Fatalf("expected one pending write, got %d", txn.Pending())
	}

	// The overlay sees its own write; the parent does not.
	value, err := txn.Get([]byte("a"))
	if err != nil || !bytes.Equal(value, []byte("1")) {
		t.Fatalf("overlay read: %q %v", value, err)
	}
	if value, _ := parent.Get([]byte("a")); value != nil {
		t.Fatalf("write must not reach parent before commit")
	}
}

func TestTxnFallsThroughToParent(t *testing.T) {
	parent := storage.NewMemDB()
	if err := parent.Put([]byte("base"), []byte("v0")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	txn := NewTxn(parent)

	value, err := txn.Get([]byte("base"))
	if err != nil || !bytes.Equal(value, []byte("v0")) {
		t.Fatalf("fall-through read: %q %v", value, err)
	}

	if err := txn.Put([]byte("base"), []byte("v1")); err != nil {
		t.Fatalf("put: %v", err)
	}
	value, _ = txn.Get([]byte("base"))
	if !bytes.Equal(value, []byte("v1")) {
		t.Fatalf("overlay must shadow parent, got %q", value)
	}
	value, _ = parent.Get([]byte("base"))
	if !bytes.Equal(value, []byte("v0")) {
		t.Fatalf("parent must keep its value until commit, got %q", value)
	}
}

func TestTxnCommit(t *testing.T) {
	parent := storage.NewMemDB()
	txn := NewTxn(parent)
	_ = txn.Put([]byte("a"), []byte("1"))
	_ = txn.Put([]byte("b"), []byte("2"))
	_ = txn.Put([]byte("a"), []byte("3"))

	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if value, _ := parent.Get([]byte("a")); !bytes.Equal(value, []byte("3")) {
		t.Fatalf("last write must win, got %q", value)
	}
	if value, _ := parent.Get([]byte("b")); !bytes.Equal(value, []byte("2")) {
		t.Fatalf("expected b=2, got %q", value)
	}
	if txn.Pending() != 0 {
		t.Fatalf("commit must drain the overlay, %d pending", txn.Pending())
	}
}

func TestTxnDiscard(t *testing.T) {
	parent := storage.NewMemDB()
	txn := NewTxn(parent)
	_ = txn.Put([]byte("ghost"), []byte("x"))
	// Dropping the transaction without commit leaves the parent untouched.
	if err := txn.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if value, _ := parent.Get([]byte("ghost")); value != nil {
		t.Fatalf("discarded write must not persist, got %q", value)
	}
	if parent.Len() != 0 {
		t.Fatalf("parent must be empty, has %d keys", parent.Len())
	}
}

func TestManagerOverTxn(t *testing.T) {
	parent := storage.NewMemDB()

	txn := NewTxn(parent)
	m := NewManager(txn)
	id, err := m.NextLoanID()
	if err != nil {
		t.Fatalf("next id: %v", err)
	}
	if err := m.LoanPut(testLoan(id)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	// A second, discarded transaction leaves the committed state visible and
	// unchanged.
	txn2 := NewTxn(parent)
	m2 := NewManager(txn2)
	id2, _ := m2.NextLoanID()
	_ = m2.LoanPut(testLoan(id2))

	final := NewManager(parent)
	if _, ok, _ := final.LoanGet(id); !ok {
		t.Fatalf("committed loan must be visible")
	}
	if _, ok, _ := final.LoanGet(id2); ok {
		t.Fatalf("discarded loan must not be visible")
	}
	if count, _ := final.LoanCount(); count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
}
