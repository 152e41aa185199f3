package core

import (
	"testing"
	"time"
)

func sampleTxn(nonce uint64) Transaction {
	return Transaction{
		Digest:    HashBytes([]byte{byte(nonce)}),
		Sender:    Address{1},
		Receiver:  Address{2},
		Amount:    10,
		Nonce:     nonce,
		Timestamp: time.Now().UTC(),
	}
}

func TestMempoolInsertDuplicate(t *testing.T) {
	m := NewMempool()
	txn := sampleTxn(0)
	if err := m.Insert(txn); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.Insert(txn); err != ErrDuplicateInsertion {
		t.Fatalf("expected ErrDuplicateInsertion, got %v", err)
	}
}

func TestMempoolPublishIsolation(t *testing.T) {
	m := NewMempool()
	txn := sampleTxn(1)
	if err := m.Insert(txn); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Before Publish, readers see nothing.
	if _, err := m.Get(txn.Digest); err != ErrTransactionMissing {
		t.Fatalf("expected unpublished writes invisible to readers, got %v", err)
	}

	m.Publish()

	rec, err := m.Get(txn.Digest)
	if err != nil {
		t.Fatalf("get after publish: %v", err)
	}
	if rec.Status != StatusPending {
		t.Fatalf("expected pending status, got %v", rec.Status)
	}
}

func TestMempoolUpdateStatusAndRemove(t *testing.T) {
	m := NewMempool()
	txn := sampleTxn(2)
	if err := m.Insert(txn); err != nil {
		t.Fatalf("insert: %v", err)
	}
	m.Publish()

	if err := m.UpdateStatus(txn.Digest, StatusValidated); err != nil {
		t.Fatalf("update status: %v", err)
	}
	m.Publish()

	rec, err := m.Get(txn.Digest)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Status != StatusValidated {
		t.Fatalf("expected validated, got %v", rec.Status)
	}
	if rec.ValidatedAt.IsZero() {
		t.Fatal("expected ValidatedAt to be stamped")
	}

	if err := m.Remove(txn.Digest); err != nil {
		t.Fatalf("remove: %v", err)
	}
	m.Publish()

	if _, err := m.Get(txn.Digest); err != ErrTransactionMissing {
		t.Fatalf("expected removed transaction to be missing, got %v", err)
	}
}

func TestMempoolMissingOperations(t *testing.T) {
	m := NewMempool()
	missing := HashBytes([]byte("nope"))
	if err := m.UpdateStatus(missing, StatusValidated); err != ErrTransactionMissing {
		t.Fatalf("expected ErrTransactionMissing, got %v", err)
	}
	if err := m.Remove(missing); err != ErrTransactionMissing {
		t.Fatalf("expected ErrTransactionMissing, got %v", err)
	}
}

func TestMempoolSnapshotByFilter(t *testing.T) {
	m := NewMempool()
	for i := uint64(0); i < 3; i++ {
		if err := m.Insert(sampleTxn(i)); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	m.Publish()

	pending := m.SnapshotBy(PendingFilter)
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending records, got %d", len(pending))
	}
}
