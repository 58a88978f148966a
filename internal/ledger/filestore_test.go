package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "ledger.json"))
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return fs
}

func TestFileStoreMissingFileIsEmptyVersionZero(t *testing.T) {
	fs := newTestFileStore(t)
	snap, ver, err := fs.Read(context.Background())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(snap.Transactions) != 0 {
		t.Fatalf("expected empty ledger, got %d rows", len(snap.Transactions))
	}
	if ver != "0" {
		t.Fatalf("expected version 0, got %q", ver)
	}
}

func TestFileStoreConditionalWriteAdvancesVersion(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	_, v0, err := fs.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := Snapshot{Transactions: []Transaction{validBuy("tx-1")}}
	v1, err := fs.ConditionalWrite(ctx, s, v0)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if v1 == v0 {
		t.Fatalf("version did not advance")
	}

	got, ver, err := fs.Read(ctx)
	if err != nil {
		t.Fatalf("re-read: %v", err)
	}
	if ver != v1 {
		t.Fatalf("read version %q want %q", ver, v1)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].ID != "tx-1" {
		t.Fatalf("unexpected content: %+v", got.Transactions)
	}
}

func TestFileStoreStaleVersionRejected(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()

	_, v0, _ := fs.Read(ctx)
	if _, err := fs.ConditionalWrite(ctx, Snapshot{Transactions: []Transaction{validBuy("tx-1")}}, v0); err != nil {
		t.Fatalf("first write: %v", err)
	}

	// A second writer still holding v0 must lose.
	_, err := fs.ConditionalWrite(ctx, Snapshot{Transactions: []Transaction{validBuy("tx-2")}}, v0)
	if !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	got, _, err := fs.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].ID != "tx-1" {
		t.Fatalf("losing write leaked: %+v", got.Transactions)
	}
}

func TestFileStoreRejectsInvalidSnapshot(t *testing.T) {
	fs := newTestFileStore(t)
	ctx := context.Background()
	_, v0, _ := fs.Read(ctx)

	bad := Snapshot{Transactions: []Transaction{validBuy("tx-1"), validBuy("tx-1")}}
	if _, err := fs.ConditionalWrite(ctx, bad, v0); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestFileStoreNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")
	fs, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	ctx := context.Background()
	_, v0, _ := fs.Read(ctx)
	if _, err := fs.ConditionalWrite(ctx, Snapshot{Transactions: []Transaction{validBuy("tx-1")}}, v0); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file still present after rename")
	}
}
