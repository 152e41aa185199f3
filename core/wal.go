package core

// File-backed SnapshotStore: an append-only WAL of RLP-framed records
// under the node's data directory, replayed into an in-memory index on
// open, with gzip'd snapshot compaction. No cross-version on-disk
// compatibility is promised.

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
)

const (
	walFileName      = "store.wal"
	snapshotFileName = "store.snap.gz"
)

// Well-known keys the runtime persists under: the trie roots plus the
// DAG head.
const (
	KeyLastConfirmed   = "dag/last_confirmed"
	KeyAccountRoot     = "state/account_root"
	KeyTransactionRoot = "state/transaction_root"
	KeyClaimRoot       = "state/claim_root"
)

var ErrKeyNotFound = errors.New("snapshot store: key not found")

// walRecord is one RLP frame in the WAL. A nil-value record is a delete.
type walRecord struct {
	Key   string
	Value []byte
}

// FileSnapshotStore is the concrete SnapshotStore collaborator.
type FileSnapshotStore struct {
	mu    sync.Mutex
	dir   string
	wal   *os.File
	index map[string][]byte
}

var _ SnapshotStore = (*FileSnapshotStore)(nil)

// OpenFileSnapshotStore opens (or creates) the store under dir, loading
// the latest snapshot if present and replaying the WAL over it.
func OpenFileSnapshotStore(dir string) (s *FileSnapshotStore, err error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	wal, err := os.OpenFile(filepath.Join(dir, walFileName), os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open WAL: %w", err)
	}
	defer func() {
		if err != nil {
			_ = wal.Close()
		}
	}()

	s = &FileSnapshotStore{dir: dir, wal: wal, index: make(map[string][]byte)}
	if err := s.loadSnapshot(); err != nil {
		return nil, err
	}
	if err := s.replayWAL(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileSnapshotStore) loadSnapshot() error {
	f, err := os.Open(filepath.Join(s.dir, snapshotFileName))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("snapshot gzip: %w", err)
	}
	defer gz.Close()
	return s.decodeInto(gz)
}

func (s *FileSnapshotStore) replayWAL() error {
	if _, err := s.wal.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek WAL: %w", err)
	}
	if err := s.decodeInto(s.wal); err != nil {
		return err
	}
	_, err := s.wal.Seek(0, io.SeekEnd)
	return err
}

func (s *FileSnapshotStore) decodeInto(r io.Reader) error {
	stream := rlp.NewStream(bufio.NewReader(r), 0)
	for {
		var rec walRecord
		if err := stream.Decode(&rec); err == io.EOF {
			return nil
		} else if err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		if len(rec.Value) == 0 {
			delete(s.index, rec.Key)
		} else {
			s.index[rec.Key] = rec.Value
		}
	}
}

// Save appends an RLP record to the WAL and updates the index.
func (s *FileSnapshotStore) Save(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := rlp.Encode(s.wal, walRecord{Key: key, Value: value}); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	if len(value) == 0 {
		delete(s.index, key)
	} else {
		s.index[key] = append([]byte(nil), value...)
	}
	return nil
}

// Load returns the value stored under key.
func (s *FileSnapshotStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.index[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return append([]byte(nil), v...), nil
}

// Snapshot compacts the store: the full index is written as a gzip'd RLP
// snapshot and the WAL is truncated.
func (s *FileSnapshotStore) Snapshot() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := filepath.Join(s.dir, snapshotFileName+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	gz := gzip.NewWriter(f)
	for key, value := range s.index {
		if err := rlp.Encode(gz, walRecord{Key: key, Value: value}); err != nil {
			gz.Close()
			f.Close()
			return fmt.Errorf("encode snapshot record: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return fmt.Errorf("finish snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, snapshotFileName)); err != nil {
		return fmt.Errorf("promote snapshot: %w", err)
	}

	if err := s.wal.Truncate(0); err != nil {
		return fmt.Errorf("truncate WAL: %w", err)
	}
	_, err = s.wal.Seek(0, io.SeekStart)
	return err
}

// Close snapshots and releases the WAL handle.
func (s *FileSnapshotStore) Close() error {
	if err := s.Snapshot(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wal.Close()
}

// PersistHead records the DAG's last-confirmed hash and the three trie
// roots. cmd/synnergy calls it once, on shutdown.
func (s *FileSnapshotStore) PersistHead(ctx context.Context, lastConfirmed Hash, state *StateStore) error {
	if err := s.Save(ctx, KeyLastConfirmed, lastConfirmed[:]); err != nil {
		return err
	}
	account, tx, claim := state.Roots()
	if err := s.Save(ctx, KeyAccountRoot, account[:]); err != nil {
		return err
	}
	if err := s.Save(ctx, KeyTransactionRoot, tx[:]); err != nil {
		return err
	}
	return s.Save(ctx, KeyClaimRoot, claim[:])
}
