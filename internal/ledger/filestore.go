package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

// fileEnvelope is the on-disk shape: content plus a monotonic version.
type fileEnvelope struct {
	Version      int64         `json:"version"`
	UpdatedAt    string        `json:"updated_at"`
	Transactions []Transaction `json:"transactions"`
}

// FileStore keeps the ledger in a single JSON file with a monotonic version
// counter. Writes are temp-file + rename so readers never see a torn file.
// The conditional write re-reads the current version under a process lock;
// cross-process safety holds for the single-host layouts this store is for,
// remote multi-writer setups should use the Redis store.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates the parent directory eagerly so the first write
// cannot fail on a missing path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

func (fs *FileStore) Read(ctx context.Context) (Snapshot, Version, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	env, err := fs.readEnvelope()
	if err != nil {
		return Snapshot{}, "", err
	}
	s := Snapshot{Transactions: env.Transactions}
	if err := s.Validate(); err != nil {
		return Snapshot{}, "", fmt.Errorf("ledger file %s: %w", fs.path, err)
	}
	return s, Version(strconv.FormatInt(env.Version, 10)), nil
}

func (fs *FileStore) ConditionalWrite(ctx context.Context, s Snapshot, expected Version) (Version, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()

	cur, err := fs.readEnvelope()
	if err != nil {
		return "", err
	}
	if Version(strconv.FormatInt(cur.Version, 10)) != expected {
		return "", ErrVersionConflict
	}

	next := fileEnvelope{
		Version:      cur.Version + 1,
		UpdatedAt:    time.Now().UTC().Format(time.RFC3339),
		Transactions: s.Transactions,
	}
	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal ledger: %w", err)
	}

	tempPath := fs.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return "", fmt.Errorf("write temp ledger: %w", err)
	}
	if err := os.Rename(tempPath, fs.path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("rename ledger: %w", err)
	}
	return Version(strconv.FormatInt(next.Version, 10)), nil
}

func (fs *FileStore) readEnvelope() (fileEnvelope, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fileEnvelope{Version: 0}, nil
		}
		return fileEnvelope{}, fmt.Errorf("read ledger file: %w", err)
	}
	var env fileEnvelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return fileEnvelope{}, fmt.Errorf("decode ledger file %s: %w", fs.path, err)
	}
	return env, nil
}
