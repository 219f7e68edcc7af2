package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"election-coordinator/models"

	"github.com/pkg/errors"
)

// Snapshot is the persisted form of a development ledger: its world state and
// the block log that produced it. Both are written in a single file so they
// can never disagree after a crash.
type Snapshot struct {
	State  map[string]json.RawMessage `json:"state"`
	Blocks []*models.Block            `json:"blocks"`
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		State:  make(map[string]json.RawMessage),
		Blocks: make([]*models.Block, 0),
	}
}

type JSONStore struct {
	basePath string
	mu       sync.RWMutex
}

func NewJSONStore(basePath string) (*JSONStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create directory")
	}

	return &JSONStore{basePath: basePath}, nil
}

func (s *JSONStore) path(name string) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%s_ledger.json", name))
}

// Load reads the named snapshot. A missing file yields an empty snapshot.
func (s *JSONStore) Load(name string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return emptySnapshot(), nil
		}
		return nil, errors.Wrapf(err, "failed to read snapshot %s", name)
	}

	snapshot := emptySnapshot()
	if err := json.Unmarshal(data, snapshot); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal snapshot %s", name)
	}
	if snapshot.State == nil {
		snapshot.State = make(map[string]json.RawMessage)
	}

	return snapshot, nil
}

// ErrNotDurable marks a Save whose snapshot file was already replaced but
// could not be flushed to disk. Readers in this process see the new snapshot.
var ErrNotDurable = errors.New("snapshot replaced but not synced")

// Save replaces the named snapshot atomically.
func (s *JSONStore) Save(name string, snapshot *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal snapshot")
	}

	path := s.path(name)
	tempPath := path + ".tmp"
	if err := writeSynced(tempPath, data); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to write snapshot file")
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to save snapshot file")
	}

	if err := syncDir(s.basePath); err != nil {
		return errors.Wrapf(ErrNotDurable, "%s: %v", name, err)
	}

	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// syncDir flushes the rename itself. Windows cannot fsync a directory.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}
