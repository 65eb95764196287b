// Package artifact reads and writes the small JSON files that sit next to
// the database: the sync checkpoint, the dashboard status file, the raw
// master list envelope and the single-instance lock.
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/ndewijer/fci-sync/internal/apperrors"
	"github.com/ndewijer/fci-sync/internal/model"
)

// File names inside the data directory.
const (
	CheckpointFile = "scrapper_checkpoint.json"
	StatusFile     = "sync_status.json"
	MasterFile     = "cafci_master_full.json"
	LockFile       = "sync.lock"
)

// Store manages the artifacts of one data directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a Store rooted at dir. The directory is created on first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the full path of an artifact file.
func (s *Store) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// LoadCheckpoint reads the persisted checkpoint. A missing file yields a zero
// checkpoint; an unreadable one is an error so that a corrupt file never
// silently restarts a long run from zero.
func (s *Store) LoadCheckpoint() (model.SyncCheckpoint, error) {
	var cp model.SyncCheckpoint
	ok, err := s.readJSON(CheckpointFile, &cp)
	if err != nil {
		return model.SyncCheckpoint{}, err
	}
	if !ok || cp.ProcessedCount < 0 {
		return model.SyncCheckpoint{}, nil
	}
	return cp, nil
}

// SaveCheckpoint persists cp atomically.
func (s *Store) SaveCheckpoint(cp model.SyncCheckpoint) error {
	return s.writeJSON(CheckpointFile, cp)
}

// ClearCheckpoint removes the checkpoint file.
func (s *Store) ClearCheckpoint() error {
	return s.remove(CheckpointFile)
}

// WriteStatus persists the dashboard status file atomically.
func (s *Store) WriteStatus(status model.SyncStatus) error {
	return s.writeJSON(StatusFile, status)
}

// ReadStatus reads the status file. Returns nil, nil when none was written yet.
func (s *Store) ReadStatus() (*model.SyncStatus, error) {
	var status model.SyncStatus
	ok, err := s.readJSON(StatusFile, &status)
	if err != nil || !ok {
		return nil, err
	}
	return &status, nil
}

// SaveMasterEnvelope stores the raw master list response verbatim.
func (s *Store) SaveMasterEnvelope(raw []byte) error {
	return s.writeFile(MasterFile, raw)
}

// LoadMasterEnvelope returns the last stored master list response.
func (s *Store) LoadMasterEnvelope() ([]byte, error) {
	data, err := os.ReadFile(s.Path(MasterFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", MasterFile, err)
	}
	return data, nil
}

func (s *Store) readJSON(name string, v any) (bool, error) {
	data, err := os.ReadFile(s.Path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return true, nil
}

func (s *Store) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}
	return s.writeFile(name, data)
}

// writeFile writes through a temp file and a rename so readers never see a
// half-written artifact.
func (s *Store) writeFile(name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.Path(name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

func (s *Store) remove(name string) error {
	err := os.Remove(s.Path(name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", name, err)
	}
	return nil
}

// LockInfo is the content of the lock file.
type LockInfo struct {
	PID       int       `json:"pid"`
	RunID     string    `json:"runId"`
	Host      string    `json:"host,omitempty"`
	StartedAt time.Time `json:"startedAt"`
}

// Lock is a held single-instance lock.
type Lock struct {
	path string
}

// Release removes the lock file.
func (l *Lock) Release() error {
	err := os.Remove(l.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// AcquireLock creates the lock file exclusively. When another holder exists
// it fails with ErrSyncInProgress, unless the existing lock is older than
// staleAfter (a crashed run), in which case it is taken over.
func (s *Store) AcquireLock(runID string, staleAfter time.Duration) (*Lock, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	host, _ := os.Hostname()
	info := LockInfo{PID: os.Getpid(), RunID: runID, Host: host, StartedAt: s.now().UTC()}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lock: %w", err)
	}

	path := s.Path(LockFile)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, werr := f.Write(data)
			cerr := f.Close()
			if werr != nil || cerr != nil {
				os.Remove(path)
				return nil, fmt.Errorf("failed to write lock: %w", errors.Join(werr, cerr))
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("failed to create lock: %w", err)
		}

		held, herr := s.ReadLock()
		if herr != nil || held == nil || staleAfter <= 0 || s.now().Sub(held.StartedAt) < staleAfter {
			holder := "unknown"
			if held != nil {
				holder = fmt.Sprintf("pid %d since %s", held.PID, held.StartedAt.Format(time.RFC3339))
			}
			return nil, fmt.Errorf("%w: lock held by %s", apperrors.ErrSyncInProgress, holder)
		}
		if err := s.BreakLock(); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: lock contended", apperrors.ErrSyncInProgress)
}

// ReadLock returns the current lock holder, or nil when unlocked.
func (s *Store) ReadLock() (*LockInfo, error) {
	var info LockInfo
	ok, err := s.readJSON(LockFile, &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

// BreakLock removes the lock file regardless of its holder.
func (s *Store) BreakLock() error {
	return s.remove(LockFile)
}
