package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// state is the on-disk record. Session and drafts share one file so that
// removing it tears both down together.
type state struct {
	Session *Session                  `json:"session,omitempty"`
	Drafts  map[string]map[string]any `json:"drafts,omitempty"`
}

// FileStore is a Store persisted to a single JSON file. Every change is
// written to a temp file and renamed over the original.
type FileStore struct {
	mu    sync.RWMutex
	path  string
	state state
}

// OpenFileStore loads the state at path, starting empty when it is absent.
func OpenFileStore(path string) (*FileStore, error) {
	fsStore := &FileStore{path: path, state: state{Drafts: map[string]map[string]any{}}}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fsStore, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&fsStore.state); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	if fsStore.state.Drafts == nil {
		fsStore.state.Drafts = map[string]map[string]any{}
	}
	return fsStore, nil
}

func (f *FileStore) Save(s Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.state
	next.Session = &s
	return f.commit(next)
}

func (f *FileStore) Current() (Session, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.state.Session == nil {
		return Session{}, false
	}
	return *f.state.Session, true
}

func (f *FileStore) IsValid(now time.Time) bool {
	s, ok := f.Current()
	return ok && s.ValidAt(now)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	f.state = state{Drafts: map[string]map[string]any{}}
	return nil
}

func (f *FileStore) SaveDraft(docID string, content map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.state
	next.Drafts = maps.Clone(f.state.Drafts)
	next.Drafts[docID] = maps.Clone(content)
	return f.commit(next)
}

func (f *FileStore) Draft(docID string) (map[string]any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	d, ok := f.state.Drafts[docID]
	return maps.Clone(d), ok
}

func (f *FileStore) DeleteDraft(docID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.state.Drafts[docID]; !ok {
		return nil
	}
	next := f.state
	next.Drafts = maps.Clone(f.state.Drafts)
	delete(next.Drafts, docID)
	return f.commit(next)
}

// commit writes next to disk and adopts it only once the rename succeeded.
// Callers hold f.mu.
func (f *FileStore) commit(next state) error {
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}

	f.state = next
	return nil
}

var _ Store = (*FileStore)(nil)
