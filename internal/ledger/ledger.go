// Package ledger implements the installation ledger: a JSON file tracking
// every package this process has installed, loaded lazily and cached in
// memory, written atomically.
package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Record is one installation ledger entry (spec.md §3).
type Record struct {
	RepoID      string    `json:"repo_id"`
	Category    string    `json:"category"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Host        string    `json:"host,omitempty"`
	InstallPath string    `json:"install_path"`
	InstallTime time.Time `json:"install_time"`
}

// Key returns the record's ledger key: "{repo_id}:{category}/{name}
// {version}[ host={host}]".
func (r Record) Key() string {
	k := fmt.Sprintf("%s:%s/%s %s", r.RepoID, r.Category, r.Name, r.Version)
	if r.Host != "" {
		k += " host=" + r.Host
	}
	return k
}

type diskState struct {
	Records map[string]Record `json:"records"`
}

// Ledger is the lazily-loaded, in-memory-cached, atomically-persisted
// installation record store.
type Ledger struct {
	path string

	mu      sync.Mutex
	loaded  bool
	records map[string]Record
}

// New constructs a Ledger backed by the given state file path. Nothing
// touches disk until the first Load-triggering call.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

func (l *Ledger) lockPath() string { return l.path + ".lock" }

func (l *Ledger) ensureLoadedLocked() error {
	if l.loaded {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		l.records = make(map[string]Record)
		l.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading ledger %s: %w", l.path, err)
	}
	var state diskState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("parsing ledger %s: %w", l.path, err)
	}
	if state.Records == nil {
		state.Records = make(map[string]Record)
	}
	l.records = state.Records
	l.loaded = true
	return nil
}

// saveLocked persists the current in-memory records atomically: write to
// a sibling ".tmp" file, fsync, then rename over the real path.
func (l *Ledger) saveLocked() error {
	data, err := json.MarshalIndent(diskState{Records: l.records}, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}

	fl := flock.New(l.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return fmt.Errorf("acquiring ledger lock: %w", err)
	}
	defer fl.Unlock()

	tmp := l.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// Record adds or overwrites an installation record.
func (l *Ledger) Record(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(); err != nil {
		return err
	}
	l.records[rec.Key()] = rec
	return l.saveLocked()
}

// Remove deletes a record by key, if present.
func (l *Ledger) Remove(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(); err != nil {
		return err
	}
	delete(l.records, key)
	return l.saveLocked()
}

// IsInstalled reports whether a record with the given key exists.
func (l *Ledger) IsInstalled(key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(); err != nil {
		return false, err
	}
	_, ok := l.records[key]
	return ok, nil
}

// Get returns a record by key.
func (l *Ledger) Get(key string) (Record, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(); err != nil {
		return Record{}, false, err
	}
	rec, ok := l.records[key]
	return rec, ok, nil
}

// ListAll returns every ledger record.
func (l *Ledger) ListAll() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, r)
	}
	return out, nil
}

// MakeKey builds a ledger key without requiring a full Record value,
// for callers (the installer, the uninstaller) that only have the
// identifying fields in hand.
func MakeKey(repoID, category, name, version, host string) string {
	return Record{RepoID: repoID, Category: category, Name: name, Version: version, Host: host}.Key()
}
