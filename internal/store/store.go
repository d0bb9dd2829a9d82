// Package store keeps connections, field mappings and sync statuses as one
// keyed JSON document. Writes are last-write-wins; there are no transactions.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/connectforce/connectforce/internal/spec"
)

var ErrNotFound = errors.New("not found")

// Store is the storage collaborator used by the connection service and the CLI.
type Store interface {
	Connections(ctx context.Context) ([]spec.Connection, error)
	Connection(ctx context.Context, id string) (*spec.Connection, error)
	SaveConnection(ctx context.Context, c *spec.Connection) error
	DeleteConnection(ctx context.Context, id string) error

	Mappings(ctx context.Context) ([]FieldMapping, error)
	Mapping(ctx context.Context, id string) (*FieldMapping, error)
	MappingsByConnection(ctx context.Context, connectionID string) ([]FieldMapping, error)
	SaveMapping(ctx context.Context, m *FieldMapping) error
	DeleteMapping(ctx context.Context, id string) error

	SyncStatuses(ctx context.Context) ([]SyncStatus, error)
	SyncStatus(ctx context.Context, connectionID string) (*SyncStatus, error)
	SaveSyncStatus(ctx context.Context, s *SyncStatus) error

	ClearAll(ctx context.Context) error
	ExportData(ctx context.Context) (*Data, error)
	ImportData(ctx context.Context, d *Data) error
}

// FileStore persists the document at Path. Every operation re-reads the
// file so concurrent processes see each other's writes. With an empty path
// the document lives in memory only.
type FileStore struct {
	mu     sync.Mutex
	path   string
	mem    []byte
	logger *zap.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store backed by path. The file is created on the
// first write.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{path: path, logger: logger}
}

// NewMemoryStore returns a store that never touches the filesystem.
func NewMemoryStore() *FileStore {
	return NewFileStore("", nil)
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) load() (*Data, error) {
	raw := s.mem
	if s.path != "" {
		b, err := os.ReadFile(s.path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			raw = nil
		case err != nil:
			return nil, fmt.Errorf("read store: %w", err)
		default:
			raw = b
		}
	}
	d := &Data{}
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode store %s: %w", s.path, err)
	}
	return d, nil
}

func (s *FileStore) flush(d *Data) error {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}
	b = append(b, '\n')
	if s.path == "" {
		s.mem = b
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("chmod store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename store: %w", err)
	}
	return nil
}

// read runs fn against a fresh copy of the document.
func (s *FileStore) read(ctx context.Context, fn func(*Data) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.load()
	if err != nil {
		return err
	}
	return fn(d)
}

// update runs fn and writes the document back when fn succeeds.
func (s *FileStore) update(ctx context.Context, fn func(*Data) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(d); err != nil {
		return err
	}
	return s.flush(d)
}

func (s *FileStore) Connections(ctx context.Context) ([]spec.Connection, error) {
	var out []spec.Connection
	err := s.read(ctx, func(d *Data) error {
		out = d.Connections
		return nil
	})
	return out, err
}

func (s *FileStore) Connection(ctx context.Context, id string) (*spec.Connection, error) {
	var out *spec.Connection
	err := s.read(ctx, func(d *Data) error {
		for i := range d.Connections {
			if d.Connections[i].ID == id {
				out = &d.Connections[i]
				return nil
			}
		}
		return fmt.Errorf("connection %s: %w", id, ErrNotFound)
	})
	return out, err
}

func (s *FileStore) SaveConnection(ctx context.Context, c *spec.Connection) error {
	if c == nil || c.ID == "" {
		return errors.New("store: connection id is required")
	}
	err := s.update(ctx, func(d *Data) error {
		d.Connections = upsert(d.Connections, *c, func(x spec.Connection) bool { return x.ID == c.ID })
		return nil
	})
	if err == nil {
		s.logger.Debug("saved connection", zap.String("id", c.ID))
	}
	return err
}

func (s *FileStore) DeleteConnection(ctx context.Context, id string) error {
	return s.update(ctx, func(d *Data) error {
		d.Connections = remove(d.Connections, func(x spec.Connection) bool { return x.ID == id })
		return nil
	})
}

func (s *FileStore) Mappings(ctx context.Context) ([]FieldMapping, error) {
	var out []FieldMapping
	err := s.read(ctx, func(d *Data) error {
		out = d.Mappings
		return nil
	})
	return out, err
}

func (s *FileStore) Mapping(ctx context.Context, id string) (*FieldMapping, error) {
	var out *FieldMapping
	err := s.read(ctx, func(d *Data) error {
		for i := range d.Mappings {
			if d.Mappings[i].ID == id {
				out = &d.Mappings[i]
				return nil
			}
		}
		return fmt.Errorf("mapping %s: %w", id, ErrNotFound)
	})
	return out, err
}

func (s *FileStore) MappingsByConnection(ctx context.Context, connectionID string) ([]FieldMapping, error) {
	var out []FieldMapping
	err := s.read(ctx, func(d *Data) error {
		for _, m := range d.Mappings {
			if m.ConnectionID == connectionID {
				out = append(out, m)
			}
		}
		return nil
	})
	return out, err
}

func (s *FileStore) SaveMapping(ctx context.Context, m *FieldMapping) error {
	if m == nil || m.ID == "" {
		return errors.New("store: mapping id is required")
	}
	return s.update(ctx, func(d *Data) error {
		d.Mappings = upsert(d.Mappings, *m, func(x FieldMapping) bool { return x.ID == m.ID })
		return nil
	})
}

func (s *FileStore) DeleteMapping(ctx context.Context, id string) error {
	return s.update(ctx, func(d *Data) error {
		d.Mappings = remove(d.Mappings, func(x FieldMapping) bool { return x.ID == id })
		return nil
	})
}

func (s *FileStore) SyncStatuses(ctx context.Context) ([]SyncStatus, error) {
	var out []SyncStatus
	err := s.read(ctx, func(d *Data) error {
		out = d.SyncStatuses
		return nil
	})
	return out, err
}

func (s *FileStore) SyncStatus(ctx context.Context, connectionID string) (*SyncStatus, error) {
	var out *SyncStatus
	err := s.read(ctx, func(d *Data) error {
		for i := range d.SyncStatuses {
			if d.SyncStatuses[i].ConnectionID == connectionID {
				out = &d.SyncStatuses[i]
				return nil
			}
		}
		return fmt.Errorf("sync status %s: %w", connectionID, ErrNotFound)
	})
	return out, err
}

func (s *FileStore) SaveSyncStatus(ctx context.Context, st *SyncStatus) error {
	if st == nil || st.ConnectionID == "" {
		return errors.New("store: sync status connection id is required")
	}
	return s.update(ctx, func(d *Data) error {
		d.SyncStatuses = upsert(d.SyncStatuses, *st, func(x SyncStatus) bool { return x.ConnectionID == st.ConnectionID })
		return nil
	})
}

func (s *FileStore) ClearAll(ctx context.Context) error {
	return s.update(ctx, func(d *Data) error {
		*d = Data{}
		return nil
	})
}

func (s *FileStore) ExportData(ctx context.Context) (*Data, error) {
	var out *Data
	err := s.read(ctx, func(d *Data) error {
		out = d
		return nil
	})
	return out, err
}

// ImportData replaces each collection that is non-nil in in.
func (s *FileStore) ImportData(ctx context.Context, in *Data) error {
	if in == nil {
		return nil
	}
	return s.update(ctx, func(d *Data) error {
		if in.Connections != nil {
			d.Connections = in.Connections
		}
		if in.Mappings != nil {
			d.Mappings = in.Mappings
		}
		if in.SyncStatuses != nil {
			d.SyncStatuses = in.SyncStatuses
		}
		return nil
	})
}

func upsert[T any](items []T, v T, match func(T) bool) []T {
	for i := range items {
		if match(items[i]) {
			items[i] = v
			return items
		}
	}
	return append(items, v)
}

func remove[T any](items []T, match func(T) bool) []T {
	out := items[:0]
	for _, it := range items {
		if !match(it) {
			out = append(out, it)
		}
	}
	return out
}
