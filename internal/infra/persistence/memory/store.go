// Package memory provides an in-memory implementation of the dataset store
// used for tests, ephemeral environments and as the working set of the
// snapshotting SQL backends.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"ampcore/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.DatasetStore = (*Store)(nil)

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Datasets map[string]domain.Dataset `json:"datasets"`
}

// Store keeps datasets in process memory. Values are cloned on the way in and
// out so callers never share backing arrays with the store.
type Store struct {
	mu       sync.RWMutex
	datasets map[string]domain.Dataset
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{datasets: make(map[string]domain.Dataset)}
}

// Save implements domain.DatasetStore.
func (s *Store) Save(_ context.Context, name string, ds domain.Dataset) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewInvalidInputError("name", "dataset name required")
	}
	s.mu.Lock()
	s.datasets[name] = ds.Clone()
	s.mu.Unlock()
	return nil
}

// Load implements domain.DatasetStore.
func (s *Store) Load(_ context.Context, name string) (domain.Dataset, error) {
	s.mu.RLock()
	ds, ok := s.datasets[name]
	s.mu.RUnlock()
	if !ok {
		return domain.Dataset{}, domain.ErrNotFound{Entity: domain.EntityDataset, ID: name}
	}
	return ds.Clone(), nil
}

// List implements domain.DatasetStore.
func (s *Store) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)
	return names, nil
}

// Delete implements domain.DatasetStore.
func (s *Store) Delete(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[name]; !ok {
		return false, nil
	}
	delete(s.datasets, name)
	return true, nil
}

// ExportState returns a deep copy of every stored dataset.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{Datasets: make(map[string]domain.Dataset, len(s.datasets))}
	for name, ds := range s.datasets {
		snap.Datasets[name] = ds.Clone()
	}
	return snap
}

// ImportState replaces the store contents with snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	datasets := make(map[string]domain.Dataset, len(snapshot.Datasets))
	for name, ds := range snapshot.Datasets {
		datasets[name] = ds.Clone()
	}
	s.mu.Lock()
	s.datasets = datasets
	s.mu.Unlock()
}
