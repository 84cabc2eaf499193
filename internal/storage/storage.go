package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/maltedev/feed-image-extractor/internal/models"
)

const (
	StatusParsed     = "parsed"
	StatusDownloaded = "downloaded"
	StatusFailed     = "failed"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is a parsed feed kept between CLI runs.
type Snapshot struct {
	Source    string             `json:"source"`
	Status    string             `json:"status"`
	Feed      *models.ParsedFeed `json:"feed"`
	AddedAt   time.Time          `json:"added_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Error     string             `json:"error,omitempty"`
}

// SnapshotStore is a JSON file of snapshots keyed by feed source.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	filename  string
}

func NewSnapshotStore(filename string) (*SnapshotStore, error) {
	s := &SnapshotStore{
		snapshots: make(map[string]*Snapshot),
		filename:  filename,
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return s, nil
}

// Save replaces the snapshot for source with a freshly parsed feed.
func (s *SnapshotStore) Save(source string, feed *models.ParsedFeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if source == "" {
		return fmt.Errorf("source is required")
	}

	now := time.Now()
	snapshot := &Snapshot{
		Source:    source,
		Status:    StatusParsed,
		Feed:      feed,
		AddedAt:   now,
		UpdatedAt: now,
	}
	if existing, ok := s.snapshots[source]; ok {
		snapshot.AddedAt = existing.AddedAt
	}

	s.snapshots[source] = snapshot
	return s.save()
}

func (s *SnapshotStore) Get(source string) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, exists := s.snapshots[source]
	return snapshot, exists
}

// Latest returns the most recently updated snapshot.
func (s *SnapshotStore) Latest() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *Snapshot
	for _, snapshot := range s.snapshots {
		if latest == nil || snapshot.UpdatedAt.After(latest.UpdatedAt) {
			latest = snapshot
		}
	}
	return latest, latest != nil
}

// List returns snapshots ordered by source.
func (s *SnapshotStore) List() []*Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]*Snapshot, 0, len(s.snapshots))
	for _, snapshot := range s.snapshots {
		list = append(list, snapshot)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Source < list[j].Source })
	return list
}

func (s *SnapshotStore) UpdateStatus(source, status, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot, exists := s.snapshots[source]
	if !exists {
		return fmt.Errorf("%w: %s", ErrSnapshotNotFound, source)
	}

	snapshot.Status = status
	snapshot.UpdatedAt = time.Now()
	snapshot.Error = errorMsg

	return s.save()
}

func (s *SnapshotStore) GetStats() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int)
	for _, snapshot := range s.snapshots {
		stats[snapshot.Status]++
		if snapshot.Feed != nil {
			stats["products"] += snapshot.Feed.TotalCount
			stats["images"] += snapshot.Feed.ImageCount()
		}
	}
	stats["total"] = len(s.snapshots)
	return stats
}

func (s *SnapshotStore) save() error {
	data, err := json.MarshalIndent(s.snapshots, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	// Write to temp file first for atomicity
	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, s.filename)
}

func (s *SnapshotStore) Load() error {
	data, err := os.ReadFile(s.filename)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return json.Unmarshal(data, &s.snapshots)
}
