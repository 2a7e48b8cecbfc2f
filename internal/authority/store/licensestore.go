package store

import (
	"log/slog"
	"sync"
)

// LicenseStore holds the ordered list of minted License Records, backed by
// one JSON file.
type LicenseStore struct {
	mu      sync.RWMutex
	path    string
	records []LicenseRecord
}

// NewLicenseStore loads path if present; a missing file starts empty.
func NewLicenseStore(path string) *LicenseStore {
	s := &LicenseStore{path: path}
	if err := readJSONFile(path, &s.records); err != nil {
		slog.Info("no existing license store, starting empty", "path", path, "err", err)
		s.records = nil
	}
	return s
}

func (s *LicenseStore) persistLocked() {
	atomicWriteJSON(s.path, s.records)
}

// Add appends a new record and persists.
func (s *LicenseStore) Add(r LicenseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	s.persistLocked()
}

// Get returns the record with the given id, if any.
func (s *LicenseStore) Get(id string) (LicenseRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.records {
		if r.ID == id {
			return r, true
		}
	}
	return LicenseRecord{}, false
}

// Delete removes the record with the given id. Reports whether it existed.
func (s *LicenseStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.records {
		if r.ID == id {
			s.records = append(s.records[:i:i], s.records[i+1:]...)
			s.persistLocked()
			return true
		}
	}
	return false
}

// List returns every record in insertion order.
func (s *LicenseStore) List() []LicenseRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LicenseRecord, len(s.records))
	copy(out, s.records)
	return out
}
