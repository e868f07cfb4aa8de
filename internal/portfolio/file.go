package portfolio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Load reads a state file written by Save. The returned store is never nil:
// a missing or corrupt file yields an empty store together with the error.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return NewStore(), fmt.Errorf("read state file: %w", err)
	}
	records, err := decodeState(data)
	if err != nil {
		return NewStore(), fmt.Errorf("parse state file %s: %w", path, err)
	}
	return NewStoreFrom(records), nil
}

// Save writes the whole store to path, waiting for the lock if needed.
func (s *Store) Save(path string) error {
	s.mu.Lock()
	records := s.copyLocked()
	s.mu.Unlock()
	return writeState(path, records)
}

// TrySave writes the store only if the lock is free right now. A busy store
// is reported as saved=false with a nil error.
func (s *Store) TrySave(path string) (saved bool, err error) {
	if !s.mu.TryLock() {
		return false, nil
	}
	records := s.copyLocked()
	s.mu.Unlock()

	if err := writeState(path, records); err != nil {
		return false, err
	}
	return true, nil
}

// EncodeState renders records in the state file format: a pretty-printed JSON
// object keyed by the pie id as a string.
func EncodeState(records []Record) ([]byte, error) {
	m := make(map[string]Record, len(records))
	for _, r := range records {
		m[strconv.FormatInt(r.ID, 10)] = r
	}
	return json.MarshalIndent(m, "", "  ")
}

func decodeState(data []byte) (map[int64]Record, error) {
	var raw map[string]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[int64]Record, len(raw))
	for key, r := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid pie id key %q: %w", key, err)
		}
		r.ID = id
		out[id] = r
	}
	return out, nil
}

func writeState(path string, records map[int64]Record) error {
	list := make([]Record, 0, len(records))
	for _, r := range records {
		list = append(list, r)
	}
	data, err := EncodeState(list)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
