package jsonfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store keeps each collection as a JSON array in its own file under dir,
// matching the layout events.json / purchases.json / users.json. Reads
// always go to disk so every operation starts from the durable source of
// truth; writes replace the whole file atomically via temp-file + rename.
//
// The store assumes a single logical writer; serialization of mutations is
// the unit-of-work's job, not the store's.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	const op = "jsonfile.NewStore"

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{dir: dir}, nil
}

func (s *Store) Events() *EventRepo       { return &EventRepo{path: filepath.Join(s.dir, "events.json")} }
func (s *Store) Purchases() *PurchaseRepo { return &PurchaseRepo{path: filepath.Join(s.dir, "purchases.json")} }
func (s *Store) Users() *UserRepo         { return &UserRepo{path: filepath.Join(s.dir, "users.json")} }

// readArray loads a JSON array from path. A missing file is an empty store.
func readArray[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	return out, nil
}

// writeArray replaces the file content atomically. The temp file lives in
// the same directory so the rename never crosses filesystems.
func writeArray[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}

	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return nil
}
