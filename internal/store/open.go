package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	TypeSQLite = "sqlite"
	TypeBadger = "badger"
	TypeMemory = "memory"
)

// Open returns the store backend named by typ. For sqlite path is the
// database file, for badger the database directory.
func Open(typ, path string) (Store, error) {
	switch typ {
	case TypeMemory:
		return NewMemory(), nil
	case TypeSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return OpenSQLite(path)
	case TypeBadger:
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
		return OpenBadger(path)
	default:
		return nil, fmt.Errorf("unknown store type %q", typ)
	}
}
