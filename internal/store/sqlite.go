package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migrate is idempotent.
func (s *SQLite) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS torrent (
  hash TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  content_key TEXT NOT NULL,
  site TEXT NOT NULL DEFAULT '',
  seed_id INTEGER
);

CREATE UNIQUE INDEX IF NOT EXISTS uk_content_key_site ON torrent (content_key, site);
CREATE UNIQUE INDEX IF NOT EXISTS uk_site_seed_id ON torrent (site, seed_id);
CREATE INDEX IF NOT EXISTS idx_content_key ON torrent (content_key);
`)
	return err
}

func (s *SQLite) SaveTorrent(ctx context.Context, r Record) error {
	// seed_id is NULL when unknown so the (site, seed_id) index ignores it.
	var seedID sql.NullInt64
	if r.SeedID != 0 {
		seedID = sql.NullInt64{Int64: r.SeedID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO torrent(hash, name, content_key, site, seed_id)
VALUES(?, ?, ?, ?, ?);
`, r.Hash, r.Name, r.ContentKey, r.Site, seedID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: [%s-%d] %s", ErrConflict, r.Site, r.SeedID, r.Name)
	}
	return nil
}

func (s *SQLite) GetTorrent(ctx context.Context, hash string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT hash, name, content_key, site, seed_id FROM torrent WHERE hash=?;
`, hash)
	r, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (s *SQLite) LookupHashes(ctx context.Context, hashes []string) (map[string]Record, error) {
	out := make(map[string]Record, len(hashes))
	if len(hashes) == 0 {
		return out, nil
	}
	args := make([]any, len(hashes))
	for i, h := range hashes {
		args[i] = h
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(hashes)), ",")
	rs, err := s.query(ctx, "WHERE hash IN ("+placeholders+")", args...)
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		out[r.Hash] = r
	}
	return out, nil
}

func (s *SQLite) HasSeed(ctx context.Context, site string, seedID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM torrent WHERE site=? AND seed_id=?;", site, seedID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLite) ListTorrents(ctx context.Context) ([]Record, error) {
	return s.query(ctx, "ORDER BY site ASC, name ASC")
}

func (s *SQLite) ListByContentKey(ctx context.Context, key string) ([]Record, error) {
	return s.query(ctx, "WHERE content_key=? ORDER BY site ASC, name ASC", key)
}

func (s *SQLite) query(ctx context.Context, clause string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT hash, name, content_key, site, seed_id FROM torrent "+clause+";", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var r Record
	var seedID sql.NullInt64
	if err := row.Scan(&r.Hash, &r.Name, &r.ContentKey, &r.Site, &seedID); err != nil {
		return Record{}, err
	}
	r.SeedID = seedID.Int64
	return r, nil
}
