package store

import (
	"context"
	"errors"
)

// ErrConflict is returned when a record collides with an existing hash,
// (content key, site) or (site, seed id).
var ErrConflict = errors.New("torrent already recorded")

// Record is what the store keeps about a torrent seen locally or fetched
// from a site.
type Record struct {
	Hash       string
	Name       string
	ContentKey string
	Site       string
	SeedID     int64 // 0 = unknown
}

type Store interface {
	SaveTorrent(ctx context.Context, r Record) error
	LookupHashes(ctx context.Context, hashes []string) (map[string]Record, error)
	GetTorrent(ctx context.Context, hash string) (Record, bool, error)
	HasSeed(ctx context.Context, site string, seedID int64) (bool, error)
	ListTorrents(ctx context.Context) ([]Record, error)
	ListByContentKey(ctx context.Context, key string) ([]Record, error)
	Close() error
}
