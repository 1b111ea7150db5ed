package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcules/seedplan/internal/contentkey"
	"github.com/mcules/seedplan/internal/torrent"
)

const resolveChunk = 100

// Resolver looks content keys up in a Store, recording torrents it has not
// seen before. It satisfies content.Resolver.
type Resolver struct {
	Store Store
}

func NewResolver(s Store) *Resolver {
	return &Resolver{Store: s}
}

func (r *Resolver) ResolveContentKeys(ctx context.Context, ts []torrent.Local) ([]string, error) {
	keys := make([]string, len(ts))
	for start := 0; start < len(ts); start += resolveChunk {
		end := min(start+resolveChunk, len(ts))
		if err := r.resolveChunk(ctx, ts[start:end], keys[start:end]); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func (r *Resolver) resolveChunk(ctx context.Context, ts []torrent.Local, keys []string) error {
	hashes := make([]string, len(ts))
	for i, t := range ts {
		hashes[i] = torrent.NormalizeHash(t.Hash)
	}
	known, err := r.Store.LookupHashes(ctx, hashes)
	if err != nil {
		return fmt.Errorf("lookup torrents: %w", err)
	}

	for i, t := range ts {
		if rec, ok := known[hashes[i]]; ok {
			keys[i] = rec.ContentKey
			continue
		}
		key := t.ContentKey
		if key == "" {
			key = contentkey.HashFiles(t.Files)
		}
		keys[i] = key
		if key == "" {
			log.Warn().Str("hash", hashes[i]).Str("name", t.Name).Msg("torrent has no file list, content key unknown")
			continue
		}

		err := r.Store.SaveTorrent(ctx, Record{
			Hash:       hashes[i],
			Name:       t.Name,
			ContentKey: key,
			Site:       t.Site,
			SeedID:     t.SeedID,
		})
		if errors.Is(err, ErrConflict) {
			// The key is still right for planning; only the record is lost.
			log.Warn().Err(err).Str("hash", hashes[i]).Msg("could not record torrent")
			continue
		}
		if err != nil {
			return fmt.Errorf("save torrent %s: %w", hashes[i], err)
		}
	}
	return nil
}
