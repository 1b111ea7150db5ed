// Package content groups held torrents that share the same files on disk.
package content

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcules/seedplan/internal/contentkey"
	"github.com/mcules/seedplan/internal/torrent"
)

// Resolver returns one content key per torrent, positionally. An empty key
// means the content is unknown.
type Resolver interface {
	ResolveContentKeys(ctx context.Context, ts []torrent.Local) ([]string, error)
}

// FileResolver derives keys from the file lists without persisting them.
// A preset ContentKey wins over the file list.
type FileResolver struct{}

func (FileResolver) ResolveContentKeys(_ context.Context, ts []torrent.Local) ([]string, error) {
	keys := make([]string, len(ts))
	for i, t := range ts {
		if t.ContentKey != "" {
			keys[i] = t.ContentKey
			continue
		}
		keys[i] = contentkey.HashFiles(t.Files)
	}
	return keys, nil
}

// Groups maps a torrent hash to the other torrents sharing its files.
// Torrents with no siblings map to an empty slice.
type Groups map[string][]torrent.Local

// Siblings returns the torrents sharing files with hash.
func (g Groups) Siblings(hash string) []torrent.Local {
	return g[hash]
}

// Group buckets ts by content key. total counts every bucket once, using
// the size of its first member.
func Group(ctx context.Context, ts []torrent.Local, r Resolver) (int64, Groups, error) {
	keys, err := r.ResolveContentKeys(ctx, ts)
	if err != nil {
		return 0, nil, fmt.Errorf("resolve content keys: %w", err)
	}
	if len(keys) != len(ts) {
		return 0, nil, fmt.Errorf("resolve content keys: got %d keys for %d torrents", len(keys), len(ts))
	}

	var total int64
	order := make([]string, 0, len(ts))
	buckets := make(map[string][]torrent.Local, len(ts))
	for i, t := range ts {
		key := keys[i]
		if key == "" {
			// Unknown content only shares with itself.
			key = "hash:" + t.Hash
		}
		if _, seen := buckets[key]; !seen {
			order = append(order, key)
			total += t.Size
		}
		buckets[key] = append(buckets[key], t)
	}

	groups := make(Groups, len(ts))
	for _, key := range order {
		members := buckets[key]
		if len(members) > 1 {
			names := make([]string, 0, len(members))
			for _, m := range members {
				names = append(names, m.Name)
			}
			log.Debug().Strs("torrents", names).Msg("torrents share the same files")
		}
		for _, m := range members {
			siblings := make([]torrent.Local, 0, len(members)-1)
			for _, o := range members {
				if o.Hash != m.Hash {
					siblings = append(siblings, o)
				}
			}
			groups[m.Hash] = siblings
		}
	}
	return total, groups, nil
}
