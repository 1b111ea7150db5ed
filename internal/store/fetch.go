package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mcules/seedplan/internal/contentkey"
	"github.com/mcules/seedplan/internal/torrent"
)

// Fetcher downloads the .torrent file of a remote torrent.
type Fetcher func(ctx context.Context, t torrent.Remote) ([]byte, error)

// SaveFetched records the remote torrents the store does not know yet,
// fetching and decoding their .torrent files. It returns how many records
// were added.
func SaveFetched(ctx context.Context, s Store, remote []torrent.Remote, fetch Fetcher) (int, error) {
	var missing []torrent.Remote
	for _, t := range remote {
		ok, err := s.HasSeed(ctx, t.Site, t.SeedID)
		if err != nil {
			return 0, fmt.Errorf("check %s: %w", t.Ref(), err)
		}
		if !ok {
			missing = append(missing, t)
		}
	}

	saved := 0
	for _, t := range missing {
		data, err := fetch(ctx, t)
		if err != nil {
			return saved, fmt.Errorf("fetch %s: %w", t.Ref(), err)
		}
		meta, err := contentkey.DecodeTorrent(data)
		if err != nil {
			return saved, fmt.Errorf("decode %s: %w", t.Ref(), err)
		}
		err = s.SaveTorrent(ctx, Record{
			Hash:       meta.InfoHash,
			Name:       t.Title,
			ContentKey: meta.ContentKey(),
			Site:       t.Site,
			SeedID:     t.SeedID,
		})
		if errors.Is(err, ErrConflict) {
			log.Warn().Err(err).Str("torrent", t.Ref()).Msg("could not record fetched torrent")
			continue
		}
		if err != nil {
			return saved, fmt.Errorf("save %s: %w", t.Ref(), err)
		}
		saved++
	}
	return saved, nil
}
