package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// Badger keeps records in an embedded BadgerDB.
//
// Key layout:
//
//	t:<hash>                    -> JSON record
//	k:<content key>\x00<site>   -> hash
//	s:<site>\x00<seed id>       -> hash (only for known seed ids)
type Badger struct {
	db *badger.DB
}

func OpenBadger(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.WARNING).
		WithCompression(options.None)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}

func keyTorrent(hash string) []byte { return []byte("t:" + hash) }

func keyContentPrefix(contentKey string) []byte { return []byte("k:" + contentKey + "\x00") }

func keyContent(contentKey, site string) []byte {
	return append(keyContentPrefix(contentKey), site...)
}

func keySeed(site string, seedID int64) []byte {
	return []byte("s:" + site + "\x00" + strconv.FormatInt(seedID, 10))
}

func (b *Badger) SaveTorrent(ctx context.Context, r Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(r)
	if err != nil {
		return err
	}

	unique := [][]byte{keyTorrent(r.Hash), keyContent(r.ContentKey, r.Site)}
	if r.SeedID != 0 {
		unique = append(unique, keySeed(r.Site, r.SeedID))
	}

	return b.db.Update(func(txn *badger.Txn) error {
		for _, k := range unique {
			_, err := txn.Get(k)
			if err == nil {
				return fmt.Errorf("%w: [%s-%d] %s", ErrConflict, r.Site, r.SeedID, r.Name)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		if err := txn.Set(keyTorrent(r.Hash), val); err != nil {
			return err
		}
		for _, k := range unique[1:] {
			if err := txn.Set(k, []byte(r.Hash)); err != nil {
				return err
			}
		}
		return nil
	})
}

func getRecord(txn *badger.Txn, hash string) (Record, bool, error) {
	item, err := txn.Get(keyTorrent(hash))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	var r Record
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &r)
	})
	if err != nil {
		return Record{}, false, err
	}
	return r, true, nil
}

func (b *Badger) GetTorrent(ctx context.Context, hash string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	var (
		r  Record
		ok bool
	)
	err := b.db.View(func(txn *badger.Txn) error {
		var err error
		r, ok, err = getRecord(txn, hash)
		return err
	})
	return r, ok, err
}

func (b *Badger) LookupHashes(ctx context.Context, hashes []string) (map[string]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(hashes))
	err := b.db.View(func(txn *badger.Txn) error {
		for _, h := range hashes {
			r, ok, err := getRecord(txn, h)
			if err != nil {
				return err
			}
			if ok {
				out[h] = r
			}
		}
		return nil
	})
	return out, err
}

func (b *Badger) HasSeed(ctx context.Context, site string, seedID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(keySeed(site, seedID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

func (b *Badger) ListTorrents(ctx context.Context) ([]Record, error) {
	var out []Record
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("t:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r Record
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &r)
			}); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

func (b *Badger) ListByContentKey(ctx context.Context, key string) ([]Record, error) {
	var out []Record
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyContentPrefix(key)
		it := txn.NewIterator(opts)
		defer it.Close()

		var hashes []string
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(val []byte) error {
				hashes = append(hashes, string(val))
				return nil
			}); err != nil {
				return err
			}
		}
		for _, h := range hashes {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, ok, err := getRecord(txn, h)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, r)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortRecords(out)
	return out, nil
}

func sortRecords(rs []Record) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Site != rs[j].Site {
			return rs[i].Site < rs[j].Site
		}
		return rs[i].Name < rs[j].Name
	})
}
