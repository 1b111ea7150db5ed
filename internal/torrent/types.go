package torrent

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

type File struct {
	Path string
	Size int64
}

// Local is a torrent held by the local client. Hash is its identity.
type Local struct {
	Hash       string
	Name       string
	Site       string
	SeedID     int64
	Size       int64
	Files      []File
	ContentKey string
}

// Remote is a torrent listed by a site that may be downloaded.
type Remote struct {
	Site   string
	SeedID int64
	Title  string
	Size   int64
	Hash   string
}

func (r Remote) Ref() string {
	return fmt.Sprintf("%s-%d", r.Site, r.SeedID)
}

type ScoredLocal struct {
	Torrent Local
	Score   float64
}

type ScoredRemote struct {
	Torrent Remote
	Score   float64
}

// Protected reports whether the score marks an active torrent.
func Protected(score float64) bool {
	return score < 0
}

// NormalizeHash lower-cases an info hash so lookups are case-insensitive.
func NormalizeHash(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// RankLocal sorts ascending by score, least worth keeping first.
// Protected torrents go last so they close every eviction window.
func RankLocal(ts []ScoredLocal) {
	key := func(s float64) float64 {
		if Protected(s) {
			return math.Inf(1)
		}
		return s
	}
	sort.SliceStable(ts, func(i, j int) bool {
		return key(ts[i].Score) < key(ts[j].Score)
	})
}

// RankRemote sorts descending by score; ties keep their input order.
func RankRemote(ts []ScoredRemote) {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].Score > ts[j].Score
	})
}
