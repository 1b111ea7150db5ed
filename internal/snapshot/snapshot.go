// Package snapshot loads the scored listings produced by the external
// scorer.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/mcules/seedplan/internal/torrent"
)

// Size is a byte count that decodes from an integer or a humanized string
// such as "4.2 GiB".
type Size int64

func (s *Size) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", n.Line)
	}
	if v, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
		if v < 0 {
			return fmt.Errorf("line %d: negative size %d", n.Line, v)
		}
		*s = Size(v)
		return nil
	}
	v, err := humanize.ParseBytes(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: size %q: %w", n.Line, n.Value, err)
	}
	if v > math.MaxInt64 {
		return fmt.Errorf("line %d: size %q out of range", n.Line, n.Value)
	}
	*s = Size(v)
	return nil
}

type File struct {
	Path string `yaml:"path"`
	Size Size   `yaml:"size"`
}

type Local struct {
	Hash   string  `yaml:"hash"`
	Name   string  `yaml:"name"`
	Site   string  `yaml:"site"`
	SeedID int64   `yaml:"seed_id"`
	Size   Size    `yaml:"size"`
	Score  float64 `yaml:"score"`
	Files  []File  `yaml:"files"`
}

type Remote struct {
	Site   string  `yaml:"site"`
	SeedID int64   `yaml:"seed_id"`
	Title  string  `yaml:"title"`
	Size   Size    `yaml:"size"`
	Score  float64 `yaml:"score"`
	Hash   string  `yaml:"hash"`
}

type Snapshot struct {
	Local  []Local  `yaml:"local"`
	Remote []Remote `yaml:"remote"`
}

var ErrInvalid = errors.New("invalid snapshot")

// Load reads a snapshot file. JSON files load as well.
func Load(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

func Decode(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := yaml.NewDecoder(r).Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

func (s Snapshot) validate() error {
	seen := make(map[string]bool, len(s.Local))
	for i, l := range s.Local {
		h := torrent.NormalizeHash(l.Hash)
		if h == "" {
			return fmt.Errorf("%w: local[%d] has no hash", ErrInvalid, i)
		}
		if seen[h] {
			return fmt.Errorf("%w: duplicate local hash %s", ErrInvalid, h)
		}
		seen[h] = true
		if math.IsNaN(l.Score) {
			return fmt.Errorf("%w: local %s score is NaN", ErrInvalid, h)
		}
	}
	for i, r := range s.Remote {
		if r.Site == "" {
			return fmt.Errorf("%w: remote[%d] has no site", ErrInvalid, i)
		}
		if math.IsNaN(r.Score) {
			return fmt.Errorf("%w: remote %s-%d score is NaN", ErrInvalid, r.Site, r.SeedID)
		}
	}
	return nil
}

// Held returns the local torrents without scores.
func (s Snapshot) Held() []torrent.Local {
	out := make([]torrent.Local, 0, len(s.Local))
	for _, l := range s.Local {
		out = append(out, l.torrent())
	}
	return out
}

// Ranked returns the local torrents ranked for eviction and the remote
// torrents ranked for admission.
func (s Snapshot) Ranked() ([]torrent.ScoredLocal, []torrent.ScoredRemote) {
	local := make([]torrent.ScoredLocal, 0, len(s.Local))
	for _, l := range s.Local {
		local = append(local, torrent.ScoredLocal{Torrent: l.torrent(), Score: l.Score})
	}
	remote := make([]torrent.ScoredRemote, 0, len(s.Remote))
	for _, r := range s.Remote {
		remote = append(remote, torrent.ScoredRemote{Torrent: r.torrent(), Score: r.Score})
	}
	torrent.RankLocal(local)
	torrent.RankRemote(remote)
	return local, remote
}

// FindRemote looks up a listed remote torrent.
func (s Snapshot) FindRemote(site string, seedID int64) (torrent.Remote, bool) {
	for _, r := range s.Remote {
		if r.Site == site && r.SeedID == seedID {
			return r.torrent(), true
		}
	}
	return torrent.Remote{}, false
}

func (l Local) torrent() torrent.Local {
	files := make([]torrent.File, 0, len(l.Files))
	for _, f := range l.Files {
		files = append(files, torrent.File{Path: f.Path, Size: int64(f.Size)})
	}
	return torrent.Local{
		Hash:   torrent.NormalizeHash(l.Hash),
		Name:   l.Name,
		Site:   l.Site,
		SeedID: l.SeedID,
		Size:   int64(l.Size),
		Files:  files,
	}
}

func (r Remote) torrent() torrent.Remote {
	return torrent.Remote{
		Site:   r.Site,
		SeedID: r.SeedID,
		Title:  r.Title,
		Size:   int64(r.Size),
		Hash:   torrent.NormalizeHash(r.Hash),
	}
}
