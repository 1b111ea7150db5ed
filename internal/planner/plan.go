package planner

import (
	"errors"
	"fmt"
	"math"

	"github.com/mcules/seedplan/internal/content"
	"github.com/mcules/seedplan/internal/torrent"
)

var (
	ErrUnsortedCandidates = errors.New("candidates are not sorted by descending score")
	ErrNegativeCapacity   = errors.New("negative capacity")
	ErrInvalidScore       = errors.New("score is NaN")
)

// Unlimited lifts the per-run download cap.
const Unlimited int64 = -1

// Input is everything one planning pass looks at. Sizes are bytes.
type Input struct {
	// Local holds every scored local torrent, least worth keeping first.
	// All of them count for protection and shared scores; only those from
	// PrimarySite may be evicted.
	Local []torrent.ScoredLocal

	// Remote holds the candidates by descending score.
	Remote []torrent.ScoredRemote

	Groups    content.Groups
	TotalSize int64
	FreeSpace int64

	MaxTotalSize    int64 // 0 = bounded by the disk only
	MaxDownloadSize int64 // negative = no per-run cap, 0 = download nothing
	PrimarySite     string

	// Simulate admits candidates without charging their size, for files
	// that are already on disk.
	Simulate bool
}

type Plan struct {
	Evict    []torrent.Local
	Admit    []torrent.Remote
	Groups   content.Groups
	Capacity int64
}

// Capacity is the budget of a download directory: what is held plus what
// is free, capped by limit when set.
func Capacity(total, free, limit int64) int64 {
	capacity := total + free
	if limit > 0 {
		capacity = min(capacity, limit)
	}
	return capacity
}

// Compute runs the greedy exchange. Held torrents form one queue consumed
// left to right; a candidate that needs room may only take a window
// starting at the cursor, and a window that does not free enough is
// dropped so later candidates can still use it.
func Compute(in Input) (Plan, error) {
	if err := validate(in); err != nil {
		return Plan{}, err
	}

	capacity := Capacity(in.TotalSize, in.FreeSpace, in.MaxTotalSize)
	if capacity < 0 {
		return Plan{}, fmt.Errorf("%w: %d bytes", ErrNegativeCapacity, capacity)
	}
	maxDownload := in.MaxDownloadSize
	if maxDownload < 0 {
		maxDownload = math.MaxInt64
	}

	scores := make(map[string]float64, len(in.Local))
	held := make([]torrent.ScoredLocal, 0, len(in.Local))
	for _, l := range in.Local {
		scores[l.Torrent.Hash] = l.Score
		if in.PrimarySite == "" || l.Torrent.Site == in.PrimarySite {
			held = append(held, l)
		}
	}

	sc := &scanner{held: held, scores: scores, groups: in.Groups, gone: map[string]bool{}}
	plan := Plan{Groups: in.Groups, Capacity: capacity}
	remaining := capacity - in.TotalSize
	var downloaded int64
	cursor := 0

	for _, c := range in.Remote {
		size := c.Torrent.Size
		if size > maxDownload-downloaded {
			continue
		}
		if c.Score <= 0 {
			break
		}
		if size < remaining || in.Simulate {
			if !in.Simulate {
				remaining -= size
				downloaded += size
			}
			plan.Admit = append(plan.Admit, c.Torrent)
			continue
		}

		win := sc.scan(cursor, c.Score, size-remaining)
		if win.freed+remaining < size {
			continue
		}
		plan.Evict = append(plan.Evict, sc.commit(win)...)
		cursor = win.end
		remaining += win.freed - size
		downloaded += size
		plan.Admit = append(plan.Admit, c.Torrent)
	}
	return plan, nil
}

func validate(in Input) error {
	if in.TotalSize < 0 || in.FreeSpace < 0 || in.MaxTotalSize < 0 {
		return fmt.Errorf("%w: total=%d free=%d limit=%d", ErrNegativeCapacity, in.TotalSize, in.FreeSpace, in.MaxTotalSize)
	}
	for _, l := range in.Local {
		if math.IsNaN(l.Score) {
			return fmt.Errorf("%w: local %s", ErrInvalidScore, l.Torrent.Hash)
		}
	}
	for i, r := range in.Remote {
		if math.IsNaN(r.Score) {
			return fmt.Errorf("%w: candidate %s", ErrInvalidScore, r.Torrent.Ref())
		}
		if i > 0 && r.Score > in.Remote[i-1].Score {
			return fmt.Errorf("%w: %s (%g) after %s (%g)", ErrUnsortedCandidates,
				r.Torrent.Ref(), r.Score, in.Remote[i-1].Torrent.Ref(), in.Remote[i-1].Score)
		}
	}
	return nil
}

type scanner struct {
	held   []torrent.ScoredLocal
	scores map[string]float64
	groups content.Groups

	// gone holds hashes whose files an earlier window already frees,
	// directly or as a sibling.
	gone map[string]bool
}

type window struct {
	end    int
	freed  int64
	picked []torrent.Local
	gone   map[string]bool
}

// scan walks held[from:] for torrents worth less than score until need
// bytes are freed. Content shared by several torrents counts once. It
// changes nothing; commit applies it.
func (s *scanner) scan(from int, score float64, need int64) window {
	win := window{end: from, gone: map[string]bool{}}
	for win.end < len(s.held) && win.freed < need {
		h := s.held[win.end]
		if !s.evictable(h, score) {
			break
		}
		hash := h.Torrent.Hash
		if !s.gone[hash] && !win.gone[hash] {
			win.freed += h.Torrent.Size
			for _, sib := range s.groups[hash] {
				win.gone[sib.Hash] = true
			}
		}
		win.gone[hash] = true
		win.picked = append(win.picked, h.Torrent)
		win.end++
	}
	return win
}

// commit marks the window's content as freed. Every scanned torrent is
// evicted; one whose files a sibling already freed adds no bytes.
func (s *scanner) commit(win window) []torrent.Local {
	for hash := range win.gone {
		s.gone[hash] = true
	}
	return win.picked
}

// evictable compares the combined keep score of a torrent and the torrents
// sharing its files with a candidate's score. Ties keep the torrent.
func (s *scanner) evictable(h torrent.ScoredLocal, score float64) bool {
	keep := h.Score
	if keep >= score || torrent.Protected(keep) {
		return false
	}
	for _, sib := range s.groups[h.Torrent.Hash] {
		ss := s.scores[sib.Hash]
		if torrent.Protected(ss) {
			return false
		}
		keep += ss
	}
	return keep < score
}
