package planner

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcules/seedplan/internal/content"
	"github.com/mcules/seedplan/internal/torrent"
)

func local(hash, site string, size int64, score float64) torrent.ScoredLocal {
	return torrent.ScoredLocal{Torrent: torrent.Local{Hash: hash, Name: hash, Site: site, Size: size}, Score: score}
}

func remote(id int64, size int64, score float64) torrent.ScoredRemote {
	return torrent.ScoredRemote{Torrent: torrent.Remote{Site: "byr", SeedID: id, Size: size}, Score: score}
}

// grouped computes TotalSize and Groups the way Planner.Run does. Keys
// maps a hash to its content key; missing hashes are unique.
func grouped(t *testing.T, in Input, keys map[string]string) Input {
	t.Helper()
	ts := make([]torrent.Local, len(in.Local))
	for i, l := range in.Local {
		ts[i] = l.Torrent
		ts[i].ContentKey = keys[l.Torrent.Hash]
	}
	total, groups, err := content.Group(context.Background(), ts, content.FileResolver{})
	require.NoError(t, err)
	in.TotalSize = total
	in.Groups = groups
	return in
}

func evicted(p Plan) []string {
	var out []string
	for _, t := range p.Evict {
		out = append(out, t.Hash)
	}
	return out
}

func admitted(p Plan) []int64 {
	var out []int64
	for _, t := range p.Admit {
		out = append(out, t.SeedID)
	}
	return out
}

func TestCompute_InsufficientWindowRejects(t *testing.T) {
	in := grouped(t, Input{
		Local:           []torrent.ScoredLocal{local("A", "byr", 10, 5), local("B", "byr", 10, -1)},
		Remote:          []torrent.ScoredRemote{remote(1, 15, 10)},
		MaxTotalSize:    20,
		MaxDownloadSize: Unlimited,
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, int64(20), p.Capacity)
	assert.Empty(t, p.Evict)
	assert.Empty(t, p.Admit)
}

func TestCompute_ExactWindowAdmits(t *testing.T) {
	in := grouped(t, Input{
		Local:           []torrent.ScoredLocal{local("A", "byr", 10, 5), local("B", "byr", 10, -1)},
		Remote:          []torrent.ScoredRemote{remote(1, 10, 10)},
		MaxTotalSize:    20,
		MaxDownloadSize: Unlimited,
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, evicted(p))
	assert.Equal(t, []int64{1}, admitted(p))

	change := Estimate(in.TotalSize, p, false)
	assert.Equal(t, SpaceChange{Before: 20, ToBeDeleted: 10, ToBeDownloaded: 10, After: 20}, change)
}

func TestCompute_ProtectedSiblingBlocksEviction(t *testing.T) {
	in := grouped(t, Input{
		Local:           []torrent.ScoredLocal{local("A", "byr", 10, 5), local("A2", "byr", 10, -1)},
		Remote:          []torrent.ScoredRemote{remote(1, 5, 10)},
		MaxDownloadSize: Unlimited,
	}, map[string]string{"A": "same", "A2": "same"})
	require.Equal(t, int64(10), in.TotalSize)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Empty(t, p.Evict)
	assert.Empty(t, p.Admit)
}

func TestCompute_ZeroScoreStops(t *testing.T) {
	in := Input{
		FreeSpace:       100,
		Remote:          []torrent.ScoredRemote{remote(1, 10, 3), remote(2, 10, 0), remote(3, 10, 0)},
		MaxDownloadSize: Unlimited,
	}
	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, admitted(p))
}

func TestCompute_CapCheckedBeforeCutoff(t *testing.T) {
	in := Input{
		FreeSpace:       100,
		MaxDownloadSize: 50,
		Remote:          []torrent.ScoredRemote{remote(1, 10, 3), remote(2, 200, 0), remote(3, 10, 0)},
	}
	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, admitted(p))
}

func TestCompute_SimulateChargesNothing(t *testing.T) {
	in := Input{
		MaxDownloadSize: 120,
		Simulate:        true,
		Remote:          []torrent.ScoredRemote{remote(1, 100, 3), remote(2, 130, 2), remote(3, 50, 1)},
	}
	p, err := Compute(in)
	require.NoError(t, err)
	// 2 alone exceeds the cap; 1 and 3 together exceed it too but are free.
	assert.Equal(t, []int64{1, 3}, admitted(p))
	assert.Empty(t, p.Evict)

	change := Estimate(0, p, true)
	assert.Equal(t, int64(0), change.ToBeDownloaded)
	assert.Equal(t, int64(0), change.After)
}

func TestCompute_TieKeepsHeld(t *testing.T) {
	in := grouped(t, Input{
		Local:           []torrent.ScoredLocal{local("A", "byr", 10, 10)},
		Remote:          []torrent.ScoredRemote{remote(1, 10, 10)},
		MaxDownloadSize: Unlimited,
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Empty(t, p.Evict)
	assert.Empty(t, p.Admit)
}

func TestCompute_SharedScoresAreSummed(t *testing.T) {
	base := Input{
		Local:           []torrent.ScoredLocal{local("B", "byr", 10, 4), local("T", "tju", 10, 6)},
		PrimarySite:     "byr",
		MaxDownloadSize: Unlimited,
	}
	keys := map[string]string{"B": "same", "T": "same"}

	tie := base
	tie.Remote = []torrent.ScoredRemote{remote(1, 10, 10)}
	p, err := Compute(grouped(t, tie, keys))
	require.NoError(t, err)
	assert.Empty(t, p.Admit, "4+6 ties with 10")

	above := base
	above.Remote = []torrent.ScoredRemote{remote(1, 10, 10.5)}
	in := grouped(t, above, keys)
	p, err = Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, evicted(p))
	assert.Equal(t, []int64{1}, admitted(p))
	assert.Equal(t, []string{"T"}, func() []string {
		var out []string
		for _, s := range p.Groups["B"] {
			out = append(out, s.Hash)
		}
		return out
	}())
}

func TestCompute_FailedWindowKeepsCursor(t *testing.T) {
	in := grouped(t, Input{
		Local: []torrent.ScoredLocal{
			local("A", "byr", 10, 1),
			local("B", "byr", 10, 2),
			local("C", "byr", 10, 8),
		},
		Remote: []torrent.ScoredRemote{
			remote(1, 25, 5), // A+B free only 20
			remote(2, 15, 4), // A+B suffice
			remote(3, 4, 3),  // fits in the 5 left over
		},
		MaxDownloadSize: Unlimited,
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, evicted(p))
	assert.Equal(t, []int64{2, 3}, admitted(p))

	change := Estimate(in.TotalSize, p, false)
	assert.Equal(t, int64(30-20+19), change.After)
	assert.LessOrEqual(t, change.After, p.Capacity)
}

func TestCompute_PerRunCap(t *testing.T) {
	in := Input{
		FreeSpace:       100,
		MaxDownloadSize: 15,
		Remote:          []torrent.ScoredRemote{remote(1, 10, 3), remote(2, 10, 2), remote(3, 5, 1)},
	}
	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, admitted(p))
}

func TestCompute_PrimarySiteOnlyEvicted(t *testing.T) {
	in := grouped(t, Input{
		Local:           []torrent.ScoredLocal{local("T", "tju", 10, 1), local("B", "byr", 10, 2)},
		Remote:          []torrent.ScoredRemote{remote(1, 10, 5)},
		PrimarySite:     "byr",
		MaxDownloadSize: Unlimited,
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, evicted(p))
}

func TestCompute_SameSiteDuplicatesFreedOnce(t *testing.T) {
	in := grouped(t, Input{
		Local: []torrent.ScoredLocal{
			local("a", "byr", 10, 1),
			local("a2", "byr", 10, 1),
			local("b", "byr", 10, 1),
		},
		Remote:          []torrent.ScoredRemote{remote(1, 20, 5)},
		MaxDownloadSize: Unlimited,
	}, map[string]string{"a": "k", "a2": "k"})
	require.Equal(t, int64(20), in.TotalSize)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a2", "b"}, evicted(p))
	assert.Equal(t, []int64{1}, admitted(p))

	change := Estimate(in.TotalSize, p, false)
	assert.Equal(t, SpaceChange{Before: 20, ToBeDeleted: 20, ToBeDownloaded: 20, After: 20}, change)
	assert.LessOrEqual(t, change.After, p.Capacity)
}

func TestCompute_WindowPassesOverFreedSibling(t *testing.T) {
	in := grouped(t, Input{
		Local: []torrent.ScoredLocal{
			local("a", "byr", 10, 1),
			local("c", "byr", 10, 1),
			local("a2", "byr", 10, 1),
			local("d", "byr", 10, 1),
		},
		Remote: []torrent.ScoredRemote{
			remote(1, 10, 5), // a
			remote(2, 20, 5), // c and d; a2 frees nothing but goes too
		},
		MaxDownloadSize: Unlimited,
	}, map[string]string{"a": "k", "a2": "k"})
	require.Equal(t, int64(30), in.TotalSize)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "a2", "d"}, evicted(p))
	assert.Equal(t, []int64{1, 2}, admitted(p))

	change := Estimate(in.TotalSize, p, false)
	assert.Equal(t, SpaceChange{Before: 30, ToBeDeleted: 30, ToBeDownloaded: 30, After: 30}, change)
}

func TestCompute_ZeroCapDownloadsNothing(t *testing.T) {
	in := grouped(t, Input{
		Local:     []torrent.ScoredLocal{local("A", "byr", 10, 1)},
		FreeSpace: 100,
		Remote:    []torrent.ScoredRemote{remote(1, 10, 5), remote(2, 1, 4)},
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Empty(t, p.Admit)
	assert.Empty(t, p.Evict)

	in.Simulate = true
	p, err = Compute(in)
	require.NoError(t, err)
	assert.Empty(t, p.Admit)
}

func TestCompute_EqualRemainingNeedsNoEviction(t *testing.T) {
	in := grouped(t, Input{
		Local:           []torrent.ScoredLocal{local("A", "byr", 10, 1)},
		FreeSpace:       10,
		Remote:          []torrent.ScoredRemote{remote(1, 10, 5)},
		MaxDownloadSize: Unlimited,
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Empty(t, p.Evict)
	assert.Equal(t, []int64{1}, admitted(p))
}

func TestCompute_OverBudgetEvictsDownToLimit(t *testing.T) {
	in := grouped(t, Input{
		Local:           []torrent.ScoredLocal{local("A", "byr", 10, 1), local("B", "byr", 10, 1)},
		FreeSpace:       100,
		MaxTotalSize:    15,
		Remote:          []torrent.ScoredRemote{remote(1, 5, 5)},
		MaxDownloadSize: Unlimited,
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, evicted(p))
	assert.Equal(t, int64(15), Estimate(in.TotalSize, p, false).After)
}

func TestCompute_InfiniteScoreEvictsAnythingUnprotected(t *testing.T) {
	in := grouped(t, Input{
		Local:           []torrent.ScoredLocal{local("A", "byr", 10, 1e9), local("B", "byr", 10, -1)},
		Remote:          []torrent.ScoredRemote{remote(1, 10, math.Inf(1))},
		MaxDownloadSize: Unlimited,
	}, nil)

	p, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, evicted(p))
}

func TestCompute_Preconditions(t *testing.T) {
	_, err := Compute(Input{Remote: []torrent.ScoredRemote{remote(1, 1, 1), remote(2, 1, 2)}})
	assert.ErrorIs(t, err, ErrUnsortedCandidates)

	_, err = Compute(Input{TotalSize: -1})
	assert.ErrorIs(t, err, ErrNegativeCapacity)

	_, err = Compute(Input{FreeSpace: -5})
	assert.ErrorIs(t, err, ErrNegativeCapacity)

	_, err = Compute(Input{Remote: []torrent.ScoredRemote{remote(1, 1, math.NaN())}})
	assert.ErrorIs(t, err, ErrInvalidScore)

	_, err = Compute(Input{Local: []torrent.ScoredLocal{local("A", "byr", 1, math.NaN())}})
	assert.ErrorIs(t, err, ErrInvalidScore)
}

func TestCompute_RandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	sites := []string{"byr", "byr", "tju"}

	for round := 0; round < 500; round++ {
		keys := map[string]string{}
		keySize := map[string]int64{}
		var ls []torrent.ScoredLocal
		nLocal := rng.IntN(12)
		for i := 0; i < nLocal; i++ {
			key := string(rune('a' + rng.IntN(6)))
			if _, ok := keySize[key]; !ok {
				keySize[key] = 1 + rng.Int64N(50)
			}
			score := float64(rng.IntN(10))
			if rng.IntN(6) == 0 {
				score = -1
			}
			hash := key + string(rune('0'+i))
			keys[hash] = key
			ls = append(ls, local(hash, sites[rng.IntN(len(sites))], keySize[key], score))
		}
		torrent.RankLocal(ls)

		var rs []torrent.ScoredRemote
		scores := map[int64]float64{}
		nRemote := rng.IntN(10)
		for i := 0; i < nRemote; i++ {
			score := float64(rng.IntN(12))
			scores[int64(i)] = score
			rs = append(rs, remote(int64(i), 1+rng.Int64N(60), score))
		}
		torrent.RankRemote(rs)

		in := grouped(t, Input{
			Local:           ls,
			Remote:          rs,
			FreeSpace:       rng.Int64N(40),
			MaxDownloadSize: rng.Int64N(121) - 1,
			PrimarySite:     "byr",
		}, keys)
		if rng.IntN(2) == 0 {
			in.MaxTotalSize = in.TotalSize + rng.Int64N(30)
		}

		p, err := Compute(in)
		require.NoError(t, err)

		change := Estimate(in.TotalSize, p, false)
		assert.LessOrEqual(t, change.After, p.Capacity, "capacity, round %d", round)
		assert.Equal(t, change, Estimate(in.TotalSize, p, false))

		if in.MaxDownloadSize >= 0 {
			assert.LessOrEqual(t, change.ToBeDownloaded, in.MaxDownloadSize, "per-run cap, round %d", round)
		}

		byHash := map[string]float64{}
		for _, l := range ls {
			byHash[l.Torrent.Hash] = l.Score
		}
		seen := map[string]bool{}
		keyFreed := map[string]bool{}
		var distinct int64
		for _, e := range p.Evict {
			assert.GreaterOrEqual(t, byHash[e.Hash], 0.0, "protected evicted, round %d", round)
			assert.Equal(t, "byr", e.Site)
			for _, sib := range p.Groups[e.Hash] {
				assert.GreaterOrEqual(t, byHash[sib.Hash], 0.0, "protected sibling, round %d", round)
			}
			assert.False(t, seen[e.Hash], "evicted twice, round %d", round)
			seen[e.Hash] = true
			if !keyFreed[keys[e.Hash]] {
				distinct += e.Size
			}
			keyFreed[keys[e.Hash]] = true
		}
		assert.Equal(t, distinct, change.ToBeDeleted, "deleted content, round %d", round)
		for _, a := range p.Admit {
			assert.Greater(t, scores[a.SeedID], 0.0, "cutoff, round %d", round)
		}
	}
}
