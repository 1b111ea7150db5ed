package snapshot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
local:
  - hash: AAAA
    name: a
    site: byr
    seed_id: 1
    size: 1 KiB
    score: 3
    files:
      - {path: a/x.mkv, size: 1024}
  - {hash: bbbb, name: b, site: byr, size: 10, score: -1}
  - {hash: cccc, name: c, site: tju, size: 10, score: 1}
remote:
  - {site: byr, seed_id: 7, title: low, size: 5, score: 1}
  - {site: byr, seed_id: 8, title: high, size: "2 MB", score: 9}
`

func TestDecode(t *testing.T) {
	s, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	held := s.Held()
	require.Len(t, held, 3)
	assert.Equal(t, "aaaa", held[0].Hash)
	assert.Equal(t, int64(1024), held[0].Size)
	assert.Equal(t, "a/x.mkv", held[0].Files[0].Path)

	local, remote := s.Ranked()
	var order []string
	for _, l := range local {
		order = append(order, l.Torrent.Name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, order)
	assert.Equal(t, int64(8), remote[0].Torrent.SeedID)
	assert.Equal(t, int64(2_000_000), remote[0].Torrent.Size)

	r, ok := s.FindRemote("byr", 7)
	require.True(t, ok)
	assert.Equal(t, "low", r.Title)
	_, ok = s.FindRemote("byr", 99)
	assert.False(t, ok)
}

func TestDecode_JSON(t *testing.T) {
	s, err := Decode(strings.NewReader(`{"local": [], "remote": [{"site": "byr", "seed_id": 1, "size": 3, "score": 1.5}]}`))
	require.NoError(t, err)
	require.Len(t, s.Remote, 1)
	assert.Equal(t, Size(3), s.Remote[0].Size)
}

func TestDecode_Empty(t *testing.T) {
	s, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, s.Held())
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]string{
		"no hash":        "local: [{name: a, size: 1}]",
		"duplicate hash": "local: [{hash: a}, {hash: A}]",
		"no site":        "remote: [{seed_id: 1}]",
		"NaN score":      "remote: [{site: byr, score: .nan}]",
		"negative size":  "remote: [{site: byr, size: -1}]",
		"bad size":       "remote: [{site: byr, size: lots}]",
		"list size":      "remote: [{site: byr, size: [1]}]",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, s.Local, 3)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
