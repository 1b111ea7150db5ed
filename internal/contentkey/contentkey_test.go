package contentkey

import (
	"crypto/sha1"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcules/seedplan/internal/torrent"
)

func TestHashPaths_OrderInsensitive(t *testing.T) {
	assert.Equal(t,
		HashPaths(map[string]int64{"a": 1, "b": 2}),
		HashPaths(map[string]int64{"b": 2, "a": 1}),
	)
}

func TestHashPaths_SizesMatter(t *testing.T) {
	assert.NotEqual(t,
		HashPaths(map[string]int64{"a": 1, "b": 2}),
		HashPaths(map[string]int64{"a": 2, "b": 1}),
	)
}

func TestHashPaths_Backslashes(t *testing.T) {
	assert.Equal(t,
		HashPaths(map[string]int64{"a/a": 1, "a/b": 2}),
		HashPaths(map[string]int64{"a\\b": 2, "a\\a": 1}),
	)
}

func TestHashFiles(t *testing.T) {
	assert.Empty(t, HashFiles(nil))

	files := []torrent.File{{Path: "show/e01.mkv", Size: 10}, {Path: "show/e02.mkv", Size: 12}}
	assert.Equal(t, HashPaths(map[string]int64{"show/e01.mkv": 10, "show/e02.mkv": 12}), HashFiles(files))
	assert.Len(t, HashFiles(files), 64)
}

func TestDecodeTorrent_SingleFile(t *testing.T) {
	info := "d6:lengthi5e4:name5:a.isoe"
	data := []byte("d8:announce3:url4:info" + info + "e")

	m, err := DecodeTorrent(data)
	require.NoError(t, err)

	sum := sha1.Sum([]byte(info))
	assert.Equal(t, hex.EncodeToString(sum[:]), m.InfoHash)
	assert.Equal(t, "a.iso", m.Name)
	assert.Equal(t, []torrent.File{{Path: "a.iso", Size: 5}}, m.Files)
	assert.Equal(t, int64(5), m.Size())
}

func TestDecodeTorrent_MultiFile(t *testing.T) {
	data := []byte("d4:infod5:filesld6:lengthi3e4:pathl3:sub5:x.txteed6:lengthi4e4:pathl5:y.txteee4:name4:rootee")

	m, err := DecodeTorrent(data)
	require.NoError(t, err)

	assert.Equal(t, "root", m.Name)
	assert.Equal(t, []torrent.File{
		{Path: "root/sub/x.txt", Size: 3},
		{Path: "root/y.txt", Size: 4},
	}, m.Files)
	assert.Equal(t, HashPaths(map[string]int64{"root/sub/x.txt": 3, "root/y.txt": 4}), m.ContentKey())
}

func TestDecodeTorrent_Malformed(t *testing.T) {
	cases := map[string]string{
		"garbage":      "not bencode",
		"not a dict":   "li1ee",
		"no info":      "d3:fooi1ee",
		"no name":      "d4:infod6:lengthi5eee",
		"no length":    "d4:infod4:name1:aee",
		"bad file":     "d4:infod5:filesli1ee4:name1:aee",
		"missing path": "d4:infod5:filesld6:lengthi1eee4:name1:aee",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTorrent([]byte(data))
			assert.ErrorIs(t, err, ErrMalformedTorrent)
		})
	}
}
