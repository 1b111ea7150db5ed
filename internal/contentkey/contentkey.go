// Package contentkey derives content identities for torrents.
//
// Two torrents whose file trees have the same relative paths and sizes get
// the same key, whatever site they came from. Sites rewrite the info dict
// (announce URLs, source tags), so the info hash cannot be used for this.
package contentkey

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/mcules/seedplan/internal/torrent"
)

// HashPaths returns the content key of a path → size map.
func HashPaths(paths map[string]int64) string {
	lines := make([]string, 0, len(paths))
	for p, size := range paths {
		lines = append(lines, strings.ReplaceAll(p, "\\", "/")+" "+strconv.FormatInt(size, 10))
	}
	sort.Strings(lines)
	sum := blake2b.Sum256([]byte(strings.Join(lines, "\x00")))
	return hex.EncodeToString(sum[:])
}

// HashFiles returns the content key of a file list, or "" when it is empty.
func HashFiles(files []torrent.File) string {
	if len(files) == 0 {
		return ""
	}
	paths := make(map[string]int64, len(files))
	for _, f := range files {
		paths[f.Path] = f.Size
	}
	return HashPaths(paths)
}
