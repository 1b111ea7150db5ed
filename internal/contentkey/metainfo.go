package contentkey

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jackpal/bencode-go"

	"github.com/mcules/seedplan/internal/torrent"
)

var ErrMalformedTorrent = errors.New("malformed torrent file")

type Metainfo struct {
	InfoHash string
	Name     string
	Files    []torrent.File
}

func (m Metainfo) ContentKey() string {
	return HashFiles(m.Files)
}

func (m Metainfo) Size() int64 {
	var total int64
	for _, f := range m.Files {
		total += f.Size
	}
	return total
}

// DecodeTorrent parses a .torrent file. The info hash is the v1 (SHA-1)
// hash of the re-encoded info dictionary.
func DecodeTorrent(data []byte) (Metainfo, error) {
	raw, err := bencode.Decode(bytes.NewReader(data))
	if err != nil {
		return Metainfo{}, fmt.Errorf("%w: %v", ErrMalformedTorrent, err)
	}
	top, ok := raw.(map[string]interface{})
	if !ok {
		return Metainfo{}, fmt.Errorf("%w: top level is not a dictionary", ErrMalformedTorrent)
	}
	info, ok := top["info"].(map[string]interface{})
	if !ok {
		return Metainfo{}, fmt.Errorf("%w: missing info dictionary", ErrMalformedTorrent)
	}
	name, ok := info["name"].(string)
	if !ok {
		return Metainfo{}, fmt.Errorf("%w: missing name", ErrMalformedTorrent)
	}

	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, info); err != nil {
		return Metainfo{}, fmt.Errorf("encode info: %w", err)
	}
	sum := sha1.Sum(buf.Bytes())

	files, err := infoFiles(name, info)
	if err != nil {
		return Metainfo{}, err
	}
	return Metainfo{
		InfoHash: hex.EncodeToString(sum[:]),
		Name:     name,
		Files:    files,
	}, nil
}

func infoFiles(name string, info map[string]interface{}) ([]torrent.File, error) {
	list, multi := info["files"].([]interface{})
	if !multi {
		length, ok := info["length"].(int64)
		if !ok {
			return nil, fmt.Errorf("%w: missing length", ErrMalformedTorrent)
		}
		return []torrent.File{{Path: name, Size: length}}, nil
	}

	files := make([]torrent.File, 0, len(list))
	for i, entry := range list {
		f, ok := entry.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: files[%d] is not a dictionary", ErrMalformedTorrent, i)
		}
		length, ok := f["length"].(int64)
		if !ok {
			return nil, fmt.Errorf("%w: files[%d] missing length", ErrMalformedTorrent, i)
		}
		segments, ok := f["path"].([]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: files[%d] missing path", ErrMalformedTorrent, i)
		}
		parts := []string{name}
		for _, s := range segments {
			seg, ok := s.(string)
			if !ok {
				return nil, fmt.Errorf("%w: files[%d] has a non-string path segment", ErrMalformedTorrent, i)
			}
			parts = append(parts, seg)
		}
		files = append(files, torrent.File{Path: strings.Join(parts, "/"), Size: length})
	}
	return files, nil
}
