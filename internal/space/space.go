// Package space reports free capacity of download directories.
package space

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnsupported = errors.New("free space query not supported on this platform")

// Oracle reports free bytes available to unprivileged writers in dir.
// Readings are never cached.
type Oracle interface {
	FreeSpace(ctx context.Context, dir string) (int64, error)
}

// Disk queries the filesystem holding the directory.
type Disk struct{}

func (Disk) FreeSpace(ctx context.Context, dir string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	free, err := statfsFree(dir)
	if err != nil {
		return 0, fmt.Errorf("free space of %s: %w", dir, err)
	}
	return free, nil
}

// Static returns fixed readings, keyed by directory. Unknown directories
// fail.
type Static map[string]int64

func (s Static) FreeSpace(_ context.Context, dir string) (int64, error) {
	free, ok := s[dir]
	if !ok {
		return 0, fmt.Errorf("no reading for %s", dir)
	}
	return free, nil
}
