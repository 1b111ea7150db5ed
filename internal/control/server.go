package control

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mcules/seedplan/internal/metrics"
	"github.com/mcules/seedplan/internal/space"
)

type Server struct {
	Oracle space.Oracle

	// AllowedDirs limits which directories may be queried. Empty allows
	// every directory.
	AllowedDirs []string

	Metrics *metrics.Agent
}

func NewServer(oracle space.Oracle, allowed []string, m *metrics.Agent) *Server {
	clean := make([]string, 0, len(allowed))
	for _, d := range allowed {
		clean = append(clean, filepath.Clean(d))
	}
	return &Server{Oracle: oracle, AllowedDirs: clean, Metrics: m}
}

func (s *Server) FreeSpace(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.Int64Value, error) {
	free, err := s.freeSpace(ctx, in.GetValue())
	s.Metrics.Request(status.Code(err).String())
	if err != nil {
		return nil, err
	}
	return wrapperspb.Int64(free), nil
}

func (s *Server) freeSpace(ctx context.Context, dir string) (int64, error) {
	if strings.TrimSpace(dir) == "" {
		return 0, status.Error(codes.InvalidArgument, "dir is required")
	}
	dir = filepath.Clean(dir)
	if !s.allowed(dir) {
		log.Warn().Str("dir", dir).Msg("free space request outside allowed dirs")
		return 0, status.Errorf(codes.PermissionDenied, "dir not allowed: %s", dir)
	}

	free, err := s.Oracle.FreeSpace(ctx, dir)
	if err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("read free space")
		return 0, status.Errorf(codes.Unavailable, "free space of %s: %v", dir, err)
	}
	s.Metrics.Free(dir, free)
	log.Debug().Str("dir", dir).Int64("bytes", free).Msg("free space")
	return free, nil
}

// allowed reports whether dir is one of AllowedDirs or below one.
func (s *Server) allowed(dir string) bool {
	if len(s.AllowedDirs) == 0 {
		return true
	}
	for _, a := range s.AllowedDirs {
		if dir == a {
			return true
		}
		if rel, err := filepath.Rel(a, dir); err == nil && rel != ".." && !strings.HasPrefix(rel, "../") {
			return true
		}
	}
	return false
}
