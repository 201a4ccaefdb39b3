package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/crosschart/crosschart/internal/cache"
	"github.com/crosschart/crosschart/internal/models"
	"github.com/crosschart/crosschart/internal/shared"
)

// DirectorySource reads raw playlist payloads from a directory of
// `<service>_<genre>.json` files, the layout the upstream extractors write.
type DirectorySource struct {
	Root string
}

// RawPlaylist reads the payload file for (service, genre).
// A missing file means the service reported no data for the genre.
func (s DirectorySource) RawPlaylist(_ context.Context, service models.Service, genre string) ([]byte, error) {
	path := filepath.Join(s.Root, fmt.Sprintf("%s_%s.json", service, genre))

	payload, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no payload at %s", shared.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read payload file: %w", err)
	}

	return payload, nil
}

// CachedSource serves payloads from the provider response cache, falling back
// to the inner source on a miss and caching what it finds.
type CachedSource struct {
	Cache  *cache.Cache
	Inner  PayloadSource
	Logger *log.Logger
}

func (s CachedSource) RawPlaylist(ctx context.Context, service models.Service, genre string) ([]byte, error) {
	payload, hit, err := s.Cache.GetRaw(ctx, service, genre)
	if err != nil {
		return nil, err
	}
	if hit {
		if s.Logger != nil {
			s.Logger.Debug("cache hit", "service", service, "genre", genre)
		}
		return payload, nil
	}

	payload, err = s.Inner.RawPlaylist(ctx, service, genre)
	if err != nil {
		return nil, err
	}

	if err := s.Cache.SetRaw(ctx, service, genre, payload); err != nil {
		// A cache write failure must not fail the run.
		if s.Logger != nil {
			s.Logger.Warn("failed to cache payload", "service", service, "genre", genre, "error", err)
		}
	}

	return payload, nil
}
