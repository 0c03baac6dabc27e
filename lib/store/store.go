// Package store guarantees that all filesystem layers of a requested image
// are present on local disk, pulling them from a registry when missing, and
// returns the ordered rootfs paths plus the image's parsed manifest.
//
// It is a caching, deduplicating front end: concurrent requests for the same
// reference share a single underlying pull, pulled layers are staged and then
// atomically promoted into the permanent store, and an image is recorded in
// the metadata manager only after every one of its layers is durably
// installed.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/onkernel/layerstore/lib/manifest"
	"github.com/onkernel/layerstore/lib/metadata"
	"github.com/onkernel/layerstore/lib/paths"
	"github.com/onkernel/layerstore/lib/puller"
	"github.com/onkernel/layerstore/lib/reference"
)

// ImageType is the declared format of a requested image.
type ImageType string

// ImageTypeDocker is the only format this store supports.
const ImageTypeDocker ImageType = "docker"

// Descriptor describes an image to fetch.
type Descriptor struct {
	// Type is the declared image format.
	Type ImageType

	// Name is the raw image reference, e.g. "alpine:3.18".
	Name string

	// ForceRefresh bypasses the metadata cache and pulls the image again.
	// Already-installed layers are still reused.
	ForceRefresh bool
}

// ImageInfo is the result of a Get: one rootfs path per layer, in
// application order, plus the parsed manifest of the topmost layer.
type ImageInfo struct {
	RootfsPaths []string
	Manifest    *manifest.Manifest
}

// Store is the image layer store.
type Store interface {
	// Get ensures every layer of the described image is installed and
	// returns the ordered rootfs paths plus the parsed manifest.
	Get(ctx context.Context, desc Descriptor) (*ImageInfo, error)

	// Recover reconciles persisted metadata with the layers actually on
	// disk. Call once at startup, before the first Get.
	Recover(ctx context.Context) error
}

type store struct {
	paths    *paths.Paths
	metadata metadata.Manager
	puller   puller.Puller
	logger   *slog.Logger
	metrics  *Metrics

	mu      sync.Mutex
	pulling map[string]*pendingPull
}

// New creates a Store over the given layout and collaborators, creating the
// store, staging and layers directories if needed. A nil meter disables
// metrics.
func New(p *paths.Paths, md metadata.Manager, pl puller.Puller, logger *slog.Logger, meter metric.Meter) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	for _, dir := range []string{p.Root(), p.StagingRoot(), p.LayersRoot()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", dir, err)
		}
	}

	s := &store{
		paths:    p,
		metadata: md,
		puller:   pl,
		logger:   logger,
		pulling:  make(map[string]*pendingPull),
	}

	if meter != nil {
		metrics, err := NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		s.metrics = metrics
	}

	return s, nil
}

func (s *store) Recover(ctx context.Context) error {
	return s.metadata.Recover(ctx)
}

func (s *store) Get(ctx context.Context, desc Descriptor) (*ImageInfo, error) {
	if desc.Type != ImageTypeDocker {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedImageFormat, desc.Type)
	}

	ref, err := reference.Parse(desc.Name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrReferenceParse, desc.Name, err)
	}

	cached, err := s.metadata.Get(ctx, ref, desc.ForceRefresh)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLookup(ctx, cached != nil)

	start := time.Now()
	img, err := s.resolve(ctx, ref, cached)
	if err != nil {
		return nil, err
	}
	if cached == nil {
		s.logger.Info("image resolved",
			"reference", ref.String(),
			"layers", len(img.LayerIDs),
			"duration", time.Since(start))
	}

	return s.assemble(img)
}
