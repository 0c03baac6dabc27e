package store

import (
	"fmt"
	"os"

	"github.com/samber/lo"

	"github.com/onkernel/layerstore/lib/manifest"
	"github.com/onkernel/layerstore/lib/metadata"
)

// assemble maps a committed image record to its final result: rootfs paths
// in layer order plus the parsed manifest of the topmost layer, where all
// runtime configuration is already merged.
func (s *store) assemble(img *metadata.Image) (*ImageInfo, error) {
	if len(img.LayerIDs) == 0 {
		// Committed images are never empty by construction.
		panic("store: image record has no layers")
	}

	rootfsPaths := lo.Map(img.LayerIDs, func(layerID string, _ int) string {
		return s.paths.LayerRootfs(layerID)
	})

	manifestPath := s.paths.LayerManifest(img.LayerIDs[len(img.LayerIDs)-1])

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrManifestRead, manifestPath, err)
	}

	m, err := manifest.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrManifestParse, manifestPath, err)
	}

	return &ImageInfo{
		RootfsPaths: rootfsPaths,
		Manifest:    m,
	}, nil
}
