// Package puller fetches image layers from a remote registry into a staging
// directory. It stages only layers that are not already installed in the
// store; an installed layer is signalled to the caller by the absence of its
// staged subdirectory.
package puller

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"

	"github.com/onkernel/layerstore/lib/manifest"
	"github.com/onkernel/layerstore/lib/paths"
	"github.com/onkernel/layerstore/lib/reference"
)

// Puller fetches the layers of an image into stagingDir and returns the
// ordered layer ids that make up the image (outermost first, topmost last).
type Puller interface {
	Pull(ctx context.Context, ref *reference.NormalizedRef, stagingDir string) ([]string, error)
}

// RegistryPuller pulls from an OCI/Docker registry.
type RegistryPuller struct {
	paths  *paths.Paths
	logger *slog.Logger
	opts   []remote.Option
}

// NewRegistryPuller creates a puller that resolves images via the default
// keychain. Extra remote options (transport, platform) may be supplied.
func NewRegistryPuller(p *paths.Paths, logger *slog.Logger, opts ...remote.Option) *RegistryPuller {
	if logger == nil {
		logger = slog.Default()
	}
	return &RegistryPuller{
		paths:  p,
		logger: logger,
		opts:   append([]remote.Option{remote.WithAuthFromKeychain(authn.DefaultKeychain)}, opts...),
	}
}

func (p *RegistryPuller) Pull(ctx context.Context, ref *reference.NormalizedRef, stagingDir string) ([]string, error) {
	nameRef, err := name.ParseReference(ref.String())
	if err != nil {
		return nil, fmt.Errorf("parse reference %q: %w", ref.String(), err)
	}

	img, err := remote.Image(nameRef, append(p.opts, remote.WithContext(ctx))...)
	if err != nil {
		return nil, fmt.Errorf("fetch image %q: %w", ref.String(), err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("fetch image config: %w", err)
	}

	layers, err := img.Layers()
	if err != nil {
		return nil, fmt.Errorf("list layers: %w", err)
	}
	if len(layers) != len(cfg.RootFS.DiffIDs) {
		return nil, fmt.Errorf("image has %d layers but %d diff ids", len(layers), len(cfg.RootFS.DiffIDs))
	}

	// Layer ids are the uncompressed content digests, so identical layers
	// shared across images resolve to the same store directory.
	layerIDs := make([]string, len(layers))
	for i := range layers {
		layerIDs[i] = cfg.RootFS.DiffIDs[i].Hex
	}

	for i, layer := range layers {
		id := layerIDs[i]

		if _, err := os.Stat(p.paths.LayerDir(id)); err == nil {
			p.logger.Debug("layer already in store, not staging", "layer_id", id)
			continue
		}

		if err := p.stageLayer(layer, stagingDir, id); err != nil {
			return nil, fmt.Errorf("stage layer %q: %w", id, err)
		}

		frag := layerManifest(cfg, layerIDs, i)
		data, err := frag.Marshal()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(stagingDir, id, "json"), data, 0644); err != nil {
			return nil, fmt.Errorf("write manifest for layer %q: %w", id, err)
		}

		p.logger.Info("staged layer", "layer_id", id, "reference", ref.String())
	}

	return layerIDs, nil
}

// stageLayer extracts one layer's filesystem tree to <staging>/<id>/rootfs.
func (p *RegistryPuller) stageLayer(layer v1.Layer, stagingDir, id string) error {
	rc, err := layer.Uncompressed()
	if err != nil {
		return fmt.Errorf("open layer: %w", err)
	}
	defer rc.Close()

	rootfs := filepath.Join(stagingDir, id, "rootfs")
	if err := os.MkdirAll(rootfs, 0755); err != nil {
		return fmt.Errorf("create staged rootfs dir: %w", err)
	}

	return extractTar(rc, rootfs)
}

// layerManifest builds the v1 manifest fragment for layer i. Only the topmost
// layer carries the merged runtime configuration; lower fragments record just
// the id chain.
func layerManifest(cfg *v1.ConfigFile, layerIDs []string, i int) *manifest.Manifest {
	frag := &manifest.Manifest{
		ID:           layerIDs[i],
		Created:      cfg.Created.Time,
		Architecture: cfg.Architecture,
		OS:           cfg.OS,
	}
	if i > 0 {
		frag.Parent = layerIDs[i-1]
	}
	if i == len(layerIDs)-1 {
		frag.Config = &manifest.Config{
			User:         cfg.Config.User,
			Env:          cfg.Config.Env,
			Entrypoint:   cfg.Config.Entrypoint,
			Cmd:          cfg.Config.Cmd,
			WorkingDir:   cfg.Config.WorkingDir,
			Labels:       cfg.Config.Labels,
			Volumes:      cfg.Config.Volumes,
			ExposedPorts: cfg.Config.ExposedPorts,
		}
	}
	return frag
}
