// Package paths defines the on-disk layout of the layer store.
//
// Everything under the store root is addressed through this package so the
// naming scheme lives in exactly one place:
//
//	<root>/staging/              scratch space, one subdir per pull attempt
//	<root>/layers/<id>/          an installed layer
//	<root>/layers/<id>/rootfs/   the layer's filesystem tree
//	<root>/layers/<id>/json      the layer's v1 manifest fragment
//	<root>/images.json           the metadata manager's durable record
package paths

import "path/filepath"

const (
	stagingDirName = "staging"
	layersDirName  = "layers"
	rootfsDirName  = "rootfs"
	manifestName   = "json"
	imagesFileName = "images.json"
)

// Paths resolves store locations relative to a single store root.
type Paths struct {
	root string
}

// New creates a Paths rooted at the given store directory.
func New(root string) *Paths {
	return &Paths{root: root}
}

// Root returns the store root directory.
func (p *Paths) Root() string {
	return p.root
}

// StagingRoot returns the directory under which per-pull staging
// directories are created.
func (p *Paths) StagingRoot() string {
	return filepath.Join(p.root, stagingDirName)
}

// LayersRoot returns the directory holding all installed layers.
func (p *Paths) LayersRoot() string {
	return filepath.Join(p.root, layersDirName)
}

// LayerDir returns the permanent directory for a layer id.
func (p *Paths) LayerDir(layerID string) string {
	return filepath.Join(p.LayersRoot(), layerID)
}

// LayerRootfs returns the rootfs directory of an installed layer.
func (p *Paths) LayerRootfs(layerID string) string {
	return filepath.Join(p.LayerDir(layerID), rootfsDirName)
}

// LayerManifest returns the path of an installed layer's manifest fragment.
func (p *Paths) LayerManifest(layerID string) string {
	return filepath.Join(p.LayerDir(layerID), manifestName)
}

// ImagesFile returns the path of the durable image metadata file.
func (p *Paths) ImagesFile() string {
	return filepath.Join(p.root, imagesFileName)
}
