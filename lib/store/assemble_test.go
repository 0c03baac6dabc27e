package store

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onkernel/layerstore/lib/metadata"
)

// installLayers stages and installs the given layers so assemble has real
// on-disk state to read.
func installTestLayers(t *testing.T, s *store, ids ...string) {
	t.Helper()
	staging := t.TempDir()
	for i, id := range ids {
		stageLayer(t, staging, id, i == len(ids)-1)
	}
	require.NoError(t, s.installLayers(staging, ids))
}

func TestAssembleOrdering(t *testing.T) {
	a, b, c := testLayerID(1), testLayerID(2), testLayerID(3)
	s, p := newTestStore(t, stagingPuller(t))
	installTestLayers(t, s, a, b, c)

	info, err := s.assemble(&metadata.Image{
		Reference: "docker.io/library/alpine:latest",
		LayerIDs:  []string{a, b, c},
	})
	require.NoError(t, err)

	require.Equal(t, []string{p.LayerRootfs(a), p.LayerRootfs(b), p.LayerRootfs(c)}, info.RootfsPaths)

	// The manifest comes from the topmost layer only.
	require.Equal(t, c, info.Manifest.ID)
	require.NotNil(t, info.Manifest.Config)
}

func TestAssembleMissingManifest(t *testing.T) {
	id := testLayerID(1)
	s, p := newTestStore(t, stagingPuller(t))

	require.NoError(t, os.MkdirAll(p.LayerRootfs(id), 0755))

	_, err := s.assemble(&metadata.Image{LayerIDs: []string{id}})
	require.ErrorIs(t, err, ErrManifestRead)
	require.Contains(t, err.Error(), p.LayerManifest(id))
}

func TestAssembleMalformedManifest(t *testing.T) {
	id := testLayerID(1)
	s, p := newTestStore(t, stagingPuller(t))

	require.NoError(t, os.MkdirAll(p.LayerDir(id), 0755))
	require.NoError(t, os.WriteFile(p.LayerManifest(id), []byte("not json"), 0644))

	_, err := s.assemble(&metadata.Image{LayerIDs: []string{id}})
	require.ErrorIs(t, err, ErrManifestParse)
}

func TestAssembleEmptyImagePanics(t *testing.T) {
	s, _ := newTestStore(t, stagingPuller(t))

	require.Panics(t, func() {
		_, _ = s.assemble(&metadata.Image{})
	})
}
