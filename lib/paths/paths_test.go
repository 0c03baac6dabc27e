package paths

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLayout(t *testing.T) {
	p := New("/var/lib/layerstore")
	id := "abc123"

	require.Equal(t, "/var/lib/layerstore", p.Root())
	require.Equal(t, "/var/lib/layerstore/staging", p.StagingRoot())
	require.Equal(t, "/var/lib/layerstore/layers", p.LayersRoot())
	require.Equal(t, "/var/lib/layerstore/layers/abc123", p.LayerDir(id))
	require.Equal(t, "/var/lib/layerstore/layers/abc123/rootfs", p.LayerRootfs(id))
	require.Equal(t, "/var/lib/layerstore/layers/abc123/json", p.LayerManifest(id))
	require.Equal(t, "/var/lib/layerstore/images.json", p.ImagesFile())
}
