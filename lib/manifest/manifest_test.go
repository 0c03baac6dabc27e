package manifest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLayerID(n int) string {
	return fmt.Sprintf("%064d", n)
}

func TestParse(t *testing.T) {
	raw := fmt.Sprintf(`{
		"id": %q,
		"parent": %q,
		"os": "linux",
		"architecture": "amd64",
		"config": {
			"Entrypoint": ["/bin/sh"],
			"Cmd": ["-c", "echo hi"],
			"Env": ["PATH=/usr/bin"],
			"WorkingDir": "/app"
		}
	}`, testLayerID(2), testLayerID(1))

	m, err := Parse([]byte(raw))
	require.NoError(t, err)
	require.Equal(t, testLayerID(2), m.ID)
	require.Equal(t, testLayerID(1), m.Parent)
	require.Equal(t, "linux", m.OS)
	require.NotNil(t, m.Config)
	require.Equal(t, []string{"/bin/sh"}, m.Config.Entrypoint)
	require.Equal(t, "/app", m.Config.WorkingDir)
}

func TestParseRejectsMalformed(t *testing.T) {
	_, err := Parse([]byte("not json"))
	require.Error(t, err)
}

func TestParseRejectsMissingID(t *testing.T) {
	_, err := Parse([]byte(`{"os": "linux"}`))
	require.ErrorIs(t, err, ErrMissingID)
}

func TestParseRejectsBadIDs(t *testing.T) {
	_, err := Parse([]byte(`{"id": "not-a-layer-id"}`))
	require.ErrorIs(t, err, ErrInvalidID)

	_, err = Parse([]byte(fmt.Sprintf(`{"id": %q, "parent": "short"}`, testLayerID(1))))
	require.ErrorIs(t, err, ErrInvalidID)
}

func TestMarshalRoundTrip(t *testing.T) {
	m := &Manifest{
		ID:     testLayerID(1),
		OS:     "linux",
		Config: &Config{Cmd: []string{"/bin/true"}},
	}

	data, err := m.Marshal()
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)
	require.Equal(t, m, parsed)
}
