package puller

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type tarEntry struct {
	header *tar.Header
	body   []byte
}

func buildTar(t *testing.T, entries []tarEntry) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		if e.header.Size == 0 {
			e.header.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(e.header))
		if len(e.body) > 0 {
			_, err := tw.Write(e.body)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return &buf
}

func TestExtractTar(t *testing.T) {
	buf := buildTar(t, []tarEntry{
		{header: &tar.Header{Name: "etc/", Typeflag: tar.TypeDir, Mode: 0755}},
		{header: &tar.Header{Name: "etc/hostname", Typeflag: tar.TypeReg, Mode: 0644}, body: []byte("box\n")},
		{header: &tar.Header{Name: "bin/sh", Typeflag: tar.TypeReg, Mode: 0755}, body: []byte("#!/bin/true\n")},
		{header: &tar.Header{Name: "bin/ash", Typeflag: tar.TypeSymlink, Linkname: "sh", Mode: 0777}},
	})

	dest := t.TempDir()
	require.NoError(t, extractTar(buf, dest))

	data, err := os.ReadFile(filepath.Join(dest, "etc/hostname"))
	require.NoError(t, err)
	require.Equal(t, "box\n", string(data))

	info, err := os.Stat(filepath.Join(dest, "bin/sh"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0755), info.Mode().Perm())

	link, err := os.Readlink(filepath.Join(dest, "bin/ash"))
	require.NoError(t, err)
	require.Equal(t, "sh", link)
}

func TestExtractTarSkipsWhiteouts(t *testing.T) {
	buf := buildTar(t, []tarEntry{
		{header: &tar.Header{Name: "etc/", Typeflag: tar.TypeDir, Mode: 0755}},
		{header: &tar.Header{Name: "etc/.wh.hosts", Typeflag: tar.TypeReg, Mode: 0644}, body: []byte("gone")},
	})

	dest := t.TempDir()
	require.NoError(t, extractTar(buf, dest))

	_, err := os.Stat(filepath.Join(dest, "etc/.wh.hosts"))
	require.True(t, os.IsNotExist(err))
}

func TestExtractTarRejectsPathTraversal(t *testing.T) {
	buf := buildTar(t, []tarEntry{
		{header: &tar.Header{Name: "../escape", Typeflag: tar.TypeReg, Mode: 0644}, body: []byte("nope")},
	})

	parent := t.TempDir()
	dest := filepath.Join(parent, "dest")
	require.NoError(t, os.MkdirAll(dest, 0755))
	require.NoError(t, extractTar(buf, dest))

	_, err := os.Stat(filepath.Join(parent, "escape"))
	require.True(t, os.IsNotExist(err))
}
