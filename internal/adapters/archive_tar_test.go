package adapters

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0600))
	}
}

func TestTarArchiveRoundTripAllFormats(t *testing.T) {
	tests := []types.ArchiveFormat{types.ArchiveFormatZstd, types.ArchiveFormatGzip, types.ArchiveFormatLZ4}
	for _, format := range tests {
		format := format
		t.Run(string(format), func(t *testing.T) {
			src := t.TempDir()
			writeTree(t, src, map[string]string{
				"metadata.json":             "{}",
				"rpms/bash-5.1-1.x86_64.rpm": "rpm-bytes",
				"repodata/repomd.xml":        "<repomd/>",
			})
			out := t.TempDir()
			dest := filepath.Join(out, "bundle-rhel9-20260101T000000Z."+format.Extension())
			adapter := NewTarArchiveAdapter()
			mtime := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			require.NoError(t, adapter.Pack(t.Context(), src, "bundle-rhel9-20260101T000000Z", dest, format, mtime))

			var names []string
			require.NoError(t, adapter.Walk(t.Context(), dest, func(entry types.ArchiveEntry, body io.Reader) error {
				names = append(names, entry.Name)
				if !entry.IsDir {
					assert.Equal(t, int64(0644), entry.Mode)
				}
				return nil
			}))
			want := []string{
				"bundle-rhel9-20260101T000000Z",
				"bundle-rhel9-20260101T000000Z/metadata.json",
				"bundle-rhel9-20260101T000000Z/repodata",
				"bundle-rhel9-20260101T000000Z/repodata/repomd.xml",
				"bundle-rhel9-20260101T000000Z/rpms",
				"bundle-rhel9-20260101T000000Z/rpms/bash-5.1-1.x86_64.rpm",
			}
			if diff := cmp.Diff(want, names); diff != "" {
				t.Fatalf("entries mismatch (-want +got):\n%s", diff)
			}

			extracted := t.TempDir()
			require.NoError(t, adapter.Extract(t.Context(), dest, extracted))
			data, err := os.ReadFile(filepath.Join(extracted, "bundle-rhel9-20260101T000000Z", "rpms", "bash-5.1-1.x86_64.rpm"))
			require.NoError(t, err)
			assert.Equal(t, "rpm-bytes", string(data))
		})
	}
}

func TestTarArchivePackIsReproducible(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"a.txt": "a", "dir/b.txt": "b"})
	adapter := NewTarArchiveAdapter()
	mtime := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)

	first := filepath.Join(t.TempDir(), "one.tar.zst")
	second := filepath.Join(t.TempDir(), "two.tar.zst")
	require.NoError(t, adapter.Pack(t.Context(), src, "root", first, types.ArchiveFormatZstd, mtime))
	require.NoError(t, os.Chtimes(filepath.Join(src, "a.txt"), time.Now(), time.Now()))
	require.NoError(t, adapter.Pack(t.Context(), src, "root", second, types.ArchiveFormatZstd, mtime))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(a, b))
}

func TestTarArchiveExtractRejectsTraversal(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../escape.txt", Size: 1, Mode: 0644, Typeflag: tar.TypeReg}))
	_, err := tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	require.NoError(t, os.WriteFile(archive, buf.Bytes(), 0644))

	dest := filepath.Join(t.TempDir(), "out")
	err = NewTarArchiveAdapter().Extract(t.Context(), archive, dest)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeDataLoss, errbuilder.CodeOf(err))
	_, statErr := os.Stat(filepath.Join(filepath.Dir(dest), "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestTarArchiveWalkTruncated(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"big.bin": string(bytes.Repeat([]byte("0123456789"), 4096))})
	dest := filepath.Join(t.TempDir(), "bundle.tar.gz")
	adapter := NewTarArchiveAdapter()
	require.NoError(t, adapter.Pack(t.Context(), src, "root", dest, types.ArchiveFormatGzip, time.Unix(0, 0)))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(dest, data[:len(data)/2], 0644))

	err = adapter.Walk(t.Context(), dest, func(entry types.ArchiveEntry, body io.Reader) error {
		_, copyErr := io.Copy(io.Discard, body)
		return copyErr
	})
	require.Error(t, err)
}

func TestTarArchiveWalkDetectsMissingTrailer(t *testing.T) {
	formats := []types.ArchiveFormat{types.ArchiveFormatZstd, types.ArchiveFormatGzip, types.ArchiveFormatLZ4}
	for _, format := range formats {
		t.Run(string(format), func(t *testing.T) {
			src := t.TempDir()
			writeTree(t, src, map[string]string{"rpms/a-1.0-1.x86_64.rpm": "payload", "metadata.json": "{}"})
			dest := filepath.Join(t.TempDir(), "bundle-8-20260101T000000Z."+format.Extension())
			adapter := NewTarArchiveAdapter()
			require.NoError(t, adapter.Pack(t.Context(), src, "bundle-8-20260101T000000Z", dest, format, time.Unix(0, 0)))

			info, err := os.Stat(dest)
			require.NoError(t, err)
			require.NoError(t, os.Truncate(dest, info.Size()-1))

			err = adapter.Walk(t.Context(), dest, func(entry types.ArchiveEntry, body io.Reader) error {
				_, copyErr := io.Copy(io.Discard, body)
				return copyErr
			})
			require.Error(t, err)
			assert.Equal(t, errbuilder.CodeDataLoss, errbuilder.CodeOf(err))
		})
	}
}

func TestTarArchiveWalkRejectsTrailingData(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"metadata.json": "{}"})
	dest := filepath.Join(t.TempDir(), "bundle-8-20260101T000000Z.tar.gz")
	adapter := NewTarArchiveAdapter()
	require.NoError(t, adapter.Pack(t.Context(), src, "bundle-8-20260101T000000Z", dest, types.ArchiveFormatGzip, time.Unix(0, 0)))

	out, err := os.OpenFile(dest, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = out.Write([]byte("junk"))
	require.NoError(t, err)
	require.NoError(t, out.Close())

	err = adapter.Walk(t.Context(), dest, func(types.ArchiveEntry, io.Reader) error { return nil })
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeDataLoss, errbuilder.CodeOf(err))
}
