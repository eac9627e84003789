package core

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

const digestA = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
const digestB = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestParseChecksumLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    types.FileChecksum
		wantErr bool
	}{
		{name: "text mode", line: digestA + "  bundle-8-20240101T000000Z.tar.zst\n", want: types.FileChecksum{Digest: digestA, Path: "bundle-8-20240101T000000Z.tar.zst"}},
		{name: "binary mode", line: digestA + " *file.rpm", want: types.FileChecksum{Digest: digestA, Path: "file.rpm"}},
		{name: "upper case digest", line: strings.ToUpper(digestA) + "  f", want: types.FileChecksum{Digest: digestA, Path: "f"}},
		{name: "short digest", line: "abc  f", wantErr: true},
		{name: "no name", line: digestA, wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChecksumLine(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected checksum (-want +got):\n%s", diff)
			}
		})
	}
}

func TestChecksumFileRoundTrip(t *testing.T) {
	entries := []types.FileChecksum{
		{Digest: digestB, Path: "rpms/b.rpm"},
		{Digest: digestA, Path: "rpms/a.rpm"},
	}
	content := FormatChecksumFile(entries)
	assert.Equal(t, digestA+"  rpms/a.rpm\n"+digestB+"  rpms/b.rpm\n", string(content))

	parsed, err := ParseChecksumFile(content)
	require.NoError(t, err)
	require.Len(t, parsed, 2)
	assert.Equal(t, "rpms/a.rpm", parsed[0].Path)
}
