package core

import (
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

func TestParseBundleFileName(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    types.BundleName
		wantErr bool
	}{
		{
			name: "zstd archive",
			path: "/media/usb/bundle-8-20240102T030405Z.tar.zst",
			want: types.BundleName{
				BundleID:  "bundle-8-20240102T030405Z",
				Track:     "8",
				Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
				Format:    types.ArchiveFormatZstd,
				FileName:  "bundle-8-20240102T030405Z.tar.zst",
			},
		},
		{
			name: "named track gzip",
			path: "bundle-rhel9-20231231T235959Z.tar.gz",
			want: types.BundleName{
				BundleID:  "bundle-rhel9-20231231T235959Z",
				Track:     "rhel9",
				Timestamp: time.Date(2023, 12, 31, 23, 59, 59, 0, time.UTC),
				Format:    types.ArchiveFormatGzip,
				FileName:  "bundle-rhel9-20231231T235959Z.tar.gz",
			},
		},
		{name: "zip extension", path: "bundle-8-20240102T030405Z.zip", wantErr: true},
		{name: "missing zulu", path: "bundle-8-20240102T030405.tar.zst", wantErr: true},
		{name: "wrong prefix", path: "update-8-20240102T030405Z.tar.zst", wantErr: true},
		{name: "impossible date", path: "bundle-8-20241340T030405Z.tar.zst", wantErr: true},
		{name: "dash in track", path: "bundle-el-8-20240102T030405Z.tar.zst", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBundleFileName(tt.path)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected bundle name (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFormatBundleIDRoundTrip(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 500, time.FixedZone("x", 3600))
	id := FormatBundleID("9", ts)
	assert.Equal(t, "bundle-9-20240506T060809Z", id)
	track, parsed, err := ParseBundleID(id)
	require.NoError(t, err)
	assert.Equal(t, "9", track)
	assert.True(t, parsed.Equal(time.Date(2024, 5, 6, 6, 8, 9, 0, time.UTC)))
	assert.Equal(t, id+".tar.lz4", BundleFileName(id, types.ArchiveFormatLZ4))
}

func TestTrackMajor(t *testing.T) {
	tests := []struct {
		track   string
		want    int
		wantErr bool
	}{
		{track: "8", want: 8},
		{track: "rhel9", want: 9},
		{track: "el10", want: 10},
		{track: "rhel", wantErr: true},
		{track: "0", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.track, func(t *testing.T) {
			got, err := TrackMajor(tt.track)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextBundleTime(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 10, 900, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC), NextBundleTime(now, nil))

	existing := []time.Time{
		time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 0, 12, 0, time.UTC),
	}
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 13, 0, time.UTC), NextBundleTime(now, existing))
}

func TestParseArchiveFormat(t *testing.T) {
	for input, want := range map[string]types.ArchiveFormat{
		"":     types.ArchiveFormatZstd,
		"zstd": types.ArchiveFormatZstd,
		"gz":   types.ArchiveFormatGzip,
		"LZ4":  types.ArchiveFormatLZ4,
	} {
		got, err := ParseArchiveFormat(input)
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", input)
	}
	_, err := ParseArchiveFormat("xz")
	require.Error(t, err)
}
