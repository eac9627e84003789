package core

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

func TestParseRPMFileName(t *testing.T) {
	tests := []struct {
		file string
		want RPMName
		ok   bool
	}{
		{file: "bash-5.1.8-6.el9_1.x86_64.rpm", want: RPMName{Name: "bash", Version: "5.1.8", Release: "6.el9_1", Arch: "x86_64"}, ok: true},
		{file: "rpms/python3-libs-3.9.16-1.el9.noarch.rpm", want: RPMName{Name: "python3-libs", Version: "3.9.16", Release: "1.el9", Arch: "noarch"}, ok: true},
		{file: "README", ok: false},
		{file: "broken.rpm", ok: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.file, func(t *testing.T) {
			got, ok := ParseRPMFileName(tt.file)
			require.Equal(t, tt.ok, ok)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("unexpected rpm name (-want +got):\n%s", diff)
			}
		})
	}
	name, _ := ParseRPMFileName("bash-5.1.8-6.el9.x86_64.rpm")
	assert.Equal(t, "bash-5.1.8-6.el9.x86_64", name.NEVRA())
}

func TestClassifyAndCount(t *testing.T) {
	files := []PackageFile{
		{File: "openssl-3.0.7-2.el9.x86_64.rpm", SHA256: "s1", Size: 10},
		{File: "bash-5.1.8-6.el9.x86_64.rpm", SHA256: "s2", Size: 20},
		{File: "openssl-libs-3.0.7-2.el9.x86_64.rpm", SHA256: "s3", Size: 30},
	}
	closure := types.ClosureResult{DownloadList: []string{"bash", "openssl"}}
	advisories := map[string]string{"openssl": "RLSA-2024:0001"}
	hosts := map[string][]string{"bash": {"h1"}, "openssl": {"h1", "h2"}}

	entries := ClassifyPackages(files, closure, advisories, hosts)
	require.Len(t, entries, 3)
	assert.Equal(t, "bash", entries[0].Name)
	assert.Equal(t, types.PackageKindUpdate, entries[0].Type)
	assert.Equal(t, types.PackageKindSecurity, entries[1].Type)
	assert.Equal(t, "RLSA-2024:0001", entries[1].AdvisoryID)
	assert.Equal(t, types.PackageKindDependency, entries[2].Type)

	counts := CountPackages(entries)
	if diff := cmp.Diff(types.PackageCounts{TotalCount: 3, UpdateCount: 1, SecurityCount: 1, DependencyCount: 1, SizeBytes: 60}, counts); diff != "" {
		t.Fatalf("unexpected counts (-want +got):\n%s", diff)
	}

	meta := BuildMetadata(t.Context(), MetadataInput{
		BundleID:  "bundle-9-20240101T000000Z",
		Track:     "9",
		OSMajor:   9,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Requirements: types.RequirementSet{ContributingHosts: []types.HostSummary{
			{HostID: "h1", ManifestHash: "sha256:1", OSMinor: 3},
		}},
		Closure:  closure,
		Packages: entries,
		Format:   types.ArchiveFormatZstd,
	})
	assert.Equal(t, "", meta.Checksums.BundleHash)
	assert.Equal(t, "sha256", meta.Checksums.Algorithm)
	assert.Equal(t, "2024-01-01T00:00:00Z", meta.CreatedAt)
	assert.Equal(t, []string{"bash-5.1.8-6.el9.x86_64", "openssl-3.0.7-2.el9.x86_64"}, meta.HostPackageMap["h1"])
	assert.Equal(t, []types.ManifestProvenance{{HostID: "h1", ManifestHash: "sha256:1", OSMinor: 3}}, meta.ManifestsUsed)
}
