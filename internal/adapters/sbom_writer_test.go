package adapters

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

func TestSBOMWriterAdapter_WriteSBOM(t *testing.T) {
	dir := t.TempDir()
	packages := []types.PackageEntry{
		{File: "zlib-1.2.11-40.el9.x86_64.rpm", Name: "zlib", NEVRA: "zlib-1.2.11-40.el9.x86_64", SHA256: "bb", Type: types.PackageKindDependency},
		{File: "bash-5.1.8-9.el9.x86_64.rpm", Name: "bash", NEVRA: "bash-5.1.8-9.el9.x86_64", SHA256: "aa", Type: types.PackageKindUpdate},
	}
	require.NoError(t, NewSBOMWriterAdapter().WriteSBOM(dir, "bundle-rhel9-20260101T000000Z", "2026-01-01T00:00:00Z", packages))

	data, err := os.ReadFile(filepath.Join(dir, types.SBOMFileName))
	require.NoError(t, err)
	var doc struct {
		SPDXVersion string `json:"spdxVersion"`
		Name        string `json:"name"`
		Packages    []struct {
			Name            string `json:"name"`
			VersionInfo     string `json:"versionInfo"`
			PackageFileName string `json:"packageFileName"`
			Checksums       []struct {
				ChecksumValue string `json:"checksumValue"`
			} `json:"checksums"`
		} `json:"packages"`
		DocumentDescribes []string `json:"documentDescribes"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "SPDX-2.3", doc.SPDXVersion)
	assert.Equal(t, "airgap-rpm bundle bundle-rhel9-20260101T000000Z", doc.Name)
	require.Len(t, doc.Packages, 2)
	got := []string{doc.Packages[0].Name, doc.Packages[0].VersionInfo, doc.Packages[0].PackageFileName, doc.Packages[0].Checksums[0].ChecksumValue}
	want := []string{"bash", "5.1.8-9.el9", "rpms/bash-5.1.8-9.el9.x86_64.rpm", "aa"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected first package (-want +got):\n%s", diff)
	}
	assert.Len(t, doc.DocumentDescribes, 2)
}

func TestSBOMWriterAdapter_RequiresBundleID(t *testing.T) {
	require.Error(t, NewSBOMWriterAdapter().WriteSBOM(t.TempDir(), "", "", nil))
}
