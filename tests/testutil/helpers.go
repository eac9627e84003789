// Package testutil provides shared test helpers used across integration,
// e2e, and unit test packages.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// WriteManifest writes a schema 1.0 host manifest listing packages at
// version 1.0 for the given major.
func WriteManifest(t *testing.T, dir string, host string, major int, packages ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	rpms := make([]string, 0, len(packages))
	for _, name := range packages {
		rpms = append(rpms, fmt.Sprintf(`{"name": %q, "epoch": "0", "version": "1.0", "release": "1.el%d", "arch": "x86_64"}`, name, major))
	}
	content := fmt.Sprintf(`{
  "schema_version": "1.0",
  "host_id": %q,
  "os": {"name": "Rocky Linux", "major": %d, "minor": 9, "id": "rocky"},
  "arch": "x86_64",
  "installed_rpms": [%s],
  "timestamp": "2026-02-28T12:00:00Z"
}`, host, major, strings.Join(rpms, ", "))
	path := filepath.Join(dir, host+".json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// CatalogPackage is one update offered by a test catalog.
type CatalogPackage struct {
	Name     string
	Advisory string
	Content  string
}

// RPMFile is the mirror file name used for an offered package.
func RPMFile(name string) string {
	return fmt.Sprintf("%s-1.1-1.x86_64.rpm", name)
}

// WriteCatalog writes a catalog oracle file offering 1.1 updates for the
// given packages over a 1.0 baseline, and places their payloads in mirror.
func WriteCatalog(t *testing.T, path string, mirror string, major int, baseline []string, updates []CatalogPackage) {
	t.Helper()
	require.NoError(t, os.MkdirAll(mirror, 0755))
	var b strings.Builder
	fmt.Fprintf(&b, "track: \"%d\"\nbaseline:\n", major)
	for _, name := range baseline {
		fmt.Fprintf(&b, "  %s: \"1.0-1.el%d\"\n", name, major)
	}
	b.WriteString("packages:\n")
	for _, pkg := range updates {
		advisory := ""
		if pkg.Advisory != "" {
			advisory = ", advisory: " + pkg.Advisory
		}
		fmt.Fprintf(&b, "  - {name: %s, version: \"1.1\", release: 1.el%d, arch: x86_64, file: %s%s}\n",
			pkg.Name, major, RPMFile(pkg.Name), advisory)
		content := pkg.Content
		if content == "" {
			content = pkg.Name + "-payload"
		}
		require.NoError(t, os.WriteFile(filepath.Join(mirror, RPMFile(pkg.Name)), []byte(content), 0644))
	}
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
}

// StubIndex writes a minimal repodata tree in place of createrepo_c.
type StubIndex struct{}

func (StubIndex) Generate(_ context.Context, dir string) error {
	repodata := filepath.Join(dir, types.RepodataDirName)
	if err := os.MkdirAll(repodata, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(repodata, "primary.xml.gz"), []byte("primary"), 0644); err != nil {
		return err
	}
	repomd := `<repomd><data type="primary"><location href="repodata/primary.xml.gz"/></data></repomd>`
	return os.WriteFile(filepath.Join(dir, filepath.FromSlash(types.RepomdPath)), []byte(repomd), 0644)
}

func (StubIndex) Validate(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(types.RepomdPath))); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("no repository index in %s", dir))
	}
	return nil
}

func (StubIndex) CheckTools() error { return nil }

// UnlockTree restores write permission on every directory under root so
// published read-only bundles can be cleaned up.
func UnlockTree(t *testing.T, root string) {
	t.Helper()
	t.Cleanup(func() {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err == nil && info.IsDir() {
				_ = os.Chmod(path, 0755)
			}
			return nil
		})
	})
}
