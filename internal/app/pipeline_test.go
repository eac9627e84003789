package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/adapters"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// stubIndex stands in for createrepo_c: it writes a minimal repodata tree
// and checks that repomd.xml exists.
type stubIndex struct {
	mu        sync.Mutex
	generated []string
}

func (s *stubIndex) Generate(_ context.Context, dir string) error {
	s.mu.Lock()
	s.generated = append(s.generated, dir)
	s.mu.Unlock()
	repodata := filepath.Join(dir, types.RepodataDirName)
	if err := os.MkdirAll(repodata, 0755); err != nil {
		return err
	}
	repomd := `<repomd><data type="primary"><location href="repodata/primary.xml.gz"/></data></repomd>`
	if err := os.WriteFile(filepath.Join(repodata, "primary.xml.gz"), []byte("primary"), 0644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, filepath.FromSlash(types.RepomdPath)), []byte(repomd), 0644)
}

func (s *stubIndex) Validate(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(types.RepomdPath))); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("no repository index in %s", dir))
	}
	return nil
}

func (s *stubIndex) CheckTools() error { return nil }

type stubHost struct {
	major int
	free  uint64
}

func (h stubHost) Release(context.Context) (types.HostRelease, error) {
	return types.HostRelease{ID: "rocky", VersionID: fmt.Sprintf("%d.9", h.major), Major: h.major}, nil
}

func (h stubHost) Hostname() string { return "builder-01" }

func (h stubHost) FreeBytes(string) (uint64, error) {
	if h.free == 0 {
		return 1 << 40, nil
	}
	return h.free, nil
}

func (h stubHost) LookPath(tool string) (string, error) { return "/usr/bin/" + tool, nil }

type fixture struct {
	t         *testing.T
	dir       string
	manifests string
	mirror    string
	output    string
	work      string
	repo      string
	index     *stubIndex
	service   Service
}

// newFixture wires the real file adapters around a catalog oracle and a
// stub index, for a three host fleet.
func newFixture(t *testing.T, major int) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		t:         t,
		dir:       dir,
		manifests: filepath.Join(dir, "manifests"),
		mirror:    filepath.Join(dir, "mirror"),
		output:    filepath.Join(dir, "out"),
		work:      filepath.Join(dir, "work"),
		repo:      filepath.Join(dir, "repo"),
		index:     &stubIndex{},
	}
	require.NoError(t, os.MkdirAll(f.manifests, 0755))
	require.NoError(t, os.MkdirAll(f.mirror, 0755))

	f.writeManifest("web-01", major, "a", "b", "c")
	f.writeManifest("web-02", major, "b", "d")
	f.writeManifest("db-01", major, "c", "d", "e")

	var catalog strings.Builder
	fmt.Fprintf(&catalog, "track: \"%d\"\nbaseline:\n", major)
	for _, name := range []string{"a", "b", "c", "d", "e", "z"} {
		fmt.Fprintf(&catalog, "  %s: \"1.0-1.el%d\"\n", name, major)
	}
	catalog.WriteString("packages:\n")
	for _, name := range []string{"b", "c", "e", "z"} {
		file := f.rpmFile(name)
		advisory := ""
		if name == "c" {
			advisory = ", advisory: RLSA-2024:0042"
		}
		fmt.Fprintf(&catalog, "  - {name: %s, version: \"1.1\", release: 1.el%d, arch: x86_64, file: %s%s}\n", name, major, file, advisory)
		f.writeMirror(name, "v1")
	}
	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(catalog.String()), 0644))

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var tick int
	var tickMu sync.Mutex
	f.service = Service{
		Manifests:    adapters.NewManifestFileAdapter(),
		Oracle:       adapters.NewCatalogOracleAdapter(catalogPath, f.mirror),
		Index:        f.index,
		Archive:      adapters.NewTarArchiveAdapter(),
		Output:       adapters.NewOutputFileAdapter(),
		OutputReader: adapters.NewOutputReaderAdapter(),
		SBOMWriter:   adapters.NewSBOMWriterAdapter(),
		Host:         stubHost{major: major},
		Stager:       adapters.NewMediaStagerAdapter(nil, 0),
		Metrics:      adapters.NewMetricsTextfileAdapter(filepath.Join(dir, "metrics.prom")),
		RepositoryAt: func(root string, expectedTrack string) ports.RepositoryStatePort {
			return adapters.NewRepoStateFileAdapter(root, expectedTrack)
		},
		Clock: func() time.Time {
			tickMu.Lock()
			defer tickMu.Unlock()
			tick++
			return base.Add(time.Duration(tick) * time.Hour)
		},
		Version: "test",
	}
	t.Cleanup(func() { unlockTree(f.repo) })
	return f
}

func (f *fixture) rpmFile(name string) string {
	return fmt.Sprintf("%s-1.1-1.x86_64.rpm", name)
}

func (f *fixture) writeMirror(name string, content string) {
	f.t.Helper()
	path := filepath.Join(f.mirror, f.rpmFile(name))
	require.NoError(f.t, os.WriteFile(path, []byte(name+"-"+content), 0644))
}

func (f *fixture) writeManifest(host string, major int, packages ...string) {
	f.t.Helper()
	var rpms []string
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
	require.NoError(f.t, os.WriteFile(filepath.Join(f.manifests, host+".json"), []byte(content), 0644))
}

func (f *fixture) build(track string) BuildResult {
	f.t.Helper()
	return f.buildFormat(track, types.ArchiveFormatZstd)
}

func (f *fixture) buildFormat(track string, format types.ArchiveFormat) BuildResult {
	f.t.Helper()
	result, err := f.service.Build(f.t.Context(), BuildRequest{
		ManifestDir: f.manifests,
		Track:       track,
		OutputDir:   f.output,
		WorkDir:     f.work,
		Format:      format,
	})
	require.NoError(f.t, err)
	return result
}

func (f *fixture) importBundle(archive string, track string) (ImportResult, error) {
	return f.service.Import(f.t.Context(), ImportRequest{
		ArchivePath:   archive,
		RepoRoot:      f.repo,
		ExpectedTrack: track,
	})
}

func (f *fixture) readCurrent(rel string) string {
	f.t.Helper()
	data, err := os.ReadFile(filepath.Join(f.repo, "current", filepath.FromSlash(rel)))
	require.NoError(f.t, err)
	return string(data)
}

// unlockTree restores write permission on published bundles so the test
// temp dir can be removed.
func unlockTree(root string) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.IsDir() {
			_ = os.Chmod(path, 0755)
		}
		return nil
	})
}

func packageFiles(meta types.BundleMetadata) []string {
	files := make([]string, 0, len(meta.PackageList))
	for _, entry := range meta.PackageList {
		files = append(files, entry.File)
	}
	sort.Strings(files)
	return files
}
