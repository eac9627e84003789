package adapters

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	rpmversion "github.com/knqyf263/go-rpm-version"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// CatalogOracleAdapter answers oracle queries from a YAML catalog and a
// directory of package files, for builders without a live package manager.
type CatalogOracleAdapter struct {
	Path      string
	MirrorDir string
	cached    types.CatalogFile
	loaded    bool
}

func NewCatalogOracleAdapter(path string, mirrorDir string) *CatalogOracleAdapter {
	return &CatalogOracleAdapter{Path: path, MirrorDir: mirrorDir}
}

func (a *CatalogOracleAdapter) AvailableUpdates(ctx context.Context) ([]types.AvailableUpdate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	catalog, err := a.load()
	if err != nil {
		return nil, err
	}
	newest := newestPackages(catalog.Packages)
	var updates []types.AvailableUpdate
	for _, name := range sortedPackageNames(newest) {
		installed, ok := catalog.Baseline[name]
		if !ok {
			continue
		}
		candidate := newest[name]
		if compareEVR(candidate.EVR(), installed) <= 0 {
			continue
		}
		updates = append(updates, types.AvailableUpdate{
			Name:     name,
			Arch:     candidate.Arch,
			EVR:      candidate.EVR(),
			Advisory: candidate.Advisory,
		})
	}
	return updates, nil
}

func (a *CatalogOracleAdapter) SecurityAdvisories(ctx context.Context) (map[string]string, error) {
	updates, err := a.AvailableUpdates(ctx)
	if err != nil {
		return nil, err
	}
	advisories := map[string]string{}
	for _, update := range updates {
		if update.Advisory != "" {
			advisories[update.Name] = update.Advisory
		}
	}
	return advisories, nil
}

// Download copies the newest build of every name plus its transitive
// requires into destDir.
func (a *CatalogOracleAdapter) Download(ctx context.Context, names []string, destDir string) (types.DownloadResult, error) {
	catalog, err := a.load()
	if err != nil {
		return types.DownloadResult{}, err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return types.DownloadResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create download directory %s", destDir)).
			WithCause(err)
	}
	newest := newestPackages(catalog.Packages)
	failures := map[string]string{}
	visited := map[string]struct{}{}
	queue := append([]string(nil), names...)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return types.DownloadResult{}, err
		}
		name := queue[0]
		queue = queue[1:]
		if _, ok := visited[name]; ok {
			continue
		}
		visited[name] = struct{}{}
		pkg, ok := newest[name]
		if !ok {
			failures[name] = "no package in catalog"
			continue
		}
		src := filepath.Join(a.MirrorDir, pkg.File)
		if err := copyPackageFile(src, filepath.Join(destDir, filepath.Base(pkg.File))); err != nil {
			failures[name] = err.Error()
			continue
		}
		queue = append(queue, pkg.Requires...)
	}

	files, err := listRPMFiles(destDir)
	if err != nil {
		return types.DownloadResult{}, err
	}
	result := types.DownloadResult{
		Requested: append([]string{}, names...),
		Succeeded: []string{},
		Files:     files,
	}
	for _, name := range names {
		if reason, failed := failures[name]; failed {
			result.Failed = append(result.Failed, types.DownloadFailure{Name: name, Error: reason})
			delete(failures, name)
			continue
		}
		result.Succeeded = append(result.Succeeded, name)
	}
	for _, name := range sortedKeys(failures) {
		log.Ctx(ctx).Warn().Str("dependency", name).Str("error", failures[name]).Msg("dependency not available")
		result.Failed = append(result.Failed, types.DownloadFailure{Name: name, Error: "dependency: " + failures[name]})
	}
	return result, nil
}

func (a *CatalogOracleAdapter) load() (types.CatalogFile, error) {
	if a.loaded {
		return a.cached, nil
	}
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return types.CatalogFile{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("package catalog %s not found", a.Path)).
			WithCause(err)
	}
	var catalog types.CatalogFile
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return types.CatalogFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid package catalog %s", a.Path)).
			WithCause(err)
	}
	for i, pkg := range catalog.Packages {
		if strings.TrimSpace(pkg.Name) == "" || strings.TrimSpace(pkg.File) == "" {
			return types.CatalogFile{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("package catalog %s entry %d needs name and file", a.Path, i))
		}
	}
	if catalog.Baseline == nil {
		catalog.Baseline = map[string]string{}
	}
	a.cached = catalog
	a.loaded = true
	return catalog, nil
}

func newestPackages(packages []types.CatalogPackage) map[string]types.CatalogPackage {
	newest := map[string]types.CatalogPackage{}
	for _, pkg := range packages {
		current, ok := newest[pkg.Name]
		if !ok || compareEVR(pkg.EVR(), current.EVR()) > 0 {
			newest[pkg.Name] = pkg
		}
	}
	return newest
}

func compareEVR(a string, b string) int {
	return rpmversion.NewVersion(a).Compare(rpmversion.NewVersion(b))
}

func sortedPackageNames(packages map[string]types.CatalogPackage) []string {
	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedKeys(values map[string]string) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func copyPackageFile(srcPath string, destPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("failed to open package %s", srcPath)).
			WithCause(err)
	}
	defer srcFile.Close()
	destFile, err := os.Create(destPath)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create package %s", destPath)).
			WithCause(err)
	}
	defer destFile.Close()
	if _, err := io.Copy(destFile, srcFile); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to copy package %s", srcPath)).
			WithCause(err)
	}
	return nil
}

var _ ports.UpdateOraclePort = (*CatalogOracleAdapter)(nil)
