package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type packageInput struct {
	BundleID  string
	Track     string
	OSMajor   int
	CreatedAt time.Time
	WorkDir   string
	OutputDir string
	Format    types.ArchiveFormat
	Outcome   types.MergeOutcome
}

// buildLog mirrors build steps to the operator console and to build.log
// inside the bundle.
type buildLog struct {
	console *zerolog.Logger
	file    zerolog.Logger
	closer  io.Closer
}

func openBuildLog(ctx context.Context, dir string, bundleID string) (*buildLog, error) {
	file, err := os.OpenFile(filepath.Join(dir, types.BuildLogFileName), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &buildLog{
		console: log.Ctx(ctx),
		file:    zerolog.New(file).With().Timestamp().Str("bundle", bundleID).Logger(),
		closer:  file,
	}, nil
}

func (b *buildLog) step(msg string, fields map[string]any) {
	b.console.Info().Fields(fields).Msg(msg)
	b.file.Info().Fields(fields).Msg(msg)
}

func (b *buildLog) warn(msg string, fields map[string]any) {
	b.console.Warn().Fields(fields).Msg(msg)
	b.file.Warn().Fields(fields).Msg(msg)
}

func (b *buildLog) Close() error {
	if b.closer == nil {
		return nil
	}
	err := b.closer.Close()
	b.closer = nil
	return err
}

// packageBundle assembles the work tree and seals it. Each step depends on
// the output of the one before it: index, package hashes, metadata with an
// empty bundle hash, archive, whole-archive hash.
func (s Service) packageBundle(ctx context.Context, in packageInput) (types.SealedBundle, types.ClosureResult, error) {
	if err := os.RemoveAll(in.WorkDir); err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	rpmsDir := filepath.Join(in.WorkDir, types.RPMDirName)
	for _, dir := range []string{rpmsDir, filepath.Join(in.WorkDir, types.ManifestDirName)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return types.SealedBundle{}, types.ClosureResult{}, errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg(fmt.Sprintf("cannot create %s", dir)).
				WithCause(err)
		}
	}
	blog, err := openBuildLog(ctx, in.WorkDir, in.BundleID)
	if err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open build log").
			WithCause(err)
	}
	defer blog.Close()
	blog.step("bundle build started", map[string]any{"track": in.Track, "os_major": in.OSMajor, "format": string(in.Format)})

	if err := s.copyManifests(in); err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	reportPath := filepath.Join(in.WorkDir, types.MergeReportName)
	if err := s.Output.WriteMergeReport(reportPath, core.NewManifestMerger().Report(in.Outcome, in.CreatedAt)); err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	blog.step("manifests recorded", map[string]any{
		"hosts":    len(in.Outcome.Requirements.ContributingHosts),
		"packages": len(in.Outcome.Requirements.UniquePackages),
		"rejected": len(in.Outcome.Rejected),
	})

	closure, err := core.NewClosureResolver(s.Oracle).Resolve(ctx, in.Outcome.Requirements, rpmsDir)
	if err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	for _, failure := range closure.Download.Failed {
		blog.warn("package download failed", map[string]any{"package": failure.Name, "error": failure.Error})
	}
	advisories, err := s.Oracle.SecurityAdvisories(ctx)
	if err != nil {
		blog.warn("security advisories unavailable", map[string]any{"error": err.Error()})
		advisories = map[string]string{}
	}
	blog.step("closure resolved", map[string]any{
		"download_list": len(closure.DownloadList),
		"update_list":   len(closure.UpdateList),
		"files":         len(closure.Download.Files),
		"complete":      closure.Download.Complete(),
	})

	if err := s.Index.Generate(ctx, in.WorkDir); err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, errbuilder.New().
			WithCode(errbuilder.CodeOf(err)).
			WithMsg(fmt.Sprintf("repository index generation failed for %s: %s", in.BundleID, shared.ErrorMessage(err))).
			WithCause(err)
	}
	blog.step("repository index generated", nil)

	files, err := hashPackages(ctx, rpmsDir)
	if err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	sums := make([]types.FileChecksum, 0, len(files))
	for _, file := range files {
		sums = append(sums, types.FileChecksum{Digest: file.SHA256, Path: types.RPMDirName + "/" + file.File})
	}
	if err := s.Output.WriteChecksums(filepath.Join(in.WorkDir, types.ChecksumsFileName), sums); err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	blog.step("package checksums written", map[string]any{"files": len(files)})

	entries := core.ClassifyPackages(files, closure, advisories, in.Outcome.Requirements.PackageHosts)
	meta := core.BuildMetadata(ctx, core.MetadataInput{
		BundleID:       in.BundleID,
		Track:          in.Track,
		OSMajor:        in.OSMajor,
		CreatedAt:      in.CreatedAt,
		BuilderHost:    s.Host.Hostname(),
		BuilderVersion: s.Version,
		Requirements:   in.Outcome.Requirements,
		Closure:        closure,
		Packages:       entries,
		Format:         in.Format,
	})
	if err := s.Output.WriteMetadata(filepath.Join(in.WorkDir, types.MetadataFileName), meta); err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	if err := s.SBOMWriter.WriteSBOM(in.WorkDir, in.BundleID, meta.CreatedAt, entries); err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	blog.step("metadata written", map[string]any{
		"total":      meta.Packages.TotalCount,
		"updates":    meta.Packages.UpdateCount,
		"security":   meta.Packages.SecurityCount,
		"dependency": meta.Packages.DependencyCount,
		"size_bytes": meta.Packages.SizeBytes,
	})
	if err := blog.Close(); err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}

	sealed, err := s.seal(ctx, in, meta)
	if err != nil {
		return types.SealedBundle{}, types.ClosureResult{}, err
	}
	return sealed, closure, nil
}

// seal archives the work tree, then records the archive digest in the
// companion checksum file and the sidecar metadata. The metadata inside the
// archive keeps an empty bundle hash.
func (s Service) seal(ctx context.Context, in packageInput, meta types.BundleMetadata) (types.SealedBundle, error) {
	fileName := core.BundleFileName(in.BundleID, in.Format)
	sealed := types.SealedBundle{
		ArchivePath:  filepath.Join(in.OutputDir, fileName),
		ChecksumPath: filepath.Join(in.OutputDir, fileName+".sha256"),
		MetadataPath: filepath.Join(in.OutputDir, in.BundleID+"."+types.MetadataFileName),
	}
	if err := s.Archive.Pack(ctx, in.WorkDir, in.BundleID, sealed.ArchivePath, in.Format, in.CreatedAt); err != nil {
		return types.SealedBundle{}, err
	}
	digest, _, err := shared.FileSHA256(sealed.ArchivePath)
	if err != nil {
		removeSealed(sealed)
		return types.SealedBundle{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to hash %s", sealed.ArchivePath)).
			WithCause(err)
	}
	meta.Checksums.BundleHash = digest
	if err := s.Output.WriteChecksums(sealed.ChecksumPath, []types.FileChecksum{{Digest: digest, Path: fileName}}); err != nil {
		removeSealed(sealed)
		return types.SealedBundle{}, err
	}
	if err := s.Output.WriteMetadata(sealed.MetadataPath, meta); err != nil {
		removeSealed(sealed)
		return types.SealedBundle{}, err
	}
	sealed.BundleHash = digest
	sealed.Metadata = meta
	log.Ctx(ctx).Debug().Str("archive", sealed.ArchivePath).Str("sha256", digest).Msg("bundle sealed")
	return sealed, nil
}

func (s Service) copyManifests(in packageInput) error {
	dir := filepath.Join(in.WorkDir, types.ManifestDirName)
	for _, loaded := range in.Outcome.Accepted {
		dest := filepath.Join(dir, filepath.Base(loaded.Path))
		if err := os.WriteFile(dest, loaded.Raw, 0644); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("failed to copy manifest %s", loaded.Path)).
				WithCause(err)
		}
	}
	return nil
}

// hashPackages digests every package file in dir using one worker per CPU.
func hashPackages(ctx context.Context, dir string) ([]core.PackageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to list %s", dir)).
			WithCause(err)
	}
	var names []string
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ".rpm") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	files := make([]core.PackageFile, len(names))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(runtime.NumCPU())
	for i, name := range names {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			digest, size, err := shared.FileSHA256(filepath.Join(dir, name))
			if err != nil {
				return errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg(fmt.Sprintf("failed to hash %s", name)).
					WithCause(err)
			}
			files[i] = core.PackageFile{File: name, SHA256: digest, Size: size}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return files, nil
}
