package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// Build runs the builder side of the pipeline for one track: preconditions,
// merge, closure, packaging, sealing and the post-build integrity gate.
func (s Service) Build(ctx context.Context, req BuildRequest) (result BuildResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "build", started, err) }()

	track := strings.TrimSpace(req.Track)
	if err := core.ValidateTrack(track); err != nil {
		return BuildResult{}, err
	}
	major, err := core.TrackMajor(track)
	if err != nil {
		return BuildResult{}, err
	}
	if strings.TrimSpace(req.OutputDir) == "" || strings.TrimSpace(req.WorkDir) == "" {
		return BuildResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output and work directories are required")
	}
	format := req.Format
	if format == "" {
		format = types.ArchiveFormatZstd
	}
	if err := s.checkBuildPreconditions(ctx, req); err != nil {
		return BuildResult{}, err
	}

	outcome, err := s.merge(ctx, req.ManifestDir, major)
	if err != nil {
		return BuildResult{}, err
	}
	createdAt, err := s.nextBundleTime(req.OutputDir, track)
	if err != nil {
		return BuildResult{}, err
	}
	bundleID := core.FormatBundleID(track, createdAt)
	workDir := filepath.Join(req.WorkDir, bundleID)
	if !req.KeepWorkDir {
		defer os.RemoveAll(workDir)
	}

	sealed, closure, err := s.packageBundle(ctx, packageInput{
		BundleID:  bundleID,
		Track:     track,
		OSMajor:   major,
		CreatedAt: createdAt,
		WorkDir:   workDir,
		OutputDir: req.OutputDir,
		Format:    format,
		Outcome:   outcome,
	})
	if err != nil {
		return BuildResult{}, err
	}

	verified, err := s.Verify(ctx, VerifyRequest{ArchivePath: sealed.ArchivePath, ChecksumPath: sealed.ChecksumPath})
	if err != nil {
		removeSealed(sealed)
		return BuildResult{}, errbuilder.New().
			WithCode(errbuilder.CodeOf(err)).
			WithMsg(fmt.Sprintf("post-build verification of %s failed: %s", filepath.Base(sealed.ArchivePath), shared.ErrorMessage(err))).
			WithCause(err)
	}
	if s.Metrics != nil {
		s.Metrics.RecordBundle(sealed.Metadata, verified.SizeBytes)
	}
	log.Ctx(ctx).Info().
		Str("bundle", bundleID).
		Str("archive", sealed.ArchivePath).
		Str("sha256", sealed.BundleHash).
		Int("packages", sealed.Metadata.Packages.TotalCount).
		Bool("download_complete", closure.Download.Complete()).
		Msg("bundle built")
	return BuildResult{Bundle: sealed, Closure: closure, Merge: outcome, WorkDir: workDir}, nil
}

func (s Service) checkBuildPreconditions(ctx context.Context, req BuildRequest) error {
	for _, dir := range []string{req.WorkDir, req.OutputDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg(fmt.Sprintf("cannot create %s", dir)).
				WithCause(err)
		}
		if err := s.requireFreeSpace(dir, req.MinFreeBytes); err != nil {
			return err
		}
	}
	if err := s.Index.CheckTools(); err != nil {
		return err
	}
	for _, tool := range req.RequiredTools {
		if _, err := s.Host.LookPath(tool); err != nil {
			return err
		}
	}
	log.Ctx(ctx).Debug().Uint64("min_free_bytes", req.MinFreeBytes).Msg("build preconditions satisfied")
	return nil
}

func (s Service) requireFreeSpace(dir string, need uint64) error {
	if need == 0 {
		return nil
	}
	free, err := s.Host.FreeBytes(dir)
	if err != nil {
		return err
	}
	if free < need {
		return errbuilder.New().
			WithCode(errbuilder.CodeResourceExhausted).
			WithMsg(fmt.Sprintf("insufficient disk space in %s: %d bytes free, %d required", dir, free, need))
	}
	return nil
}

// nextBundleTime keeps bundle ids strictly increasing per track even when
// two builds land in the same second.
func (s Service) nextBundleTime(outputDir string, track string) (time.Time, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil && !os.IsNotExist(err) {
		return time.Time{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to list %s", outputDir)).
			WithCause(err)
	}
	var existing []time.Time
	for _, entry := range entries {
		name, err := core.ParseBundleFileName(entry.Name())
		if err != nil || name.Track != track {
			continue
		}
		existing = append(existing, name.Timestamp)
	}
	return core.NextBundleTime(s.now(), existing), nil
}

func removeSealed(sealed types.SealedBundle) {
	for _, path := range []string{sealed.ArchivePath, sealed.ChecksumPath, sealed.MetadataPath} {
		if path != "" {
			_ = os.Remove(path)
		}
	}
}
