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
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// extractionHeadroom is the multiple of the archive size that must be free
// before extraction starts.
const extractionHeadroom = 4

// Import publishes a bundle into a repository root. Every check that can
// refuse the bundle runs before extraction, and current is only moved
// once the new versioned directory is complete.
func (s Service) Import(ctx context.Context, req ImportRequest) (result ImportResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "import", started, err) }()

	root := strings.TrimSpace(req.RepoRoot)
	if root == "" {
		return ImportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("repository root is required")
	}
	verified, err := s.Verify(ctx, VerifyRequest{ArchivePath: req.ArchivePath, ChecksumPath: req.ChecksumPath})
	if err != nil {
		return ImportResult{}, err
	}
	name := verified.Name
	result = ImportResult{BundleID: name.BundleID, Degraded: verified.Degraded}

	bundleMajor, err := core.TrackMajor(name.Track)
	if err != nil {
		return ImportResult{}, err
	}
	hostMajor := req.HostOSMajor
	if hostMajor <= 0 {
		release, err := s.Host.Release(ctx)
		if err != nil {
			return ImportResult{}, err
		}
		hostMajor = release.Major
	}
	if hostMajor != bundleMajor {
		return ImportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("bundle %s targets os major %d but this host runs major %d", name.BundleID, bundleMajor, hostMajor))
	}
	repo := s.RepositoryAt(root, req.ExpectedTrack)
	state, err := repo.State(ctx)
	if err != nil {
		return ImportResult{}, err
	}
	if state.Track != "" && state.Track != name.Track {
		return ImportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("bundle %s is for track %s but repository %s serves track %s", name.BundleID, name.Track, root, state.Track))
	}

	staging, err := repo.StagingDir(ctx, name.BundleID)
	if err != nil {
		return ImportResult{}, err
	}
	defer func() {
		if discardErr := repo.DiscardStaging(staging); discardErr != nil {
			log.Ctx(ctx).Warn().Err(discardErr).Str("staging", staging).Msg("failed to remove staging directory")
		}
	}()
	if err := s.requireFreeSpace(staging, uint64(verified.SizeBytes)*extractionHeadroom); err != nil {
		return ImportResult{}, err
	}
	if err := s.Archive.Extract(ctx, req.ArchivePath, staging); err != nil {
		return ImportResult{}, err
	}
	bundleDir := filepath.Join(staging, name.BundleID)
	if err := s.checkExtracted(bundleDir, name); err != nil {
		return ImportResult{}, err
	}
	regenerated, err := s.ensureIndex(ctx, bundleDir, name.BundleID)
	if err != nil {
		return ImportResult{}, err
	}
	result.IndexRegenerated = regenerated

	if err := repo.Install(ctx, name.BundleID, bundleDir); err != nil {
		return ImportResult{}, err
	}
	advanced, err := repo.Advance(ctx, name.BundleID)
	if err != nil {
		return ImportResult{}, err
	}
	result.Advanced = advanced
	if result.State, err = repo.State(ctx); err != nil {
		return ImportResult{}, err
	}
	event := log.Ctx(ctx).Info().
		Str("bundle", name.BundleID).
		Str("current", result.State.Current).
		Str("previous", result.State.Previous)
	if advanced {
		event.Msg("bundle published")
	} else {
		event.Msg("bundle re-imported; pointers unchanged")
	}
	return result, nil
}

// checkExtracted re-validates the unpacked package files against the
// bundle's SHA256SUMS before anything is published.
func (s Service) checkExtracted(bundleDir string, name types.BundleName) error {
	if info, err := os.Stat(bundleDir); err != nil || !info.IsDir() {
		return errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("integrity check failed for %s: extracted tree has no %s directory", name.FileName, name.BundleID))
	}
	sums, err := s.OutputReader.ReadChecksums(filepath.Join(bundleDir, types.ChecksumsFileName))
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("integrity check failed for %s: %s", name.FileName, shared.ErrorMessage(err))).
			WithCause(err)
	}
	for _, sum := range sums {
		rel := filepath.Clean(filepath.FromSlash(sum.Path))
		if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return errbuilder.New().
				WithCode(errbuilder.CodeDataLoss).
				WithMsg(fmt.Sprintf("integrity check failed for %s: checksum entry %q escapes the bundle", name.FileName, sum.Path))
		}
		digest, _, err := shared.FileSHA256(filepath.Join(bundleDir, rel))
		if err != nil || digest != sum.Digest {
			return errbuilder.New().
				WithCode(errbuilder.CodeDataLoss).
				WithMsg(fmt.Sprintf("integrity check failed for %s: extracted %s does not match %s", name.FileName, sum.Path, types.ChecksumsFileName))
		}
	}
	return nil
}

// ensureIndex regenerates a missing or unreadable repository index in
// place. A bundle whose index cannot be produced is never published.
func (s Service) ensureIndex(ctx context.Context, dir string, bundleID string) (bool, error) {
	if err := s.Index.Validate(dir); err == nil {
		return false, nil
	}
	log.Ctx(ctx).Warn().Str("bundle", bundleID).Msg("repository index missing after extraction; regenerating")
	if err := s.Index.Generate(ctx, dir); err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("bundle %s has no repository index and regeneration failed: %s", bundleID, shared.ErrorMessage(err))).
			WithCause(err)
	}
	if err := s.Index.Validate(dir); err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("bundle %s still has no valid repository index", bundleID)).
			WithCause(err)
	}
	return true, nil
}

func (s Service) repository(req RepositoryRequest) (ports.RepositoryStatePort, error) {
	root := strings.TrimSpace(req.RepoRoot)
	if root == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("repository root is required")
	}
	return s.RepositoryAt(root, req.ExpectedTrack), nil
}
