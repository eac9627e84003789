package app

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// Stage copies a verified bundle with its companion files to transfer media
// and verifies the copy at the destination.
func (s Service) Stage(ctx context.Context, req StageRequest) (result StageResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "stage", started, err) }()

	destDir := strings.TrimSpace(req.DestDir)
	if destDir == "" {
		return StageResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("destination directory is required")
	}
	source, err := s.Verify(ctx, VerifyRequest{ArchivePath: req.ArchivePath, ChecksumPath: req.ChecksumPath})
	if err != nil {
		return StageResult{}, err
	}
	digest, err := hex.DecodeString(source.Digest)
	if err != nil {
		return StageResult{}, err
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return StageResult{}, errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("cannot create %s", destDir)).
			WithCause(err)
	}
	if err := s.requireFreeSpace(destDir, uint64(source.SizeBytes)); err != nil {
		return StageResult{}, err
	}

	archiveDest := filepath.Join(destDir, source.Name.FileName)
	if err := s.Stager.Copy(ctx, req.ArchivePath, archiveDest, digest); err != nil {
		return StageResult{}, err
	}
	copied := []string{archiveDest}

	companions := []struct{ src, dest string }{
		{src: companionPath(req), dest: archiveDest + ".sha256"},
		{
			src:  filepath.Join(filepath.Dir(req.ArchivePath), source.Name.BundleID+"."+types.MetadataFileName),
			dest: filepath.Join(destDir, source.Name.BundleID+"."+types.MetadataFileName),
		},
	}
	for _, companion := range companions {
		if _, statErr := os.Stat(companion.src); statErr != nil {
			continue
		}
		sum, _, err := shared.FileSHA256(companion.src)
		if err != nil {
			return StageResult{}, err
		}
		raw, err := hex.DecodeString(sum)
		if err != nil {
			return StageResult{}, err
		}
		if err := s.Stager.Copy(ctx, companion.src, companion.dest, raw); err != nil {
			return StageResult{}, err
		}
		copied = append(copied, companion.dest)
	}

	staged, err := s.Verify(ctx, VerifyRequest{ArchivePath: archiveDest})
	if err != nil {
		return StageResult{}, errbuilder.New().
			WithCode(errbuilder.CodeOf(err)).
			WithMsg(fmt.Sprintf("post-transfer verification of %s failed: %s", archiveDest, shared.ErrorMessage(err))).
			WithCause(err)
	}
	log.Ctx(ctx).Info().Str("archive", archiveDest).Int("files", len(copied)).Msg("bundle staged")
	return StageResult{ArchivePath: archiveDest, Copied: copied, Verify: staged}, nil
}

func companionPath(req StageRequest) string {
	if strings.TrimSpace(req.ChecksumPath) != "" {
		return req.ChecksumPath
	}
	return req.ArchivePath + ".sha256"
}
