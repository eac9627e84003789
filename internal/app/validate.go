package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// Validate checks every manifest in a directory without merging them.
func (s Service) Validate(ctx context.Context, req ValidateRequest) (ValidateResult, error) {
	loaded, rejected, err := s.loadManifests(ctx, req.ManifestDir)
	if err != nil {
		return ValidateResult{}, err
	}
	result := ValidateResult{Invalid: rejected}
	for _, manifest := range loaded {
		result.Valid = append(result.Valid, manifest.Path)
	}
	return result, nil
}

// loadManifests loads every candidate manifest. Files failing validation
// are returned as rejections so one bad host never aborts the run.
func (s Service) loadManifests(ctx context.Context, dir string) ([]types.LoadedManifest, []types.RejectedManifest, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest directory is required")
	}
	validator, err := core.NewManifestValidator()
	if err != nil {
		return nil, nil, err
	}
	paths, err := s.Manifests.ListManifests(ctx, dir)
	if err != nil {
		return nil, nil, err
	}
	var loaded []types.LoadedManifest
	var rejected []types.RejectedManifest
	for _, path := range paths {
		manifest, err := s.Manifests.LoadManifest(ctx, path)
		if err == nil {
			err = validator.Validate(manifest)
		}
		if err != nil {
			log.Ctx(ctx).Warn().Str("manifest", path).Err(err).Msg("manifest rejected")
			rejected = append(rejected, types.RejectedManifest{Path: path, Reason: shared.ErrorMessage(err)})
			continue
		}
		loaded = append(loaded, manifest)
	}
	return loaded, rejected, nil
}
