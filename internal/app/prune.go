package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// Prune applies an operator retention policy to a repository root. Nothing
// is removed unless DryRun is false.
func (s Service) Prune(ctx context.Context, req PruneRequest) (PruneResult, error) {
	repo, err := s.repository(RepositoryRequest{RepoRoot: req.RepoRoot, ExpectedTrack: req.ExpectedTrack})
	if err != nil {
		return PruneResult{}, err
	}
	state, err := repo.State(ctx)
	if err != nil {
		return PruneResult{}, err
	}
	policy := types.BundleRetentionPolicy{
		KeepLast: req.KeepLast,
		KeepDays: req.KeepDays,
		DryRun:   req.DryRun,
	}
	plan := BuildPrunePlan(state, policy, s.now())
	planned := versionIDs(plan.Delete)
	if policy.DryRun {
		return PruneResult{
			KeepCount:   len(plan.Keep),
			DeleteCount: len(plan.Delete),
			Planned:     planned,
			DryRun:      true,
		}, nil
	}
	var deleted []string
	for _, version := range plan.Delete {
		if err := repo.DeleteVersion(ctx, version.BundleID); err != nil {
			return PruneResult{}, err
		}
		log.Ctx(ctx).Info().Str("bundle", version.BundleID).Msg("bundle version deleted")
		deleted = append(deleted, version.BundleID)
	}
	return PruneResult{
		KeepCount:   len(plan.Keep),
		DeleteCount: len(deleted),
		Deleted:     deleted,
		Planned:     planned,
	}, nil
}

func versionIDs(versions []types.BundleVersion) []string {
	ids := make([]string, 0, len(versions))
	for _, version := range versions {
		ids = append(ids, version.BundleID)
	}
	return ids
}
