package ports

import (
	"context"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// RepositoryStatePort owns the versioned bundle directories of one track and
// the current/previous pointers over them.
type RepositoryStatePort interface {
	State(ctx context.Context) (types.RepositoryState, error)
	StagingDir(ctx context.Context, bundleID string) (string, error)
	DiscardStaging(stagedDir string) error
	Install(ctx context.Context, bundleID string, stagedDir string) error
	Advance(ctx context.Context, bundleID string) (bool, error)
	Rollback(ctx context.Context) (types.RepositoryState, error)
	DeleteVersion(ctx context.Context, bundleID string) error
	VersionDir(bundleID string) string
}
