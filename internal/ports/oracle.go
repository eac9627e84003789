package ports

import (
	"context"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// UpdateOraclePort answers update availability and fetches packages with
// their full dependency closure.
type UpdateOraclePort interface {
	AvailableUpdates(ctx context.Context) ([]types.AvailableUpdate, error)
	SecurityAdvisories(ctx context.Context) (map[string]string, error)
	Download(ctx context.Context, names []string, destDir string) (types.DownloadResult, error)
}
