package ports

import (
	"context"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type ManifestStorePort interface {
	ListManifests(ctx context.Context, dir string) ([]string, error)
	LoadManifest(ctx context.Context, path string) (types.LoadedManifest, error)
}
