package ports

import (
	"context"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type HostPort interface {
	Release(ctx context.Context) (types.HostRelease, error)
	Hostname() string
	FreeBytes(path string) (uint64, error)
	LookPath(tool string) (string, error)
}
