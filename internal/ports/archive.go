package ports

import (
	"context"
	"io"
	"time"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type ArchivePort interface {
	Pack(ctx context.Context, srcDir string, rootName string, dest string, format types.ArchiveFormat, mtime time.Time) error
	Walk(ctx context.Context, path string, fn func(entry types.ArchiveEntry, body io.Reader) error) error
	Extract(ctx context.Context, path string, destDir string) error
}
