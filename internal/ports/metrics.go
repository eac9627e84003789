package ports

import (
	"time"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type MetricsPort interface {
	ObserveStage(stage string, started time.Time, err error)
	RecordBundle(meta types.BundleMetadata, archiveBytes int64)
	Flush() error
}
