package adapters

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

func TestMetricsTextfileAdapterFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textfile", "airgap_rpm.prom")
	metrics := NewMetricsTextfileAdapter(path)

	metrics.ObserveStage("build", time.Now().Add(-2*time.Second), nil)
	metrics.ObserveStage("import", time.Now(), errbuilder.New().WithCode(errbuilder.CodeFailedPrecondition).WithMsg("track mismatch"))
	metrics.ObserveStage("verify", time.Now(), errors.New("boom"))
	metrics.RecordBundle(types.BundleMetadata{
		OSTrack:  "rhel9",
		Packages: types.PackageCounts{TotalCount: 5, UpdateCount: 2, SecurityCount: 1, DependencyCount: 2, SizeBytes: 4096},
	}, 2048)
	require.NoError(t, metrics.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, `airgap_rpm_bundle_packages{track="rhel9",type="total"} 5`)
	assert.Contains(t, text, `airgap_rpm_bundle_size_bytes{track="rhel9",what="archive"} 2048`)
	assert.Contains(t, text, `airgap_rpm_stage_failures_total{kind="StateError",stage="import"} 1`)
	assert.Contains(t, text, `airgap_rpm_stage_failures_total{kind="InternalError",stage="verify"} 1`)
	assert.Contains(t, text, `airgap_rpm_last_success_timestamp_seconds{stage="build"}`)
}

func TestMetricsTextfileAdapterWithoutPath(t *testing.T) {
	metrics := NewMetricsTextfileAdapter("")
	metrics.ObserveStage("verify", time.Now(), nil)
	require.NoError(t, metrics.Flush())
}
