package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// MetricsTextfileAdapter collects per-run pipeline metrics and writes them
// in the node exporter textfile format. With an empty Path it only collects.
type MetricsTextfileAdapter struct {
	Path     string
	registry *prometheus.Registry
	duration *prometheus.GaugeVec
	success  *prometheus.GaugeVec
	failures *prometheus.CounterVec
	packages *prometheus.GaugeVec
	size     *prometheus.GaugeVec
}

func NewMetricsTextfileAdapter(path string) *MetricsTextfileAdapter {
	a := &MetricsTextfileAdapter{
		Path:     strings.TrimSpace(path),
		registry: prometheus.NewRegistry(),
		duration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "airgap_rpm_stage_duration_seconds",
			Help: "Wall time of the last run of each pipeline stage",
		}, []string{"stage"}),
		success: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "airgap_rpm_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run of each pipeline stage",
		}, []string{"stage"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airgap_rpm_stage_failures_total",
			Help: "Failed pipeline stage runs by error kind",
		}, []string{"stage", "kind"}),
		packages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "airgap_rpm_bundle_packages",
			Help: "Packages in the last bundle by classification",
		}, []string{"track", "type"}),
		size: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "airgap_rpm_bundle_size_bytes",
			Help: "Size of the last bundle",
		}, []string{"track", "what"}),
	}
	a.registry.MustRegister(a.duration, a.success, a.failures, a.packages, a.size)
	return a
}

func (a *MetricsTextfileAdapter) ObserveStage(stage string, started time.Time, err error) {
	a.duration.WithLabelValues(stage).Set(time.Since(started).Seconds())
	if err != nil {
		a.failures.WithLabelValues(stage, string(shared.KindOf(err))).Inc()
		return
	}
	a.success.WithLabelValues(stage).SetToCurrentTime()
}

func (a *MetricsTextfileAdapter) RecordBundle(meta types.BundleMetadata, archiveBytes int64) {
	track := meta.OSTrack
	a.packages.WithLabelValues(track, "total").Set(float64(meta.Packages.TotalCount))
	a.packages.WithLabelValues(track, string(types.PackageKindUpdate)).Set(float64(meta.Packages.UpdateCount))
	a.packages.WithLabelValues(track, string(types.PackageKindSecurity)).Set(float64(meta.Packages.SecurityCount))
	a.packages.WithLabelValues(track, string(types.PackageKindDependency)).Set(float64(meta.Packages.DependencyCount))
	a.size.WithLabelValues(track, "packages").Set(float64(meta.Packages.SizeBytes))
	a.size.WithLabelValues(track, "archive").Set(float64(archiveBytes))
}

func (a *MetricsTextfileAdapter) Flush() error {
	if a.Path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(a.Path), 0755); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create metrics directory for %s", a.Path)).
			WithCause(err)
	}
	if err := prometheus.WriteToTextfile(a.Path, a.registry); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write metrics textfile %s", a.Path)).
			WithCause(err)
	}
	return nil
}

var _ ports.MetricsPort = (*MetricsTextfileAdapter)(nil)
