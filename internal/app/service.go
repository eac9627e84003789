package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/adapters"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
)

type Service struct {
	Manifests    ports.ManifestStorePort
	Oracle       ports.UpdateOraclePort
	Index        ports.RepoIndexPort
	Archive      ports.ArchivePort
	Output       ports.OutputPort
	OutputReader ports.OutputReaderPort
	SBOMWriter   ports.SBOMPort
	Host         ports.HostPort
	Stager       ports.MediaStagerPort
	Metrics      ports.MetricsPort
	RepositoryAt func(root string, expectedTrack string) ports.RepositoryStatePort
	Clock        func() time.Time
	Version      string
}

func NewService() Service {
	return Service{
		Manifests:    adapters.NewManifestFileAdapter(),
		Oracle:       adapters.NewDnfOracleAdapter(),
		Index:        adapters.NewCreaterepoAdapter(),
		Archive:      adapters.NewTarArchiveAdapter(),
		Output:       adapters.NewOutputFileAdapter(),
		OutputReader: adapters.NewOutputReaderAdapter(),
		SBOMWriter:   adapters.NewSBOMWriterAdapter(),
		Host:         adapters.NewHostSystemAdapter(),
		Stager:       adapters.NewMediaStagerAdapter(nil, 0),
		Metrics:      adapters.NewMetricsTextfileAdapter(""),
		RepositoryAt: func(root string, expectedTrack string) ports.RepositoryStatePort {
			return adapters.NewRepoStateFileAdapter(root, expectedTrack)
		},
		Clock:   time.Now,
		Version: "dev",
	}
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}

// observe records the outcome of one pipeline stage. Metric write failures
// never fail the stage itself.
func (s Service) observe(ctx context.Context, stage string, started time.Time, err error) {
	if s.Metrics == nil {
		return
	}
	s.Metrics.ObserveStage(stage, started, err)
	if flushErr := s.Metrics.Flush(); flushErr != nil {
		log.Ctx(ctx).Warn().Err(flushErr).Str("stage", stage).Msg("failed to write metrics")
	}
}
