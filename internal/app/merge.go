package app

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

const PackageListName = "packages.txt"

func (s Service) Merge(ctx context.Context, req MergeRequest) (MergeResult, error) {
	outcome, err := s.merge(ctx, req.ManifestDir, req.OSMajor)
	if err != nil {
		return MergeResult{}, err
	}
	outputDir := strings.TrimSpace(req.OutputDir)
	if outputDir == "" {
		return MergeResult{Outcome: outcome}, nil
	}
	result := MergeResult{
		Outcome:      outcome,
		ReportPath:   filepath.Join(outputDir, types.MergeReportName),
		PackagesPath: filepath.Join(outputDir, PackageListName),
	}
	report := core.NewManifestMerger().Report(outcome, s.now())
	if err := s.Output.WriteMergeReport(result.ReportPath, report); err != nil {
		return MergeResult{}, err
	}
	if err := s.Output.WritePackageList(result.PackagesPath, outcome.Requirements.UniquePackages); err != nil {
		return MergeResult{}, err
	}
	return result, nil
}

func (s Service) merge(ctx context.Context, dir string, osMajor int) (types.MergeOutcome, error) {
	loaded, rejected, err := s.loadManifests(ctx, dir)
	if err != nil {
		return types.MergeOutcome{}, err
	}
	outcome, err := core.NewManifestMerger().Merge(ctx, loaded, osMajor)
	outcome.Rejected = append(rejected, outcome.Rejected...)
	if err != nil {
		return outcome, errbuilder.New().
			WithCode(errbuilder.CodeOf(err)).
			WithMsg(shared.ErrorMessage(err) + rejectionSummary(outcome.Rejected)).
			WithCause(err)
	}
	for _, warning := range outcome.Warnings {
		log.Ctx(ctx).Warn().Msg(warning)
	}
	log.Ctx(ctx).Info().
		Int("hosts", len(outcome.Requirements.ContributingHosts)).
		Int("packages", len(outcome.Requirements.UniquePackages)).
		Int("rejected", len(outcome.Rejected)).
		Int("os_major", osMajor).
		Msg("manifests merged")
	return outcome, nil
}

func rejectionSummary(rejected []types.RejectedManifest) string {
	if len(rejected) == 0 {
		return ""
	}
	parts := make([]string, 0, len(rejected))
	for _, entry := range rejected {
		parts = append(parts, filepath.Base(entry.Path)+": "+entry.Reason)
	}
	return " (rejected: " + strings.Join(parts, "; ") + ")"
}
