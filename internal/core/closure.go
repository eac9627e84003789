package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type ClosureResolver struct {
	Oracle ports.UpdateOraclePort
}

func NewClosureResolver(oracle ports.UpdateOraclePort) ClosureResolver {
	return ClosureResolver{Oracle: oracle}
}

// Compute intersects the installed package names with the oracle's update
// list. Updatable packages no host has installed are never selected.
func (r ClosureResolver) Compute(ctx context.Context, req types.RequirementSet, updates []types.AvailableUpdate) (types.ClosureResult, error) {
	updateSet := map[string]struct{}{}
	for _, update := range updates {
		name := strings.TrimSpace(update.Name)
		if name == "" {
			continue
		}
		updateSet[name] = struct{}{}
	}
	result := types.ClosureResult{
		UpdateList:   make([]string, 0, len(updateSet)),
		DownloadList: []string{},
	}
	for name := range updateSet {
		result.UpdateList = append(result.UpdateList, name)
	}
	sort.Strings(result.UpdateList)
	for _, name := range req.UniquePackages {
		if _, ok := updateSet[name]; ok {
			result.DownloadList = append(result.DownloadList, name)
		}
	}
	sort.Strings(result.DownloadList)
	if err := checkClosureSubset(result, req); err != nil {
		return types.ClosureResult{}, err
	}
	log.Ctx(ctx).Debug().
		Int("updates", len(result.UpdateList)).
		Int("download", len(result.DownloadList)).
		Msg("closure computed")
	return result, nil
}

// Resolve computes the closure and asks the oracle to download it with all
// dependencies into destDir. Per-package download failures are recorded in
// the result, not returned.
func (r ClosureResolver) Resolve(ctx context.Context, req types.RequirementSet, destDir string) (types.ClosureResult, error) {
	if r.Oracle == nil {
		return types.ClosureResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("closure resolver requires an update oracle")
	}
	updates, err := r.Oracle.AvailableUpdates(ctx)
	if err != nil {
		return types.ClosureResult{}, errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg("package oracle failed to list available updates").
			WithCause(err)
	}
	result, err := r.Compute(ctx, req, updates)
	if err != nil {
		return types.ClosureResult{}, err
	}
	if len(result.DownloadList) == 0 {
		log.Ctx(ctx).Info().Msg("no installed package has an update; bundle will be empty")
		result.Download = types.DownloadResult{Requested: []string{}, Succeeded: []string{}}
		return result, nil
	}
	download, err := r.Oracle.Download(ctx, result.DownloadList, destDir)
	if err != nil {
		return types.ClosureResult{}, errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg(fmt.Sprintf("package oracle failed to download %d packages", len(result.DownloadList))).
			WithCause(err)
	}
	for _, failure := range download.Failed {
		log.Ctx(ctx).Warn().
			Str("package", failure.Name).
			Str("error", failure.Error).
			Msg("package download failed")
	}
	result.Download = download
	result.DependencyCount = len(download.Files) - len(download.Succeeded)
	if result.DependencyCount < 0 {
		result.DependencyCount = 0
	}
	return result, nil
}

func checkClosureSubset(result types.ClosureResult, req types.RequirementSet) error {
	installed := map[string]struct{}{}
	for _, name := range req.UniquePackages {
		installed[name] = struct{}{}
	}
	updatable := map[string]struct{}{}
	for _, name := range result.UpdateList {
		updatable[name] = struct{}{}
	}
	for _, name := range result.DownloadList {
		_, isInstalled := installed[name]
		_, isUpdatable := updatable[name]
		if !isInstalled || !isUpdatable {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg(fmt.Sprintf("closure selected %s outside installed and updatable sets", name))
		}
	}
	return nil
}
