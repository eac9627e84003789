package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type ManifestMerger struct{}

func NewManifestMerger() ManifestMerger {
	return ManifestMerger{}
}

// Merge reduces validated manifests to the requirement set of one OS major.
// Manifests of other majors are rejected, not fatal; the merge fails only
// when nothing is left.
func (m ManifestMerger) Merge(ctx context.Context, manifests []types.LoadedManifest, osMajor int) (types.MergeOutcome, error) {
	if osMajor <= 0 {
		return types.MergeOutcome{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("target os major must be a positive integer")
	}
	ordered := append([]types.LoadedManifest(nil), manifests...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Path < ordered[j].Path
	})

	outcome := types.MergeOutcome{}
	byHost := map[string]types.LoadedManifest{}
	for _, loaded := range ordered {
		if loaded.Manifest.OS.Major != osMajor {
			outcome.Rejected = append(outcome.Rejected, types.RejectedManifest{
				Path:   loaded.Path,
				Reason: fmt.Sprintf("os.major %d does not match target %d", loaded.Manifest.OS.Major, osMajor),
			})
			continue
		}
		hostID := loaded.Manifest.HostID
		if previous, ok := byHost[hostID]; ok {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("host %s appears in %s and %s; using %s", hostID, previous.Path, loaded.Path, loaded.Path))
		}
		byHost[hostID] = loaded
	}
	if len(byHost) == 0 {
		return outcome, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("no valid manifests for os major %d", osMajor))
	}

	hostIDs := make([]string, 0, len(byHost))
	for hostID := range byHost {
		hostIDs = append(hostIDs, hostID)
	}
	sort.Strings(hostIDs)

	packageHosts := map[string][]string{}
	repos := map[string]types.EnabledRepo{}
	req := types.RequirementSet{OSMajor: osMajor}
	for _, hostID := range hostIDs {
		loaded := byHost[hostID]
		manifest := loaded.Manifest
		seen := map[string]struct{}{}
		for _, rpm := range manifest.InstalledRPMs {
			name := strings.TrimSpace(rpm.Name)
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			packageHosts[name] = append(packageHosts[name], hostID)
		}
		for _, repo := range manifest.EnabledRepos {
			if _, ok := repos[repo.ID]; !ok {
				repos[repo.ID] = repo
			}
		}
		req.ContributingHosts = append(req.ContributingHosts, types.HostSummary{
			HostID:         hostID,
			ManifestHash:   loaded.Hash,
			OSMinor:        manifest.OS.Minor,
			Arch:           manifest.Arch,
			InstalledCount: len(seen),
			Timestamp:      parseManifestTime(manifest.Timestamp),
		})
		outcome.Accepted = append(outcome.Accepted, loaded)
	}
	for name := range packageHosts {
		req.UniquePackages = append(req.UniquePackages, name)
	}
	sort.Strings(req.UniquePackages)
	for _, id := range sortedRepoIDs(repos) {
		req.EnabledRepos = append(req.EnabledRepos, repos[id])
	}
	req.PackageHosts = packageHosts
	outcome.Requirements = req

	log.Ctx(ctx).Debug().
		Int("hosts", len(hostIDs)).
		Int("packages", len(req.UniquePackages)).
		Int("rejected", len(outcome.Rejected)).
		Msg("manifests merged")
	return outcome, nil
}

// Report renders the merge outcome for operators.
func (m ManifestMerger) Report(outcome types.MergeOutcome, generatedAt time.Time) types.MergeReport {
	return types.MergeReport{
		OSMajor:        outcome.Requirements.OSMajor,
		GeneratedAt:    generatedAt.UTC().Format(time.RFC3339),
		HostCount:      len(outcome.Requirements.ContributingHosts),
		UniquePackages: len(outcome.Requirements.UniquePackages),
		Hosts:          outcome.Requirements.ContributingHosts,
		EnabledRepos:   outcome.Requirements.EnabledRepos,
		Rejected:       outcome.Rejected,
		Warnings:       outcome.Warnings,
	}
}

func sortedRepoIDs(repos map[string]types.EnabledRepo) []string {
	ids := make([]string, 0, len(repos))
	for id := range repos {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func parseManifestTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}
