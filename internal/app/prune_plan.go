package app

import (
	"sort"
	"time"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// BuildPrunePlan splits the versioned bundles of one repository into the
// ones to keep and the ones to delete. The current and previous targets
// are always kept. With no keep-last and no keep-days rule nothing is
// deleted.
func BuildPrunePlan(state types.RepositoryState, policy types.BundleRetentionPolicy, now time.Time) types.BundlePrunePlan {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	policy = normalizeRetentionPolicy(policy)

	keepIDs := map[string]struct{}{}
	for _, id := range []string{state.Current, state.Previous} {
		if id != "" {
			keepIDs[id] = struct{}{}
		}
	}
	if policy.KeepLast == 0 && policy.KeepDays == 0 {
		return types.BundlePrunePlan{Keep: append([]types.BundleVersion(nil), state.Versions...)}
	}
	if policy.KeepDays > 0 {
		cutoff := now.AddDate(0, 0, -policy.KeepDays)
		for _, version := range state.Versions {
			if !version.CreatedAt.IsZero() && !version.CreatedAt.Before(cutoff) {
				keepIDs[version.BundleID] = struct{}{}
			}
		}
	}
	if policy.KeepLast > 0 {
		newest := append([]types.BundleVersion(nil), state.Versions...)
		sort.SliceStable(newest, func(i, j int) bool {
			if !newest[i].CreatedAt.Equal(newest[j].CreatedAt) {
				return newest[i].CreatedAt.After(newest[j].CreatedAt)
			}
			return newest[i].BundleID > newest[j].BundleID
		})
		for i := 0; i < policy.KeepLast && i < len(newest); i++ {
			keepIDs[newest[i].BundleID] = struct{}{}
		}
	}

	var plan types.BundlePrunePlan
	for _, version := range state.Versions {
		if _, ok := keepIDs[version.BundleID]; ok {
			plan.Keep = append(plan.Keep, version)
		} else {
			plan.Delete = append(plan.Delete, version)
		}
	}
	return plan
}

func normalizeRetentionPolicy(policy types.BundleRetentionPolicy) types.BundleRetentionPolicy {
	normalized := policy
	if normalized.KeepLast < 0 {
		normalized.KeepLast = 0
	}
	if normalized.KeepDays < 0 {
		normalized.KeepDays = 0
	}
	return normalized
}
