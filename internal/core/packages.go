package core

import (
	"context"
	"sort"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// RPMName is the identity encoded in a package file name
// (name-version-release.arch.rpm).
type RPMName struct {
	Name    string
	Version string
	Release string
	Arch    string
}

func (n RPMName) NEVRA() string {
	return n.Name + "-" + n.Version + "-" + n.Release + "." + n.Arch
}

func ParseRPMFileName(file string) (RPMName, bool) {
	base := file
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	if !strings.HasSuffix(base, ".rpm") {
		return RPMName{}, false
	}
	base = strings.TrimSuffix(base, ".rpm")
	archIdx := strings.LastIndex(base, ".")
	if archIdx <= 0 {
		return RPMName{}, false
	}
	arch := base[archIdx+1:]
	rest := base[:archIdx]
	relIdx := strings.LastIndex(rest, "-")
	if relIdx <= 0 {
		return RPMName{}, false
	}
	release := rest[relIdx+1:]
	rest = rest[:relIdx]
	verIdx := strings.LastIndex(rest, "-")
	if verIdx <= 0 {
		return RPMName{}, false
	}
	name := RPMName{Name: rest[:verIdx], Version: rest[verIdx+1:], Release: release, Arch: arch}
	if name.Name == "" || name.Version == "" || name.Release == "" || name.Arch == "" {
		return RPMName{}, false
	}
	return name, true
}

// PackageFile is a downloaded package with its content digest.
type PackageFile struct {
	File   string
	SHA256 string
	Size   int64
}

// ClassifyPackages labels each downloaded file as a security update, a
// requested update or a pulled-in dependency.
func ClassifyPackages(files []PackageFile, closure types.ClosureResult, advisories map[string]string, packageHosts map[string][]string) []types.PackageEntry {
	requested := map[string]struct{}{}
	for _, name := range closure.DownloadList {
		requested[name] = struct{}{}
	}
	entries := make([]types.PackageEntry, 0, len(files))
	for _, file := range files {
		entry := types.PackageEntry{
			File:      file.File,
			SHA256:    file.SHA256,
			SizeBytes: file.Size,
			Type:      types.PackageKindDependency,
		}
		if parsed, ok := ParseRPMFileName(file.File); ok {
			entry.Name = parsed.Name
			entry.NEVRA = parsed.NEVRA()
		} else {
			entry.Name = strings.TrimSuffix(file.File, ".rpm")
			entry.NEVRA = entry.Name
		}
		if _, ok := requested[entry.Name]; ok {
			entry.Type = types.PackageKindUpdate
			entry.RequiredBy = append([]string(nil), packageHosts[entry.Name]...)
			if advisory, ok := advisories[entry.Name]; ok && advisory != "" {
				entry.Type = types.PackageKindSecurity
				entry.AdvisoryID = advisory
			}
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].File < entries[j].File
	})
	return entries
}

func CountPackages(entries []types.PackageEntry) types.PackageCounts {
	counts := types.PackageCounts{TotalCount: len(entries)}
	for _, entry := range entries {
		counts.SizeBytes += entry.SizeBytes
		switch entry.Type {
		case types.PackageKindSecurity:
			counts.SecurityCount++
		case types.PackageKindUpdate:
			counts.UpdateCount++
		default:
			counts.DependencyCount++
		}
	}
	return counts
}

type MetadataInput struct {
	BundleID       string
	Track          string
	OSMajor        int
	CreatedAt      time.Time
	BuilderHost    string
	BuilderVersion string
	Requirements   types.RequirementSet
	Closure        types.ClosureResult
	Packages       []types.PackageEntry
	Format         types.ArchiveFormat
}

// BuildMetadata assembles the descriptor with an empty bundle hash; the
// hash is only known once the archive is sealed.
func BuildMetadata(ctx context.Context, in MetadataInput) types.BundleMetadata {
	assert.NotEmpty(ctx, in.BundleID, "bundle id must be set")
	assert.NotEmpty(ctx, in.Track, "os track must be set")
	provenance := make([]types.ManifestProvenance, 0, len(in.Requirements.ContributingHosts))
	for _, host := range in.Requirements.ContributingHosts {
		provenance = append(provenance, types.ManifestProvenance{
			HostID:       host.HostID,
			ManifestHash: host.ManifestHash,
			OSMinor:      host.OSMinor,
		})
	}
	hostMap := map[string][]string{}
	for _, entry := range in.Packages {
		for _, host := range entry.RequiredBy {
			hostMap[host] = append(hostMap[host], entry.NEVRA)
		}
	}
	for host := range hostMap {
		sort.Strings(hostMap[host])
	}
	download := in.Closure.Download
	if download.Requested == nil {
		download.Requested = []string{}
	}
	if download.Succeeded == nil {
		download.Succeeded = []string{}
	}
	packages := in.Packages
	if packages == nil {
		packages = []types.PackageEntry{}
	}
	return types.BundleMetadata{
		SchemaVersion:  types.BundleSchema,
		BundleID:       in.BundleID,
		OSTrack:        in.Track,
		OSMajor:        in.OSMajor,
		CreatedAt:      in.CreatedAt.UTC().Format(time.RFC3339),
		BuilderHost:    in.BuilderHost,
		BuilderVersion: in.BuilderVersion,
		ManifestsUsed:  provenance,
		Packages:       CountPackages(packages),
		PackageList:    packages,
		HostPackageMap: hostMap,
		Download:       download,
		ArchiveFormat:  in.Format,
		Checksums:      types.BundleChecksums{Algorithm: types.ChecksumAlgorithm, BundleHash: ""},
		BuildLog:       types.BuildLogFileName,
	}
}
