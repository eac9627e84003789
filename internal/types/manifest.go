package types

import "time"

// Manifest is the inventory a collector captured for one host.
type Manifest struct {
	SchemaVersion    string         `json:"schema_version"`
	HostID           string         `json:"host_id"`
	OS               OSInfo         `json:"os"`
	Arch             string         `json:"arch,omitempty"`
	KernelVersion    string         `json:"kernel_version,omitempty"`
	EnabledRepos     []EnabledRepo  `json:"enabled_repos,omitempty"`
	InstalledRPMs    []InstalledRPM `json:"installed_rpms"`
	Timestamp        string         `json:"timestamp,omitempty"`
	CollectorVersion string         `json:"collector_version,omitempty"`
	AdvisoryIDs      []string       `json:"advisory_ids,omitempty"`
}

type OSInfo struct {
	Name  string `json:"name,omitempty"`
	ID    string `json:"id,omitempty"`
	Major int    `json:"major"`
	Minor int    `json:"minor"`
}

type EnabledRepo struct {
	ID      string `json:"id" yaml:"id"`
	Name    string `json:"name,omitempty" yaml:"name,omitempty"`
	BaseURL string `json:"baseurl,omitempty" yaml:"baseurl,omitempty"`
}

type InstalledRPM struct {
	Name    string `json:"name"`
	Epoch   string `json:"epoch,omitempty"`
	Version string `json:"version,omitempty"`
	Release string `json:"release,omitempty"`
	Arch    string `json:"arch,omitempty"`
	NEVRA   string `json:"nevra,omitempty"`
}

// LoadedManifest is a manifest that passed ingestion validation, together
// with the bytes it was read from.
type LoadedManifest struct {
	Path     string
	Raw      []byte
	Hash     string
	Manifest Manifest
}

type RejectedManifest struct {
	Path   string `yaml:"path"`
	Reason string `yaml:"reason"`
}

type HostSummary struct {
	HostID         string    `json:"host_id" yaml:"host_id"`
	ManifestHash   string    `json:"manifest_hash" yaml:"manifest_hash"`
	OSMinor        int       `json:"os_minor" yaml:"os_minor"`
	Arch           string    `json:"arch,omitempty" yaml:"arch,omitempty"`
	InstalledCount int       `json:"installed_count" yaml:"installed_count"`
	Timestamp      time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// RequirementSet is the union of installed package names across every host
// of one OS track.
type RequirementSet struct {
	OSMajor           int
	UniquePackages    []string
	ContributingHosts []HostSummary
	PackageHosts      map[string][]string
	EnabledRepos      []EnabledRepo
}

type MergeOutcome struct {
	Requirements RequirementSet
	Accepted     []LoadedManifest
	Rejected     []RejectedManifest
	Warnings     []string
}

type MergeReport struct {
	OSMajor        int                `yaml:"os_major"`
	GeneratedAt    string             `yaml:"generated_at"`
	HostCount      int                `yaml:"host_count"`
	UniquePackages int                `yaml:"unique_packages"`
	Hosts          []HostSummary      `yaml:"hosts"`
	EnabledRepos   []EnabledRepo      `yaml:"enabled_repos,omitempty"`
	Rejected       []RejectedManifest `yaml:"rejected,omitempty"`
	Warnings       []string           `yaml:"warnings,omitempty"`
}
