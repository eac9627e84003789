package types

import "time"

const (
	MetadataFileName  = "metadata.json"
	ChecksumsFileName = "SHA256SUMS"
	SBOMFileName      = "sbom.spdx.json"
	BuildLogFileName  = "build.log"
	MergeReportName   = "merge-report.yaml"
	RPMDirName        = "rpms"
	ManifestDirName   = "manifests"
	RepodataDirName   = "repodata"
	RepomdPath        = "repodata/repomd.xml"
	BundleSchema      = "1.0"
	ChecksumAlgorithm = "sha256"
)

// BundleName is the decoded form of a bundle archive file name.
type BundleName struct {
	BundleID  string
	Track     string
	Timestamp time.Time
	Format    ArchiveFormat
	FileName  string
}

type ManifestProvenance struct {
	HostID       string `json:"host_id"`
	ManifestHash string `json:"manifest_hash"`
	OSMinor      int    `json:"os_minor"`
}

type PackageCounts struct {
	TotalCount      int   `json:"total_count"`
	UpdateCount     int   `json:"update_count"`
	SecurityCount   int   `json:"security_count"`
	DependencyCount int   `json:"dependency_count"`
	SizeBytes       int64 `json:"size_bytes"`
}

type PackageEntry struct {
	File       string      `json:"file"`
	Name       string      `json:"name"`
	NEVRA      string      `json:"nevra"`
	Type       PackageKind `json:"type"`
	SHA256     string      `json:"sha256"`
	SizeBytes  int64       `json:"size_bytes"`
	RequiredBy []string    `json:"required_by,omitempty"`
	AdvisoryID string      `json:"advisory_id,omitempty"`
}

type BundleChecksums struct {
	Algorithm  string `json:"algorithm"`
	BundleHash string `json:"bundle_hash"`
}

// BundleMetadata is the audit record shipped inside every bundle.
type BundleMetadata struct {
	SchemaVersion  string               `json:"schema_version"`
	BundleID       string               `json:"bundle_id"`
	OSTrack        string               `json:"os_track"`
	OSMajor        int                  `json:"os_major"`
	CreatedAt      string               `json:"created_at"`
	BuilderHost    string               `json:"builder_host"`
	BuilderVersion string               `json:"builder_version,omitempty"`
	ManifestsUsed  []ManifestProvenance `json:"manifests_used"`
	Packages       PackageCounts        `json:"packages"`
	PackageList    []PackageEntry       `json:"package_list"`
	HostPackageMap map[string][]string  `json:"host_package_map"`
	Download       DownloadResult       `json:"download"`
	ArchiveFormat  ArchiveFormat        `json:"archive_format"`
	Checksums      BundleChecksums      `json:"checksums"`
	BuildLog       string               `json:"build_log"`
}

// FileChecksum is one line of a SHA256SUMS style manifest.
type FileChecksum struct {
	Digest string
	Path   string
}

// ArchiveInventory describes what a streaming pass over an archive found.
type ArchiveInventory struct {
	RootDir        string
	PackageCount   int
	Entries        int
	HasMetadata    bool
	HasIndex       bool
	HasChecksums   bool
	Metadata       *BundleMetadata
	PackageDigests map[string]string
	Checksums      []FileChecksum
}

type SealedBundle struct {
	ArchivePath  string
	ChecksumPath string
	MetadataPath string
	BundleHash   string
	Metadata     BundleMetadata
}

type ArchiveEntry struct {
	Name  string
	Size  int64
	Mode  int64
	IsDir bool
}
