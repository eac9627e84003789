package app

import "github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"

type ValidateRequest struct {
	ManifestDir string
}

type ValidateResult struct {
	Valid   []string
	Invalid []types.RejectedManifest
}

type MergeRequest struct {
	ManifestDir string
	OSMajor     int
	OutputDir   string
}

type MergeResult struct {
	Outcome      types.MergeOutcome
	ReportPath   string
	PackagesPath string
}

type BuildRequest struct {
	ManifestDir   string
	Track         string
	OutputDir     string
	WorkDir       string
	Format        types.ArchiveFormat
	MinFreeBytes  uint64
	RequiredTools []string
	KeepWorkDir   bool
}

type BuildResult struct {
	Bundle  types.SealedBundle
	Closure types.ClosureResult
	Merge   types.MergeOutcome
	WorkDir string
}

type VerifyRequest struct {
	ArchivePath  string
	ChecksumPath string
}

type VerifyResult struct {
	Name          types.BundleName
	Digest        string
	SizeBytes     int64
	Degraded      bool
	SidecarSealed bool
	Inventory     types.ArchiveInventory
}

type StageRequest struct {
	ArchivePath  string
	ChecksumPath string
	DestDir      string
}

type StageResult struct {
	ArchivePath string
	Copied      []string
	Verify      VerifyResult
}

type ImportRequest struct {
	ArchivePath   string
	ChecksumPath  string
	RepoRoot      string
	ExpectedTrack string
	HostOSMajor   int
}

type ImportResult struct {
	BundleID         string
	Advanced         bool
	IndexRegenerated bool
	Degraded         bool
	State            types.RepositoryState
}

type RepositoryRequest struct {
	RepoRoot      string
	ExpectedTrack string
}

type InspectRequest struct {
	ArchivePath string
}

type InspectResult struct {
	Metadata   types.BundleMetadata
	BundleHash string
	Sealed     bool
}

type PruneRequest struct {
	RepoRoot      string
	ExpectedTrack string
	KeepLast      int
	KeepDays      int
	DryRun        bool
}

type PruneResult struct {
	KeepCount   int
	DeleteCount int
	Deleted     []string
	Planned     []string
	DryRun      bool
}
