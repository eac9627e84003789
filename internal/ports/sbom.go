package ports

import "github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"

type SBOMPort interface {
	WriteSBOM(dir string, bundleID string, createdAt string, packages []types.PackageEntry) error
}
