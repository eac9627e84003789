package ports

import "github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"

type OutputPort interface {
	WriteMergeReport(path string, report types.MergeReport) error
	WritePackageList(path string, names []string) error
	WriteChecksums(path string, entries []types.FileChecksum) error
	WriteMetadata(path string, meta types.BundleMetadata) error
}

type OutputReaderPort interface {
	ReadMetadata(path string) (types.BundleMetadata, error)
	DecodeMetadata(data []byte) (types.BundleMetadata, error)
	ReadChecksums(path string) ([]types.FileChecksum, error)
}
