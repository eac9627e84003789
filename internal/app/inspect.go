package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

var errMetadataFound = errors.New("metadata found")

// Inspect reads the embedded audit record of a bundle archive without
// extracting it. The sidecar, when present, supplies the sealed archive
// hash that cannot be stored inside the archive itself.
func (s Service) Inspect(ctx context.Context, req InspectRequest) (InspectResult, error) {
	name, err := core.ParseBundleFileName(req.ArchivePath)
	if err != nil {
		return InspectResult{}, err
	}
	if _, err := os.Stat(req.ArchivePath); err != nil {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("bundle archive not found: %s", req.ArchivePath)).
			WithCause(err)
	}
	want := path.Join(name.BundleID, types.MetadataFileName)
	var meta types.BundleMetadata
	found := false
	err = s.Archive.Walk(ctx, req.ArchivePath, func(entry types.ArchiveEntry, body io.Reader) error {
		if entry.IsDir || strings.TrimPrefix(path.Clean(entry.Name), "./") != want {
			return nil
		}
		data, err := io.ReadAll(io.LimitReader(body, maxMetadataBytes))
		if err != nil {
			return err
		}
		if meta, err = s.OutputReader.DecodeMetadata(data); err != nil {
			return err
		}
		found = true
		return errMetadataFound
	})
	if err != nil && !errors.Is(err, errMetadataFound) {
		return InspectResult{}, err
	}
	if !found {
		return InspectResult{}, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("bundle %s has no %s", name.FileName, want))
	}
	result := InspectResult{Metadata: meta}
	sidecar := filepath.Join(filepath.Dir(req.ArchivePath), name.BundleID+"."+types.MetadataFileName)
	if sealed, err := s.OutputReader.ReadMetadata(sidecar); err == nil && sealed.BundleID == meta.BundleID {
		result.BundleHash = sealed.Checksums.BundleHash
		result.Sealed = result.BundleHash != ""
	}
	return result, nil
}
