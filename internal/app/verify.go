package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

const maxMetadataBytes = 64 << 20

// Verify checks an archive at a hand-off boundary: file name grammar, the
// companion checksum, then a full streaming pass over the archive contents.
// A missing companion checksum downgrades the result to Degraded; any
// mismatch is fatal.
func (s Service) Verify(ctx context.Context, req VerifyRequest) (result VerifyResult, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "verify", started, err) }()

	name, err := core.ParseBundleFileName(req.ArchivePath)
	if err != nil {
		return VerifyResult{}, err
	}
	info, err := os.Stat(req.ArchivePath)
	if err != nil || info.IsDir() {
		return VerifyResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("archive %s not found", req.ArchivePath))
	}
	result = VerifyResult{Name: name, SizeBytes: info.Size()}

	digest, _, err := shared.FileSHA256(req.ArchivePath)
	if err != nil {
		return VerifyResult{}, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("integrity check failed for %s: archive unreadable", name.FileName)).
			WithCause(err)
	}
	result.Digest = digest

	degraded, err := s.checkCompanion(req, name, digest)
	if err != nil {
		return VerifyResult{}, err
	}
	result.Degraded = degraded
	if degraded {
		log.Ctx(ctx).Warn().
			Str("archive", name.FileName).
			Msg("no companion checksum file; verification is degraded and not authoritative")
	}

	inventory, err := s.inspectArchive(ctx, req.ArchivePath, name)
	if err != nil {
		return VerifyResult{}, err
	}
	result.Inventory = inventory

	sidecar := filepath.Join(filepath.Dir(req.ArchivePath), name.BundleID+"."+types.MetadataFileName)
	if _, statErr := os.Stat(sidecar); statErr == nil {
		sealedMeta, err := s.OutputReader.ReadMetadata(sidecar)
		if err != nil {
			return VerifyResult{}, errbuilder.New().
				WithCode(errbuilder.CodeDataLoss).
				WithMsg(fmt.Sprintf("integrity check failed for %s: unreadable sealed metadata %s", name.FileName, filepath.Base(sidecar))).
				WithCause(err)
		}
		if sealedMeta.BundleID != name.BundleID || sealedMeta.Checksums.BundleHash != digest {
			return VerifyResult{}, errbuilder.New().
				WithCode(errbuilder.CodeDataLoss).
				WithMsg(fmt.Sprintf("integrity check failed for %s: sealed metadata records bundle_hash %q, archive digest is %s",
					name.FileName, sealedMeta.Checksums.BundleHash, digest))
		}
		result.SidecarSealed = true
	}

	if !inventory.HasIndex {
		log.Ctx(ctx).Warn().Str("archive", name.FileName).Msg("archive carries no repository index; import will regenerate it")
	}
	log.Ctx(ctx).Info().
		Str("archive", name.FileName).
		Str("sha256", digest).
		Int("packages", inventory.PackageCount).
		Bool("degraded", result.Degraded).
		Bool("index", inventory.HasIndex).
		Msg("bundle verified")
	return result, nil
}

// checkCompanion compares the archive digest with the companion checksum
// file. It reports true when no companion file exists.
func (s Service) checkCompanion(req VerifyRequest, name types.BundleName, digest string) (bool, error) {
	checksumPath := strings.TrimSpace(req.ChecksumPath)
	explicit := checksumPath != ""
	if !explicit {
		checksumPath = req.ArchivePath + ".sha256"
	}
	if _, err := os.Stat(checksumPath); err != nil {
		if explicit {
			return false, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("checksum file %s not found", checksumPath))
		}
		return true, nil
	}
	entries, err := s.OutputReader.ReadChecksums(checksumPath)
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("integrity check failed for %s: unreadable checksum file %s", name.FileName, filepath.Base(checksumPath))).
			WithCause(err)
	}
	var expected *types.FileChecksum
	for i := range entries {
		if filepath.Base(entries[i].Path) == name.FileName {
			expected = &entries[i]
			break
		}
	}
	if expected == nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("integrity check failed for %s: checksum file %s has no entry for it", name.FileName, filepath.Base(checksumPath)))
	}
	if expected.Digest != digest {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("integrity check failed for %s: sha256 mismatch (expected %s, got %s)", name.FileName, expected.Digest, digest))
	}
	return false, nil
}

// inspectArchive reads the archive end to end, hashing every package on the
// way and checking the result against the bundle's own SHA256SUMS.
func (s Service) inspectArchive(ctx context.Context, archivePath string, name types.BundleName) (types.ArchiveInventory, error) {
	inventory := types.ArchiveInventory{PackageDigests: map[string]string{}}
	root := name.BundleID
	fail := func(format string, args ...any) error {
		return errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("integrity check failed for %s: ", name.FileName) + fmt.Sprintf(format, args...))
	}
	err := s.Archive.Walk(ctx, archivePath, func(entry types.ArchiveEntry, body io.Reader) error {
		inventory.Entries++
		clean := path.Clean(entry.Name)
		if clean == root && entry.IsDir {
			inventory.RootDir = root
			return nil
		}
		rel, ok := strings.CutPrefix(clean, root+"/")
		if !ok || rel == "" || strings.HasPrefix(rel, "../") {
			return fail("entry %q is outside root directory %s", entry.Name, root)
		}
		if entry.IsDir {
			return nil
		}
		switch {
		case rel == types.MetadataFileName:
			data, err := io.ReadAll(io.LimitReader(body, maxMetadataBytes))
			if err != nil {
				return err
			}
			meta, err := s.OutputReader.DecodeMetadata(data)
			if err != nil {
				return fail("invalid %s: %s", types.MetadataFileName, shared.ErrorMessage(err))
			}
			inventory.HasMetadata = true
			inventory.Metadata = &meta
		case rel == types.ChecksumsFileName:
			data, err := io.ReadAll(body)
			if err != nil {
				return err
			}
			sums, err := core.ParseChecksumFile(data)
			if err != nil {
				return fail("invalid %s: %s", types.ChecksumsFileName, shared.ErrorMessage(err))
			}
			inventory.HasChecksums = true
			inventory.Checksums = sums
		case rel == types.RepomdPath:
			inventory.HasIndex = true
		case strings.HasPrefix(rel, types.RPMDirName+"/") && strings.HasSuffix(rel, ".rpm"):
			digest, _, err := shared.ReaderSHA256(body)
			if err != nil {
				return err
			}
			inventory.PackageCount++
			inventory.PackageDigests[rel] = digest
		}
		return nil
	})
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodeDataLoss {
			return types.ArchiveInventory{}, err
		}
		return types.ArchiveInventory{}, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("integrity check failed for %s: archive is not readable end to end", name.FileName)).
			WithCause(err)
	}
	if inventory.RootDir != root {
		return types.ArchiveInventory{}, fail("root directory %s missing", root)
	}
	if !inventory.HasMetadata {
		return types.ArchiveInventory{}, fail("%s missing", types.MetadataFileName)
	}
	if inventory.Metadata.BundleID != name.BundleID {
		return types.ArchiveInventory{}, fail("metadata bundle_id %s does not match file name", inventory.Metadata.BundleID)
	}
	if !inventory.HasChecksums {
		return types.ArchiveInventory{}, fail("%s missing", types.ChecksumsFileName)
	}
	listed := map[string]struct{}{}
	for _, sum := range inventory.Checksums {
		listed[sum.Path] = struct{}{}
		got, ok := inventory.PackageDigests[sum.Path]
		if !ok {
			return types.ArchiveInventory{}, fail("%s lists %s which is not in the archive", types.ChecksumsFileName, sum.Path)
		}
		if got != sum.Digest {
			return types.ArchiveInventory{}, fail("sha256 mismatch for %s", sum.Path)
		}
	}
	var unlisted []string
	for rel := range inventory.PackageDigests {
		if _, ok := listed[rel]; !ok {
			unlisted = append(unlisted, rel)
		}
	}
	if len(unlisted) > 0 {
		sort.Strings(unlisted)
		return types.ArchiveInventory{}, fail("packages missing from %s: %s", types.ChecksumsFileName, strings.Join(unlisted, ", "))
	}
	if inventory.Metadata.Packages.TotalCount != inventory.PackageCount {
		return types.ArchiveInventory{}, fail("metadata counts %d packages, archive holds %d", inventory.Metadata.Packages.TotalCount, inventory.PackageCount)
	}
	return inventory, nil
}
