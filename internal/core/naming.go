package core

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

const BundleTimestampLayout = "20060102T150405Z"

var (
	trackPattern      = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	bundleIDPattern   = regexp.MustCompile(`^bundle-([A-Za-z0-9_.]+)-([0-9]{8}T[0-9]{6}Z)$`)
	bundleFilePattern = regexp.MustCompile(`^(bundle-[A-Za-z0-9_.]+-[0-9]{8}T[0-9]{6}Z)\.(tar\.zst|tar\.gz|tar\.lz4)$`)
	trailingDigits    = regexp.MustCompile(`([0-9]+)$`)
)

var formatsByExtension = map[string]types.ArchiveFormat{
	"tar.zst": types.ArchiveFormatZstd,
	"tar.gz":  types.ArchiveFormatGzip,
	"tar.lz4": types.ArchiveFormatLZ4,
}

func ValidateTrack(track string) error {
	if !trackPattern.MatchString(track) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid os track %q", track))
	}
	return nil
}

// TrackMajor returns the OS major version a track name ends with, so both
// "8" and "rhel8" map to 8.
func TrackMajor(track string) (int, error) {
	match := trailingDigits.FindStringSubmatch(strings.TrimSpace(track))
	if match == nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("os track %q does not end with a major version", track))
	}
	major, err := strconv.Atoi(match[1])
	if err != nil || major <= 0 {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("os track %q has an invalid major version", track))
	}
	return major, nil
}

func FormatBundleID(track string, ts time.Time) string {
	return fmt.Sprintf("bundle-%s-%s", track, ts.UTC().Format(BundleTimestampLayout))
}

func BundleFileName(bundleID string, format types.ArchiveFormat) string {
	return bundleID + "." + format.Extension()
}

func ParseBundleID(bundleID string) (string, time.Time, error) {
	match := bundleIDPattern.FindStringSubmatch(bundleID)
	if match == nil {
		return "", time.Time{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("bundle id %q does not match bundle-<track>-<YYYYMMDDThhmmssZ>", bundleID))
	}
	ts, err := time.Parse(BundleTimestampLayout, match[2])
	if err != nil {
		return "", time.Time{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("bundle id %q has an invalid timestamp", bundleID)).
			WithCause(err)
	}
	return match[1], ts.UTC(), nil
}

// ParseBundleFileName decodes an archive path. Only the base name is
// inspected; nothing is read from disk.
func ParseBundleFileName(path string) (types.BundleName, error) {
	base := filepath.Base(path)
	match := bundleFilePattern.FindStringSubmatch(base)
	if match == nil {
		return types.BundleName{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("archive name %q does not match bundle-<track>-<YYYYMMDDThhmmssZ>.<tar.zst|tar.gz|tar.lz4>", base))
	}
	track, ts, err := ParseBundleID(match[1])
	if err != nil {
		return types.BundleName{}, err
	}
	return types.BundleName{
		BundleID:  match[1],
		Track:     track,
		Timestamp: ts,
		Format:    formatsByExtension[match[2]],
		FileName:  base,
	}, nil
}

// NextBundleTime returns now truncated to seconds, advanced past every
// existing timestamp of the same track.
func NextBundleTime(now time.Time, existing []time.Time) time.Time {
	next := now.UTC().Truncate(time.Second)
	for _, ts := range existing {
		if !next.After(ts) {
			next = ts.UTC().Truncate(time.Second).Add(time.Second)
		}
	}
	return next
}

func ParseArchiveFormat(value string) (types.ArchiveFormat, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "zst", "zstd", "tar.zst":
		return types.ArchiveFormatZstd, nil
	case "gz", "gzip", "tar.gz":
		return types.ArchiveFormatGzip, nil
	case "lz4", "tar.lz4":
		return types.ArchiveFormatLZ4, nil
	default:
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported archive format %q", value))
	}
}
