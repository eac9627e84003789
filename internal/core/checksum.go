package core

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

func FormatChecksumLine(digest string, name string) string {
	return fmt.Sprintf("%s  %s\n", digest, name)
}

// ParseChecksumLine accepts sha256sum output, text or binary mode.
func ParseChecksumLine(line string) (types.FileChecksum, error) {
	trimmed := strings.TrimRight(line, "\r\n")
	fields := strings.SplitN(trimmed, " ", 2)
	if len(fields) != 2 {
		return types.FileChecksum{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("malformed checksum line %q", trimmed))
	}
	digest := strings.ToLower(fields[0])
	name := strings.TrimPrefix(strings.TrimPrefix(fields[1], " "), "*")
	if !digestPattern.MatchString(digest) || strings.TrimSpace(name) == "" {
		return types.FileChecksum{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("malformed checksum line %q", trimmed))
	}
	return types.FileChecksum{Digest: digest, Path: name}, nil
}

func ParseChecksumFile(content []byte) ([]types.FileChecksum, error) {
	var entries []types.FileChecksum
	for _, line := range strings.Split(string(content), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := ParseChecksumLine(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func FormatChecksumFile(entries []types.FileChecksum) []byte {
	ordered := append([]types.FileChecksum(nil), entries...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].Path < ordered[j].Path
	})
	var builder strings.Builder
	for _, entry := range ordered {
		builder.WriteString(FormatChecksumLine(entry.Digest, entry.Path))
	}
	return []byte(builder.String())
}
