package adapters

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// checkUpdateAvailable is the dnf check-update exit status for "updates
// pending"; it is not a failure.
const checkUpdateAvailable = 100

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.CombinedOutput()
}

type DnfOracleAdapter struct {
	Binary    string
	ExtraArgs []string
	run       commandRunner
}

func NewDnfOracleAdapter(extraArgs ...string) DnfOracleAdapter {
	return DnfOracleAdapter{Binary: "dnf", ExtraArgs: extraArgs, run: execCommand}
}

func (a DnfOracleAdapter) AvailableUpdates(ctx context.Context) ([]types.AvailableUpdate, error) {
	output, err := a.dnf(ctx, "check-update", "--quiet")
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) || exitErr.ExitCode() != checkUpdateAvailable {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeUnavailable).
				WithMsg("dnf check-update failed").
				WithCause(shared.CommandError(output, err))
		}
	}
	return parseCheckUpdate(string(output)), nil
}

func (a DnfOracleAdapter) SecurityAdvisories(ctx context.Context) (map[string]string, error) {
	output, err := a.dnf(ctx, "updateinfo", "list", "--security", "--available", "--quiet")
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeUnavailable).
			WithMsg("dnf updateinfo failed").
			WithCause(shared.CommandError(output, err))
	}
	return parseUpdateInfo(string(output)), nil
}

func (a DnfOracleAdapter) Download(ctx context.Context, names []string, destDir string) (types.DownloadResult, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return types.DownloadResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create download directory %s", destDir)).
			WithCause(err)
	}
	args := append([]string{"download", "--resolve", "--alldeps", "--destdir=" + destDir, "-y"}, names...)
	output, runErr := a.dnf(ctx, args...)
	if runErr != nil && errors.Is(runErr, exec.ErrNotFound) {
		return types.DownloadResult{}, errbuilder.New().
			WithCode(errbuilder.CodeResourceExhausted).
			WithMsg("required tool dnf not found").
			WithCause(runErr)
	}
	if err := ctx.Err(); err != nil {
		return types.DownloadResult{}, err
	}
	files, err := listRPMFiles(destDir)
	if err != nil {
		return types.DownloadResult{}, err
	}
	reason := "package not present after download"
	if runErr != nil {
		reason = shared.CommandError(output, runErr).Error()
	}
	return matchDownloads(names, files, reason), nil
}

func (a DnfOracleAdapter) dnf(ctx context.Context, args ...string) ([]byte, error) {
	run := a.run
	if run == nil {
		run = execCommand
	}
	binary := a.Binary
	if binary == "" {
		binary = "dnf"
	}
	full := append(append([]string(nil), a.ExtraArgs...), args...)
	return run(ctx, binary, full...)
}

func parseCheckUpdate(output string) []types.AvailableUpdate {
	var updates []types.AvailableUpdate
	seen := map[string]struct{}{}
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "Obsoleting") {
			break
		}
		if line == "" || line[0] == ' ' || line[0] == '\t' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		idx := strings.LastIndex(fields[0], ".")
		if idx <= 0 {
			continue
		}
		name := fields[0][:idx]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		updates = append(updates, types.AvailableUpdate{
			Name: name,
			Arch: fields[0][idx+1:],
			EVR:  fields[1],
		})
	}
	return updates
}

func parseUpdateInfo(output string) map[string]string {
	advisories := map[string]string{}
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		name, ok := nameFromNEVRA(fields[2])
		if !ok {
			continue
		}
		if _, exists := advisories[name]; !exists {
			advisories[name] = fields[0]
		}
	}
	return advisories
}

// nameFromNEVRA strips arch, release and [epoch:]version from a NEVRA.
func nameFromNEVRA(nevra string) (string, bool) {
	archIdx := strings.LastIndex(nevra, ".")
	if archIdx <= 0 {
		return "", false
	}
	rest := nevra[:archIdx]
	relIdx := strings.LastIndex(rest, "-")
	if relIdx <= 0 {
		return "", false
	}
	rest = rest[:relIdx]
	verIdx := strings.LastIndex(rest, "-")
	if verIdx <= 0 {
		return "", false
	}
	return rest[:verIdx], true
}

func listRPMFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read download directory %s", dir)).
			WithCause(err)
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".rpm" {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

// matchDownloads marks a requested name as succeeded only when a package
// file with exactly that name exists.
func matchDownloads(names []string, files []string, reason string) types.DownloadResult {
	present := map[string]struct{}{}
	for _, file := range files {
		if parsed, ok := core.ParseRPMFileName(file); ok {
			present[parsed.Name] = struct{}{}
		}
	}
	result := types.DownloadResult{
		Requested: append([]string{}, names...),
		Succeeded: []string{},
		Files:     files,
	}
	for _, name := range names {
		if _, ok := present[name]; ok {
			result.Succeeded = append(result.Succeeded, name)
			continue
		}
		result.Failed = append(result.Failed, types.DownloadFailure{Name: name, Error: reason})
	}
	return result
}

var _ ports.UpdateOraclePort = DnfOracleAdapter{}
