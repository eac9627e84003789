package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"golang.org/x/sys/unix"
	"gopkg.in/ini.v1"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

const defaultOSReleasePath = "/etc/os-release"

// HostSystemAdapter answers questions about the machine the pipeline runs on.
type HostSystemAdapter struct {
	OSReleasePath string
}

func NewHostSystemAdapter() HostSystemAdapter {
	return HostSystemAdapter{OSReleasePath: defaultOSReleasePath}
}

func (a HostSystemAdapter) Release(ctx context.Context) (types.HostRelease, error) {
	if err := ctx.Err(); err != nil {
		return types.HostRelease{}, err
	}
	path := a.OSReleasePath
	if path == "" {
		path = defaultOSReleasePath
	}
	cfg, err := ini.Load(path)
	if err != nil {
		return types.HostRelease{}, errbuilder.New().
			WithCode(errbuilder.CodeResourceExhausted).
			WithMsg(fmt.Sprintf("cannot read host release from %s", path)).
			WithCause(err)
	}
	section := cfg.Section("")
	release := types.HostRelease{
		ID:        section.Key("ID").String(),
		Name:      section.Key("NAME").String(),
		VersionID: section.Key("VERSION_ID").String(),
	}
	majorText, _, _ := strings.Cut(release.VersionID, ".")
	major, err := strconv.Atoi(majorText)
	if err != nil || major <= 0 {
		return types.HostRelease{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("host release %s has no usable VERSION_ID (%q)", path, release.VersionID))
	}
	release.Major = major
	return release, nil
}

func (a HostSystemAdapter) Hostname() string {
	name, err := os.Hostname()
	if err != nil || strings.TrimSpace(name) == "" {
		return "unknown"
	}
	return name
}

// FreeBytes reports the space available to unprivileged writers on the
// filesystem holding path.
func (a HostSystemAdapter) FreeBytes(path string) (uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeResourceExhausted).
			WithMsg(fmt.Sprintf("cannot stat filesystem of %s", path)).
			WithCause(err)
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

func (a HostSystemAdapter) LookPath(tool string) (string, error) {
	path, err := exec.LookPath(tool)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeResourceExhausted).
			WithMsg(fmt.Sprintf("required tool %s not found on PATH", tool)).
			WithCause(err)
	}
	return path, nil
}

var _ ports.HostPort = HostSystemAdapter{}
