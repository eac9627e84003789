package adapters

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

const (
	currentPointer  = "current"
	previousPointer = "previous"
	incomingPrefix  = ".incoming-"
)

// RepoStateFileAdapter keeps versioned bundle directories under Root and
// the current/previous symlinks that select between them.
type RepoStateFileAdapter struct {
	Root          string
	ExpectedTrack string

	exchange func(from string, to string) error
}

func NewRepoStateFileAdapter(root string, expectedTrack string) RepoStateFileAdapter {
	return RepoStateFileAdapter{Root: root, ExpectedTrack: expectedTrack}
}

func (a RepoStateFileAdapter) State(ctx context.Context) (types.RepositoryState, error) {
	if err := ctx.Err(); err != nil {
		return types.RepositoryState{}, err
	}
	if err := a.checkRoot(); err != nil {
		return types.RepositoryState{}, err
	}
	state := types.RepositoryState{Root: a.Root}
	entries, err := os.ReadDir(a.Root)
	if err != nil {
		if os.IsNotExist(err) {
			state.Track = a.ExpectedTrack
			return state, nil
		}
		return types.RepositoryState{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read repository root %s", a.Root)).
			WithCause(err)
	}
	state.Current = a.readPointer(currentPointer)
	state.Previous = a.readPointer(previousPointer)
	tracks := map[string]struct{}{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		track, createdAt, err := core.ParseBundleID(entry.Name())
		if err != nil {
			continue
		}
		tracks[track] = struct{}{}
		dir := a.VersionDir(entry.Name())
		version := types.BundleVersion{
			BundleID:     entry.Name(),
			Track:        track,
			CreatedAt:    createdAt,
			PackageCount: countRPMs(filepath.Join(dir, types.RPMDirName)),
			HasIndex:     fileExists(filepath.Join(dir, filepath.FromSlash(types.RepomdPath))),
		}
		switch entry.Name() {
		case state.Current:
			version.Pointer = currentPointer
		case state.Previous:
			version.Pointer = previousPointer
		}
		state.Versions = append(state.Versions, version)
	}
	sort.Slice(state.Versions, func(i, j int) bool {
		return state.Versions[i].CreatedAt.Before(state.Versions[j].CreatedAt)
	})
	state.Track = a.ExpectedTrack
	for track := range tracks {
		if state.Track != "" && state.Track != track {
			return types.RepositoryState{}, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("repository root %s holds track %s, expected %s", a.Root, track, state.Track))
		}
		state.Track = track
	}
	return state, nil
}

// StagingDir creates a private extraction directory on the same
// filesystem as the published versions so the final move is a rename.
func (a RepoStateFileAdapter) StagingDir(ctx context.Context, bundleID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := validateBundleDirName(bundleID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(a.Root, 0755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("failed to create repository root %s", a.Root)).
			WithCause(err)
	}
	dir, err := os.MkdirTemp(a.Root, incomingPrefix+bundleID+"-")
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeResourceExhausted).
			WithMsg(fmt.Sprintf("failed to create staging directory in %s", a.Root)).
			WithCause(err)
	}
	return dir, nil
}

// Install makes stagedDir read-only and moves it into place as the
// versioned directory for bundleID, replacing any earlier copy whole.
func (a RepoStateFileAdapter) Install(ctx context.Context, bundleID string, stagedDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateBundleDirName(bundleID); err != nil {
		return err
	}
	if err := lockTree(stagedDir); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to set read-only permissions on %s", stagedDir)).
			WithCause(err)
	}
	target := a.VersionDir(bundleID)
	if _, err := os.Lstat(target); os.IsNotExist(err) {
		if err := os.Rename(stagedDir, target); err != nil {
			return wrapInstall(target, err)
		}
		return wrapInstall(target, os.Chmod(target, 0555))
	}
	// Moving a directory between parents needs write access on it.
	if err := os.Chmod(target, 0755); err != nil {
		return wrapInstall(target, err)
	}
	err := a.exchangeDirs(stagedDir, target)
	if err == nil {
		log.Ctx(ctx).Debug().Str("bundle", bundleID).Msg("replaced versioned directory by exchange")
		if err := os.Chmod(target, 0555); err != nil {
			return wrapInstall(target, err)
		}
		return wrapInstall(target, removeTree(stagedDir))
	}
	if !errors.Is(err, unix.ENOSYS) && !errors.Is(err, unix.EINVAL) {
		_ = os.Chmod(target, 0555)
		return wrapInstall(target, err)
	}
	// Without an exchange the directory is briefly absent, which a pointer
	// must never observe.
	if a.readPointer(currentPointer) == bundleID || a.readPointer(previousPointer) == bundleID {
		_ = os.Chmod(target, 0555)
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("cannot replace %s in place: filesystem of %s has no atomic directory exchange and the bundle is a pointer target", bundleID, a.Root)).
			WithCause(err)
	}
	aside := filepath.Join(a.Root, fmt.Sprintf(".replaced-%s-%d", bundleID, time.Now().UnixNano()))
	if err := os.Rename(target, aside); err != nil {
		return wrapInstall(target, err)
	}
	if err := os.Rename(stagedDir, target); err != nil {
		_ = os.Rename(aside, target)
		return wrapInstall(target, err)
	}
	if err := os.Chmod(target, 0555); err != nil {
		return wrapInstall(target, err)
	}
	return wrapInstall(target, removeTree(aside))
}

func (a RepoStateFileAdapter) exchangeDirs(from string, to string) error {
	if a.exchange != nil {
		return a.exchange(from, to)
	}
	return unix.Renameat2(unix.AT_FDCWD, from, unix.AT_FDCWD, to, unix.RENAME_EXCHANGE)
}

// DiscardStaging removes a staging directory created by StagingDir, including
// trees already made read-only by a failed Install.
func (a RepoStateFileAdapter) DiscardStaging(stagedDir string) error {
	rel, err := filepath.Rel(a.Root, stagedDir)
	if err != nil || strings.Contains(rel, string(filepath.Separator)) || !strings.HasPrefix(rel, incomingPrefix) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("%s is not a staging directory of %s", stagedDir, a.Root))
	}
	return removeTree(stagedDir)
}

// Advance points current at bundleID and demotes the old current target
// to previous. It reports false when current already targets bundleID.
func (a RepoStateFileAdapter) Advance(ctx context.Context, bundleID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := validateBundleDirName(bundleID); err != nil {
		return false, err
	}
	if err := a.requireIndex(bundleID); err != nil {
		return false, err
	}
	old := a.readPointer(currentPointer)
	if old == bundleID {
		return false, nil
	}
	if old != "" {
		if err := a.swapPointer(previousPointer, old); err != nil {
			return false, err
		}
	}
	if err := a.swapPointer(currentPointer, bundleID); err != nil {
		return false, err
	}
	return true, nil
}

func (a RepoStateFileAdapter) Rollback(ctx context.Context) (types.RepositoryState, error) {
	if err := ctx.Err(); err != nil {
		return types.RepositoryState{}, err
	}
	previous := a.readPointer(previousPointer)
	if previous == "" {
		return types.RepositoryState{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("repository %s has no previous bundle to roll back to", a.Root))
	}
	if err := a.requireIndex(previous); err != nil {
		return types.RepositoryState{}, err
	}
	current := a.readPointer(currentPointer)
	if err := a.swapPointer(currentPointer, previous); err != nil {
		return types.RepositoryState{}, err
	}
	if current != "" {
		if err := a.swapPointer(previousPointer, current); err != nil {
			return types.RepositoryState{}, err
		}
	}
	return a.State(ctx)
}

func (a RepoStateFileAdapter) DeleteVersion(ctx context.Context, bundleID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateBundleDirName(bundleID); err != nil {
		return err
	}
	if bundleID == a.readPointer(currentPointer) || bundleID == a.readPointer(previousPointer) {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("bundle %s is referenced by a repository pointer", bundleID))
	}
	dir := a.VersionDir(bundleID)
	if _, err := os.Stat(dir); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("bundle %s not found in %s", bundleID, a.Root))
	}
	if err := removeTree(dir); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to delete %s", dir)).
			WithCause(err)
	}
	return nil
}

func (a RepoStateFileAdapter) VersionDir(bundleID string) string {
	return filepath.Join(a.Root, bundleID)
}

func (a RepoStateFileAdapter) checkRoot() error {
	if strings.TrimSpace(a.Root) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("repository root is empty")
	}
	return nil
}

func (a RepoStateFileAdapter) readPointer(name string) string {
	target, err := os.Readlink(filepath.Join(a.Root, name))
	if err != nil {
		return ""
	}
	return filepath.Base(target)
}

// swapPointer replaces the named symlink by renaming a freshly created one
// over it, so readers see either the old or the new target.
func (a RepoStateFileAdapter) swapPointer(name string, bundleID string) error {
	tmp := filepath.Join(a.Root, fmt.Sprintf(".%s-%d.tmp", name, time.Now().UnixNano()))
	if err := os.Symlink(bundleID, tmp); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to create %s pointer for %s", name, bundleID)).
			WithCause(err)
	}
	if err := os.Rename(tmp, filepath.Join(a.Root, name)); err != nil {
		_ = os.Remove(tmp)
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to swap %s pointer to %s", name, bundleID)).
			WithCause(err)
	}
	return nil
}

func (a RepoStateFileAdapter) requireIndex(bundleID string) error {
	repomd := filepath.Join(a.VersionDir(bundleID), filepath.FromSlash(types.RepomdPath))
	if !fileExists(repomd) {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("bundle %s has no repository index at %s", bundleID, repomd))
	}
	return nil
}

func validateBundleDirName(bundleID string) error {
	if _, _, err := core.ParseBundleID(bundleID); err != nil {
		return err
	}
	if strings.ContainsRune(bundleID, os.PathSeparator) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("bundle id contains path separator")
	}
	return nil
}

func wrapInstall(target string, err error) error {
	if err == nil {
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(fmt.Sprintf("failed to install %s", target)).
		WithCause(err)
}

// lockTree applies the published permissions below root: directories 0555,
// files 0444. root itself stays writable until it has been moved into place.
func lockTree(root string) error {
	var dirs []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			dirs = append(dirs, path)
			return nil
		}
		return os.Chmod(path, 0444)
	})
	if err != nil {
		return err
	}
	for i := len(dirs) - 1; i > 0; i-- {
		if err := os.Chmod(dirs[i], 0555); err != nil {
			return err
		}
	}
	return nil
}

func removeTree(root string) error {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err == nil && d.IsDir() {
			_ = os.Chmod(path, 0755)
		}
		return nil
	})
	return os.RemoveAll(root)
}

func countRPMs(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".rpm") {
			count++
		}
	}
	return count
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

var _ ports.RepositoryStatePort = RepoStateFileAdapter{}
