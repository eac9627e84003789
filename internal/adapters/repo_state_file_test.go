package adapters

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func stageBundle(t *testing.T, adapter RepoStateFileAdapter, bundleID string, payload string) {
	t.Helper()
	staging, err := adapter.StagingDir(t.Context(), bundleID)
	require.NoError(t, err)
	dir := filepath.Join(staging, bundleID)
	writeTree(t, dir, map[string]string{
		"rpms/pkg-1.0-1.x86_64.rpm": payload,
		"repodata/repomd.xml":       "<repomd/>",
	})
	require.NoError(t, adapter.Install(t.Context(), bundleID, dir))
	require.NoError(t, os.Remove(staging))
}

func TestRepoStateAdvanceAndRollback(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "")
	t.Cleanup(func() { _ = removeTree(root) })

	first := "bundle-rhel9-20260101T000000Z"
	second := "bundle-rhel9-20260102T000000Z"
	stageBundle(t, adapter, first, "one")
	stageBundle(t, adapter, second, "two")

	moved, err := adapter.Advance(t.Context(), first)
	require.NoError(t, err)
	assert.True(t, moved)
	moved, err = adapter.Advance(t.Context(), second)
	require.NoError(t, err)
	assert.True(t, moved)

	state, err := adapter.State(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "rhel9", state.Track)
	assert.Equal(t, second, state.Current)
	assert.Equal(t, first, state.Previous)
	require.Len(t, state.Versions, 2)
	assert.Equal(t, 1, state.Versions[0].PackageCount)
	assert.True(t, state.Versions[1].HasIndex)

	state, err = adapter.Rollback(t.Context())
	require.NoError(t, err)
	assert.Equal(t, first, state.Current)
	assert.Equal(t, second, state.Previous)

	data, err := os.ReadFile(filepath.Join(root, "current", "rpms", "pkg-1.0-1.x86_64.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestRepoStateAdvanceSameBundleIsNoop(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "rhel9")
	t.Cleanup(func() { _ = removeTree(root) })

	first := "bundle-rhel9-20260101T000000Z"
	second := "bundle-rhel9-20260102T000000Z"
	stageBundle(t, adapter, first, "one")
	stageBundle(t, adapter, second, "two")
	_, err := adapter.Advance(t.Context(), first)
	require.NoError(t, err)
	_, err = adapter.Advance(t.Context(), second)
	require.NoError(t, err)

	stageBundle(t, adapter, second, "two")
	moved, err := adapter.Advance(t.Context(), second)
	require.NoError(t, err)
	assert.False(t, moved)

	state, err := adapter.State(t.Context())
	require.NoError(t, err)
	if diff := cmp.Diff([]string{second, first}, []string{state.Current, state.Previous}); diff != "" {
		t.Fatalf("pointers changed (-want +got):\n%s", diff)
	}
}

func TestRepoStateInstallReplacesWholeDirectory(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "")
	t.Cleanup(func() { _ = removeTree(root) })
	id := "bundle-rhel9-20260101T000000Z"

	staging, err := adapter.StagingDir(t.Context(), id)
	require.NoError(t, err)
	dir := filepath.Join(staging, id)
	writeTree(t, dir, map[string]string{"stale.txt": "old", "repodata/repomd.xml": "<repomd/>"})
	require.NoError(t, adapter.Install(t.Context(), id, dir))

	stageBundle(t, adapter, id, "fresh")

	_, err = os.Stat(filepath.Join(root, id, "stale.txt"))
	assert.True(t, os.IsNotExist(err))
	info, err := os.Stat(filepath.Join(root, id, "rpms", "pkg-1.0-1.x86_64.rpm"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0444), info.Mode().Perm())
	info, err = os.Stat(filepath.Join(root, id))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0555), info.Mode().Perm())
}

func TestRepoStateRollbackWithoutPrevious(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "")
	t.Cleanup(func() { _ = removeTree(root) })
	stageBundle(t, adapter, "bundle-rhel9-20260101T000000Z", "one")
	_, err := adapter.Advance(t.Context(), "bundle-rhel9-20260101T000000Z")
	require.NoError(t, err)

	_, err = adapter.Rollback(t.Context())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestRepoStateAdvanceRequiresIndex(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "")
	id := "bundle-rhel9-20260101T000000Z"
	require.NoError(t, os.MkdirAll(filepath.Join(root, id, "rpms"), 0755))

	_, err := adapter.Advance(t.Context(), id)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	_, statErr := os.Lstat(filepath.Join(root, "current"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRepoStateTrackMismatch(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bundle-rhel8-20260101T000000Z"), 0755))
	_, err := NewRepoStateFileAdapter(root, "rhel9").State(t.Context())
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestRepoStateDeleteVersionProtectsPointers(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "")
	t.Cleanup(func() { _ = removeTree(root) })
	old := "bundle-rhel9-20260101T000000Z"
	cur := "bundle-rhel9-20260102T000000Z"
	stageBundle(t, adapter, old, "one")
	stageBundle(t, adapter, cur, "two")
	_, err := adapter.Advance(t.Context(), cur)
	require.NoError(t, err)

	err = adapter.DeleteVersion(t.Context(), cur)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))

	require.NoError(t, adapter.DeleteVersion(t.Context(), old))
	_, err = os.Stat(filepath.Join(root, old))
	assert.True(t, os.IsNotExist(err))
}

func TestRepoStateConcurrentReadersNeverSeeMissingCurrent(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "")
	t.Cleanup(func() { _ = removeTree(root) })
	ids := []string{
		"bundle-rhel9-20260101T000000Z",
		"bundle-rhel9-20260102T000000Z",
		"bundle-rhel9-20260103T000000Z",
	}
	for i, id := range ids {
		stageBundle(t, adapter, id, string(rune('a'+i)))
	}
	_, err := adapter.Advance(t.Context(), ids[0])
	require.NoError(t, err)

	var failures atomic.Int64
	stop := make(chan struct{})
	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if _, err := os.Stat(filepath.Join(root, "current", "repodata", "repomd.xml")); err != nil {
					failures.Add(1)
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		_, err := adapter.Advance(t.Context(), ids[(i+1)%len(ids)])
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
	assert.Zero(t, failures.Load())
}

func TestRepoStateReplaceWithoutExchange(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "rhel9")
	t.Cleanup(func() { _ = removeTree(root) })

	live := "bundle-rhel9-20260101T000000Z"
	idle := "bundle-rhel9-20260102T000000Z"
	stageBundle(t, adapter, live, "one")
	stageBundle(t, adapter, idle, "two")
	_, err := adapter.Advance(t.Context(), live)
	require.NoError(t, err)

	adapter.exchange = func(string, string) error { return unix.ENOSYS }

	staging, err := adapter.StagingDir(t.Context(), live)
	require.NoError(t, err)
	dir := filepath.Join(staging, live)
	writeTree(t, dir, map[string]string{
		"rpms/pkg-1.0-1.x86_64.rpm": "replacement",
		"repodata/repomd.xml":       "<repomd/>",
	})
	err = adapter.Install(t.Context(), live, dir)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	data, err := os.ReadFile(filepath.Join(root, "current", "rpms", "pkg-1.0-1.x86_64.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	require.NoError(t, adapter.DiscardStaging(staging))
	_, statErr := os.Stat(staging)
	assert.True(t, os.IsNotExist(statErr))

	stageBundle(t, adapter, idle, "three")
	data, err = os.ReadFile(filepath.Join(root, idle, "rpms", "pkg-1.0-1.x86_64.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "three", string(data))
}

func TestRepoStateDiscardStagingOnlyRemovesStagingDirs(t *testing.T) {
	root := t.TempDir()
	adapter := NewRepoStateFileAdapter(root, "")
	t.Cleanup(func() { _ = removeTree(root) })
	id := "bundle-rhel9-20260101T000000Z"
	stageBundle(t, adapter, id, "one")

	err := adapter.DiscardStaging(filepath.Join(root, id))
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	_, statErr := os.Stat(filepath.Join(root, id))
	require.NoError(t, statErr)

	staging, err := adapter.StagingDir(t.Context(), id)
	require.NoError(t, err)
	writeTree(t, filepath.Join(staging, id), map[string]string{"rpms/pkg-1.0-1.x86_64.rpm": "x"})
	require.NoError(t, lockTree(staging))
	require.NoError(t, os.Chmod(staging, 0555))

	require.NoError(t, adapter.DiscardStaging(staging))
	_, statErr = os.Stat(staging)
	assert.True(t, os.IsNotExist(statErr))
}
