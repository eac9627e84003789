package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

func TestCommandError(t *testing.T) {
	err := CommandError([]byte("  boom \n"), errors.New("exit status 1"))
	assert.Equal(t, "boom: exit status 1", err.Error())
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))
	digest, size, err := FileSHA256(path)
	require.NoError(t, err)
	assert.Equal(t, int64(3), size)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", digest)
}

func TestSortedUnique(t *testing.T) {
	got := SortedUnique([]string{"b", " a", "", "b", "c "})
	if diff := cmp.Diff([]string{"a", "b", "c"}, got); diff != "" {
		t.Fatalf("unexpected values (-want +got):\n%s", diff)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		code errbuilder.ErrCode
		want types.ErrorKind
	}{
		{name: "validation", code: errbuilder.CodeInvalidArgument, want: types.ErrorKindValidation},
		{name: "integrity", code: errbuilder.CodeDataLoss, want: types.ErrorKindIntegrity},
		{name: "resolution", code: errbuilder.CodeUnavailable, want: types.ErrorKindResolution},
		{name: "state", code: errbuilder.CodeFailedPrecondition, want: types.ErrorKindState},
		{name: "environment", code: errbuilder.CodeResourceExhausted, want: types.ErrorKindEnvironment},
		{name: "internal", code: errbuilder.CodeInternal, want: types.ErrorKindInternal},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			err := errbuilder.New().WithCode(tt.code).WithMsg("x")
			assert.Equal(t, tt.want, KindOf(err))
		})
	}
}
