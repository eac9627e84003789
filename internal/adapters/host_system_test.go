package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostSystemRelease(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantMajor int
		wantErr   bool
	}{
		{
			name:      "rocky",
			content:   "NAME=\"Rocky Linux\"\nID=\"rocky\"\nVERSION_ID=\"9.3\"\nPLATFORM_ID=\"platform:el9\"\n",
			wantMajor: 9,
		},
		{
			name:      "unquoted major only",
			content:   "NAME=RHEL\nID=rhel\nVERSION_ID=8\n",
			wantMajor: 8,
		},
		{
			name:    "missing version",
			content: "NAME=Something\nID=thing\n",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "os-release")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			release, err := HostSystemAdapter{OSReleasePath: path}.Release(t.Context())
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMajor, release.Major)
		})
	}
}

func TestHostSystemFreeBytesAndTools(t *testing.T) {
	host := NewHostSystemAdapter()
	free, err := host.FreeBytes(t.TempDir())
	require.NoError(t, err)
	assert.Positive(t, free)

	_, err = host.LookPath("definitely-not-a-real-tool-name")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeResourceExhausted, errbuilder.CodeOf(err))
	assert.NotEmpty(t, host.Hostname())
}
