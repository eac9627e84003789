package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const repomdXML = `<?xml version="1.0" encoding="UTF-8"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <revision>1700000000</revision>
  <data type="primary">
    <checksum type="sha256">abc</checksum>
    <location href="repodata/abc-primary.xml.gz"/>
  </data>
</repomd>`

func writeRepodata(t *testing.T, dir string, withPrimary bool) {
	t.Helper()
	repodata := filepath.Join(dir, "repodata")
	require.NoError(t, os.MkdirAll(repodata, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(repodata, "repomd.xml"), []byte(repomdXML), 0644))
	if withPrimary {
		require.NoError(t, os.WriteFile(filepath.Join(repodata, "abc-primary.xml.gz"), []byte("gz"), 0644))
	}
}

func TestCreaterepoValidate(t *testing.T) {
	adapter := NewCreaterepoAdapter()

	ok := t.TempDir()
	writeRepodata(t, ok, true)
	require.NoError(t, adapter.Validate(ok))

	missingPrimary := t.TempDir()
	writeRepodata(t, missingPrimary, false)
	err := adapter.Validate(missingPrimary)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "references missing")

	empty := t.TempDir()
	err = adapter.Validate(empty)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))

	garbage := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(garbage, "repodata"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(garbage, "repodata", "repomd.xml"), []byte("<notrepomd/>"), 0644))
	require.Error(t, adapter.Validate(garbage))
}

func TestCreaterepoFallsBackToLegacyTool(t *testing.T) {
	dir := t.TempDir()
	var gotTool string
	var gotArgs []string
	adapter := CreaterepoAdapter{
		Tools: []string{"createrepo_c", "createrepo"},
		lookPath: func(name string) (string, error) {
			if name == "createrepo" {
				return "/usr/bin/createrepo", nil
			}
			return "", errors.New("not found")
		},
		run: func(_ context.Context, name string, args ...string) ([]byte, error) {
			gotTool = name
			gotArgs = args
			writeRepodata(t, dir, true)
			return nil, nil
		},
	}
	require.NoError(t, adapter.Generate(t.Context(), dir))
	assert.Equal(t, "/usr/bin/createrepo", gotTool)
	assert.Equal(t, []string{dir}, gotArgs)
}

func TestCreaterepoMissingToolIsEnvironmentError(t *testing.T) {
	adapter := CreaterepoAdapter{
		Tools:    []string{"createrepo_c", "createrepo"},
		lookPath: func(string) (string, error) { return "", errors.New("not found") },
	}
	err := adapter.CheckTools()
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeResourceExhausted, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "createrepo_c, createrepo")
}
