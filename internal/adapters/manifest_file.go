package adapters

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type ManifestFileAdapter struct{}

func NewManifestFileAdapter() ManifestFileAdapter {
	return ManifestFileAdapter{}
}

func (a ManifestFileAdapter) ListManifests(ctx context.Context, dir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest directory is empty")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("manifest directory %s not found", dir)).
				WithCause(err)
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to read manifest directory %s", dir)).
			WithCause(err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadManifest decodes a manifest strictly enough to catch type errors; schema
// rules are left to the validator.
func (a ManifestFileAdapter) LoadManifest(ctx context.Context, path string) (types.LoadedManifest, error) {
	if err := ctx.Err(); err != nil {
		return types.LoadedManifest{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return types.LoadedManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("manifest %s not readable", path)).
			WithCause(err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return types.LoadedManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("manifest %s is not a json object", path)).
			WithCause(err)
	}
	var missing []string
	for _, key := range []string{"schema_version", "host_id", "os", "installed_rpms"} {
		if _, ok := fields[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return types.LoadedManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("manifest %s missing required fields: %s", path, strings.Join(missing, ", ")))
	}
	var manifest types.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return types.LoadedManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("manifest %s has invalid field types", path)).
			WithCause(err)
	}
	hash, err := canonicalHash(data)
	if err != nil {
		return types.LoadedManifest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("manifest %s could not be canonicalized", path)).
			WithCause(err)
	}
	return types.LoadedManifest{
		Path:     path,
		Raw:      data,
		Hash:     hash,
		Manifest: manifest,
	}, nil
}

// canonicalHash digests the document re-encoded with sorted keys, so
// formatting differences between collectors do not change the hash.
func canonicalHash(data []byte) (string, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return "", err
	}
	canonical, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

var _ ports.ManifestStorePort = ManifestFileAdapter{}
