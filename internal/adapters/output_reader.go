package adapters

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type OutputReaderAdapter struct{}

func NewOutputReaderAdapter() OutputReaderAdapter {
	return OutputReaderAdapter{}
}

func (a OutputReaderAdapter) ReadMetadata(path string) (types.BundleMetadata, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return types.BundleMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("bundle metadata not found: %s", path)).
			WithCause(err)
	}
	meta, err := a.DecodeMetadata(content)
	if err != nil {
		return types.BundleMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeOf(err)).
			WithMsg(fmt.Sprintf("invalid bundle metadata %s", path)).
			WithCause(err)
	}
	return meta, nil
}

func (a OutputReaderAdapter) DecodeMetadata(data []byte) (types.BundleMetadata, error) {
	var meta types.BundleMetadata
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&meta); err != nil {
		return types.BundleMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg("bundle metadata is not valid json").
			WithCause(err)
	}
	if meta.BundleID == "" {
		return types.BundleMetadata{}, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg("bundle metadata has no bundle_id")
	}
	validator, err := core.NewManifestValidator()
	if err != nil {
		return types.BundleMetadata{}, err
	}
	if err := validator.CheckSchemaVersion(meta.SchemaVersion); err != nil {
		return types.BundleMetadata{}, err
	}
	return meta, nil
}

func (a OutputReaderAdapter) ReadChecksums(path string) ([]types.FileChecksum, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("checksum file not found: %s", path)).
			WithCause(err)
	}
	entries, err := core.ParseChecksumFile(content)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeDataLoss).
			WithMsg(fmt.Sprintf("malformed checksum file %s", path)).
			WithCause(err)
	}
	return entries, nil
}

var _ ports.OutputReaderPort = OutputReaderAdapter{}
