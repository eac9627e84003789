package adapters

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// CreaterepoAdapter regenerates yum repository metadata, preferring
// createrepo_c and falling back to the legacy createrepo.
type CreaterepoAdapter struct {
	Tools    []string
	lookPath func(string) (string, error)
	run      commandRunner
}

func NewCreaterepoAdapter() CreaterepoAdapter {
	return CreaterepoAdapter{
		Tools:    []string{"createrepo_c", "createrepo"},
		lookPath: exec.LookPath,
		run:      execCommand,
	}
}

func (a CreaterepoAdapter) CheckTools() error {
	_, err := a.tool()
	return err
}

func (a CreaterepoAdapter) Generate(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tool, err := a.tool()
	if err != nil {
		return err
	}
	args := []string{"--update", dir}
	if filepath.Base(tool) == "createrepo" {
		args = []string{dir}
	}
	run := a.run
	if run == nil {
		run = execCommand
	}
	output, err := run(ctx, tool, args...)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("%s failed to index %s", filepath.Base(tool), dir)).
			WithCause(shared.CommandError(output, err))
	}
	log.Ctx(ctx).Debug().Str("tool", tool).Str("dir", dir).Msg("repository index generated")
	return a.Validate(dir)
}

type repomdDocument struct {
	XMLName xml.Name     `xml:"repomd"`
	Data    []repomdData `xml:"data"`
}

type repomdData struct {
	Type     string         `xml:"type,attr"`
	Location repomdLocation `xml:"location"`
}

type repomdLocation struct {
	Href string `xml:"href,attr"`
}

// Validate checks that dir carries a readable repomd.xml whose primary
// metadata file exists.
func (a CreaterepoAdapter) Validate(dir string) error {
	path := filepath.Join(dir, filepath.FromSlash(types.RepomdPath))
	data, err := os.ReadFile(path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("repository index missing in %s", dir)).
			WithCause(err)
	}
	var doc repomdDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("repository index %s is not valid xml", path)).
			WithCause(err)
	}
	for _, entry := range doc.Data {
		if entry.Type != "primary" {
			continue
		}
		href := strings.TrimSpace(entry.Location.Href)
		if href == "" || strings.Contains(href, "..") {
			break
		}
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(href))); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("repository index %s references missing %s", path, href)).
				WithCause(err)
		}
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("repository index %s has no primary metadata", path))
}

func (a CreaterepoAdapter) tool() (string, error) {
	lookPath := a.lookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, name := range a.Tools {
		if path, err := lookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeResourceExhausted).
		WithMsg(fmt.Sprintf("required tool not found: one of %s", strings.Join(a.Tools, ", ")))
}

var _ ports.RepoIndexPort = CreaterepoAdapter{}
