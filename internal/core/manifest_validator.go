package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// SupportedSchemaRange bounds the manifest and metadata schema versions this
// build understands.
const SupportedSchemaRange = ">=1.0,<2.0"

var validSystemArches = map[string]struct{}{
	"x86_64":  {},
	"aarch64": {},
}

var validPackageArches = map[string]struct{}{
	"x86_64":  {},
	"aarch64": {},
	"noarch":  {},
	"i686":    {},
}

type ManifestValidator struct {
	schemas pep440.Specifiers
}

func NewManifestValidator() (ManifestValidator, error) {
	specifiers, err := pep440.NewSpecifiers(SupportedSchemaRange)
	if err != nil {
		return ManifestValidator{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("invalid supported schema range").
			WithCause(err)
	}
	return ManifestValidator{schemas: specifiers}, nil
}

// CheckSchemaVersion reports whether value falls in SupportedSchemaRange.
func (v ManifestValidator) CheckSchemaVersion(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("schema_version must be set")
	}
	parsed, err := pep440.Parse(trimmed)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("schema_version %q is not a valid version", trimmed)).
			WithCause(err)
	}
	if !v.schemas.Check(parsed) {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("schema_version %s is outside supported range %s", trimmed, SupportedSchemaRange))
	}
	return nil
}

// Problems lists every schema violation of manifest. An empty result means
// the manifest is valid.
func (v ManifestValidator) Problems(manifest types.Manifest) []string {
	var problems []string
	if err := v.CheckSchemaVersion(manifest.SchemaVersion); err != nil {
		problems = append(problems, errorText(err))
	}
	if strings.TrimSpace(manifest.HostID) == "" {
		problems = append(problems, "host_id must be set")
	}
	if manifest.OS.Major <= 0 {
		problems = append(problems, "os.major must be a positive integer")
	}
	if manifest.OS.Minor < 0 {
		problems = append(problems, "os.minor must not be negative")
	}
	if manifest.InstalledRPMs == nil {
		problems = append(problems, "installed_rpms must be present")
	}
	if manifest.Arch != "" {
		if _, ok := validSystemArches[manifest.Arch]; !ok {
			problems = append(problems, fmt.Sprintf("invalid system architecture %s", manifest.Arch))
		}
	}
	for i, repo := range manifest.EnabledRepos {
		if strings.TrimSpace(repo.ID) == "" {
			problems = append(problems, fmt.Sprintf("enabled_repos[%d] missing id", i))
		}
	}
	for i, rpm := range manifest.InstalledRPMs {
		if strings.TrimSpace(rpm.Name) == "" {
			problems = append(problems, fmt.Sprintf("installed_rpms[%d] missing name", i))
		}
		if rpm.Arch != "" {
			if _, ok := validPackageArches[rpm.Arch]; !ok {
				problems = append(problems, fmt.Sprintf("installed_rpms[%d] has invalid arch %s", i, rpm.Arch))
			}
		}
	}
	if manifest.Timestamp != "" {
		if _, err := time.Parse(time.RFC3339, manifest.Timestamp); err != nil {
			problems = append(problems, fmt.Sprintf("timestamp %q is not RFC3339", manifest.Timestamp))
		}
	}
	return problems
}

func (v ManifestValidator) Validate(loaded types.LoadedManifest) error {
	problems := v.Problems(loaded.Manifest)
	if len(problems) == 0 {
		return nil
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("manifest %s failed validation: %s", loaded.Path, strings.Join(problems, "; ")))
}

func errorText(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
