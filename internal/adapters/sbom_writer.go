package adapters

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type SBOMWriterAdapter struct{}

func NewSBOMWriterAdapter() SBOMWriterAdapter {
	return SBOMWriterAdapter{}
}

type spdxChecksum struct {
	Algorithm     string `json:"algorithm"`
	ChecksumValue string `json:"checksumValue"`
}

type spdxPackage struct {
	SPDXID           string         `json:"SPDXID"`
	Name             string         `json:"name"`
	VersionInfo      string         `json:"versionInfo"`
	PackageFileName  string         `json:"packageFileName"`
	DownloadLocation string         `json:"downloadLocation"`
	FilesAnalyzed    bool           `json:"filesAnalyzed"`
	LicenseConcluded string         `json:"licenseConcluded"`
	LicenseDeclared  string         `json:"licenseDeclared"`
	Supplier         string         `json:"supplier"`
	Checksums        []spdxChecksum `json:"checksums"`
	Comment          string         `json:"comment,omitempty"`
}

type spdxRelationship struct {
	SpdxElementID      string `json:"spdxElementId"`
	RelationshipType   string `json:"relationshipType"`
	RelatedSpdxElement string `json:"relatedSpdxElement"`
}

// WriteSBOM writes an SPDX 2.3 document describing every package of the
// bundle into dir.
func (a SBOMWriterAdapter) WriteSBOM(dir string, bundleID string, createdAt string, packages []types.PackageEntry) error {
	if strings.TrimSpace(dir) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("sbom directory is empty")
	}
	if strings.TrimSpace(bundleID) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("bundle id is empty")
	}
	ordered := append([]types.PackageEntry(nil), packages...)
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].File < ordered[j].File
	})
	created := strings.TrimSpace(createdAt)
	if created == "" {
		created = time.Now().UTC().Format(time.RFC3339)
	}
	payload := struct {
		SPDXVersion       string             `json:"spdxVersion"`
		DataLicense       string             `json:"dataLicense"`
		SPDXID            string             `json:"SPDXID"`
		Name              string             `json:"name"`
		DocumentNamespace string             `json:"documentNamespace"`
		CreationInfo      struct {
			Created  string   `json:"created"`
			Creators []string `json:"creators"`
		} `json:"creationInfo"`
		Packages          []spdxPackage      `json:"packages"`
		Relationships     []spdxRelationship `json:"relationships"`
		DocumentDescribes []string           `json:"documentDescribes"`
	}{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXID:            "SPDXRef-DOCUMENT",
		Name:              fmt.Sprintf("airgap-rpm bundle %s", bundleID),
		DocumentNamespace: fmt.Sprintf("urn:airgap-rpm:spdx:%s", bundleID),
		Packages:          []spdxPackage{},
		Relationships:     []spdxRelationship{},
		DocumentDescribes: []string{},
	}
	payload.CreationInfo.Created = created
	payload.CreationInfo.Creators = []string{"Tool: airgap-rpm"}
	for _, entry := range ordered {
		spdxID := spdxPackageID(entry.NEVRA)
		payload.Packages = append(payload.Packages, spdxPackage{
			SPDXID:           spdxID,
			Name:             entry.Name,
			VersionInfo:      versionFromNEVRA(entry),
			PackageFileName:  types.RPMDirName + "/" + entry.File,
			DownloadLocation: "NOASSERTION",
			LicenseConcluded: "NOASSERTION",
			LicenseDeclared:  "NOASSERTION",
			Supplier:         "NOASSERTION",
			Checksums:        []spdxChecksum{{Algorithm: "SHA256", ChecksumValue: entry.SHA256}},
			Comment:          string(entry.Type),
		})
		payload.DocumentDescribes = append(payload.DocumentDescribes, spdxID)
		payload.Relationships = append(payload.Relationships, spdxRelationship{
			SpdxElementID:      "SPDXRef-DOCUMENT",
			RelationshipType:   "DESCRIBES",
			RelatedSpdxElement: spdxID,
		})
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to marshal sbom payload").
			WithCause(err)
	}
	if err := writeFileAtomic(filepath.Join(dir, types.SBOMFileName), append(data, '\n')); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", types.SBOMFileName)).
			WithCause(err)
	}
	return nil
}

func spdxPackageID(nevra string) string {
	hash := sha256.Sum256([]byte(nevra))
	return "SPDXRef-Package-" + hex.EncodeToString(hash[:8])
}

// versionFromNEVRA strips the name prefix and arch suffix from a NEVRA.
func versionFromNEVRA(entry types.PackageEntry) string {
	rest := strings.TrimPrefix(entry.NEVRA, entry.Name+"-")
	if idx := strings.LastIndex(rest, "."); idx > 0 {
		rest = rest[:idx]
	}
	return rest
}

var _ ports.SBOMPort = SBOMWriterAdapter{}
