package types

// CatalogFile describes the packages an offline builder can serve, in place
// of a live package manager.
type CatalogFile struct {
	Track    string            `yaml:"track"`
	Baseline map[string]string `yaml:"baseline"`
	Packages []CatalogPackage  `yaml:"packages"`
}

type CatalogPackage struct {
	Name     string   `yaml:"name"`
	Epoch    string   `yaml:"epoch,omitempty"`
	Version  string   `yaml:"version"`
	Release  string   `yaml:"release"`
	Arch     string   `yaml:"arch"`
	File     string   `yaml:"file"`
	Requires []string `yaml:"requires,omitempty"`
	Advisory string   `yaml:"advisory,omitempty"`
}

func (p CatalogPackage) EVR() string {
	evr := p.Version + "-" + p.Release
	if p.Epoch != "" && p.Epoch != "0" {
		evr = p.Epoch + ":" + evr
	}
	return evr
}
