package types

// AvailableUpdate is one package the oracle reports as upgradable on the
// builder.
type AvailableUpdate struct {
	Name     string
	Arch     string
	EVR      string
	Advisory string
}

type ClosureResult struct {
	DownloadList    []string
	UpdateList      []string
	DependencyCount int
	Download        DownloadResult
}

type DownloadFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// DownloadResult records what the oracle fetched. Failed names are never
// reported as succeeded.
type DownloadResult struct {
	Requested []string          `json:"requested"`
	Succeeded []string          `json:"succeeded"`
	Failed    []DownloadFailure `json:"failed,omitempty"`
	Files     []string          `json:"-"`
}

func (r DownloadResult) Complete() bool {
	return len(r.Failed) == 0
}
