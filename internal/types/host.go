package types

type HostRelease struct {
	ID        string
	Name      string
	VersionID string
	Major     int
}
