package types

import "time"

// BundleVersion is one versioned bundle directory under a repository root.
type BundleVersion struct {
	BundleID     string
	Track        string
	Pointer      string
	CreatedAt    time.Time
	PackageCount int
	HasIndex     bool
}

type RepositoryState struct {
	Root     string
	Track    string
	Current  string
	Previous string
	Versions []BundleVersion
}

type BundleRetentionPolicy struct {
	KeepLast int
	KeepDays int
	DryRun   bool
}

type BundlePrunePlan struct {
	Keep   []BundleVersion
	Delete []BundleVersion
}
