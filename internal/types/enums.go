package types

type ArchiveFormat string

const (
	ArchiveFormatZstd ArchiveFormat = "zst"
	ArchiveFormatGzip ArchiveFormat = "gz"
	ArchiveFormatLZ4  ArchiveFormat = "lz4"
)

// Extension returns the archive suffix without the leading dot.
func (f ArchiveFormat) Extension() string {
	switch f {
	case ArchiveFormatGzip:
		return "tar.gz"
	case ArchiveFormatLZ4:
		return "tar.lz4"
	default:
		return "tar.zst"
	}
}

type PackageKind string

const (
	PackageKindUpdate     PackageKind = "update"
	PackageKindSecurity   PackageKind = "security"
	PackageKindDependency PackageKind = "dependency"
)

type OracleKind string

const (
	OracleKindDnf     OracleKind = "dnf"
	OracleKindCatalog OracleKind = "catalog"
)

// ErrorKind names the pipeline failure classes surfaced to operators.
type ErrorKind string

const (
	ErrorKindValidation  ErrorKind = "ValidationError"
	ErrorKindIntegrity   ErrorKind = "IntegrityError"
	ErrorKindResolution  ErrorKind = "ResolutionError"
	ErrorKindState       ErrorKind = "StateError"
	ErrorKindEnvironment ErrorKind = "EnvironmentError"
	ErrorKindInternal    ErrorKind = "InternalError"
)
