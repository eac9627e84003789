package ports

import "context"

type RepoIndexPort interface {
	Generate(ctx context.Context, dir string) error
	Validate(dir string) error
	CheckTools() error
}
