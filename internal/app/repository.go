package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// Rollback points current back at the previous bundle without extracting
// anything. The previous bundle must still carry a valid index.
func (s Service) Rollback(ctx context.Context, req RepositoryRequest) (state types.RepositoryState, err error) {
	started := time.Now()
	defer func() { s.observe(ctx, "rollback", started, err) }()

	repo, err := s.repository(req)
	if err != nil {
		return types.RepositoryState{}, err
	}
	before, err := repo.State(ctx)
	if err != nil {
		return types.RepositoryState{}, err
	}
	if before.Previous == "" {
		return types.RepositoryState{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("repository %s has no previous bundle to roll back to", req.RepoRoot))
	}
	if err := s.Index.Validate(repo.VersionDir(before.Previous)); err != nil {
		return types.RepositoryState{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("previous bundle %s has no valid repository index: %s", before.Previous, shared.ErrorMessage(err))).
			WithCause(err)
	}
	after, err := repo.Rollback(ctx)
	if err != nil {
		return types.RepositoryState{}, err
	}
	log.Ctx(ctx).Info().
		Str("current", after.Current).
		Str("previous", after.Previous).
		Msg("repository rolled back")
	return after, nil
}

func (s Service) Status(ctx context.Context, req RepositoryRequest) (types.RepositoryState, error) {
	repo, err := s.repository(req)
	if err != nil {
		return types.RepositoryState{}, err
	}
	return repo.State(ctx)
}
