package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type repositoryOptions struct {
	RepoRoot      string
	ExpectedTrack string
	Format        string
}

func bindRepositoryFlags(cmd *cobra.Command, opts *repositoryOptions) {
	cmd.Flags().StringVar(&opts.RepoRoot, "repo-root", "", "Repository root for this OS track")
	cmd.Flags().StringVar(&opts.ExpectedTrack, "expected-track", "", "Track the repository root serves")
	_ = viper.BindPFlag("repo_root", cmd.Flags().Lookup("repo-root"))
	_ = viper.BindPFlag("expected_track", cmd.Flags().Lookup("expected-track"))
}

func (o repositoryOptions) request(cmd *cobra.Command) app.RepositoryRequest {
	return app.RepositoryRequest{
		RepoRoot:      resolveString(cmd, o.RepoRoot, "repo_root", "repo-root"),
		ExpectedTrack: resolveString(cmd, o.ExpectedTrack, "expected_track", "expected-track"),
	}
}

func newRollbackCommand() *cobra.Command {
	opts := repositoryOptions{}
	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Point current back at the previous bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRollback(cmd.Context(), cmd, opts)
		},
	}
	bindRepositoryFlags(cmd, &opts)
	return cmd
}

func runRollback(ctx context.Context, cmd *cobra.Command, opts repositoryOptions) error {
	service, err := newAppService(serviceConfig{})
	if err != nil {
		return err
	}
	state, err := service.Rollback(ctx, opts.request(cmd))
	if err != nil {
		return err
	}
	fmt.Printf("rolled back: current %s, previous %s\n", state.Current, valueOrNone(state.Previous))
	return nil
}

func newStatusCommand() *cobra.Command {
	opts := repositoryOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the published versions and pointers of a repository root",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), cmd, opts)
		},
	}
	bindRepositoryFlags(cmd, &opts)
	cmd.Flags().StringVar(&opts.Format, "report-format", "text", "Output format (text or json)")
	_ = viper.BindPFlag("report_format", cmd.Flags().Lookup("report-format"))
	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, opts repositoryOptions) error {
	service, err := newAppService(serviceConfig{})
	if err != nil {
		return err
	}
	state, err := service.Status(ctx, opts.request(cmd))
	if err != nil {
		return err
	}
	return printReport(resolveString(cmd, opts.Format, "report_format", "report-format"), state, func() {
		printState(state)
	})
}

func printState(state types.RepositoryState) {
	fmt.Printf("root: %s\n", state.Root)
	fmt.Printf("track: %s\n", valueOrNone(state.Track))
	fmt.Printf("current: %s\n", valueOrNone(state.Current))
	fmt.Printf("previous: %s\n", valueOrNone(state.Previous))
	for _, version := range state.Versions {
		marker := ""
		if version.Pointer != "" {
			marker = " [" + version.Pointer + "]"
		}
		fmt.Printf("- %s packages=%d index=%t created=%s%s\n",
			version.BundleID, version.PackageCount, version.HasIndex,
			version.CreatedAt.Format("2006-01-02T15:04:05Z"), marker)
	}
}
