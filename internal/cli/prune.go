package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
)

type pruneOptions struct {
	repositoryOptions
	KeepLast int
	KeepDays int
	DryRun   bool
}

func newPruneCommand() *cobra.Command {
	opts := pruneOptions{}
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old bundle versions based on retention policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd.Context(), cmd, opts)
		},
	}
	bindRepositoryFlags(cmd, &opts.repositoryOptions)
	cmd.Flags().IntVar(&opts.KeepLast, "keep-last", 0, "Keep the newest N bundle versions")
	cmd.Flags().IntVar(&opts.KeepDays, "keep-days", 0, "Keep bundle versions newer than N days")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", true, "Only report prune actions without deleting")

	_ = viper.BindPFlag("keep_last", cmd.Flags().Lookup("keep-last"))
	_ = viper.BindPFlag("keep_days", cmd.Flags().Lookup("keep-days"))
	_ = viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))

	return cmd
}

func runPrune(ctx context.Context, cmd *cobra.Command, opts pruneOptions) error {
	service, err := newAppService(serviceConfig{})
	if err != nil {
		return err
	}
	repo := opts.request(cmd)
	result, err := service.Prune(ctx, app.PruneRequest{
		RepoRoot:      repo.RepoRoot,
		ExpectedTrack: repo.ExpectedTrack,
		KeepLast:      resolveInt(cmd, opts.KeepLast, "keep_last", "keep-last"),
		KeepDays:      resolveInt(cmd, opts.KeepDays, "keep_days", "keep-days"),
		DryRun:        resolveBool(cmd, opts.DryRun, "dry_run", "dry-run"),
	})
	if err != nil {
		return err
	}
	if result.DryRun {
		fmt.Printf("dry-run: keep=%d delete=%d\n", result.KeepCount, result.DeleteCount)
		for _, id := range result.Planned {
			fmt.Printf("would delete: %s\n", id)
		}
		return nil
	}
	for _, id := range result.Deleted {
		fmt.Printf("deleted: %s\n", id)
	}
	fmt.Printf("pruned bundle versions: %d\n", result.DeleteCount)
	return nil
}
