package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
)

type stageOptions struct {
	DestDir        string
	ChecksumFile   string
	RateLimitBytes int
	Progress       bool
}

func newStageCommand() *cobra.Command {
	opts := stageOptions{}
	cmd := &cobra.Command{
		Use:   "stage <bundle-archive>",
		Short: "Copy a verified bundle to transfer media and verify the copy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStage(cmd.Context(), cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.DestDir, "dest-dir", "", "Media directory to copy the bundle into")
	cmd.Flags().StringVar(&opts.ChecksumFile, "checksum-file", "", "Companion checksum file (default <archive>.sha256)")
	cmd.Flags().IntVar(&opts.RateLimitBytes, "rate-limit-bytes", 0, "Copy rate limit in bytes per second (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.Progress, "progress", true, "Show a progress bar on stderr")
	_ = viper.BindPFlag("dest_dir", cmd.Flags().Lookup("dest-dir"))
	_ = viper.BindPFlag("checksum_file", cmd.Flags().Lookup("checksum-file"))
	_ = viper.BindPFlag("rate_limit_bytes", cmd.Flags().Lookup("rate-limit-bytes"))
	_ = viper.BindPFlag("progress", cmd.Flags().Lookup("progress"))
	return cmd
}

func runStage(ctx context.Context, cmd *cobra.Command, archive string, opts stageOptions) error {
	service, err := newAppService(serviceConfig{
		Progress:       resolveBool(cmd, opts.Progress, "progress", "progress"),
		RateLimitBytes: resolveInt(cmd, opts.RateLimitBytes, "rate_limit_bytes", "rate-limit-bytes"),
	})
	if err != nil {
		return err
	}
	result, err := service.Stage(ctx, app.StageRequest{
		ArchivePath:  archive,
		ChecksumPath: resolveString(cmd, opts.ChecksumFile, "checksum_file", "checksum-file"),
		DestDir:      resolveString(cmd, opts.DestDir, "dest_dir", "dest-dir"),
	})
	if err != nil {
		return err
	}
	for _, path := range result.Copied {
		fmt.Printf("staged: %s\n", path)
	}
	fmt.Printf("verified at destination: %s\n", result.Verify.Digest)
	return nil
}
