package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
)

type verifyOptions struct {
	ChecksumFile string
	Format       string
}

func newVerifyCommand() *cobra.Command {
	opts := verifyOptions{}
	cmd := &cobra.Command{
		Use:   "verify <bundle-archive>",
		Short: "Verify a bundle archive end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.ChecksumFile, "checksum-file", "", "Companion checksum file (default <archive>.sha256)")
	cmd.Flags().StringVar(&opts.Format, "report-format", "text", "Output format (text or json)")
	_ = viper.BindPFlag("checksum_file", cmd.Flags().Lookup("checksum-file"))
	_ = viper.BindPFlag("report_format", cmd.Flags().Lookup("report-format"))
	return cmd
}

func runVerify(ctx context.Context, cmd *cobra.Command, archive string, opts verifyOptions) error {
	service, err := newAppService(serviceConfig{})
	if err != nil {
		return err
	}
	result, err := service.Verify(ctx, app.VerifyRequest{
		ArchivePath:  archive,
		ChecksumPath: resolveString(cmd, opts.ChecksumFile, "checksum_file", "checksum-file"),
	})
	if err != nil {
		return err
	}
	return printReport(resolveString(cmd, opts.Format, "report_format", "report-format"), result, func() {
		fmt.Printf("verified: %s\n", result.Name.FileName)
		fmt.Printf("sha256: %s\n", result.Digest)
		fmt.Printf("packages: %d, index: %t\n", result.Inventory.PackageCount, result.Inventory.HasIndex)
		if result.Degraded {
			fmt.Println("warning: no companion checksum file; archive digest was not compared")
		}
	})
}
