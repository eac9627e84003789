package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
)

type mergeOptions struct {
	ManifestDir string
	OSMajor     int
	OutputDir   string
}

func newMergeCommand() *cobra.Command {
	opts := mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge host manifests of one OS major into a requirement set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMerge(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.ManifestDir, "manifest-dir", "manifests", "Directory of host manifest JSON files")
	cmd.Flags().IntVar(&opts.OSMajor, "os-major", 0, "Target OS major version")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "", "Write merge-report.yaml and packages.txt here")
	_ = viper.BindPFlag("manifest_dir", cmd.Flags().Lookup("manifest-dir"))
	_ = viper.BindPFlag("os_major", cmd.Flags().Lookup("os-major"))
	_ = viper.BindPFlag("merge_output_dir", cmd.Flags().Lookup("output-dir"))
	return cmd
}

func runMerge(ctx context.Context, cmd *cobra.Command, opts mergeOptions) error {
	service, err := newAppService(serviceConfig{})
	if err != nil {
		return err
	}
	result, err := service.Merge(ctx, app.MergeRequest{
		ManifestDir: resolveString(cmd, opts.ManifestDir, "manifest_dir", "manifest-dir"),
		OSMajor:     resolveInt(cmd, opts.OSMajor, "os_major", "os-major"),
		OutputDir:   resolveString(cmd, opts.OutputDir, "merge_output_dir", "output-dir"),
	})
	if err != nil {
		return err
	}
	req := result.Outcome.Requirements
	fmt.Printf("os major %d: %d hosts, %d unique packages, %d rejected\n",
		req.OSMajor, len(req.ContributingHosts), len(req.UniquePackages), len(result.Outcome.Rejected))
	for _, rejected := range result.Outcome.Rejected {
		fmt.Printf("rejected: %s: %s\n", rejected.Path, rejected.Reason)
	}
	if result.ReportPath != "" {
		fmt.Printf("wrote %s\n", result.ReportPath)
		fmt.Printf("wrote %s\n", result.PackagesPath)
	}
	return nil
}
