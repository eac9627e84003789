package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
)

type importOptions struct {
	RepoRoot      string
	ExpectedTrack string
	ChecksumFile  string
	HostOSMajor   int
}

func newImportCommand() *cobra.Command {
	opts := importOptions{}
	cmd := &cobra.Command{
		Use:   "import <bundle-archive>",
		Short: "Verify a bundle and publish it as the current repository version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.RepoRoot, "repo-root", "", "Repository root for this OS track")
	cmd.Flags().StringVar(&opts.ExpectedTrack, "expected-track", "", "Track the repository root serves")
	cmd.Flags().StringVar(&opts.ChecksumFile, "checksum-file", "", "Companion checksum file (default <archive>.sha256)")
	cmd.Flags().IntVar(&opts.HostOSMajor, "host-os-major", 0, "Override the OS major read from /etc/os-release")
	_ = viper.BindPFlag("repo_root", cmd.Flags().Lookup("repo-root"))
	_ = viper.BindPFlag("expected_track", cmd.Flags().Lookup("expected-track"))
	_ = viper.BindPFlag("checksum_file", cmd.Flags().Lookup("checksum-file"))
	_ = viper.BindPFlag("host_os_major", cmd.Flags().Lookup("host-os-major"))
	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, archive string, opts importOptions) error {
	service, err := newAppService(serviceConfig{})
	if err != nil {
		return err
	}
	result, err := service.Import(ctx, app.ImportRequest{
		ArchivePath:   archive,
		ChecksumPath:  resolveString(cmd, opts.ChecksumFile, "checksum_file", "checksum-file"),
		RepoRoot:      resolveString(cmd, opts.RepoRoot, "repo_root", "repo-root"),
		ExpectedTrack: resolveString(cmd, opts.ExpectedTrack, "expected_track", "expected-track"),
		HostOSMajor:   resolveInt(cmd, opts.HostOSMajor, "host_os_major", "host-os-major"),
	})
	if err != nil {
		return err
	}
	if result.Advanced {
		fmt.Printf("published: %s\n", result.BundleID)
	} else {
		fmt.Printf("re-imported: %s (already current)\n", result.BundleID)
	}
	if result.IndexRegenerated {
		fmt.Println("repository index was regenerated")
	}
	fmt.Printf("current: %s\nprevious: %s\n", result.State.Current, valueOrNone(result.State.Previous))
	return nil
}

func valueOrNone(value string) string {
	if value == "" {
		return "(none)"
	}
	return value
}
