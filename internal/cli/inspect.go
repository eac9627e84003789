package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
)

type inspectOptions struct {
	Format string
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect <bundle-archive>",
		Short: "Summarise the hosts, counts and packages recorded in a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.Format, "report-format", "text", "Output format (text or json)")
	_ = viper.BindPFlag("report_format", cmd.Flags().Lookup("report-format"))
	return cmd
}

func runInspect(ctx context.Context, cmd *cobra.Command, archive string, opts inspectOptions) error {
	service, err := newAppService(serviceConfig{})
	if err != nil {
		return err
	}
	result, err := service.Inspect(ctx, app.InspectRequest{ArchivePath: archive})
	if err != nil {
		return err
	}
	return printReport(resolveString(cmd, opts.Format, "report_format", "report-format"), result, func() {
		meta := result.Metadata
		fmt.Printf("bundle: %s (track %s, created %s on %s)\n", meta.BundleID, meta.OSTrack, meta.CreatedAt, meta.BuilderHost)
		if result.Sealed {
			fmt.Printf("sha256: %s\n", result.BundleHash)
		}
		fmt.Printf("hosts: %d\n", len(meta.ManifestsUsed))
		for _, host := range meta.ManifestsUsed {
			fmt.Printf("- %s (minor %d) %s\n", host.HostID, host.OSMinor, host.ManifestHash)
		}
		counts := meta.Packages
		fmt.Printf("packages: %d (updates %d, security %d, dependencies %d, %d bytes)\n",
			counts.TotalCount, counts.UpdateCount, counts.SecurityCount, counts.DependencyCount, counts.SizeBytes)
		for _, entry := range meta.PackageList {
			line := fmt.Sprintf("- %s [%s]", entry.NEVRA, entry.Type)
			if entry.AdvisoryID != "" {
				line += " " + entry.AdvisoryID
			}
			if len(entry.RequiredBy) > 0 {
				hosts := append([]string(nil), entry.RequiredBy...)
				sort.Strings(hosts)
				line += " <- " + strings.Join(hosts, ", ")
			}
			fmt.Println(line)
		}
		if !meta.Download.Complete() {
			fmt.Printf("download incomplete: %d failures\n", len(meta.Download.Failed))
		}
	})
}
