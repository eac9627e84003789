package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/core"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

type buildOptions struct {
	ManifestDir   string
	Track         string
	OutputDir     string
	WorkDir       string
	Format        string
	MinFreeBytes  uint64
	RequiredTools []string
	KeepWorkDir   bool
	Oracle        string
	CatalogFile   string
	CatalogMirror string
}

func newBuildCommand() *cobra.Command {
	opts := buildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a sealed update bundle for one OS track",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ManifestDir, "manifest-dir", "manifests", "Directory of host manifest JSON files")
	cmd.Flags().StringVar(&opts.Track, "track", "", "OS track (e.g. 8, 9, rhel9)")
	cmd.Flags().StringVar(&opts.OutputDir, "output-dir", "bundles", "Directory for sealed bundles")
	cmd.Flags().StringVar(&opts.WorkDir, "work-dir", filepath.Join("bundles", ".work"), "Scratch directory for bundle trees")
	cmd.Flags().StringVar(&opts.Format, "format", string(types.ArchiveFormatZstd), "Archive format (zst, gz, lz4)")
	cmd.Flags().Uint64Var(&opts.MinFreeBytes, "min-free-bytes", 10<<30, "Required free space on work and output dirs")
	cmd.Flags().StringSliceVar(&opts.RequiredTools, "required-tool", []string{"dnf"}, "Tools that must be on PATH")
	cmd.Flags().BoolVar(&opts.KeepWorkDir, "keep-work-dir", false, "Keep the unpacked bundle tree after sealing")
	cmd.Flags().StringVar(&opts.Oracle, "oracle", string(types.OracleKindDnf), "Package oracle (dnf or catalog)")
	cmd.Flags().StringVar(&opts.CatalogFile, "catalog-file", "", "Catalog YAML for the catalog oracle")
	cmd.Flags().StringVar(&opts.CatalogMirror, "catalog-mirror", "", "Package directory for the catalog oracle")

	_ = viper.BindPFlag("manifest_dir", cmd.Flags().Lookup("manifest-dir"))
	_ = viper.BindPFlag("track", cmd.Flags().Lookup("track"))
	_ = viper.BindPFlag("output_dir", cmd.Flags().Lookup("output-dir"))
	_ = viper.BindPFlag("work_dir", cmd.Flags().Lookup("work-dir"))
	_ = viper.BindPFlag("archive_format", cmd.Flags().Lookup("format"))
	_ = viper.BindPFlag("min_free_bytes", cmd.Flags().Lookup("min-free-bytes"))
	_ = viper.BindPFlag("required_tools", cmd.Flags().Lookup("required-tool"))
	_ = viper.BindPFlag("keep_work_dir", cmd.Flags().Lookup("keep-work-dir"))
	_ = viper.BindPFlag("oracle", cmd.Flags().Lookup("oracle"))
	_ = viper.BindPFlag("catalog_file", cmd.Flags().Lookup("catalog-file"))
	_ = viper.BindPFlag("catalog_mirror", cmd.Flags().Lookup("catalog-mirror"))

	return cmd
}

func runBuild(ctx context.Context, cmd *cobra.Command, opts buildOptions) error {
	service, err := newAppService(serviceConfig{
		Oracle:        resolveString(cmd, opts.Oracle, "oracle", "oracle"),
		CatalogFile:   resolveString(cmd, opts.CatalogFile, "catalog_file", "catalog-file"),
		CatalogMirror: resolveString(cmd, opts.CatalogMirror, "catalog_mirror", "catalog-mirror"),
	})
	if err != nil {
		return err
	}
	format, err := core.ParseArchiveFormat(resolveString(cmd, opts.Format, "archive_format", "format"))
	if err != nil {
		return err
	}
	result, err := service.Build(ctx, app.BuildRequest{
		ManifestDir:   resolveString(cmd, opts.ManifestDir, "manifest_dir", "manifest-dir"),
		Track:         resolveString(cmd, opts.Track, "track", "track"),
		OutputDir:     resolveString(cmd, opts.OutputDir, "output_dir", "output-dir"),
		WorkDir:       resolveString(cmd, opts.WorkDir, "work_dir", "work-dir"),
		Format:        format,
		MinFreeBytes:  resolveUint64(cmd, opts.MinFreeBytes, "min_free_bytes", "min-free-bytes"),
		RequiredTools: resolveStrings(cmd, opts.RequiredTools, "required_tools", "required-tool"),
		KeepWorkDir:   resolveBool(cmd, opts.KeepWorkDir, "keep_work_dir", "keep-work-dir"),
	})
	if err != nil {
		return err
	}
	counts := result.Bundle.Metadata.Packages
	fmt.Printf("bundle: %s\n", result.Bundle.ArchivePath)
	fmt.Printf("sha256: %s\n", result.Bundle.BundleHash)
	fmt.Printf("packages: %d (updates %d, security %d, dependencies %d)\n",
		counts.TotalCount, counts.UpdateCount, counts.SecurityCount, counts.DependencyCount)
	if !result.Closure.Download.Complete() {
		fmt.Printf("warning: %d packages could not be downloaded; see metadata.json\n", len(result.Closure.Download.Failed))
	}
	return nil
}
