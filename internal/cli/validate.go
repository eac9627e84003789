package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
)

type validateOptions struct {
	ManifestDir string
}

func newValidateCommand() *cobra.Command {
	opts := validateOptions{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate host inventory manifests without merging",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.ManifestDir, "manifest-dir", "manifests", "Directory of host manifest JSON files")
	_ = viper.BindPFlag("manifest_dir", cmd.Flags().Lookup("manifest-dir"))
	return cmd
}

func runValidate(ctx context.Context, cmd *cobra.Command, opts validateOptions) error {
	service, err := newAppService(serviceConfig{})
	if err != nil {
		return err
	}
	result, err := service.Validate(ctx, app.ValidateRequest{
		ManifestDir: resolveString(cmd, opts.ManifestDir, "manifest_dir", "manifest-dir"),
	})
	if err != nil {
		return err
	}
	for _, path := range result.Valid {
		fmt.Printf("valid: %s\n", path)
	}
	for _, rejected := range result.Invalid {
		fmt.Printf("invalid: %s: %s\n", rejected.Path, rejected.Reason)
	}
	fmt.Printf("manifests: %d valid, %d invalid\n", len(result.Valid), len(result.Invalid))
	return nil
}
