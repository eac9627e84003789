package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/adapters"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/app"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/ports"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/shared"
	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// version is set at build time via ldflags.
var version = "dev"

const envPrefix = "AIRGAP_RPM"

type RootConfig struct {
	ConfigFile  string
	LogLevel    string
	MetricsFile string
}

func Execute() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		reportError(err)
		os.Exit(exitCodeForError(err))
	}
}

func newRootCommand() *cobra.Command {
	cfg := RootConfig{}
	cmd := &cobra.Command{
		Use:           "airgap-rpm",
		Short:         "Build, verify and publish air-gapped RPM update bundles",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initConfig(cfg.ConfigFile); err != nil {
				return err
			}
			setupLogging(viper.GetString("log_level"))
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(log.Logger.WithContext(ctx))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&cfg.ConfigFile, "config", "", "Config file path")
	cmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&cfg.MetricsFile, "metrics-file", "", "Write pipeline metrics to this node-exporter textfile")
	_ = viper.BindPFlag("log_level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("metrics_file", cmd.PersistentFlags().Lookup("metrics-file"))

	cmd.AddCommand(newValidateCommand())
	cmd.AddCommand(newMergeCommand())
	cmd.AddCommand(newBuildCommand())
	cmd.AddCommand(newVerifyCommand())
	cmd.AddCommand(newStageCommand())
	cmd.AddCommand(newImportCommand())
	cmd.AddCommand(newRollbackCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newPruneCommand())
	return cmd
}

func initConfig(configFile string) error {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("failed to read config file %s", configFile)).
				WithCause(err)
		}
		return nil
	}

	viper.SetConfigName("airgap-rpm")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/airgap-rpm")
	_ = viper.ReadInConfig()
	return nil
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// serviceConfig carries the settings that choose adapters, as opposed to
// per-request inputs.
type serviceConfig struct {
	Oracle         string
	CatalogFile    string
	CatalogMirror  string
	Progress       bool
	RateLimitBytes int
}

func newAppService(cfg serviceConfig) (app.Service, error) {
	service := app.NewService()
	service.Version = version
	service.Metrics = adapters.NewMetricsTextfileAdapter(strings.TrimSpace(viper.GetString("metrics_file")))
	oracle, err := buildOracle(cfg)
	if err != nil {
		return app.Service{}, err
	}
	service.Oracle = oracle
	var progress io.Writer
	if cfg.Progress {
		progress = os.Stderr
	}
	service.Stager = adapters.NewMediaStagerAdapter(progress, cfg.RateLimitBytes)
	return service, nil
}

func buildOracle(cfg serviceConfig) (ports.UpdateOraclePort, error) {
	switch types.OracleKind(strings.ToLower(strings.TrimSpace(cfg.Oracle))) {
	case "", types.OracleKindDnf:
		return adapters.NewDnfOracleAdapter(), nil
	case types.OracleKindCatalog:
		if strings.TrimSpace(cfg.CatalogFile) == "" {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("catalog oracle requires --catalog-file")
		}
		return adapters.NewCatalogOracleAdapter(cfg.CatalogFile, cfg.CatalogMirror), nil
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported oracle %q (dnf or catalog)", cfg.Oracle))
	}
}

func reportError(err error) {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	logger.Error().Msgf("%s: %s", shared.KindOf(err), shared.ErrorMessage(err))
}

func exitCodeForError(err error) int {
	var builder *errbuilder.ErrBuilder
	if !errors.As(err, &builder) {
		return 1
	}
	switch shared.KindOf(err) {
	case types.ErrorKindValidation:
		return 2
	case types.ErrorKindEnvironment:
		return 3
	case types.ErrorKindState:
		return 4
	case types.ErrorKindIntegrity:
		return 6
	case types.ErrorKindResolution:
		return 7
	default:
		return 5
	}
}
