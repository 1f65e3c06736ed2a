package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/macropower/kfold/api/v1beta1/configs"
	"github.com/macropower/kfold/pkg/config"
	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/telemetry"
	"github.com/macropower/kfold/pkg/version"
)

const (
	cmdName = "kfold"
	cmdDesc = `K-fold cross-validation experiments on Grid Engine clusters.`
)

type RootArgs struct {
	shutdown  telemetry.ShutdownFunc
	logOutput io.Writer

	LogLevel      string
	LogFormat     string
	SettingsPath  string
	TraceEndpoint string
}

func NewRootArgs() *RootArgs {
	return &RootArgs{logOutput: os.Stderr}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", "text", fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVar(&ra.SettingsPath, "settings", configs.GetPath(), "Path to the kfold settings file")
	cmd.PersistentFlags().
		StringVar(&ra.TraceEndpoint, "trace-endpoint", "", "OTLP gRPC endpoint to export traces to")

	var err error

	err = cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.MarkPersistentFlagFilename("settings", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark settings flag: %w", err))
	}
}

// Settings loads the tool settings, falling back to defaults when the file
// does not exist.
func (ra *RootArgs) Settings() (*configs.Config, error) {
	return config.LoadSettings(ra.SettingsPath) //nolint:wrapcheck // Already wrapped.
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:                cmdName,
		Short:              cmdDesc,
		SilenceUsage:       true,
		PersistentPreRunE:  setup(args),
		PersistentPostRunE: teardown(args),
	}

	args.AddFlags(cmd)

	cmd.AddCommand(
		NewRunCmd(args),
		NewPartitionCmd(args),
		NewFoldCmd(args),
		NewCollectCmd(args),
		NewStatusCmd(args),
		NewScriptCmd(args),
		NewHistoryCmd(args),
		NewInitCmd(args),
	)

	bindEnvVars(cmd)

	for _, sub := range cmd.Commands() {
		bindEnvVars(sub)
	}

	return cmd
}

func setup(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ra.logOutput = cmd.ErrOrStderr()

		logHandler, err := log.CreateHandlerWithStrings(ra.logOutput, ra.LogLevel, ra.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))
		slog.Debug("starting", slog.String("build", version.String()))

		ra.shutdown, err = telemetry.Setup(cmd.Context(), ra.TraceEndpoint, cmdName, version.GetVersion())
		if err != nil {
			return err //nolint:wrapcheck // Already wrapped.
		}

		return nil
	}
}

func teardown(ra *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		if ra.shutdown == nil {
			return nil
		}

		err := ra.shutdown(cmd.Context())
		if err != nil {
			slog.Warn("flush traces", slog.Any("error", err))
		}

		return nil
	}
}
