package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var envNameReplacer = strings.NewReplacer("-", "_", ".", "_")

// bindEnvVars lets every flag of cmd be set from a KFOLD_<FLAG> variable,
// e.g. --data-file from $KFOLD_DATA_FILE. Values given on the command line
// win over the environment, which wins over flag defaults. The variable name
// is appended to each flag's usage so it shows up in --help.
func bindEnvVars(cmd *cobra.Command) {
	for _, fs := range []*pflag.FlagSet{cmd.Flags(), cmd.PersistentFlags()} {
		fs.VisitAll(applyEnv)
	}
}

func applyEnv(flag *pflag.Flag) {
	name := envName(flag.Name)

	if !strings.Contains(flag.Usage, name) {
		flag.Usage += fmt.Sprintf(" ($%s)", name)
	}

	if flag.Changed {
		return
	}

	value, ok := os.LookupEnv(name)
	if !ok {
		return
	}

	// An unparsable value leaves the default in place.
	if err := flag.Value.Set(value); err != nil {
		slog.Warn("ignoring environment variable",
			slog.String("env", name),
			slog.String("flag", flag.Name),
			slog.Any("error", err),
		)
	}
}

// envName returns the variable bound to flag, e.g. "log-level" becomes
// "KFOLD_LOG_LEVEL".
func envName(flag string) string {
	return strings.ToUpper(cmdName + "_" + envNameReplacer.Replace(flag))
}
