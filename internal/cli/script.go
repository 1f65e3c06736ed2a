package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/atotto/clipboard"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/kfold/pkg/estimator"
)

type ScriptArgs struct {
	*RootArgs

	Experiment    ExperimentArgs
	EstimatorPath string
	Executable    string
	Style         string
	Copy          bool
}

func NewScriptCmd(rootArgs *RootArgs) *cobra.Command {
	args := &ScriptArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "script",
		Short: "Print the job scripts an experiment would submit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return args.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	args.Experiment.AddFlags(cmd)
	cmd.Flags().StringVarP(&args.EstimatorPath, "estimator", "e", "", "Path to the estimator document")
	cmd.Flags().StringVar(&args.Executable, "executable", "", "kfold binary invoked by the jobs, defaults to this binary")
	cmd.Flags().StringVar(&args.Style, "style", "monokai", "Highlighting style used on terminals")
	cmd.Flags().BoolVar(&args.Copy, "copy", false, "Copy the scripts to the clipboard")

	err := cmd.MarkFlagRequired("estimator")
	if err != nil {
		panic(fmt.Errorf("mark estimator flag: %w", err))
	}

	err = cmd.RegisterFlagCompletionFunc("style",
		cobra.FixedCompletions(styles.Names(), cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	return cmd
}

func (sa *ScriptArgs) Run(ctx context.Context, w io.Writer) error {
	settings, err := sa.Settings()
	if err != nil {
		return err
	}

	cfg, err := sa.Experiment.Resolve()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	model, err := estimator.Load(sa.EstimatorPath)
	if err != nil {
		return fmt.Errorf("load estimator: %w", err)
	}

	d, _, err := newDistributor(ctx, settings, cfg, distributorOptions{
		executable: sa.Executable,
		dryRun:     true,
		noLedger:   true,
	})
	if err != nil {
		return err
	}

	scripts, err := d.Render(model)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	layout := d.Layout()

	buf := &bytes.Buffer{}
	mustN(fmt.Fprintf(buf, "# %s\n", layout.JobScript()))
	mustN(buf.Write(scripts.Job))
	mustN(fmt.Fprintf(buf, "\n# %s\n", layout.CollectScript()))
	mustN(buf.Write(scripts.Collect))

	if sa.Copy {
		err = clipboard.WriteAll(buf.String())
		if err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
	}

	if !isTerminal(w) {
		_, err = buf.WriteTo(w)
		if err != nil {
			return fmt.Errorf("write scripts: %w", err)
		}

		return nil
	}

	return highlight(w, buf.String(), sa.Style)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // File descriptors fit in int.
}

// highlight writes shell source to w with terminal colors matching the
// detected color profile.
func highlight(w io.Writer, src, styleName string) error {
	lexer := lexers.Get("bash")
	if lexer == nil {
		lexer = lexers.Fallback
	}

	lexer = chroma.Coalesce(lexer)

	formatterName := "noop"
	switch termenv.ColorProfile() {
	case termenv.TrueColor:
		formatterName = "terminal16m"

	case termenv.ANSI256:
		formatterName = "terminal256"

	case termenv.ANSI:
		formatterName = "terminal8"
	}

	iterator, err := lexer.Tokenise(nil, src)
	if err != nil {
		return fmt.Errorf("lexer tokenize: %w", err)
	}

	err = formatters.Get(formatterName).Format(w, styles.Get(styleName), iterator)
	if err != nil {
		return fmt.Errorf("format: %w", err)
	}

	return nil
}
