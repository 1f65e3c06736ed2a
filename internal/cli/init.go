package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/macropower/kfold/api/v1beta1/configs"
	"github.com/macropower/kfold/pkg/estimator"
	"github.com/macropower/kfold/pkg/experiment"
)

// ErrExists is returned when init would overwrite a file without --force.
var ErrExists = errors.New("file exists")

type InitArgs struct {
	*RootArgs

	Output          string
	EstimatorOutput string
	EstimatorType   string
	DataFile        string
	ProjectPath     string
	Name            string
	Target          string
	KCV             int
	Force           bool
	NoInput         bool
	WriteSettings   bool
}

func NewInitCmd(rootArgs *RootArgs) *cobra.Command {
	args := &InitArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an experiment configuration and estimator document",
		Example: `  # Answer the questions interactively:
  kfold init

  # Non-interactive:
  kfold init --no-input --data-file data.csv --project-path ./projects --name iris --target species`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return args.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&args.Output, "output", "o", "experiment.conf", "Experiment configuration file to write")
	f.StringVar(&args.EstimatorOutput, "estimator-output", "estimator.yaml", "Estimator document to write")
	f.StringVar(&args.EstimatorType, "estimator", estimator.TypeMean, "Estimator type")
	f.StringVar(&args.DataFile, "data-file", "", "Dataset CSV file")
	f.StringVar(&args.ProjectPath, "project-path", ".", "Directory holding the experiment")
	f.StringVar(&args.Name, "name", "", "Experiment name")
	f.StringVar(&args.Target, "target", "", "Name of the target column")
	f.IntVar(&args.KCV, "kcv", 5, "Number of folds")
	f.BoolVar(&args.Force, "force", false, "Overwrite existing files")
	f.BoolVar(&args.NoInput, "no-input", false, "Do not prompt, use flag values")
	f.BoolVar(&args.WriteSettings, "write-settings", false, "Also write the default settings file")

	err := cmd.RegisterFlagCompletionFunc("estimator",
		cobra.FixedCompletions(estimator.Types(), cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	return cmd
}

func (ia *InitArgs) Run(ctx context.Context, w io.Writer) error {
	if !ia.NoInput && term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec // File descriptors fit in int.
		err := ia.prompt(ctx)
		if err != nil {
			return err
		}
	}

	content, err := ia.experimentConfig()
	if err != nil {
		return err
	}

	spec := estimator.NewSingleSpec(ia.EstimatorType, nil)

	_, err = spec.Build()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	for _, path := range []string{ia.Output, ia.EstimatorOutput} {
		err = ia.checkWritable(path)
		if err != nil {
			return err
		}
	}

	//nolint:gosec // G306: Configuration is not secret.
	err = os.WriteFile(ia.Output, content, 0o644)
	if err != nil {
		return fmt.Errorf("write experiment configuration: %w", err)
	}

	err = spec.WriteFile(ia.EstimatorOutput)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	if ia.WriteSettings {
		err = configs.WriteDefault(ia.SettingsPath, ia.Force)
		if err != nil {
			return err //nolint:wrapcheck // Already wrapped.
		}
	}

	mustN(fmt.Fprintf(w, "Wrote %s and %s\n", ia.Output, ia.EstimatorOutput))
	mustN(fmt.Fprintf(w, "Next: kfold run --config %s --estimator %s\n", ia.Output, ia.EstimatorOutput))

	return nil
}

func (ia *InitArgs) prompt(ctx context.Context) error {
	kcv := strconv.Itoa(ia.KCV)

	options := huh.NewOptions(estimator.Types()...)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Dataset").
				Description("CSV file with one column per feature and the target.").
				Value(&ia.DataFile).
				Validate(required("a dataset")),
			huh.NewInput().
				Title("Target column").
				Value(&ia.Target).
				Validate(required("a target column")),
			huh.NewInput().
				Title("Experiment name").
				Value(&ia.Name).
				Validate(required("a name")),
			huh.NewInput().
				Title("Project path").
				Description("The experiment directory is created inside it.").
				Value(&ia.ProjectPath),
			huh.NewInput().
				Title("Folds").
				Value(&kcv).
				Validate(func(s string) error {
					k, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || k < 2 {
						return errors.New("enter a whole number of at least 2")
					}

					return nil
				}),
			huh.NewSelect[string]().
				Title("Estimator").
				Options(options...).
				Value(&ia.EstimatorType),
		),
	).WithShowHelp(false)

	err := form.RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("run init prompt: %w", err)
	}

	ia.KCV, err = strconv.Atoi(strings.TrimSpace(kcv))
	if err != nil {
		return fmt.Errorf("parse folds: %w", err)
	}

	return nil
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("enter %s", what)
		}

		return nil
	}
}

// experimentConfig renders the configuration file and checks that it
// parses back into a usable experiment.
func (ia *InitArgs) experimentConfig() ([]byte, error) {
	b := &strings.Builder{}
	mustN(fmt.Fprintf(b, "# kfold experiment configuration\n"))

	for _, kv := range [][2]string{
		{experiment.KeyDataFile, ia.DataFile},
		{experiment.KeyProjectPath, ia.ProjectPath},
		{experiment.KeyExperimentName, ia.Name},
		{experiment.KeyKCV, strconv.Itoa(ia.KCV)},
		{experiment.KeyTargetVariable, ia.Target},
	} {
		if strings.TrimSpace(kv[1]) == "" {
			continue
		}

		mustN(fmt.Fprintf(b, "%-16s %s\n", kv[0], strings.TrimSpace(kv[1])))
	}

	cfg, err := experiment.Parse(strings.NewReader(b.String()), ia.Output)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	err = cfg.RequireKCV()
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	err = cfg.RequireTarget()
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped.
	}

	return []byte(b.String()), nil
}

func (ia *InitArgs) checkWritable(path string) error {
	if ia.Force {
		return nil
	}

	_, err := os.Stat(path)
	if err == nil {
		return fmt.Errorf("%w: %s, use --force to overwrite", ErrExists, path)
	}

	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	return nil
}
