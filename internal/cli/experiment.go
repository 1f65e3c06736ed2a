package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/macropower/kfold/api/v1beta1/configs"
	"github.com/macropower/kfold/pkg/distributor"
	"github.com/macropower/kfold/pkg/experiment"
	"github.com/macropower/kfold/pkg/ledger"
	"github.com/macropower/kfold/pkg/project"
	"github.com/macropower/kfold/pkg/scheduler"
)

// ExperimentArgs selects an experiment, either from a configuration file or
// from explicit parameters.
type ExperimentArgs struct {
	Params     experiment.Params
	ConfigPath string
}

func (ea *ExperimentArgs) AddFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&ea.ConfigPath, "config", "c", "", "Path to the experiment configuration file")
	f.StringVar(&ea.Params.DataFile, "data-file", "", "Dataset CSV file")
	f.StringVar(&ea.Params.ProjectPath, "project-path", "", "Directory the experiment directory is created in")
	f.StringVar(&ea.Params.ExperimentName, "name", "", "Experiment name")
	f.IntVar(&ea.Params.KCV, "kcv", 0, "Number of folds")
	f.StringVar(&ea.Params.TargetVariable, "target", "", "Name of the target column")
	f.IntVar(&ea.Params.NJobs, "n-jobs", 0, "Slots requested per fold for parallelizable models, -1 for all cores")
	f.StringVar(&ea.Params.QsubMail, "qsub-mail", "", "Address notified when a job aborts")
	f.StringVar(&ea.Params.QsubMem, "qsub-mem", "", "Memory requested per fold job")
	f.StringVar(&ea.Params.QsubRT, "qsub-rt", "", "Runtime requested per fold job")
	f.StringVar(&ea.Params.QsubArgs, "qsub-args", "", "Extra arguments passed to the submit command")

	err := cmd.MarkFlagFilename("config")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}

	err = cmd.MarkFlagFilename("data-file", "csv")
	if err != nil {
		panic(fmt.Errorf("mark data-file flag: %w", err))
	}
}

func (ea *ExperimentArgs) hasParams() bool {
	p := ea.Params

	return p.DataFile != "" || p.ProjectPath != "" || p.ExperimentName != "" ||
		p.TargetVariable != "" || p.KCV != 0 || p.NJobs != 0 ||
		p.QsubMail != "" || p.QsubMem != "" || p.QsubRT != "" || p.QsubArgs != ""
}

// Resolve builds the experiment configuration. Giving both a configuration
// file and explicit parameters is an error.
func (ea *ExperimentArgs) Resolve() (experiment.Config, error) {
	var params *experiment.Params
	if ea.hasParams() {
		params = &ea.Params
	}

	return experiment.Resolve(ea.ConfigPath, params) //nolint:wrapcheck // Already wrapped.
}

// Layout returns the directory layout of cfg.
func Layout(cfg experiment.Config) project.Layout {
	return project.NewLayout(cfg.ProjectPath(), cfg.ExperimentName())
}

type distributorOptions struct {
	executable string
	dryRun     bool
	noLedger   bool
}

// newDistributor wires a [distributor.Distributor] to the configured
// scheduler and ledger. The returned close function releases the ledger.
func newDistributor(
	ctx context.Context,
	settings *configs.Config,
	cfg experiment.Config,
	opts distributorOptions,
) (*distributor.Distributor, func(), error) {
	closeFn := func() {}

	executable := opts.executable
	if executable == "" {
		executable = currentExecutable()
	}

	var submitter scheduler.Submitter = scheduler.NewDryRun()
	if !opts.dryRun {
		ge, err := scheduler.NewGridEngine(settings.SubmitCommand(), scheduler.WithArgs(cfg.QsubArgs()))
		if err != nil {
			return nil, closeFn, err //nolint:wrapcheck // Already wrapped.
		}

		submitter = ge
	}

	dopts := []distributor.Opt{
		distributor.WithJobs(settings.Jobs(executable)),
	}

	if settings.LedgerEnabled() && !opts.noLedger {
		l, err := ledger.Open(ctx, Layout(cfg).LedgerPath())
		if err != nil {
			return nil, closeFn, err //nolint:wrapcheck // Already wrapped.
		}

		closeFn = func() {
			if err := l.Close(); err != nil {
				slog.Warn("close ledger", slog.Any("error", err))
			}
		}

		dopts = append(dopts, distributor.WithLedger(l))
	}

	d, err := distributor.New(cfg, submitter, dopts...)
	if err != nil {
		closeFn()
		return nil, func() {}, err //nolint:wrapcheck // Already wrapped.
	}

	return d, closeFn, nil
}

func currentExecutable() string {
	exe, err := os.Executable()
	if err != nil {
		slog.Debug("resolve executable", slog.Any("error", err))
		return cmdName
	}

	return exe
}
