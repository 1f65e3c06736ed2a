package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/macropower/kfold/pkg/collector"
	"github.com/macropower/kfold/pkg/executor"
	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/project"
)

type PartitionArgs struct {
	*RootArgs

	Experiment ExperimentArgs
}

func NewPartitionCmd(rootArgs *RootArgs) *cobra.Command {
	args := &PartitionArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "partition",
		Short: "Initialize the project and split the dataset into folds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return args.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	args.Experiment.AddFlags(cmd)

	return cmd
}

func (pa *PartitionArgs) Run(ctx context.Context, w io.Writer) error {
	settings, err := pa.Settings()
	if err != nil {
		return err
	}

	cfg, err := pa.Experiment.Resolve()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	ctx = log.WithExperiment(ctx, cfg.ExperimentName(), 0)

	d, closeLedger, err := newDistributor(ctx, settings, cfg, distributorOptions{dryRun: true, noLedger: true})
	if err != nil {
		return err
	}
	defer closeLedger()

	err = d.Initialize(ctx)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	partitioned, err := d.Partition(ctx)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	if !partitioned {
		mustN(fmt.Fprintf(w, "%s already has %d folds in %s\n", cfg.ExperimentName(), cfg.KCV(), cfg.ProjectPath()))
		return nil
	}

	mustN(fmt.Fprintf(w, "Partitioned %s into %d folds in %s\n", cfg.ExperimentName(), cfg.KCV(), cfg.ProjectPath()))

	return nil
}

type FoldArgs struct {
	*RootArgs

	Experiment ExperimentArgs
	Fold       string
}

func NewFoldCmd(rootArgs *RootArgs) *cobra.Command {
	args := &FoldArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "fold",
		Short: "Fit and evaluate the model on one fold",
		Long: "Fit and evaluate the model on one fold. This is the body of the fold array job; " +
			"the fold is usually given by the scheduler's task index.",
		Example: `  kfold fold --config ./projects/IRIS/CONFIG_IRIS --fold "${SGE_TASK_ID}"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return args.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	args.Experiment.AddFlags(cmd)
	cmd.Flags().StringVarP(&args.Fold, "fold", "f", "", "Fold to run, as 3 or fold3")

	err := cmd.MarkFlagRequired("fold")
	if err != nil {
		panic(fmt.Errorf("mark fold flag: %w", err))
	}

	return cmd
}

func (fa *FoldArgs) Run(ctx context.Context, w io.Writer) error {
	i, err := project.ParseFold(fa.Fold)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	cfg, err := fa.Experiment.Resolve()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	ctx = log.WithExperiment(ctx, cfg.ExperimentName(), i)

	result, err := executor.New(cfg).Run(ctx, i)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	mustN(fmt.Fprintf(w, "%s %s: %s train_error=%g validation_error=%g",
		result.Experiment, project.FoldName(result.Fold), result.Metric, result.TrainError, result.ValidationError))

	if result.HasOOB {
		mustN(fmt.Fprintf(w, " oob_error=%g", result.OOBError))
	}

	mustN(fmt.Fprintln(w))

	return nil
}

type CollectArgs struct {
	*RootArgs

	Experiment ExperimentArgs
}

func NewCollectCmd(rootArgs *RootArgs) *cobra.Command {
	args := &CollectArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Summarize the results of every fold",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return args.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	args.Experiment.AddFlags(cmd)

	return cmd
}

func (ca *CollectArgs) Run(ctx context.Context, w io.Writer) error {
	cfg, err := ca.Experiment.Resolve()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	ctx = log.WithExperiment(ctx, cfg.ExperimentName(), 0)

	c, err := collector.New(cfg)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	summary, err := c.Collect(ctx)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	layout := Layout(cfg)

	mustN(fmt.Fprintf(w, "Wrote %s (%d folds)\n", layout.Results(), summary.Results.NumRows()))

	if summary.Importances != nil {
		mustN(fmt.Fprintf(w, "Wrote %s (%d features)\n", layout.Importances(), summary.Importances.NumRows()))
	}

	return nil
}
