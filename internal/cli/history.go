package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/macropower/kfold/pkg/ledger"
)

type HistoryArgs struct {
	*RootArgs

	Experiment ExperimentArgs
	Script     int64
}

func NewHistoryCmd(rootArgs *RootArgs) *cobra.Command {
	args := &HistoryArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List the jobs submitted for an experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return args.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	args.Experiment.AddFlags(cmd)
	cmd.Flags().Int64Var(&args.Script, "script", 0, "Print the script of the submission with this ledger ID")

	return cmd
}

func (ha *HistoryArgs) Run(ctx context.Context, w io.Writer) error {
	cfg, err := ha.Experiment.Resolve()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	layout := Layout(cfg)

	_, err = os.Stat(layout.LedgerPath())
	if errors.Is(err, fs.ErrNotExist) {
		mustN(fmt.Fprintf(w, "No submissions recorded for %s\n", layout.Name()))
		return nil
	}

	l, err := ledger.Open(ctx, layout.LedgerPath())
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}
	defer func() {
		if err := l.Close(); err != nil {
			slog.Warn("close ledger", slog.Any("error", err))
		}
	}()

	entries, err := l.List(ctx, layout.Name())
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	if ha.Script != 0 {
		for _, e := range entries {
			if e.ID == ha.Script {
				mustN(io.WriteString(w, e.Script))
				return nil
			}
		}

		return fmt.Errorf("%w: no submission with id %d", ledger.ErrLedger, ha.Script)
	}

	if len(entries) == 0 {
		mustN(fmt.Fprintf(w, "No submissions recorded for %s\n", layout.Name()))
		return nil
	}

	mustN(fmt.Fprintln(w, historyTable(entries, time.Now())))

	return nil
}

func historyTable(entries []ledger.Entry, now time.Time) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}

			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("ID", "ROLE", "JOB", "NAME", "TASKS", "HOLD", "SUBMITTED")

	for _, e := range entries {
		t.Row(
			fmt.Sprint(e.ID),
			string(e.Role),
			e.JobID,
			e.JobName,
			orDash(e.ArrayRange),
			orDash(e.HoldOn),
			humanize.RelTime(e.SubmittedAt, now, "ago", "from now"),
		)
	}

	return t.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}
