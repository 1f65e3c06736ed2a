package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/project"
	"github.com/macropower/kfold/pkg/ui"
)

// statusDebounce coalesces bursts of filesystem events, such as a partition
// writing four files per fold, into one redraw.
const statusDebounce = 250 * time.Millisecond

const statusLogRecords = 200

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	todoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type StatusArgs struct {
	*RootArgs

	Experiment ExperimentArgs
	Watch      bool
}

func NewStatusCmd(rootArgs *RootArgs) *cobra.Command {
	args := &StatusArgs{RootArgs: rootArgs}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the state of an experiment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return args.Run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	args.Experiment.AddFlags(cmd)
	cmd.Flags().BoolVarP(&args.Watch, "watch", "w", false, "Redraw whenever the project directory changes")

	return cmd
}

func (sa *StatusArgs) Run(ctx context.Context, w io.Writer) error {
	cfg, err := sa.Experiment.Resolve()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	err = cfg.RequireKCV()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	layout := Layout(cfg)

	if !sa.Watch {
		return printStatus(w, layout, cfg.KCV(), time.Now())
	}

	// Hold log records while the status is being redrawn.
	buf := log.NewRingBuffer(statusLogRecords)

	handler, err := log.CreateHandlerWithStrings(buf, sa.LogLevel, sa.LogFormat)
	if err != nil {
		return fmt.Errorf("create log handler: %w", err)
	}

	ctx = log.IntoContext(ctx, slog.New(handler))

	err = watchStatus(ctx, w, layout, cfg.KCV())

	if buf.Truncated() {
		slog.Warn("older log records were dropped while watching")
	}

	if _, flushErr := buf.WriteTo(sa.logOutput); flushErr != nil {
		slog.Debug("flush log records", slog.Any("error", flushErr))
	}

	return err
}

func printStatus(w io.Writer, layout project.Layout, k int, now time.Time) error {
	st, err := project.Inspect(layout, k)
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	mustN(fmt.Fprintf(w, "%s %s (k=%d)\n",
		headerStyle.Render(layout.Name()), st.State, k))

	for _, stage := range []project.Stage{project.StagePartitioned, project.StageDistributed, project.StageSubmitted} {
		at, ok := layout.MarkedAt(stage)
		if !ok {
			mustN(fmt.Fprintf(w, "  %-12s %s\n", stage, todoStyle.Render("-")))
			continue
		}

		mustN(fmt.Fprintf(w, "  %-12s %s\n", stage, humanize.RelTime(at, now, "ago", "from now")))
	}

	if len(st.Folds) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle.Padding(0, 1)
				}

				return lipgloss.NewStyle().Padding(0, 1)
			}).
			Headers("FOLD", "PARTITIONED", "ESTIMATOR", "METRIC", "RESULT", "IMPORTANCES")

		for _, f := range st.Folds {
			t.Row(
				project.FoldName(f.Fold),
				check(f.Partitioned),
				check(f.Estimator),
				check(f.Metric),
				check(f.Result),
				check(f.Importances),
			)
		}

		mustN(fmt.Fprintln(w, t.String()))
	}

	results := 0
	for _, f := range st.Folds {
		if f.Result {
			results++
		}
	}

	mustN(fmt.Fprintf(w, "%d/%d folds finished", results, k))

	if st.Collected {
		mustN(fmt.Fprintf(w, ", results collected in %s", layout.Results()))
	}

	mustN(fmt.Fprintln(w))

	return nil
}

func check(ok bool) string {
	if ok {
		return doneStyle.Render("yes")
	}

	return todoStyle.Render("no")
}

func watchStatus(ctx context.Context, w io.Writer, layout project.Layout, k int) error {
	if _, err := os.Stat(layout.Root()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s does not exist, run partition first: %w", layout.Root(), err)
		}

		return fmt.Errorf("stat project: %w", err)
	}

	render := func() (string, error) {
		b := &strings.Builder{}
		err := printStatus(b, layout, k, time.Now())

		return b.String(), err
	}

	if isTerminal(w) {
		return watchStatusView(ctx, w, layout, render)
	}

	redraw := func() error {
		out, err := render()
		if err != nil {
			return err
		}

		mustN(fmt.Fprintln(w, strings.Repeat("─", 40)))
		mustN(io.WriteString(w, out))

		return nil
	}

	err := redraw()
	if err != nil {
		return err
	}

	return watchProject(ctx, layout, redraw)
}

// watchStatusView shows the status in a full-screen view that refreshes
// whenever the project changes.
func watchStatusView(ctx context.Context, w io.Writer, layout project.Layout, render ui.RenderFunc) error {
	p := ui.NewProgram(ui.NewModel(layout.Name(), render), tea.WithContext(ctx), tea.WithOutput(w))

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- watchProject(watchCtx, layout, func() error {
			p.Send(ui.RefreshMsg{})
			return nil
		})
	}()

	err := ui.Run(p)

	cancel()

	if werr := <-watchErr; werr != nil && err == nil {
		err = werr
	}

	return err
}

// watchProject calls onChange after every burst of filesystem events below
// the project root, until ctx is done or onChange fails. Fold directories
// created while watching are watched too.
func watchProject(ctx context.Context, layout project.Layout, onChange func() error) error {
	logger := log.WithContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logger.Debug("close watcher", slog.Any("error", err))
		}
	}()

	watch := func(dir string) {
		if err := watcher.Add(dir); err != nil {
			logger.Debug("watch directory", slog.String("path", dir), slog.Any("error", err))
		}
	}

	watch(layout.Root())
	watch(layout.ExperimentDir())

	folds, err := layout.FoldDirs()
	if err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	for _, i := range folds {
		watch(layout.FoldDir(i))
	}

	timer := time.NewTimer(statusDebounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					watch(event.Name)
				}
			}

			timer.Reset(statusDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			logger.Warn("watch project", slog.Any("error", err))

		case <-timer.C:
			err := onChange()
			if err != nil {
				return err
			}
		}
	}
}
