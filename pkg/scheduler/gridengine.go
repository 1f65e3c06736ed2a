package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/macropower/kfold/pkg/execs"
	"github.com/macropower/kfold/pkg/log"
)

var (
	tracer = otel.Tracer("github.com/macropower/kfold/pkg/scheduler")

	jobIDPattern = regexp.MustCompile(`Your job(?:-array)? (\d+)`)
)

// GridEngine submits scripts with a Grid Engine `qsub` command.
type GridEngine struct {
	cmd       execs.Command
	extraArgs []string
}

// GridEngineOpt configures a [GridEngine].
type GridEngineOpt func(*GridEngine) error

// WithArgs parses a shell-style argument string and passes the arguments to
// every submission, before the scheduling flags.
func WithArgs(args string) GridEngineOpt {
	return func(g *GridEngine) error {
		if strings.TrimSpace(args) == "" {
			return nil
		}

		parsed, err := shellwords.Parse(args)
		if err != nil {
			return fmt.Errorf("parse submit args %q: %w", args, err)
		}

		g.extraArgs = append(g.extraArgs, parsed...)

		return nil
	}
}

// NewGridEngine creates a [GridEngine] submitter running cmd.
func NewGridEngine(cmd execs.Command, opts ...GridEngineOpt) (*GridEngine, error) {
	if err := cmd.CompilePatterns(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
	}

	g := &GridEngine{cmd: cmd}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
		}
	}

	return g, nil
}

// Args returns the arguments appended to the submit command for req.
func (g *GridEngine) Args(req Request) []string {
	args := append([]string{}, g.extraArgs...)
	if req.ArrayRange != "" {
		args = append(args, "-t", req.ArrayRange)
	}

	if req.HoldOn != "" {
		args = append(args, "-hold_jid", req.HoldOn)
	}

	return append(args, req.ScriptPath)
}

func (g *GridEngine) Submit(ctx context.Context, req Request) (*Job, error) {
	ctx, span := tracer.Start(ctx, "submit")
	defer span.End()

	span.SetAttributes(
		attribute.String("job.name", req.Name),
		attribute.String("job.array", req.ArrayRange),
		attribute.String("job.hold", req.HoldOn),
	)

	exec := execs.NewExecutor(g.cmd, g.Args(req)...)

	res, err := exec.Exec(ctx, filepath.Dir(req.ScriptPath))
	if err != nil {
		span.RecordError(err)

		if res != nil {
			return nil, fmt.Errorf("%w: %s: %w: %s", ErrSubmission, exec, err, strings.TrimSpace(res.Stderr))
		}

		return nil, fmt.Errorf("%w: %s: %w", ErrSubmission, exec, err)
	}

	m := jobIDPattern.FindStringSubmatch(res.Stdout)
	if m == nil {
		return nil, fmt.Errorf("%w: no job id in output %q", ErrSubmission, strings.TrimSpace(res.Stdout))
	}

	job := &Job{
		ID:          m[1],
		Name:        req.Name,
		ArrayRange:  req.ArrayRange,
		HoldOn:      req.HoldOn,
		SubmittedAt: time.Now(),
	}

	span.SetAttributes(attribute.String("job.id", job.ID))
	log.WithContext(ctx).InfoContext(ctx, "submitted job",
		slog.String("id", job.ID),
		slog.String("name", job.Name),
	)

	return job, nil
}
