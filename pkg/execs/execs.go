package execs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/kfold/pkg/log"
)

var tracer = otel.Tracer("github.com/macropower/kfold/pkg/execs")

// Executor runs a [Command] with extra trailing arguments.
type Executor struct {
	cmd  Command
	args []string
}

// NewExecutor creates an [Executor] appending args to the command's own.
func NewExecutor(cmd Command, args ...string) Executor {
	all := make([]string, 0, len(cmd.Args)+len(args))
	all = append(all, cmd.Args...)
	all = append(all, args...)

	return Executor{cmd: cmd, args: all}
}

// Exec runs the command in dir.
func (e Executor) Exec(ctx context.Context, dir string) (*Result, error) {
	return e.ExecWithStdin(ctx, dir, nil)
}

// ExecWithStdin runs the command in dir, feeding stdin. When a failed
// command wrote anything, its output is returned along with the error.
func (e Executor) ExecWithStdin(ctx context.Context, dir string, stdin []byte) (*Result, error) {
	if e.cmd.Command == "" {
		return nil, ErrEmptyCommand
	}

	ctx, span := tracer.Start(ctx, "exec", trace.WithAttributes(
		attribute.String("command", e.String()),
		attribute.String("path", dir),
	))
	defer span.End()

	var stdout, stderr bytes.Buffer

	//nolint:gosec // G204: The command comes from the user's own settings.
	cmd := exec.CommandContext(ctx, e.cmd.Command, e.args...)
	cmd.Dir = dir
	cmd.Env = e.cmd.GetEnv()
	cmd.Stdin = bytes.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	logger := log.WithContext(ctx).With(
		slog.String("command", e.String()),
		slog.String("path", dir),
		slog.Duration("duration", time.Since(start)),
	)

	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err == nil {
		logger.DebugContext(ctx, "command finished")
		return res, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "command failed")

	logger.DebugContext(ctx, "command failed",
		slog.String("stderr", strings.TrimSpace(res.Stderr)),
		slog.Any("error", err),
	)

	err = fmt.Errorf("%w: %w", ErrCommandExecution, err)
	if res.Stdout == "" && res.Stderr == "" {
		return nil, err
	}

	return res, err
}

func (e Executor) String() string {
	return strings.TrimSpace(e.cmd.Command + " " + strings.Join(e.args, " "))
}
