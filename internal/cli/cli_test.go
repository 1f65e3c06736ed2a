package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/internal/cli"
	"github.com/macropower/kfold/pkg/estimator"
	"github.com/macropower/kfold/pkg/project"
)

type fixture struct {
	dir       string
	estimator string
	params    []string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	dir := t.TempDir()

	var b strings.Builder
	b.WriteString("x1,x2,y\n")
	for i := range 60 {
		fmt.Fprintf(&b, "%d,%d,%g\n", i, (i*7)%11, float64(i)*0.25)
	}

	data := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(data, []byte(b.String()), 0o644))

	est := filepath.Join(dir, "estimator.yaml")
	require.NoError(t, estimator.NewSingleSpec(estimator.TypeMean, nil).WriteFile(est))

	return fixture{
		dir:       dir,
		estimator: est,
		params: []string{
			"--data-file", data,
			"--project-path", filepath.Join(dir, "projects"),
			"--name", "iris",
			"--target", "y",
			"--kcv", "3",
		},
	}
}

func (f fixture) settings() []string {
	return []string{"--settings", filepath.Join(f.dir, "missing", "settings.yaml")}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := cli.NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(t.Context())

	return buf.String(), err
}

func (f fixture) run(t *testing.T, sub string, extra ...string) string {
	t.Helper()

	args := append([]string{sub}, f.settings()...)
	args = append(args, f.params...)
	args = append(args, extra...)

	out, err := execute(t, args...)
	require.NoError(t, err)

	return out
}

func TestRun_DryRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out := f.run(t, "run", "--estimator", f.estimator, "--executable", "kfold", "--dry-run")
	assert.Contains(t, out, "Submitted KFOLD_IRIS as job dry-run-1 (tasks 1-3:1)")
	assert.Contains(t, out, "Submitted IRIS_COLLECTOR as job dry-run-2 (after KFOLD_IRIS)")

	root := filepath.Join(f.dir, "projects", "IRIS")
	for i := 1; i <= 3; i++ {
		assert.DirExists(t, filepath.Join(root, fmt.Sprintf("fold%d", i)))
	}

	history := f.run(t, "history")
	assert.Contains(t, history, "KFOLD_IRIS")
	assert.Contains(t, history, "IRIS_COLLECTOR")
}

func TestFoldAndCollect(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	f.run(t, "run", "--estimator", f.estimator, "--executable", "kfold", "--dry-run")

	for i := 1; i <= 3; i++ {
		out := f.run(t, "fold", "--fold", fmt.Sprintf("fold%d", i))
		assert.Contains(t, out, fmt.Sprintf("IRIS fold%d:", i))
		assert.Contains(t, out, "validation_error=")
	}

	status := f.run(t, "status")
	assert.Contains(t, status, "3/3 folds finished")

	out := f.run(t, "collect")
	assert.Contains(t, out, "(3 folds)")
	assert.FileExists(t, filepath.Join(f.dir, "projects", "IRIS", project.ResultsFile))
}

func TestCollect_MissingFolds(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	f.run(t, "partition")

	args := append([]string{"collect"}, f.settings()...)
	args = append(args, f.params...)

	_, err := execute(t, args...)
	require.Error(t, err)
}

func TestPartition(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out := f.run(t, "partition")
	assert.Contains(t, out, "Partitioned IRIS into 3 folds")

	out = f.run(t, "partition")
	assert.Contains(t, out, "IRIS already has 3 folds")

	status := f.run(t, "status")
	assert.Contains(t, status, "partitioned")
	assert.Contains(t, status, "fold3")
	assert.Contains(t, status, "0/3 folds finished")
}

func TestStatus_Watch(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	f.run(t, "partition")

	ctx, cancel := context.WithTimeout(t.Context(), 300*time.Millisecond)
	defer cancel()

	cmd := cli.NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append(append([]string{"status", "--watch"}, f.settings()...), f.params...))

	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, buf.String(), "0/3 folds finished")
}

func TestStatus_WatchMissingProject(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	args := append([]string{"status", "--watch"}, f.settings()...)
	args = append(args, f.params...)

	_, err := execute(t, args...)
	require.ErrorContains(t, err, "run partition first")
}

func TestScript(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out := f.run(t, "script", "--estimator", f.estimator, "--executable", "kfold")
	assert.Contains(t, out, "#$ -N KFOLD_IRIS")
	assert.Contains(t, out, "#$ -t 1-3:1")
	assert.Contains(t, out, "#$ -hold_jid KFOLD_IRIS")
	assert.Contains(t, out, "exec kfold fold")
}

func TestHistory_Empty(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out := f.run(t, "history")
	assert.Contains(t, out, "No submissions recorded for IRIS")
}

func TestInit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	output := filepath.Join(dir, "experiment.conf")
	estimatorOutput := filepath.Join(dir, "estimator.yaml")
	settings := filepath.Join(dir, "settings.yaml")

	args := []string{
		"init",
		"--settings", settings,
		"--no-input",
		"--output", output,
		"--estimator-output", estimatorOutput,
		"--data-file", filepath.Join(dir, "data.csv"),
		"--project-path", dir,
		"--name", "iris",
		"--target", "species",
		"--kcv", "4",
		"--write-settings",
	}

	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "Next: kfold run")

	content, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(content), "target_variable  species")
	assert.Contains(t, string(content), "kcv              4")

	assert.FileExists(t, estimatorOutput)
	assert.FileExists(t, settings)

	_, err = execute(t, args...)
	require.ErrorIs(t, err, cli.ErrExists)

	_, err = execute(t, append(args, "--force")...)
	require.NoError(t, err)
}

func TestInit_MissingTarget(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := execute(t,
		"init",
		"--no-input",
		"--output", filepath.Join(dir, "experiment.conf"),
		"--estimator-output", filepath.Join(dir, "estimator.yaml"),
		"--data-file", "data.csv",
		"--name", "iris",
	)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "experiment.conf"))
}

func TestRun_RequiresEstimator(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	args := append([]string{"run"}, f.settings()...)
	args = append(args, f.params...)

	_, err := execute(t, args...)
	require.ErrorContains(t, err, "required flag(s)")
}
