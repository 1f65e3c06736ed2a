package distributor_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/pkg/collector"
	"github.com/macropower/kfold/pkg/distributor"
	"github.com/macropower/kfold/pkg/estimator"
	"github.com/macropower/kfold/pkg/executor"
	"github.com/macropower/kfold/pkg/experiment"
	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/ledger"
	"github.com/macropower/kfold/pkg/metric"
	"github.com/macropower/kfold/pkg/project"
	"github.com/macropower/kfold/pkg/scheduler"
)

func writeDataset(t *testing.T, dir string, rows int) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("x1,x2,y\n")
	for i := range rows {
		fmt.Fprintf(&b, "%d,%d,%g\n", i, (i*3)%7, float64(i)*0.5)
	}

	path := filepath.Join(dir, "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	return path
}

func newConfig(t *testing.T, dir string, p experiment.Params) experiment.Config {
	t.Helper()

	if p.DataFile == "" {
		p.DataFile = writeDataset(t, dir, 100)
	}

	p.ProjectPath = filepath.Join(dir, "projects")
	if p.ExperimentName == "" {
		p.ExperimentName = "my exp"
	}

	if p.KCV == 0 {
		p.KCV = 5
	}

	cfg, err := experiment.FromParams(p)
	require.NoError(t, err)

	return cfg
}

func newModel(t *testing.T, typ string) *estimator.Model {
	t.Helper()

	m, err := estimator.NewSingleSpec(typ, nil).Build()
	require.NoError(t, err)

	return m
}

type failingSubmitter struct{}

func (failingSubmitter) Submit(context.Context, scheduler.Request) (*scheduler.Job, error) {
	return nil, errors.New("queue closed")
}

func TestDistributor_Run(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := newConfig(t, dir, experiment.Params{TargetVariable: "y", QsubMail: "me@example.com"})

	l, err := ledger.Open(t.Context(), filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)

	t.Cleanup(func() { assert.NoError(t, l.Close()) })

	dry := scheduler.NewDryRun()
	d, err := distributor.New(cfg, dry, distributor.WithLedger(l), distributor.WithWorkers(2))
	require.NoError(t, err)

	sub, err := d.Run(t.Context(), newModel(t, estimator.TypeMean), nil)
	require.NoError(t, err)
	assert.Equal(t, "dry-run-1", sub.Folds.ID)
	assert.Equal(t, "dry-run-2", sub.Collector.ID)

	layout := d.Layout()
	assert.Equal(t, "MY_EXP", layout.Name())
	assert.Equal(t, filepath.Join(dir, "projects", "MY_EXP"), layout.Root())

	reqs := dry.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, scheduler.Request{
		ScriptPath: layout.JobScript(),
		Name:       "KFOLD_MY_EXP",
		ArrayRange: "1-5:1",
	}, reqs[0])
	assert.Equal(t, scheduler.Request{
		ScriptPath: layout.CollectScript(),
		Name:       "MY_EXP_COLLECTOR",
		HoldOn:     "KFOLD_MY_EXP",
	}, reqs[1])

	status, err := project.Inspect(layout, 5)
	require.NoError(t, err)
	assert.Equal(t, project.Submitted, status.State)
	require.Len(t, status.Folds, 5)

	for _, fs := range status.Folds {
		assert.True(t, fs.Partitioned)
		assert.True(t, fs.Estimator)
		assert.False(t, fs.Metric)
	}

	validation, err := frame.ReadFile(layout.Partition(3, project.ValidationOutput))
	require.NoError(t, err)
	assert.Equal(t, 20, validation.NumRows())

	train, err := frame.ReadFile(layout.Partition(3, project.TrainInput))
	require.NoError(t, err)
	assert.Equal(t, 80, train.NumRows())
	assert.Equal(t, []string{"x1", "x2"}, train.Names())

	m, err := estimator.Load(layout.Estimator(2))
	require.NoError(t, err)
	assert.False(t, m.IsPipeline())

	job, err := os.ReadFile(layout.JobScript())
	require.NoError(t, err)
	assert.Contains(t, string(job), "#$ -N KFOLD_MY_EXP\n")
	assert.Contains(t, string(job), "#$ -pe threaded 1\n")
	assert.Contains(t, string(job), "#$ -M me@example.com\n")
	assert.Contains(t, string(job), "--config "+layout.ConfigSnapshot()+` --fold "${SGE_TASK_ID}"`)

	collect, err := os.ReadFile(layout.CollectScript())
	require.NoError(t, err)
	assert.Contains(t, string(collect), "#$ -hold_jid KFOLD_MY_EXP\n")
	assert.Contains(t, string(collect), "#$ -l h_vmem=1G\n")

	snapshot, err := experiment.Load(layout.ConfigSnapshot())
	require.NoError(t, err)
	assert.True(t, cfg.Equal(snapshot))

	entries, err := l.List(t.Context(), "MY_EXP")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.RoleFolds, entries[0].Role)
	assert.Equal(t, string(job), entries[0].Script)
	assert.Equal(t, ledger.RoleCollector, entries[1].Role)
}

func TestDistributor_PartitionIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := newConfig(t, dir, experiment.Params{TargetVariable: "y"})

	d, err := distributor.New(cfg, scheduler.NewDryRun())
	require.NoError(t, err)

	require.NoError(t, d.Initialize(t.Context()))

	ran, err := d.Partition(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)

	// Without the dataset, partitioning would fail.
	require.NoError(t, os.Remove(cfg.DataFile()))
	require.NoError(t, d.Layout().Clear(project.StagePartitioned))

	ran, err = d.Partition(t.Context())
	require.NoError(t, err)
	assert.False(t, ran)

	require.NoError(t, os.RemoveAll(d.Layout().FoldDir(5)))

	_, err = d.Partition(t.Context())
	require.Error(t, err)
	assert.False(t, d.Layout().Marked(project.StagePartitioned))

	writeDataset(t, dir, 100)

	ran, err = d.Partition(t.Context())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.True(t, d.Layout().Marked(project.StagePartitioned))

	folds, err := d.Layout().FoldDirs()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, folds)
}

func TestDistributor_PartitionRequiresTarget(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t, t.TempDir(), experiment.Params{})

	d, err := distributor.New(cfg, scheduler.NewDryRun())
	require.NoError(t, err)

	require.NoError(t, d.Initialize(t.Context()))

	_, err = d.Partition(t.Context())
	require.ErrorIs(t, err, experiment.ErrConfig)
}

func TestDistributor_Distribute(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := newConfig(t, dir, experiment.Params{TargetVariable: "y", KCV: 3})

	d, err := distributor.New(cfg, scheduler.NewDryRun())
	require.NoError(t, err)

	require.NoError(t, d.Initialize(t.Context()))

	_, err = d.Partition(t.Context())
	require.NoError(t, err)

	model := newModel(t, estimator.TypeMean)

	require.NoError(t, d.Distribute(t.Context(), model, metric.NewSpec(metric.TypeMAE)))

	for i := 1; i <= 3; i++ {
		mt, err := metric.Load(d.Layout().Metric(i))
		require.NoError(t, err)
		assert.Equal(t, metric.TypeMAE, mt.Name())
	}

	require.NoError(t, d.Distribute(t.Context(), model, nil))

	for i := 1; i <= 3; i++ {
		assert.NoFileExists(t, d.Layout().Metric(i))
		assert.FileExists(t, d.Layout().Estimator(i))
	}

	err = d.Distribute(t.Context(), model, metric.NewSpec("nope"))
	require.ErrorIs(t, err, distributor.ErrDistribution)

	err = d.Distribute(t.Context(), nil, nil)
	require.ErrorIs(t, err, distributor.ErrDistribution)

	require.NoError(t, os.RemoveAll(d.Layout().FoldDir(2)))

	err = d.Distribute(t.Context(), model, nil)
	require.ErrorIs(t, err, distributor.ErrDistribution)
}

func TestDistributor_InitializeRewritesSnapshot(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := writeDataset(t, dir, 10)

	first := newConfig(t, dir, experiment.Params{DataFile: data})
	second := newConfig(t, dir, experiment.Params{DataFile: data, QsubMem: "8G"})

	d, err := distributor.New(first, scheduler.NewDryRun())
	require.NoError(t, err)
	require.NoError(t, d.Initialize(t.Context()))

	d, err = distributor.New(second, scheduler.NewDryRun())
	require.NoError(t, err)
	require.NoError(t, d.Initialize(t.Context()))

	b, err := os.ReadFile(d.Layout().ConfigSnapshot())
	require.NoError(t, err)
	assert.Contains(t, string(b), "qsub_mem\t8G\n")

	assert.DirExists(t, d.Layout().ErrorsDir())
	assert.DirExists(t, d.Layout().LogsDir())
}

func TestDistributor_Slots(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		typ   string
		njobs int
		want  int
	}{
		"not parallelizable": {typ: estimator.TypeMean, njobs: 8, want: 1},
		"parallelizable":     {typ: estimator.TypeStumpForest, njobs: 4, want: 4},
		"all cores":          {typ: estimator.TypeStumpForest, njobs: experiment.AllCores, want: 1},
		"below one":          {typ: estimator.TypeStumpForest, njobs: -3, want: 1},
		"default":            {typ: estimator.TypeStumpForest, want: 1},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			cfg := newConfig(t, dir, experiment.Params{DataFile: "data.csv", NJobs: tc.njobs})

			d, err := distributor.New(cfg, scheduler.NewDryRun())
			require.NoError(t, err)

			model := newModel(t, tc.typ)
			assert.Equal(t, tc.want, d.Slots(model))

			scripts, err := d.Render(model)
			require.NoError(t, err)
			assert.Contains(t, string(scripts.Job), fmt.Sprintf("#$ -pe threaded %d\n", tc.want))
			assert.Contains(t, string(scripts.Collect), "#$ -pe threaded 1\n")
		})
	}
}

func TestDistributor_SubmitFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := newConfig(t, dir, experiment.Params{TargetVariable: "y"})

	d, err := distributor.New(cfg, failingSubmitter{})
	require.NoError(t, err)

	_, err = d.Run(t.Context(), newModel(t, estimator.TypeMean), nil)
	require.ErrorIs(t, err, distributor.ErrDistribution)

	assert.False(t, d.Layout().Marked(project.StageSubmitted))
	assert.True(t, d.Layout().Marked(project.StageDistributed))
}

func TestNew_RequiresKCV(t *testing.T) {
	t.Parallel()

	cfg, err := experiment.FromParams(experiment.Params{
		DataFile:       "data.csv",
		ProjectPath:    t.TempDir(),
		ExperimentName: "exp",
	})
	require.NoError(t, err)

	_, err = distributor.New(cfg, scheduler.NewDryRun())
	require.ErrorIs(t, err, experiment.ErrConfig)
}

func TestDistributor_EndToEnd(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := newConfig(t, dir, experiment.Params{TargetVariable: "y"})

	d, err := distributor.New(cfg, scheduler.NewDryRun())
	require.NoError(t, err)

	_, err = d.Run(t.Context(), newModel(t, estimator.TypeMean), nil)
	require.NoError(t, err)

	layout := d.Layout()

	validation, err := frame.ReadFile(layout.Partition(3, project.ValidationInput))
	require.NoError(t, err)
	assert.Equal(t, 20, validation.NumRows())

	train, err := frame.ReadFile(layout.Partition(3, project.TrainInput))
	require.NoError(t, err)
	assert.Equal(t, 80, train.NumRows())

	x1Train, err := train.Column("x1")
	require.NoError(t, err)

	x1Validation, err := validation.Column("x1")
	require.NoError(t, err)

	for _, v := range x1Validation.Floats {
		assert.NotContains(t, x1Train.Floats, v)
	}

	exec := executor.New(cfg)
	for i := 1; i <= 5; i++ {
		res, err := exec.Run(t.Context(), i)
		require.NoError(t, err)
		assert.False(t, res.HasOOB)
		assert.Empty(t, res.Importances)
	}

	c, err := collector.New(cfg)
	require.NoError(t, err)

	summary, err := c.Collect(t.Context())
	require.NoError(t, err)
	assert.Nil(t, summary.Importances)

	results, err := frame.ReadFile(layout.Results())
	require.NoError(t, err)
	assert.Equal(t, 5, results.NumRows())

	assert.NoFileExists(t, layout.Importances())
	assert.NoFileExists(t, layout.ImportancePlot())
	assert.FileExists(t, layout.ErrorPlot())
}
