package distributor

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/macropower/kfold/pkg/estimator"
	"github.com/macropower/kfold/pkg/experiment"
	"github.com/macropower/kfold/pkg/ledger"
	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/project"
	"github.com/macropower/kfold/pkg/scheduler"
)

// Jobs holds the settings used to render job scripts.
type Jobs struct {
	// Executable is the kfold binary invoked by the jobs.
	Executable       string
	Shell            string
	ParallelEnv      string
	TaskIDVariable   string
	CollectorMemory  string
	CollectorRuntime string
}

// DefaultJobs returns the Grid Engine defaults.
func DefaultJobs() Jobs {
	return Jobs{
		Executable:       "kfold",
		Shell:            "/bin/bash",
		ParallelEnv:      "threaded",
		TaskIDVariable:   "SGE_TASK_ID",
		CollectorMemory:  "1G",
		CollectorRuntime: "00:15:00",
	}
}

// Scripts holds rendered job scripts.
type Scripts struct {
	Job     []byte
	Collect []byte
}

// FoldJobName is the scheduler name of the fold array job.
func (d *Distributor) FoldJobName() string { return "KFOLD_" + d.layout.Name() }

// CollectorJobName is the scheduler name of the collector job.
func (d *Distributor) CollectorJobName() string { return d.layout.Name() + "_COLLECTOR" }

// ArrayRange is the task range of the fold array job.
func (d *Distributor) ArrayRange() string { return fmt.Sprintf("1-%d:1", d.cfg.KCV()) }

// Slots returns the number of slots requested per fold task. Models without
// a parallelizable unit get one slot; otherwise n_jobs is used, with the
// all-cores sentinel and other values below one clamped to one.
func (d *Distributor) Slots(model *estimator.Model) int {
	if model == nil || !model.Parallelizable() {
		return 1
	}

	n := d.cfg.NJobs()
	if n == experiment.AllCores || n < 1 {
		return 1
	}

	return n
}

// Render renders the fold and collector job scripts without writing or
// submitting them.
func (d *Distributor) Render(model *estimator.Model) (*Scripts, error) {
	snapshot := d.layout.ConfigSnapshot()

	job := scheduler.Script{
		Shell:          d.jobs.Shell,
		Name:           d.FoldJobName(),
		LogsDir:        d.layout.LogsDir(),
		ErrorsDir:      d.layout.ErrorsDir(),
		Memory:         d.cfg.QsubMem(),
		Runtime:        d.cfg.QsubRT(),
		ParallelEnv:    d.jobs.ParallelEnv,
		Slots:          d.Slots(model),
		Mail:           d.cfg.QsubMail(),
		ArrayRange:     d.ArrayRange(),
		Command:        []string{d.jobs.Executable, "fold", "--config", snapshot, "--fold"},
		TaskIDVariable: d.jobs.TaskIDVariable,
	}

	collect := scheduler.Script{
		Shell:       d.jobs.Shell,
		Name:        d.CollectorJobName(),
		LogsDir:     d.layout.LogsDir(),
		ErrorsDir:   d.layout.ErrorsDir(),
		Memory:      d.jobs.CollectorMemory,
		Runtime:     d.jobs.CollectorRuntime,
		ParallelEnv: d.jobs.ParallelEnv,
		Slots:       1,
		Mail:        d.cfg.QsubMail(),
		HoldOn:      d.FoldJobName(),
		Command:     []string{d.jobs.Executable, "collect", "--config", snapshot},
	}

	jobBytes, err := job.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDistribution, err)
	}

	collectBytes, err := collect.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDistribution, err)
	}

	return &Scripts{Job: jobBytes, Collect: collectBytes}, nil
}

// Submit writes both job scripts, submits the fold array job and then the
// collector job, and records the submissions.
func (d *Distributor) Submit(ctx context.Context, model *estimator.Model) (*Submission, error) {
	ctx, span := tracer.Start(ctx, "submit-jobs")
	defer span.End()

	scripts, err := d.Render(model)
	if err != nil {
		return nil, err
	}

	for path, content := range map[string][]byte{
		d.layout.JobScript():     scripts.Job,
		d.layout.CollectScript(): scripts.Collect,
	} {
		//nolint:gosec // G306: Job scripts must be executable.
		if err := os.WriteFile(path, content, 0o755); err != nil {
			return nil, fmt.Errorf("%w: write script: %w", ErrDistribution, err)
		}
	}

	foldJob, err := d.submit(ctx, ledger.RoleFolds, scripts.Job, scheduler.Request{
		ScriptPath: d.layout.JobScript(),
		Name:       d.FoldJobName(),
		ArrayRange: d.ArrayRange(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	collectorJob, err := d.submit(ctx, ledger.RoleCollector, scripts.Collect, scheduler.Request{
		ScriptPath: d.layout.CollectScript(),
		Name:       d.CollectorJobName(),
		HoldOn:     d.FoldJobName(),
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := d.layout.Mark(project.StageSubmitted); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDistribution, err)
	}

	log.WithContext(ctx).InfoContext(ctx, "submitted experiment",
		slog.String("folds", foldJob.ID),
		slog.String("collector", collectorJob.ID),
	)

	return &Submission{Folds: foldJob, Collector: collectorJob}, nil
}

func (d *Distributor) submit(ctx context.Context, role ledger.Role, script []byte, req scheduler.Request) (*scheduler.Job, error) {
	job, err := d.submitter.Submit(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDistribution, req.Name, err)
	}

	if d.ledger == nil {
		return job, nil
	}

	err = d.ledger.Record(ctx, ledger.Entry{
		Experiment:  d.layout.Name(),
		Role:        role,
		JobID:       job.ID,
		JobName:     job.Name,
		ArrayRange:  job.ArrayRange,
		HoldOn:      job.HoldOn,
		Script:      string(script),
		SubmittedAt: job.SubmittedAt,
	})
	if err != nil {
		// The job is already queued; losing the record must not fail the run.
		log.WithContext(ctx).WarnContext(ctx, "record submission",
			slog.String("job", job.ID),
			slog.Any("error", err),
		)
	}

	return job, nil
}
