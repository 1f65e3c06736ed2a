package scheduler_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/pkg/execs"
	"github.com/macropower/kfold/pkg/scheduler"
)

func TestQuote(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		in   string
		want string
	}{
		"safe":        {in: "/data/CONFIG_EXP", want: "/data/CONFIG_EXP"},
		"empty":       {in: "", want: "''"},
		"space":       {in: "my file", want: "'my file'"},
		"single":      {in: "it's", want: `'it'\''s'`},
		"expansion":   {in: "$HOME", want: "'$HOME'"},
		"flag":        {in: "--fold", want: "--fold"},
		"with equals": {in: "a=b,c", want: "a=b,c"},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, scheduler.Quote(tc.in))
		})
	}
}

func TestScript_Render(t *testing.T) {
	t.Parallel()

	s := scheduler.Script{
		Shell:          "/bin/bash",
		Name:           "KFOLD_EXP",
		LogsDir:        "/p/EXP/logs",
		ErrorsDir:      "/p/EXP/errors",
		Memory:         "20G",
		Runtime:        "00:30:00",
		ParallelEnv:    "threaded",
		Slots:          4,
		Mail:           "me@example.com",
		ArrayRange:     "1-5:1",
		Command:        []string{"kfold", "fold", "--config", "/p/EXP/CONFIG EXP", "--fold"},
		TaskIDVariable: "SGE_TASK_ID",
	}

	out, err := s.Bytes()
	require.NoError(t, err)

	want := `#!/bin/bash
#$ -S /bin/bash
#$ -cwd
#$ -o /p/EXP/logs
#$ -e /p/EXP/errors
#$ -N KFOLD_EXP
#$ -l h_vmem=20G
#$ -l h_rt=00:30:00
#$ -pe threaded 4
#$ -m a
#$ -M me@example.com
#$ -t 1-5:1

export OMP_NUM_THREADS=1
ulimit -c 0

exec kfold fold --config '/p/EXP/CONFIG EXP' --fold "${SGE_TASK_ID}"
`
	assert.Equal(t, want, string(out))
}

func TestScript_RenderCollector(t *testing.T) {
	t.Parallel()

	s := scheduler.Script{
		Shell:       "/bin/bash",
		Name:        "EXP_COLLECTOR",
		LogsDir:     "logs",
		ErrorsDir:   "errors",
		Memory:      "1G",
		Runtime:     "00:15:00",
		ParallelEnv: "threaded",
		HoldOn:      "KFOLD_EXP",
		Command:     []string{"kfold", "collect", "--config", "CONFIG"},
	}

	out, err := s.Bytes()
	require.NoError(t, err)

	assert.Contains(t, string(out), "#$ -pe threaded 1\n#$ -hold_jid KFOLD_EXP\n")
	assert.NotContains(t, string(out), "-m a")
	assert.NotContains(t, string(out), "-t ")
	assert.Contains(t, string(out), "exec kfold collect --config CONFIG\n")

	_, err = scheduler.Script{Name: "x"}.Bytes()
	require.Error(t, err)
}

func TestDryRun(t *testing.T) {
	t.Parallel()

	d := scheduler.NewDryRun()

	job, err := d.Submit(t.Context(), scheduler.Request{ScriptPath: "a.sh", Name: "A", ArrayRange: "1-3:1"})
	require.NoError(t, err)
	assert.Equal(t, "dry-run-1", job.ID)
	assert.Equal(t, "1-3:1", job.ArrayRange)

	job, err = d.Submit(t.Context(), scheduler.Request{ScriptPath: "b.sh", Name: "B", HoldOn: "A"})
	require.NoError(t, err)
	assert.Equal(t, "dry-run-2", job.ID)

	_, err = d.Submit(t.Context(), scheduler.Request{})
	require.ErrorIs(t, err, scheduler.ErrSubmission)

	reqs := d.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "A", reqs[0].Name)
	assert.Equal(t, "A", reqs[1].HoldOn)
}

func TestGridEngine_Args(t *testing.T) {
	t.Parallel()

	g, err := scheduler.NewGridEngine(execs.NewCommand("qsub", nil), scheduler.WithArgs(`-P proj -q "long queue"`))
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"-P", "proj", "-q", "long queue", "-t", "1-5:1", "/p/job.sh"},
		g.Args(scheduler.Request{ScriptPath: "/p/job.sh", ArrayRange: "1-5:1"}),
	)
	assert.Equal(t,
		[]string{"-P", "proj", "-q", "long queue", "-hold_jid", "KFOLD_X", "/p/c.sh"},
		g.Args(scheduler.Request{ScriptPath: "/p/c.sh", HoldOn: "KFOLD_X"}),
	)

	_, err = scheduler.NewGridEngine(execs.NewCommand("qsub", nil), scheduler.WithArgs(`-q "unterminated`))
	require.ErrorIs(t, err, scheduler.ErrSubmission)
}

func TestGridEngine_Submit(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		script  string
		wantID  string
		wantErr bool
	}{
		"array job": {
			script: `echo "Your job-array 4242.1-5:1 (\"KFOLD_X\") has been submitted"`,
			wantID: "4242",
		},
		"plain job": {
			script: `echo "Your job 77 (\"X_COLLECTOR\") has been submitted"`,
			wantID: "77",
		},
		"rejected": {
			script:  `echo "denied" >&2; exit 1`,
			wantErr: true,
		},
		"unexpected output": {
			script:  `echo "ok"`,
			wantErr: true,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cmd := execs.NewCommand("sh", []string{"PATH=/usr/bin:/bin"})
			cmd.Args = []string{"-c", tc.script, "qsub"}

			g, err := scheduler.NewGridEngine(cmd)
			require.NoError(t, err)

			job, err := g.Submit(t.Context(), scheduler.Request{
				ScriptPath: filepath.Join(t.TempDir(), "job.sh"),
				Name:       "KFOLD_X",
				ArrayRange: "1-5:1",
			})
			if tc.wantErr {
				require.ErrorIs(t, err, scheduler.ErrSubmission)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantID, job.ID)
			assert.Equal(t, "KFOLD_X", job.Name)
		})
	}
}
