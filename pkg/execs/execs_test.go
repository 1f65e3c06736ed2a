package execs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/pkg/execs"
)

func TestCommand_GetEnv(t *testing.T) {
	t.Parallel()

	base := []string{
		"PATH=/usr/bin",
		"HOME=/home/u",
		"SECRET=shh",
		"SGE_ROOT=/opt/sge",
		"SGE_CELL=default",
		"OTHER=1",
	}

	tcs := map[string]struct {
		setup func(c *execs.Command)
		want  []string
	}{
		"essentials only": {
			setup: func(*execs.Command) {},
			want:  []string{"HOME=/home/u", "PATH=/usr/bin"},
		},
		"inherit pattern": {
			setup: func(c *execs.Command) { c.InheritPattern("^SGE_") },
			want:  []string{"HOME=/home/u", "PATH=/usr/bin", "SGE_CELL=default", "SGE_ROOT=/opt/sge"},
		},
		"inherit name": {
			setup: func(c *execs.Command) {
				c.EnvFrom = append(c.EnvFrom, execs.EnvFromSource{CallerRef: &execs.CallerRef{Name: "OTHER"}})
			},
			want: []string{"HOME=/home/u", "OTHER=1", "PATH=/usr/bin"},
		},
		"static and referenced values": {
			setup: func(c *execs.Command) {
				c.Env = append(c.Env,
					execs.EnvVar{Name: "MODE", Value: "batch"},
					execs.EnvVar{Name: "ALIAS", ValueFrom: &execs.EnvVarSource{CallerRef: &execs.CallerRef{Name: "SECRET"}}},
					execs.EnvVar{Name: "MISSING", ValueFrom: &execs.EnvVarSource{CallerRef: &execs.CallerRef{Name: "NOPE"}}},
					execs.EnvVar{Value: "ignored"},
				)
			},
			want: []string{"ALIAS=shh", "HOME=/home/u", "MODE=batch", "PATH=/usr/bin"},
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			c := execs.NewCommand("qsub", base)
			tc.setup(&c)
			require.NoError(t, c.CompilePatterns())
			assert.Equal(t, tc.want, c.GetEnv())
		})
	}
}

func TestCommand_CompilePatterns(t *testing.T) {
	t.Parallel()

	c := execs.NewCommand("qsub", nil)
	c.InheritPattern("([")
	require.Error(t, c.CompilePatterns())
}

func TestExecutor(t *testing.T) {
	t.Parallel()

	c := execs.NewCommand("sh", []string{"PATH=/usr/bin:/bin"})
	c.Args = []string{"-c"}

	res, err := execs.NewExecutor(c, `read line; echo "got $line"`).ExecWithStdin(t.Context(), t.TempDir(), []byte("hello\n"))
	require.NoError(t, err)
	assert.Equal(t, "got hello\n", res.Stdout)

	res, err = execs.NewExecutor(c, "echo oops >&2; exit 3").Exec(t.Context(), t.TempDir())
	require.ErrorIs(t, err, execs.ErrCommandExecution)
	require.NotNil(t, res)
	assert.Equal(t, "oops\n", res.Stderr)

	_, err = execs.NewExecutor(execs.Command{}).Exec(t.Context(), "")
	require.ErrorIs(t, err, execs.ErrEmptyCommand)

	assert.Equal(t, "sh -c exit 0", execs.NewExecutor(c, "exit 0").String())
}
