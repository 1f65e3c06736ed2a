package configs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/kfold/api/v1beta1/configs"
	"github.com/macropower/kfold/pkg/config"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cfg := configs.New()

	assert.NotNil(t, cfg)
	assert.Equal(t, "kfold.jacobcolvin.com/v1beta1", cfg.GetAPIVersion())
	assert.Equal(t, "Configuration", cfg.GetKind())
	require.NotNil(t, cfg.Scheduler)
	require.NotNil(t, cfg.Scheduler.Submit)
	assert.Equal(t, "qsub", cfg.Scheduler.Submit.Command)
	assert.True(t, cfg.LedgerEnabled())
}

func TestConfig_EnsureDefaults(t *testing.T) {
	t.Parallel()

	disabled := false
	cfg := &configs.Config{
		Ledger: &disabled,
		Scheduler: &configs.Scheduler{
			Shell:     "/bin/zsh",
			Collector: &configs.Collector{Runtime: "01:00:00"},
		},
	}

	cfg.EnsureDefaults()

	assert.False(t, cfg.LedgerEnabled())
	assert.Equal(t, "/bin/zsh", cfg.Scheduler.Shell)
	assert.Equal(t, "threaded", cfg.Scheduler.ParallelEnvironment)
	assert.Equal(t, "SGE_TASK_ID", cfg.Scheduler.TaskIDVariable)
	assert.Equal(t, "1G", cfg.Scheduler.Collector.Memory)
	assert.Equal(t, "01:00:00", cfg.Scheduler.Collector.Runtime)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		modify func(cfg *configs.Config)
		errMsg string
	}{
		"defaults": {
			modify: func(*configs.Config) {},
		},
		"wrong kind": {
			modify: func(cfg *configs.Config) {
				cfg.Kind = "Estimator"
			},
			errMsg: "unexpected document type",
		},
		"empty submit command": {
			modify: func(cfg *configs.Config) {
				cfg.Scheduler.Submit.Command = ""
			},
			errMsg: "empty command",
		},
		"bad inherit pattern": {
			modify: func(cfg *configs.Config) {
				cfg.Scheduler.Submit.InheritPattern("(")
			},
			errMsg: "envFrom[1]",
		},
		"relative shell": {
			modify: func(cfg *configs.Config) {
				cfg.Scheduler.Shell = "bash"
			},
			errMsg: "not an absolute path",
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			cfg := configs.New()
			tc.modify(cfg)

			err := cfg.Validate()
			if tc.errMsg == "" {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

//nolint:paralleltest // Sets environment variables.
func TestConfig_SubmitCommand(t *testing.T) {
	t.Setenv("SGE_ROOT", "/opt/sge")
	t.Setenv("UNRELATED_VAR", "x")

	cfg := configs.New()
	cmd := cfg.SubmitCommand()

	env := cmd.GetEnv()
	assert.Contains(t, env, "SGE_ROOT=/opt/sge")
	assert.NotContains(t, env, "UNRELATED_VAR=x")
}

func TestConfig_Jobs(t *testing.T) {
	t.Parallel()

	cfg := configs.New()
	cfg.Scheduler.ParallelEnvironment = "smp"

	jobs := cfg.Jobs("")
	assert.Equal(t, "kfold", jobs.Executable)
	assert.Equal(t, "smp", jobs.ParallelEnv)
	assert.Equal(t, "/usr/local/bin/kfold", cfg.Jobs("/usr/local/bin/kfold").Executable)
}

func TestConfig_Write(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	require.NoError(t, configs.New().Write(path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(written), "kind: Configuration")

	// An existing file is left alone.
	require.NoError(t, os.WriteFile(path, []byte("ledger: false\n"), 0o600))
	require.NoError(t, configs.New().Write(path))

	kept, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ledger: false\n", string(kept))

	require.ErrorContains(t, configs.New().Write(dir), "path is a directory")
}

func TestWriteDefault_Force(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ledger: false\n"), 0o600))

	require.NoError(t, configs.WriteDefault(path, false))

	kept, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ledger: false\n", string(kept))

	require.NoError(t, configs.WriteDefault(path, true))

	backups, err := filepath.Glob(filepath.Join(dir, "config.yaml.*.old"))
	require.NoError(t, err)
	require.Len(t, backups, 1)

	backup, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, "ledger: false\n", string(backup))

	replaced, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(replaced), "kind: Configuration")
}

//nolint:paralleltest // Uses t.Setenv.
func TestGetPath(t *testing.T) {
	tcs := map[string]struct {
		xdg  string
		home string
		want string
	}{
		"xdg":     {xdg: "/custom/config", home: "/test/home", want: "/custom/config/kfold/config.yaml"},
		"home":    {home: "/test/home", want: "/test/home/.config/kfold/config.yaml"},
		"neither": {want: filepath.Join(os.TempDir(), "kfold", "config.yaml")}, //nolint:usetesting // Must match the host temp dir.
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", tc.xdg)
			t.Setenv("HOME", tc.home)

			assert.Equal(t, tc.want, configs.GetPath())
		})
	}
}

func TestDefaultConfigYAMLIsValid(t *testing.T) {
	t.Parallel()

	configPath := filepath.Join(t.TempDir(), "default-config.yaml")

	err := configs.WriteDefault(configPath, false)
	require.NoError(t, err)

	cl, err := config.NewLoaderFromFile(configPath, configs.New, configs.DefaultValidator)
	require.NoError(t, err)

	require.NoError(t, cl.Validate())

	cfg, err := cl.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	cfgYAML, err := cfg.MarshalYAML()
	require.NoError(t, err)

	defaultCfgYAML, err := configs.New().MarshalYAML()
	require.NoError(t, err)

	assert.YAMLEq(t, string(defaultCfgYAML), string(cfgYAML), "Default config should match the loaded config")
}

func TestConfig_MarshalYAML(t *testing.T) {
	t.Parallel()

	cfg := configs.New()

	data, err := cfg.MarshalYAML()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	yamlStr := string(data)
	assert.Contains(t, yamlStr, "apiVersion: kfold.jacobcolvin.com/v1beta1")
	assert.Contains(t, yamlStr, "kind: Configuration")
	assert.Contains(t, yamlStr, "parallelEnvironment: threaded")
}

func TestEmbeddedConfigMatchesSourceFile(t *testing.T) {
	t.Parallel()

	sourceConfig, err := os.ReadFile("config.yaml")
	require.NoError(t, err)

	embeddedConfigPath := filepath.Join(t.TempDir(), "embedded-config.yaml")

	err = configs.WriteDefault(embeddedConfigPath, false)
	require.NoError(t, err)

	embeddedConfig, err := os.ReadFile(embeddedConfigPath)
	require.NoError(t, err)

	assert.Equal(t, string(sourceConfig), string(embeddedConfig))
}
