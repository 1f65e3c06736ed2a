// Package configs provides the kfold tool settings document.
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	_ "embed"

	"github.com/macropower/kfold/api"
	"github.com/macropower/kfold/api/v1beta1"
	"github.com/macropower/kfold/pkg/distributor"
	"github.com/macropower/kfold/pkg/execs"
	"github.com/macropower/kfold/pkg/yaml"
)

//go:generate go run ../../../internal/schemagen/main.go -o configs.v1beta1.json

// Kind is the document kind of the tool settings.
const Kind = "Configuration"

var (
	//go:embed config.yaml
	defaultConfigYAML []byte

	//go:embed configs.v1beta1.json
	schemaJSON []byte

	// ValidKinds contains the valid kind values for tool settings.
	ValidKinds = []string{Kind}

	// DefaultValidator validates tool settings against the JSON schema.
	DefaultValidator = yaml.MustNewValidator("/configs.v1beta1.json", schemaJSON)

	// ErrInvalid is returned by [Config.Validate].
	ErrInvalid = errors.New("invalid configuration")

	// Compile-time interface checks.
	_ v1beta1.Object = (*Config)(nil)
)

// Config holds the kfold tool settings.
//
//nolint:recvcheck // Must satisfy the jsonschema interface.
type Config struct {
	// Scheduler configures job script rendering and submission.
	Scheduler *Scheduler `json:"scheduler,omitempty" jsonschema:"title=Scheduler"`
	// Ledger enables recording submissions in the experiment's ledger database.
	Ledger           *bool `json:"ledger,omitempty" jsonschema:"title=Ledger"`
	v1beta1.TypeMeta `json:",inline"`
}

// Scheduler configures the cluster scheduler.
type Scheduler struct {
	// Submit is the command used to submit job scripts.
	Submit *execs.Command `json:"submit,omitempty" jsonschema:"title=Submit Command"`
	// Collector sets the resources requested by the collector job.
	Collector *Collector `json:"collector,omitempty" jsonschema:"title=Collector Job"`
	// Shell is the interpreter of the job scripts.
	Shell string `json:"shell,omitempty" jsonschema:"title=Shell"`
	// ParallelEnvironment is the parallel environment slots are requested from.
	ParallelEnvironment string `json:"parallelEnvironment,omitempty" jsonschema:"title=Parallel Environment"`
	// TaskIDVariable names the variable holding the array task index.
	TaskIDVariable string `json:"taskIDVariable,omitempty" jsonschema:"title=Task ID Variable,pattern=^[A-Za-z_][A-Za-z0-9_]*$"`
}

// Collector holds collector job resources.
type Collector struct {
	// Memory is the h_vmem request.
	Memory string `json:"memory,omitempty" jsonschema:"title=Memory"`
	// Runtime is the h_rt request.
	Runtime string `json:"runtime,omitempty" jsonschema:"title=Runtime"`
}

// New creates a new [Config] with default values.
func New() *Config {
	c := &Config{
		TypeMeta: v1beta1.NewTypeMeta(Kind),
	}
	c.EnsureDefaults()

	return c
}

// EnsureDefaults initializes unset fields to their default values.
func (c *Config) EnsureDefaults() {
	if c.Scheduler == nil {
		c.Scheduler = &Scheduler{}
	}

	c.Scheduler.EnsureDefaults()

	if c.Ledger == nil {
		enabled := true
		c.Ledger = &enabled
	}
}

// EnsureDefaults initializes unset fields to their default values.
func (s *Scheduler) EnsureDefaults() {
	jobs := distributor.DefaultJobs()

	if s.Submit == nil {
		submit := execs.NewCommand("qsub", nil)
		submit.InheritPattern("^SGE_")
		s.Submit = &submit
	}

	if s.Shell == "" {
		s.Shell = jobs.Shell
	}

	if s.ParallelEnvironment == "" {
		s.ParallelEnvironment = jobs.ParallelEnv
	}

	if s.TaskIDVariable == "" {
		s.TaskIDVariable = jobs.TaskIDVariable
	}

	if s.Collector == nil {
		s.Collector = &Collector{}
	}

	if s.Collector.Memory == "" {
		s.Collector.Memory = jobs.CollectorMemory
	}

	if s.Collector.Runtime == "" {
		s.Collector.Runtime = jobs.CollectorRuntime
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.TypeMeta.Check(Kind); err != nil {
		return err //nolint:wrapcheck // Already wrapped.
	}

	if c.Scheduler == nil {
		return nil
	}

	if c.Scheduler.Submit != nil {
		if c.Scheduler.Submit.Command == "" {
			return fmt.Errorf("%w: scheduler.submit: %w", ErrInvalid, execs.ErrEmptyCommand)
		}

		if err := c.Scheduler.Submit.CompilePatterns(); err != nil {
			return fmt.Errorf("%w: scheduler.submit: %w", ErrInvalid, err)
		}
	}

	if c.Scheduler.Shell != "" && !filepath.IsAbs(c.Scheduler.Shell) {
		return fmt.Errorf("%w: scheduler.shell: %q is not an absolute path", ErrInvalid, c.Scheduler.Shell)
	}

	return nil
}

// LedgerEnabled reports whether submissions are recorded.
func (c *Config) LedgerEnabled() bool {
	return c.Ledger == nil || *c.Ledger
}

// SubmitCommand returns the submit command bound to the caller environment.
func (c *Config) SubmitCommand() execs.Command {
	c.EnsureDefaults()

	cmd := *c.Scheduler.Submit
	cmd.SetBaseEnv(os.Environ())

	return cmd
}

// Jobs converts the scheduler settings into job script settings for the
// kfold binary at executable.
func (c *Config) Jobs(executable string) distributor.Jobs {
	c.EnsureDefaults()

	jobs := distributor.DefaultJobs()
	if executable != "" {
		jobs.Executable = executable
	}

	jobs.Shell = c.Scheduler.Shell
	jobs.ParallelEnv = c.Scheduler.ParallelEnvironment
	jobs.TaskIDVariable = c.Scheduler.TaskIDVariable
	jobs.CollectorMemory = c.Scheduler.Collector.Memory
	jobs.CollectorRuntime = c.Scheduler.Collector.Runtime

	return jobs
}

func (c Config) JSONSchemaExtend(jss *jsonschema.Schema) {
	v1beta1.ExtendSchemaWithEnums(jss, v1beta1.ValidAPIVersions, ValidKinds)
}

// MarshalYAML serializes the config to YAML.
func (c Config) MarshalYAML() ([]byte, error) {
	type alias Config

	b, err := api.MarshalYAML(alias(c))
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}

	return b, nil
}

// Write writes the config to the specified path if it doesn't already exist.
func (c Config) Write(path string) error {
	b, err := c.MarshalYAML()
	if err != nil {
		return err
	}

	err = api.WriteIfNotExists(path, b)
	if err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	return nil
}

// WriteDefault writes the embedded default config.yaml to the specified path.
func WriteDefault(path string, force bool) error {
	err := api.WriteDefaultFile(path, defaultConfigYAML, force, "configuration")
	if err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}

// GetPath returns the path to the tool settings file.
func GetPath() string {
	return api.GetConfigPath("config.yaml")
}
