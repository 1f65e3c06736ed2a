package execs

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
)

var (
	// ErrCommandExecution is returned when command execution fails.
	ErrCommandExecution = errors.New("run")

	// ErrEmptyCommand is returned when a command is empty.
	ErrEmptyCommand = errors.New("empty command")
)

// essentialVars are always inherited from the caller.
var essentialVars = []string{"PATH", "HOME", "USER", "TERM", "COLORTERM"}

// Result holds the output of a command execution.
type Result struct {
	Stdout string
	Stderr string
}

// EnvFromSource is a source for inheriting environment variables.
type EnvFromSource struct {
	// CallerRef inherits variables from the caller process.
	CallerRef *CallerRef `json:"callerRef,omitempty" jsonschema:"title=Caller Reference"`
}

// CallerRef references environment variables of the caller process.
type CallerRef struct {
	regex func() (*regexp.Regexp, error)

	// Pattern is a regex matching environment variable names.
	Pattern string `json:"pattern,omitempty" jsonschema:"title=Pattern,format=regex"`
	// Name is a single environment variable name.
	Name string `json:"name,omitempty" jsonschema:"title=Name"`
}

// EnvVar defines one environment variable.
type EnvVar struct {
	// ValueFrom takes the value from another source.
	ValueFrom *EnvVarSource `json:"valueFrom,omitempty" jsonschema:"title=Value From"`
	// Name is the environment variable name.
	Name string `json:"name" jsonschema:"title=Name"`
	// Value is a static value.
	Value string `json:"value,omitempty" jsonschema:"title=Value"`
}

// EnvVarSource is a source for an environment variable value.
type EnvVarSource struct {
	// CallerRef takes the value from the caller process environment.
	CallerRef *CallerRef `json:"callerRef,omitempty" jsonschema:"title=Caller Reference"`
}

// Compile compiles the pattern, if any. The result is cached.
func (c *CallerRef) Compile() error {
	_, err := c.pattern()
	return err
}

func (c *CallerRef) pattern() (*regexp.Regexp, error) {
	if c.regex == nil {
		pattern := c.Pattern
		c.regex = sync.OnceValues(func() (*regexp.Regexp, error) {
			if pattern == "" {
				return nil, nil //nolint:nilnil // No pattern matches nothing.
			}

			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("compile pattern %q: %w", pattern, err)
			}

			return re, nil
		})
	}

	return c.regex()
}

func (c *CallerRef) matches(key string) bool {
	re, err := c.pattern()

	return err == nil && re != nil && re.MatchString(key)
}

// Command describes an external command and the environment it runs with.
type Command struct {
	baseEnv map[string]string
	// Command is the executable to run.
	Command string `json:"command" jsonschema:"title=Command,pattern=^\\S+$"`
	// Args are passed before any arguments added by the caller.
	Args []string `json:"args,omitempty" jsonschema:"title=Arguments" yaml:"args,flow,omitempty"`
	// Env defines environment variables.
	Env []EnvVar `json:"env,omitempty" jsonschema:"title=Environment Variables"`
	// EnvFrom inherits environment variables from the caller.
	EnvFrom []EnvFromSource `json:"envFrom,omitempty" jsonschema:"title=Environment Variables From"`
}

// NewCommand creates a [Command] for the executable name with the given base
// environment, usually [os.Environ].
func NewCommand(name string, baseEnv []string) Command {
	c := Command{Command: name}
	c.SetBaseEnv(baseEnv)

	return c
}

// SetBaseEnv replaces the caller environment the command inherits from.
func (c *Command) SetBaseEnv(baseEnv []string) {
	c.baseEnv = make(map[string]string, len(baseEnv))
	for _, kv := range baseEnv {
		if key, value, ok := strings.Cut(kv, "="); ok {
			c.baseEnv[key] = value
		}
	}
}

// InheritPattern adds an envFrom source matching caller variable names.
func (c *Command) InheritPattern(pattern string) {
	c.EnvFrom = append(c.EnvFrom, EnvFromSource{CallerRef: &CallerRef{Pattern: pattern}})
}

// GetEnv builds the environment for the command, sorted by name.
func (c *Command) GetEnv() []string {
	envMap := make(map[string]string)

	for key, value := range c.baseEnv {
		if slices.Contains(essentialVars, key) {
			envMap[key] = value
		}
	}

	for _, src := range c.EnvFrom {
		ref := src.CallerRef
		if ref == nil {
			continue
		}

		if ref.Pattern != "" {
			for key, value := range c.baseEnv {
				if ref.matches(key) {
					envMap[key] = value
				}
			}
		}

		if ref.Name != "" {
			if value, ok := c.baseEnv[ref.Name]; ok {
				envMap[ref.Name] = value
			}
		}
	}

	for _, v := range c.Env {
		switch {
		case v.Name == "":
			continue

		case v.Value != "":
			envMap[v.Name] = v.Value

		case v.ValueFrom != nil && v.ValueFrom.CallerRef != nil && v.ValueFrom.CallerRef.Name != "":
			if value, ok := c.baseEnv[v.ValueFrom.CallerRef.Name]; ok {
				envMap[v.Name] = value
			}
		}
	}

	env := make([]string, 0, len(envMap))
	for _, key := range slices.Sorted(maps.Keys(envMap)) {
		env = append(env, key+"="+envMap[key])
	}

	return env
}

// CompilePatterns compiles all envFrom and valueFrom patterns, reporting the
// first invalid one.
func (c *Command) CompilePatterns() error {
	for i, v := range c.Env {
		if v.ValueFrom != nil && v.ValueFrom.CallerRef != nil {
			if err := v.ValueFrom.CallerRef.Compile(); err != nil {
				return fmt.Errorf("env[%d]: %w", i, err)
			}
		}
	}

	for i, src := range c.EnvFrom {
		if src.CallerRef != nil {
			if err := src.CallerRef.Compile(); err != nil {
				return fmt.Errorf("envFrom[%d]: %w", i, err)
			}
		}
	}

	return nil
}

func (c *Command) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}
