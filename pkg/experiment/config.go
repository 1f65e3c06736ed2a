// Package experiment resolves and validates the configuration of a
// cross-validation experiment.
//
// A [Config] is built once, either from a two-column `key value` text file
// ([Load], [Parse]) or from explicit [Params] ([FromParams]), and is
// read-only afterwards. All derived file and job names use the sanitized
// experiment name returned by [Config.ExperimentName].
package experiment

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// ErrConfig is returned for any invalid experiment configuration.
var ErrConfig = errors.New("invalid experiment configuration")

const (
	// AllCores is the n_jobs sentinel meaning "use every available core".
	AllCores = -1

	DefaultQsubMem = "20G"
	DefaultQsubRT  = "00:30:00"
	DefaultNJobs   = 1
)

// Recognised configuration keys.
const (
	KeyDataFile       = "data_file"
	KeyProjectPath    = "project_path"
	KeyExperimentName = "experiment_name"
	KeyKCV            = "kcv"
	KeyTargetVariable = "target_variable"
	KeyNJobs          = "n_jobs"
	KeyQsubMail       = "qsub_mail"
	KeyQsubMem        = "qsub_mem"
	KeyQsubRT         = "qsub_rt"
	KeyQsubArgs       = "qsub_args"
	KeyConfigPath     = "config_path"
)

var (
	requiredKeys = []string{KeyDataFile, KeyProjectPath, KeyExperimentName}

	// directiveKeys end up in scheduler directives, where a value is a
	// single word.
	directiveKeys = []string{KeyProjectPath, KeyQsubMail, KeyQsubMem, KeyQsubRT}
)

// Params holds explicitly supplied experiment settings.
type Params struct {
	// Extra holds additional keys, preserved verbatim in the snapshot.
	Extra          map[string]string
	DataFile       string
	ProjectPath    string
	ExperimentName string
	TargetVariable string
	QsubMail       string
	QsubMem        string
	QsubRT         string
	QsubArgs       string
	KCV            int
	NJobs          int
}

// Config is a resolved experiment configuration.
type Config struct {
	values map[string]string
	path   string
}

// KV is one resolved configuration attribute.
type KV struct {
	Key   string
	Value string
}

// Load reads and parses the configuration file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	defer f.Close() //nolint:errcheck // Read-only.

	return Parse(f, path)
}

// Parse reads the two-column configuration format from r. Lines are
// trimmed; blank lines and lines starting with `#` or `//` are skipped. The
// first whitespace-separated field is the key, case-folded to lowercase, and
// the remaining fields joined by a single space form the value.
func Parse(r io.Reader, path string) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}

	text := string(data)
	if strings.Contains(text, "\n") {
		text = strings.ReplaceAll(text, "\r", "")
	} else {
		text = strings.ReplaceAll(text, "\r", "\n")
	}

	values := map[string]string{}

	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		fields := strings.Fields(line)
		values[strings.ToLower(fields[0])] = strings.Join(fields[1:], " ")
	}

	if err := sc.Err(); err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %w", ErrConfig, path, err)
	}

	delete(values, KeyConfigPath)

	c := Config{values: values, path: path}
	if err := c.validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

// FromParams builds a [Config] from explicit parameters. The project path
// becomes project_path/experiment_name, using the sanitized name.
func FromParams(p Params) (Config, error) {
	values := map[string]string{}
	for k, v := range p.Extra {
		key := strings.ToLower(k)
		if key == "" || strings.ContainsFunc(key, unicode.IsSpace) {
			return Config{}, fmt.Errorf("%w: invalid key %q", ErrConfig, k)
		}

		if v = normalize(v); v != "" {
			values[key] = v
		}
	}

	set := func(key, value string) {
		if value = normalize(value); value != "" {
			values[key] = value
		}
	}

	set(KeyDataFile, p.DataFile)
	set(KeyProjectPath, p.ProjectPath)
	set(KeyExperimentName, p.ExperimentName)
	set(KeyTargetVariable, p.TargetVariable)
	set(KeyQsubMail, p.QsubMail)
	set(KeyQsubMem, p.QsubMem)
	set(KeyQsubRT, p.QsubRT)
	set(KeyQsubArgs, p.QsubArgs)

	if p.KCV != 0 {
		values[KeyKCV] = strconv.Itoa(p.KCV)
	}

	if p.NJobs != 0 {
		values[KeyNJobs] = strconv.Itoa(p.NJobs)
	}

	delete(values, KeyConfigPath)

	c := Config{values: values}
	if err := c.validate(); err != nil {
		return Config{}, err
	}

	c.values[KeyProjectPath] = filepath.Join(c.values[KeyProjectPath], c.ExperimentName())

	return c, nil
}

// normalize collapses whitespace runs, including newlines, the way [Parse]
// reads values, so that snapshots of explicit parameters reload unchanged.
func normalize(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

// Resolve builds a [Config] from exactly one of a configuration file path or
// explicit parameters.
func Resolve(path string, params *Params) (Config, error) {
	switch {
	case path != "" && params != nil:
		return Config{}, fmt.Errorf("%w: ambiguous construction: both a config file and explicit parameters were given", ErrConfig)
	case path != "":
		return Load(path)
	case params != nil:
		return FromParams(*params)
	default:
		return Config{}, fmt.Errorf("%w: either a config file or explicit parameters are required", ErrConfig)
	}
}

func (c Config) validate() error {
	missing := []string{}
	for _, key := range requiredKeys {
		if c.values[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required keys: %s", ErrConfig, strings.Join(missing, ", "))
	}

	for _, key := range directiveKeys {
		if strings.ContainsFunc(c.values[key], unicode.IsSpace) {
			return fmt.Errorf("%w: %s must not contain whitespace: %q", ErrConfig, key, c.values[key])
		}
	}

	for _, key := range []string{KeyKCV, KeyNJobs} {
		if v, ok := c.values[key]; ok {
			if _, err := strconv.Atoi(v); err != nil {
				return fmt.Errorf("%w: %s: %w", ErrConfig, key, err)
			}
		}
	}

	return nil
}

// RequireKCV checks that the fold count is set to at least 2.
func (c Config) RequireKCV() error {
	if c.KCV() < 2 {
		return fmt.Errorf("%w: %s must be set to at least 2", ErrConfig, KeyKCV)
	}

	return nil
}

// RequireTarget checks that the target variable is set.
func (c Config) RequireTarget() error {
	if c.TargetVariable() == "" {
		return fmt.Errorf("%w: %s must be set", ErrConfig, KeyTargetVariable)
	}

	return nil
}

func (c Config) DataFile() string       { return c.values[KeyDataFile] }
func (c Config) ProjectPath() string    { return c.values[KeyProjectPath] }
func (c Config) TargetVariable() string { return c.values[KeyTargetVariable] }
func (c Config) QsubMail() string       { return c.values[KeyQsubMail] }
func (c Config) QsubArgs() string       { return c.values[KeyQsubArgs] }

// ConfigPath returns the file the configuration was loaded from, if any.
func (c Config) ConfigPath() string { return c.path }

// ExperimentName returns the sanitized experiment name.
func (c Config) ExperimentName() string {
	return Sanitize(c.values[KeyExperimentName])
}

// KCV returns the fold count, or 0 when unset.
func (c Config) KCV() int {
	return c.intValue(KeyKCV, 0)
}

// NJobs returns the requested worker count. [AllCores] means every core.
func (c Config) NJobs() int {
	return c.intValue(KeyNJobs, DefaultNJobs)
}

func (c Config) QsubMem() string {
	return c.stringValue(KeyQsubMem, DefaultQsubMem)
}

func (c Config) QsubRT() string {
	return c.stringValue(KeyQsubRT, DefaultQsubRT)
}

// Get returns the raw value of any key, including unrecognised ones.
func (c Config) Get(key string) (string, bool) {
	v, ok := c.values[strings.ToLower(key)]
	return v, ok
}

func (c Config) intValue(key string, def int) int {
	v, ok := c.values[key]
	if !ok {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func (c Config) stringValue(key, def string) string {
	if v := c.values[key]; v != "" {
		return v
	}

	return def
}

// Snapshot returns every resolved attribute except config_path, sorted by
// key. The experiment name is sanitized and defaults are materialised; unset
// optional attributes are omitted.
func (c Config) Snapshot() []KV {
	resolved := maps.Clone(c.values)
	resolved[KeyExperimentName] = c.ExperimentName()
	resolved[KeyNJobs] = strconv.Itoa(c.NJobs())
	resolved[KeyQsubMem] = c.QsubMem()
	resolved[KeyQsubRT] = c.QsubRT()

	keys := slices.Sorted(maps.Keys(resolved))

	kvs := make([]KV, 0, len(keys))
	for _, k := range keys {
		if resolved[k] == "" {
			continue
		}

		kvs = append(kvs, KV{Key: k, Value: resolved[k]})
	}

	return kvs
}

// WriteSnapshot writes [Config.Snapshot] as `key<TAB>value` lines.
func (c Config) WriteSnapshot(w io.Writer) error {
	for _, kv := range c.Snapshot() {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", kv.Key, kv.Value); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	return nil
}

// Equal reports whether both configurations resolve to the same attributes,
// ignoring config_path.
func (c Config) Equal(other Config) bool {
	return slices.Equal(c.Snapshot(), other.Snapshot())
}
