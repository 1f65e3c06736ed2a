// Package project derives every path of an experiment's on-disk layout and
// infers the experiment's progress from what is present on disk.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrFold is returned for an invalid fold identifier.
var ErrFold = errors.New("invalid fold")

// Partition artifact names inside a fold directory.
const (
	TrainInput       = "TRAIN_INPUT.csv"
	TrainOutput      = "TRAIN_OUTPUT.csv"
	ValidationInput  = "VALIDATION_INPUT.csv"
	ValidationOutput = "VALIDATION_OUTPUT.csv"
)

const (
	ResultsFile     = "RESULTS.csv"
	ImportancesFile = "IMPORTANCES.csv"
	ledgerFile      = "ledger.db"
)

var foldDirPattern = regexp.MustCompile(`^fold(\d+)$`)

// Layout computes the paths of one experiment rooted at a project directory.
type Layout struct {
	root string
	name string
}

// NewLayout creates a [Layout] for the experiment with the given sanitized
// name under root.
func NewLayout(root, name string) Layout {
	return Layout{root: root, name: name}
}

func (l Layout) Root() string { return l.root }
func (l Layout) Name() string { return l.name }

// ExperimentDir is the directory holding scheduler logs, errors and
// bookkeeping for the experiment.
func (l Layout) ExperimentDir() string { return filepath.Join(l.root, l.name) }

func (l Layout) ErrorsDir() string { return filepath.Join(l.ExperimentDir(), "errors") }
func (l Layout) LogsDir() string   { return filepath.Join(l.ExperimentDir(), "logs") }
func (l Layout) LedgerPath() string {
	return filepath.Join(l.ExperimentDir(), ledgerFile)
}

func (l Layout) ConfigSnapshot() string {
	return filepath.Join(l.root, "CONFIG_"+l.name)
}

func (l Layout) JobScript() string {
	return filepath.Join(l.root, "JOB_SCRIPT_"+l.name)
}

func (l Layout) CollectScript() string {
	return filepath.Join(l.root, "COLLECT_SCRIPT_"+l.name)
}

func (l Layout) Results() string     { return filepath.Join(l.root, ResultsFile) }
func (l Layout) Importances() string { return filepath.Join(l.root, ImportancesFile) }

func (l Layout) ErrorPlot() string {
	return filepath.Join(l.root, "SummarizedErrorPlot_"+l.name+".png")
}

func (l Layout) ImportancePlot() string {
	return filepath.Join(l.root, "SummarizedFeatureImportancePlot_"+l.name+".png")
}

// FoldName returns the directory name of fold i.
func FoldName(i int) string { return "fold" + strconv.Itoa(i) }

// FoldDir returns the directory of fold i.
func (l Layout) FoldDir(i int) string { return filepath.Join(l.root, FoldName(i)) }

// Partition returns the path of one partition artifact in fold i.
func (l Layout) Partition(i int, artifact string) string {
	return filepath.Join(l.FoldDir(i), artifact)
}

func (l Layout) Estimator(i int) string {
	return filepath.Join(l.FoldDir(i), "ESTIMATOR_"+l.name+".yaml")
}

func (l Layout) Metric(i int) string {
	return filepath.Join(l.FoldDir(i), "METRIC_"+l.name+".yaml")
}

func (l Layout) FoldResult(i int) string {
	return filepath.Join(l.FoldDir(i), fmt.Sprintf("ML_RESULT_%s_%s.csv", l.name, FoldName(i)))
}

func (l Layout) FoldImportances(i int) string {
	return filepath.Join(l.FoldDir(i), fmt.Sprintf("feature_importances_%s_%s.csv", l.name, FoldName(i)))
}

func (l Layout) FoldImportancePlot(i int) string {
	return filepath.Join(l.FoldDir(i), fmt.Sprintf("feature_importance_plot_%s_%s.png", l.name, FoldName(i)))
}

// FoldDirs returns the indices of the existing `fold{N}` directories in
// ascending order.
func (l Layout) FoldDirs() ([]int, error) {
	entries, err := os.ReadDir(l.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project dir: %w", err)
	}

	folds := []int{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		m := foldDirPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}

		i, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		folds = append(folds, i)
	}

	slices.Sort(folds)

	return folds, nil
}

// ParseFold parses a fold identifier given either as "3" or "fold3".
func ParseFold(s string) (int, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "fold")

	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrFold, s)
	}

	if i < 1 {
		return 0, fmt.Errorf("%w: %d must be at least 1", ErrFold, i)
	}

	return i, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
