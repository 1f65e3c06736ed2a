package project

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Stage is a completed orchestration step, recorded with a marker file.
type Stage string

const (
	StagePartitioned Stage = "partitioned"
	StageDistributed Stage = "distributed"
	StageSubmitted   Stage = "submitted"
)

// MarkerPath returns the marker file of a stage.
func (l Layout) MarkerPath(s Stage) string {
	return filepath.Join(l.ExperimentDir(), "STAGE_"+string(s))
}

// Mark records that a stage completed.
func (l Layout) Mark(s Stage) error {
	stamp := time.Now().UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(l.MarkerPath(s), []byte(stamp), 0o644); err != nil {
		return fmt.Errorf("mark %s: %w", s, err)
	}

	return nil
}

// Marked reports whether a stage marker exists.
func (l Layout) Marked(s Stage) bool {
	return exists(l.MarkerPath(s))
}

// MarkedAt returns the modification time of a stage marker.
func (l Layout) MarkedAt(s Stage) (time.Time, bool) {
	info, err := os.Stat(l.MarkerPath(s))
	if err != nil {
		return time.Time{}, false
	}

	return info.ModTime(), true
}

// Clear removes a stage marker if present.
func (l Layout) Clear(s Stage) error {
	err := os.Remove(l.MarkerPath(s))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear %s: %w", s, err)
	}

	return nil
}

// State is the orchestration state of an experiment.
type State int

const (
	NotInitialized State = iota
	Initialized
	Partitioned
	Distributed
	Submitted
)

func (s State) String() string {
	switch s {
	case NotInitialized:
		return "NOT_INITIALIZED"
	case Initialized:
		return "INITIALIZED"
	case Partitioned:
		return "PARTITIONED"
	case Distributed:
		return "DISTRIBUTED"
	case Submitted:
		return "SUBMITTED"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// FoldStatus describes the artifacts present in one fold directory.
type FoldStatus struct {
	Fold        int
	Partitioned bool
	Estimator   bool
	Metric      bool
	Result      bool
	Importances bool
}

// Status is the state of an experiment derived from its directory.
type Status struct {
	Markers   map[Stage]bool
	Folds     []FoldStatus
	State     State
	K         int
	Collected bool
}

// Inspect derives the [Status] of an experiment with k folds from the
// contents of its project directory. Fold artifacts decide every state up
// to [Distributed]; [Submitted] needs the submitted marker, since scripts
// are written before the scheduler accepts them.
func Inspect(l Layout, k int) (Status, error) {
	st := Status{
		K: k,
		Markers: map[Stage]bool{
			StagePartitioned: l.Marked(StagePartitioned),
			StageDistributed: l.Marked(StageDistributed),
			StageSubmitted:   l.Marked(StageSubmitted),
		},
	}

	if !exists(l.ConfigSnapshot()) || !exists(l.ErrorsDir()) || !exists(l.LogsDir()) {
		return st, nil
	}

	st.State = Initialized

	folds, err := l.FoldDirs()
	if err != nil {
		return st, err
	}

	complete := k > 0 && len(folds) == k
	allPartitioned, allDistributed := complete, complete
	for _, i := range folds {
		fs := FoldStatus{
			Fold: i,
			Partitioned: exists(l.Partition(i, TrainInput)) &&
				exists(l.Partition(i, TrainOutput)) &&
				exists(l.Partition(i, ValidationInput)) &&
				exists(l.Partition(i, ValidationOutput)),
			Estimator:   exists(l.Estimator(i)),
			Metric:      exists(l.Metric(i)),
			Result:      exists(l.FoldResult(i)),
			Importances: exists(l.FoldImportances(i)),
		}

		allPartitioned = allPartitioned && fs.Partitioned
		allDistributed = allDistributed && fs.Estimator
		st.Folds = append(st.Folds, fs)
	}

	st.Collected = exists(l.Results())

	if !allPartitioned {
		return st, nil
	}

	st.State = Partitioned

	if !allDistributed {
		return st, nil
	}

	st.State = Distributed

	if st.Markers[StageSubmitted] {
		st.State = Submitted
	}

	return st, nil
}
