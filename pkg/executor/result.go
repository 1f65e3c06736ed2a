package executor

import (
	"fmt"

	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/plot"
	"github.com/macropower/kfold/pkg/project"
)

// ResultFrame converts r to its one-row table form.
func ResultFrame(r *Result) *frame.Frame {
	cols := []*frame.Column{
		frame.NewCategory(ColumnExperiment, []string{r.Experiment}),
		frame.NewCategory(ColumnFold, []string{project.FoldName(r.Fold)}),
		frame.NewNumeric(ColumnTrainError, []float64{r.TrainError}),
		frame.NewNumeric(ColumnValidationError, []float64{r.ValidationError}),
	}

	if r.HasOOB {
		cols = append(cols, frame.NewNumeric(ColumnOOBError, []float64{r.OOBError}))
	}

	return &frame.Frame{Columns: cols}
}

// WriteResult writes the one-row result table of r to path.
func WriteResult(path string, r *Result) error {
	if err := frame.WriteFile(path, ResultFrame(r), frame.Annotate()); err != nil {
		return fmt.Errorf("%w: write result: %w", ErrFoldRun, err)
	}

	return nil
}

// ImportanceFrame converts ranked importances to a table with feature and
// importance columns, plus std when every entry has one.
func ImportanceFrame(imps []Importance) *frame.Frame {
	features := make([]string, len(imps))
	values := make([]float64, len(imps))
	stds := make([]float64, len(imps))
	withStd := len(imps) > 0

	for i, imp := range imps {
		features[i] = imp.Feature
		values[i] = imp.Importance
		stds[i] = imp.Std
		withStd = withStd && imp.HasStd
	}

	cols := []*frame.Column{
		frame.NewCategory(ColumnFeature, features),
		frame.NewNumeric(ColumnImportance, values),
	}

	if withStd {
		cols = append(cols, frame.NewNumeric(ColumnStd, stds))
	}

	return &frame.Frame{Columns: cols}
}

func (e *Executor) writeImportances(i int, imps []Importance) error {
	if len(imps) == 0 {
		return nil
	}

	f := ImportanceFrame(imps)
	if err := frame.WriteFile(e.layout.FoldImportances(i), f, frame.Annotate()); err != nil {
		return fmt.Errorf("%w: write importances: %w", ErrFoldRun, err)
	}

	bars := plot.Bars{
		Title:  "Feature importances",
		YLabel: "Importance",
		Labels: f.Columns[0].Strings,
		Values: f.Columns[1].Floats,
	}

	if len(f.Columns) > 2 {
		bars.Errors = f.Columns[2].Floats
	}

	if err := e.plotter.Bars(e.layout.FoldImportancePlot(i), bars); err != nil {
		return fmt.Errorf("%w: %w", ErrFoldRun, err)
	}

	return nil
}
