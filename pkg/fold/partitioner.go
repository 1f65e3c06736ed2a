package fold

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/macropower/kfold/pkg/frame"
	"github.com/macropower/kfold/pkg/log"
	"github.com/macropower/kfold/pkg/project"
)

var tracer = otel.Tracer("github.com/macropower/kfold/pkg/fold")

// Partitioner writes K-fold partitions of a dataset into a project layout.
type Partitioner struct {
	layout  project.Layout
	target  string
	k       int
	workers int
}

// PartitionerOpt configures a [Partitioner].
type PartitionerOpt func(*Partitioner)

// WithWorkers bounds the number of concurrent fold writes.
func WithWorkers(n int) PartitionerOpt {
	return func(p *Partitioner) {
		if n > 0 {
			p.workers = n
		}
	}
}

// NewPartitioner creates a [Partitioner] splitting on the target column into
// k folds.
func NewPartitioner(layout project.Layout, k int, target string, opts ...PartitionerOpt) *Partitioner {
	p := &Partitioner{
		layout:  layout,
		target:  target,
		k:       k,
		workers: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Partition splits data and writes the four partition artifacts of every
// fold. Folds are written concurrently; the first failure cancels the rest
// and is returned wrapped in [ErrPartition].
func (p *Partitioner) Partition(ctx context.Context, data *frame.Frame) ([]Partition, error) {
	ctx, span := tracer.Start(ctx, "partition")
	defer span.End()

	span.SetAttributes(attribute.Int("kcv", p.k), attribute.Int("rows", data.NumRows()))

	x, y, err := data.Split(p.target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPartition, err)
	}

	parts, err := Split(data.NumRows(), p.k)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, part := range parts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			return p.writeFold(gctx, part, x, y)
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: %w", ErrPartition, err)
	}

	return parts, nil
}

func (p *Partitioner) writeFold(ctx context.Context, part Partition, x *frame.Frame, y *frame.Column) error {
	if err := os.MkdirAll(p.layout.FoldDir(part.Fold), 0o755); err != nil {
		return fmt.Errorf("fold %d: %w", part.Fold, err)
	}

	artifacts := []struct {
		data *frame.Frame
		name string
	}{
		{name: project.TrainInput, data: x.Take(part.Train)},
		{name: project.TrainOutput, data: &frame.Frame{Columns: []*frame.Column{y.Take(part.Train)}}},
		{name: project.ValidationInput, data: x.Take(part.Validation)},
		{name: project.ValidationOutput, data: &frame.Frame{Columns: []*frame.Column{y.Take(part.Validation)}}},
	}

	for _, a := range artifacts {
		if err := frame.WriteFile(p.layout.Partition(part.Fold, a.name), a.data, frame.Annotate()); err != nil {
			return fmt.Errorf("fold %d: %w", part.Fold, err)
		}
	}

	log.WithContext(ctx).DebugContext(ctx, "wrote fold",
		slog.Int("fold", part.Fold),
		slog.Int("train", len(part.Train)),
		slog.Int("validation", len(part.Validation)),
	)

	return nil
}

// LoadDataset reads the experiment data file, dropping rows with missing
// cells.
func LoadDataset(path string) (*frame.Frame, error) {
	data, err := frame.ReadFile(path, frame.DropMissing())
	if err != nil {
		return nil, fmt.Errorf("%w: load dataset: %w", ErrPartition, err)
	}

	return data, nil
}
