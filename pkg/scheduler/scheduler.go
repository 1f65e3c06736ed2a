// Package scheduler renders cluster job scripts and submits them to a batch
// scheduler.
//
// The orchestrator only depends on the [Submitter] interface. [GridEngine]
// submits through `qsub`; [DryRun] records requests without running
// anything.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSubmission is returned when the scheduler rejects or fails a submission.
var ErrSubmission = errors.New("scheduler submission")

// Request describes one script submission.
type Request struct {
	// ScriptPath is the rendered script on disk.
	ScriptPath string
	// Name is the job name declared in the script.
	Name string
	// ArrayRange spawns one task per index, e.g. "1-5:1". Empty for a
	// plain job.
	ArrayRange string
	// HoldOn delays the job until jobs with this name finish.
	HoldOn string
}

// Job is the scheduler's handle for an accepted submission.
type Job struct {
	SubmittedAt time.Time
	ID          string
	Name        string
	ArrayRange  string
	HoldOn      string
}

// Submitter submits job scripts to a scheduler.
type Submitter interface {
	Submit(ctx context.Context, req Request) (*Job, error)
}

// DryRun records submissions without contacting a scheduler. It is safe for
// concurrent use.
type DryRun struct {
	requests []Request
	mu       sync.Mutex
}

// NewDryRun creates a [DryRun] submitter.
func NewDryRun() *DryRun {
	return &DryRun{}
}

func (d *DryRun) Submit(_ context.Context, req Request) (*Job, error) {
	if req.ScriptPath == "" {
		return nil, fmt.Errorf("%w: no script path", ErrSubmission)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.requests = append(d.requests, req)

	return &Job{
		ID:          fmt.Sprintf("dry-run-%d", len(d.requests)),
		Name:        req.Name,
		ArrayRange:  req.ArrayRange,
		HoldOn:      req.HoldOn,
		SubmittedAt: time.Now(),
	}, nil
}

// Requests returns a copy of the recorded requests in submission order.
func (d *DryRun) Requests() []Request {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]Request(nil), d.requests...)
}
