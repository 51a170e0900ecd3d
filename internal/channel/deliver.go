package channel

import (
	"context"
	"errors"
	"fmt"
)

// Failure records one chunk that the sink rejected.
type Failure struct {
	Unit  int
	Chunk int
	Err   error
}

func (f Failure) Error() string {
	return fmt.Sprintf("unit %d chunk %d: %v", f.Unit, f.Chunk, f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Report summarizes a delivery run.
type Report struct {
	Attempted int
	Sent      int
	Failures  []Failure
}

// OK reports whether every attempted chunk was accepted.
func (r Report) OK() bool {
	return len(r.Failures) == 0
}

// Err joins all failures, or returns nil when the run was clean.
func (r Report) Err() error {
	if r.OK() {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f)
	}
	return errors.Join(errs...)
}

// Deliver sends every unit in order, splitting units longer than maxChunk
// runes with SplitMarkup so no chunk ends inside an HTML tag or entity. A failed chunk is recorded and delivery moves on to
// the next chunk. Cancellation stops the run and is recorded as a failure of
// the chunk that was about to be sent.
func Deliver(ctx context.Context, units []string, maxChunk int, sink Sink) Report {
	var report Report
	for ui, unit := range units {
		for ci, chunk := range SplitMarkup(unit, maxChunk) {
			if err := ctx.Err(); err != nil {
				report.Failures = append(report.Failures, Failure{Unit: ui, Chunk: ci, Err: err})
				return report
			}
			report.Attempted++
			if err := sink.Send(ctx, chunk); err != nil {
				report.Failures = append(report.Failures, Failure{Unit: ui, Chunk: ci, Err: err})
				continue
			}
			report.Sent++
		}
	}
	return report
}
