// Package upload drains a set of staged items through an upload sink.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"

	"github.com/stagebox/service/internal/pending"
)

// ErrEmpty is returned when a commit is attempted with nothing staged.
var ErrEmpty = errors.New("nothing staged for upload")

// ProgressFunc receives byte-level progress for a single transfer.
type ProgressFunc func(sent, total int64)

// Sink performs the durable upload of one item and returns its transfer ID.
// progress may be called any number of times, from any goroutine.
type Sink interface {
	Upload(ctx context.Context, item pending.Item, progress ProgressFunc) (string, error)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, item pending.Item, progress ProgressFunc) (string, error)

func (f SinkFunc) Upload(ctx context.Context, item pending.Item, progress ProgressFunc) (string, error) {
	return f(ctx, item, progress)
}

// Snapshotter supplies the items a commit operates on.
type Snapshotter interface {
	Snapshot() []pending.Item
}

// Status is the terminal state of a commit.
type Status int

const (
	AllSucceeded Status = iota
	PartialFailure
)

func (s Status) String() string {
	if s == AllSucceeded {
		return "all succeeded"
	}
	return "partial failure"
}

// TransferError is the failure of a single item's upload.
type TransferError struct {
	Name string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("upload %q: %v", e.Name, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// Outcome is the result of one item's transfer.
type Outcome struct {
	Item       pending.Item
	Succeeded  bool
	TransferID string
	Err        error
}

// SessionOutcome is the aggregated result of a commit. Outcomes are in
// snapshot order.
type SessionOutcome struct {
	Status   Status
	Outcomes []Outcome
}

// Failed returns the outcomes that did not succeed.
func (s *SessionOutcome) Failed() []Outcome {
	var failed []Outcome
	for _, o := range s.Outcomes {
		if !o.Succeeded {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err joins the errors of all failed transfers, or returns nil.
func (s *SessionOutcome) Err() error {
	var errs []error
	for _, o := range s.Failed() {
		errs = append(errs, o.Err)
	}
	return errors.Join(errs...)
}

// Coordinator runs commits. It is safe for concurrent use.
type Coordinator struct {
	logger     *log.Logger
	onProgress func(Progress)
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithProgress registers fn to receive aggregate progress. Calls are
// serialized.
func WithProgress(fn func(Progress)) Option {
	return func(c *Coordinator) { c.onProgress = fn }
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{logger: log.Default()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.WithPrefix("upload")
	return c
}

// Commit snapshots src and uploads every item to sink concurrently. It waits
// for all transfers to settle; a failed transfer never cancels its siblings.
// The returned error is non-nil only when nothing was staged.
func (c *Coordinator) Commit(ctx context.Context, src Snapshotter, sink Sink) (*SessionOutcome, error) {
	items := src.Snapshot()
	if len(items) == 0 {
		return nil, ErrEmpty
	}

	var total int64
	for _, it := range items {
		total += it.Size()
	}
	c.logger.Info("commit started", "files", len(items), "bytes", humanize.Bytes(uint64(total)))
	start := time.Now()

	tr := newTracker(len(items), c.onProgress)
	tr.start()

	outcomes := make([]Outcome, len(items))
	var wg sync.WaitGroup
	for i, it := range items {
		wg.Add(1)
		go func(i int, it pending.Item) {
			defer wg.Done()
			defer tr.settle(i)

			id, err := sink.Upload(ctx, it, tr.callback(i))
			if err != nil {
				c.logger.Warn("transfer failed", "name", it.Name, "err", err)
				outcomes[i] = Outcome{Item: it, Err: &TransferError{Name: it.Name, Err: err}}
				return
			}
			c.logger.Debug("transfer done", "name", it.Name, "id", id)
			outcomes[i] = Outcome{Item: it, Succeeded: true, TransferID: id}
		}(i, it)
	}
	wg.Wait()

	out := &SessionOutcome{Status: AllSucceeded, Outcomes: outcomes}
	if failed := out.Failed(); len(failed) > 0 {
		out.Status = PartialFailure
		c.logger.Error("commit finished with failures", "failed", len(failed), "files", len(items), "elapsed", time.Since(start))
	} else {
		c.logger.Info("commit finished", "files", len(items), "elapsed", time.Since(start))
	}
	tr.finish(out.Status == AllSucceeded)
	return out, nil
}
