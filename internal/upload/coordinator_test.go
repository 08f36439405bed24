package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebox/service/internal/pending"
)

var errRelay = errors.New("relay rejected")

func quietLogger() *log.Logger {
	l := log.New(io.Discard)
	l.SetLevel(log.FatalLevel)
	return l
}

func stagedSet(names ...string) *pending.Set {
	s := pending.NewSet()
	for _, n := range names {
		s.Add(pending.Item{Name: n, MIMEType: "text/plain", Content: []byte(n)})
	}
	return s
}

// fakeSink fails the items named in failing and records every call.
type fakeSink struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]bool
}

func (f *fakeSink) Upload(ctx context.Context, item pending.Item, progress ProgressFunc) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, item.Name)
	f.mu.Unlock()

	progress(item.Size()/2, item.Size())
	if f.failing[item.Name] {
		return "", errRelay
	}
	progress(item.Size(), item.Size())
	return "id-" + item.Name, nil
}

func TestCommitEmptyDoesNotCallSink(t *testing.T) {
	sink := &fakeSink{}
	c := NewCoordinator(WithLogger(quietLogger()))

	out, err := c.Commit(context.Background(), pending.NewSet(), sink)
	assert.ErrorIs(t, err, ErrEmpty)
	assert.Nil(t, out)
	assert.Empty(t, sink.calls)
}

func TestCommitAllSucceeded(t *testing.T) {
	set := stagedSet("a", "b", "c")
	sink := &fakeSink{}
	c := NewCoordinator(WithLogger(quietLogger()))

	out, err := c.Commit(context.Background(), set, sink)
	require.NoError(t, err)
	assert.Equal(t, AllSucceeded, out.Status)
	assert.Empty(t, out.Failed())
	assert.NoError(t, out.Err())
	require.Len(t, out.Outcomes, 3)
	for i, name := range []string{"a", "b", "c"} {
		assert.Equal(t, name, out.Outcomes[i].Item.Name)
		assert.Equal(t, "id-"+name, out.Outcomes[i].TransferID)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, sink.calls)

	set.Clear()
	assert.Equal(t, 0, set.Size())
}

func TestCommitPartialFailure(t *testing.T) {
	set := stagedSet("a", "b", "c", "d")
	sink := &fakeSink{failing: map[string]bool{"c": true}}
	c := NewCoordinator(WithLogger(quietLogger()))

	out, err := c.Commit(context.Background(), set, sink)
	require.NoError(t, err)
	assert.Equal(t, PartialFailure, out.Status)

	failed := out.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "c", failed[0].Item.Name)

	var te *TransferError
	require.ErrorAs(t, failed[0].Err, &te)
	assert.Equal(t, "c", te.Name)
	assert.ErrorIs(t, out.Err(), errRelay)

	succeeded := 0
	for _, o := range out.Outcomes {
		if o.Succeeded {
			succeeded++
		}
	}
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, 4, set.Size())
}

func TestCommitFailureDoesNotCancelSiblings(t *testing.T) {
	set := stagedSet("fast-fail", "slow")
	var slowFinished atomic.Bool
	sink := SinkFunc(func(ctx context.Context, it pending.Item, _ ProgressFunc) (string, error) {
		if it.Name == "fast-fail" {
			return "", errRelay
		}
		select {
		case <-time.After(30 * time.Millisecond):
			slowFinished.Store(true)
			return "ok", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	out, err := NewCoordinator(WithLogger(quietLogger())).Commit(context.Background(), set, sink)
	require.NoError(t, err)
	assert.True(t, slowFinished.Load())
	assert.True(t, out.Outcomes[1].Succeeded)
	assert.False(t, out.Outcomes[0].Succeeded)
}

func TestCommitRunsTransfersConcurrently(t *testing.T) {
	const k = 5
	set := stagedSet("1", "2", "3", "4", "5")
	var inFlight, peak atomic.Int32
	barrier := make(chan struct{})
	var once sync.Once

	sink := SinkFunc(func(ctx context.Context, it pending.Item, _ ProgressFunc) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		if n == k {
			once.Do(func() { close(barrier) })
		}
		select {
		case <-barrier:
		case <-time.After(time.Second):
		}
		inFlight.Add(-1)
		return it.Name, nil
	})

	out, err := NewCoordinator(WithLogger(quietLogger())).Commit(context.Background(), set, sink)
	require.NoError(t, err)
	assert.Equal(t, AllSucceeded, out.Status)
	assert.Equal(t, int32(k), peak.Load())
}

func TestCommitUsesSnapshot(t *testing.T) {
	set := stagedSet("a", "b")
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	sink := SinkFunc(func(ctx context.Context, it pending.Item, _ ProgressFunc) (string, error) {
		started <- struct{}{}
		<-release
		return it.Name, nil
	})

	done := make(chan *SessionOutcome)
	go func() {
		out, _ := NewCoordinator(WithLogger(quietLogger())).Commit(context.Background(), set, sink)
		done <- out
	}()
	<-started
	<-started

	set.Add(pending.Item{Name: "late", MIMEType: "text/plain"})
	_, err := set.RemoveAt(0)
	require.NoError(t, err)
	close(release)

	out := <-done
	require.Len(t, out.Outcomes, 2)
	assert.Equal(t, "a", out.Outcomes[0].Item.Name)
	assert.Equal(t, "b", out.Outcomes[1].Item.Name)
}

func TestCommitProgressNeverReaches100Early(t *testing.T) {
	const k = 4
	set := stagedSet("0", "1", "2", "3")
	gates := make([]chan struct{}, k)
	for i := range gates {
		gates[i] = make(chan struct{})
	}

	var mu sync.Mutex
	var reports []Progress
	c := NewCoordinator(WithLogger(quietLogger()), WithProgress(func(p Progress) {
		mu.Lock()
		reports = append(reports, p)
		mu.Unlock()
	}))

	sink := SinkFunc(func(ctx context.Context, it pending.Item, _ ProgressFunc) (string, error) {
		var i int
		_, _ = fmt.Sscan(it.Name, &i)
		<-gates[i]
		return it.Name, nil
	})

	done := make(chan struct{})
	go func() {
		_, _ = c.Commit(context.Background(), set, sink)
		close(done)
	}()

	last := func() Progress {
		mu.Lock()
		defer mu.Unlock()
		return reports[len(reports)-1]
	}
	for j := 1; j <= k; j++ {
		close(gates[j-1])
		want := min(99, 100*j/k)
		require.Eventually(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return len(reports) > 0 && reports[len(reports)-1].Settled >= j
		}, time.Second, time.Millisecond)
		if j < k {
			p := last()
			assert.Equal(t, want, p.Percent, "after %d of %d", j, k)
			assert.False(t, p.Determinate)
		}
	}
	<-done

	mu.Lock()
	defer mu.Unlock()
	for _, p := range reports[:len(reports)-1] {
		assert.LessOrEqual(t, p.Percent, 99)
	}
	final := reports[len(reports)-1]
	assert.Equal(t, 100, final.Percent)
	assert.True(t, final.Done())
}

func TestCommitPartialFailureNeverReports100(t *testing.T) {
	set := stagedSet("ok", "bad")
	var mu sync.Mutex
	var peak int
	c := NewCoordinator(WithLogger(quietLogger()), WithProgress(func(p Progress) {
		mu.Lock()
		peak = max(peak, p.Percent)
		mu.Unlock()
	}))

	_, err := c.Commit(context.Background(), set, &fakeSink{failing: map[string]bool{"bad": true}})
	require.NoError(t, err)
	assert.Equal(t, 99, peak)
}
