package upload

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagebox/service/internal/pending"
	"github.com/stagebox/service/internal/preview"
)

func TestSessionClearsOnSuccess(t *testing.T) {
	set := stagedSet("a", "b")
	view := preview.NewTableView()
	r := preview.NewRenderer(set, view, preview.Options{Window: time.Hour, Logger: quietLogger()})
	defer r.Close()
	r.Render()
	require.True(t, view.CommitEnabled())

	s := NewSession(set, r, NewCoordinator(WithLogger(quietLogger())), &fakeSink{})
	out, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AllSucceeded, out.Status)
	assert.Equal(t, 0, s.Set().Size())
	assert.Equal(t, 0, view.Len())
	assert.False(t, view.CommitEnabled())
	assert.False(t, s.CommitEnabled())
}

func TestSessionKeepsSetOnPartialFailure(t *testing.T) {
	set := stagedSet("a", "b")
	s := NewSession(set, nil, NewCoordinator(WithLogger(quietLogger())), &fakeSink{failing: map[string]bool{"a": true}})

	out, err := s.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PartialFailure, out.Status)
	assert.Equal(t, 2, set.Size())
	assert.True(t, s.CommitEnabled())
}

func TestSessionRejectsConcurrentCommit(t *testing.T) {
	set := stagedSet("a")
	release := make(chan struct{})
	started := make(chan struct{})
	sink := SinkFunc(func(ctx context.Context, it pending.Item, _ ProgressFunc) (string, error) {
		close(started)
		<-release
		return "id", nil
	})
	s := NewSession(set, nil, NewCoordinator(WithLogger(quietLogger())), sink)

	done := make(chan error)
	go func() {
		_, err := s.Commit(context.Background())
		done <- err
	}()
	<-started

	assert.False(t, s.CommitEnabled())
	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	assert.NoError(t, <-done)
}

func TestSessionEmpty(t *testing.T) {
	s := NewSession(pending.NewSet(), nil, NewCoordinator(WithLogger(quietLogger())), &fakeSink{})
	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, ErrEmpty)
	assert.False(t, s.CommitEnabled())
}
