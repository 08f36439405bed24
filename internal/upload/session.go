package upload

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/stagebox/service/internal/pending"
	"github.com/stagebox/service/internal/preview"
)

// ErrBusy is returned when a commit is requested while another is running.
var ErrBusy = errors.New("commit already in progress")

// Session owns one upload widget's state: the staged set, its preview and
// the sink commits drain into. Several sessions may coexist.
type Session struct {
	set      *pending.Set
	renderer *preview.Renderer
	coord    *Coordinator
	sink     Sink

	committing atomic.Bool
}

// NewSession wires a set, an optional renderer, a coordinator and a sink.
func NewSession(set *pending.Set, renderer *preview.Renderer, coord *Coordinator, sink Sink) *Session {
	return &Session{set: set, renderer: renderer, coord: coord, sink: sink}
}

// Set returns the session's staged set.
func (s *Session) Set() *pending.Set {
	return s.set
}

// CommitEnabled reports whether a commit may be started.
func (s *Session) CommitEnabled() bool {
	return s.set.Size() > 0 && !s.committing.Load()
}

// Commit uploads the staged items. On full success the set is cleared and
// the preview redrawn at once; on partial failure the set is left as it was
// so the user can retry.
func (s *Session) Commit(ctx context.Context) (*SessionOutcome, error) {
	if !s.committing.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.committing.Store(false)

	out, err := s.coord.Commit(ctx, s.set, s.sink)
	if err != nil {
		return nil, err
	}
	if out.Status == AllSucceeded {
		s.set.Clear()
		if s.renderer != nil {
			s.renderer.Flush()
		}
	}
	return out, nil
}
