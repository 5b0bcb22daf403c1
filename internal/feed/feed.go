// Package feed holds a viewer's in-memory rant feed and applies votes to
// it optimistically, reconciling with the backend's authoritative tally.
//
// A vote is applied locally before the network round trip. The backend's
// answer then replaces the prediction, or, if the call fails, the rant is
// restored to exactly the state captured before the vote. Calls for the
// same rant are not serialized: when responses arrive out of order the
// last one to arrive wins, unless WithStaleResponseGuard is set.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/emilythestrangee/campus/backend/internal/models"
)

var (
	// ErrUnauthenticated is returned when no session is available. Nothing
	// is mutated and no remote call is made.
	ErrUnauthenticated = errors.New("sign in to vote")

	// ErrTargetNotFound is returned when the rant is not held by the feed.
	// It is a silent no-op: no alert, no mutation, no remote call.
	ErrTargetNotFound = errors.New("rant is not in the feed")

	// ErrRemoteFailure classifies every failure of the toggle procedure.
	ErrRemoteFailure = errors.New("vote not recorded")

	ErrInvalidDirection = errors.New("vote direction must be +1 or -1")
)

// RemoteError wraps a failed toggle call. It matches ErrRemoteFailure.
type RemoteError struct {
	RantID string
	Err    error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %v", ErrRemoteFailure, e.Err)
}

func (e *RemoteError) Unwrap() []error {
	return []error{ErrRemoteFailure, e.Err}
}

// Session exposes the signed-in viewer, if any, at call time.
type Session interface {
	Viewer() (viewerID string, ok bool)
}

// SessionFunc adapts a function to Session.
type SessionFunc func() (string, bool)

func (f SessionFunc) Viewer() (string, bool) { return f() }

// VoteToggler is the backend's atomic vote procedure: it sets the
// viewer's vote on a rant to next and returns the resulting tally.
type VoteToggler interface {
	ToggleVote(ctx context.Context, rantID string, next models.VoteValue) (models.VoteTally, error)
}

// Loader fetches the feed with the viewer's vote on every rant.
type Loader interface {
	ListRants(ctx context.Context) ([]models.RantView, error)
}

// Alerter shows a message to the user.
type Alerter func(message string)

type Option func(*Feed)

// WithAlerter routes user-facing failure messages to a.
func WithAlerter(a Alerter) Option {
	return func(f *Feed) { f.alert = a }
}

// WithStaleResponseGuard discards a vote response when a newer vote on the
// same rant was issued after it. The newer call reconciles the rant.
func WithStaleResponseGuard() Option {
	return func(f *Feed) { f.guardStale = true }
}

type Feed struct {
	session Session
	remote  VoteToggler
	alert   Alerter

	guardStale bool

	mu     sync.Mutex
	rants  []models.RantView
	seq    map[string]uint64
	closed bool
}

func New(session Session, remote VoteToggler, opts ...Option) *Feed {
	f := &Feed{
		session: session,
		remote:  remote,
		alert:   func(string) {},
		seq:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Load replaces the feed with the rants returned by loader.
func (f *Feed) Load(ctx context.Context, loader Loader) error {
	rants, err := loader.ListRants(ctx)
	if err != nil {
		f.alert("Could not load the feed: " + err.Error())
		return fmt.Errorf("load feed: %w", err)
	}
	f.Replace(rants)
	return nil
}

// Replace sets the held rants. A closed feed ignores it.
func (f *Feed) Replace(rants []models.RantView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.rants = append([]models.RantView(nil), rants...)
}

// Rants returns a snapshot of the feed in display order.
func (f *Feed) Rants() []models.RantView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.RantView(nil), f.rants...)
}

func (f *Feed) Rant(id string) (models.RantView, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.find(id); i >= 0 {
		return f.rants[i], true
	}
	return models.RantView{}, false
}

// Close drops the feed. Responses arriving afterwards are discarded.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.rants = nil
}

// CastVote casts direction on a rant. Casting the viewer's current
// direction again retracts the vote; the opposite direction replaces it.
// The returned tally is the backend's on success and the restored one when
// the backend call failed.
func (f *Feed) CastVote(ctx context.Context, rantID string, direction models.VoteValue) (models.VoteTally, error) {
	if !direction.IsDirection() {
		return models.VoteTally{}, fmt.Errorf("%w: got %d", ErrInvalidDirection, direction)
	}
	if f.session == nil {
		f.alert(ErrUnauthenticated.Error())
		return models.VoteTally{}, ErrUnauthenticated
	}
	if _, ok := f.session.Viewer(); !ok {
		f.alert(ErrUnauthenticated.Error())
		return models.VoteTally{}, ErrUnauthenticated
	}

	f.mu.Lock()
	i := f.find(rantID)
	if i < 0 {
		f.mu.Unlock()
		return models.VoteTally{}, ErrTargetNotFound
	}
	before := tallyOf(f.rants[i])
	predicted := before.Apply(models.NextVote(before.MyVote, direction))
	setTally(&f.rants[i], predicted)
	f.seq[rantID]++
	seq := f.seq[rantID]
	f.mu.Unlock()

	confirmed, err := f.remote.ToggleVote(ctx, rantID, predicted.MyVote)

	f.mu.Lock()
	current := !f.guardStale || f.seq[rantID] == seq
	i = f.find(rantID)
	if i >= 0 && current {
		if err != nil {
			setTally(&f.rants[i], before)
		} else {
			setTally(&f.rants[i], confirmed)
		}
	}
	closed := f.closed
	f.mu.Unlock()

	if err != nil {
		rerr := &RemoteError{RantID: rantID, Err: err}
		if !closed {
			f.alert(rerr.Error())
		}
		return before, rerr
	}
	return confirmed, nil
}

func (f *Feed) find(id string) int {
	for i := range f.rants {
		if f.rants[i].ID == id {
			return i
		}
	}
	return -1
}

func tallyOf(r models.RantView) models.VoteTally {
	return models.VoteTally{Upvotes: r.Upvotes, Downvotes: r.Downvotes, MyVote: r.MyVote}
}

func setTally(r *models.RantView, t models.VoteTally) {
	r.Upvotes = t.Upvotes
	r.Downvotes = t.Downvotes
	r.MyVote = t.MyVote
}
