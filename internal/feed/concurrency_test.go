package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/campus/backend/internal/models"
)

// castAsync starts a vote and returns once its remote call is parked.
func castAsync(t *testing.T, f *Feed, remote *blockingRemote, direction models.VoteValue) (pendingCall, <-chan error) {
	t.Helper()
	done := make(chan error, 1)
	go func() {
		_, err := f.CastVote(context.Background(), "r1", direction)
		done <- err
	}()
	return remote.next(t), done
}

func TestOutOfOrderResponsesLastArrivalWins(t *testing.T) {
	remote := newBlockingRemote()
	f, _ := newFeed(t, signedIn, remote, rant("r1", 10, 2, models.NoVote))

	first, firstDone := castAsync(t, f, remote, models.Upvote)
	assert.Equal(t, models.Upvote, first.next)
	second, secondDone := castAsync(t, f, remote, models.Upvote)
	assert.Equal(t, models.NoVote, second.next, "second call computes previous from the optimistic state")

	second.reply <- result{tally: models.VoteTally{Upvotes: 10, Downvotes: 2, MyVote: models.NoVote}}
	require.NoError(t, <-secondDone)
	first.reply <- result{tally: models.VoteTally{Upvotes: 11, Downvotes: 2, MyVote: models.Upvote}}
	require.NoError(t, <-firstDone)

	// the older response arrived last and overwrote the newer state
	assert.Equal(t, models.VoteTally{Upvotes: 11, Downvotes: 2, MyVote: models.Upvote}, tallyOfRant(t, f, "r1"))
}

func TestStaleResponseGuardDiscardsOlderResponses(t *testing.T) {
	remote := newBlockingRemote()
	f := New(signedIn, remote, WithStaleResponseGuard())
	f.Replace([]models.RantView{rant("r1", 10, 2, models.NoVote)})

	first, firstDone := castAsync(t, f, remote, models.Upvote)
	second, secondDone := castAsync(t, f, remote, models.Upvote)

	second.reply <- result{tally: models.VoteTally{Upvotes: 10, Downvotes: 2, MyVote: models.NoVote}}
	require.NoError(t, <-secondDone)
	first.reply <- result{tally: models.VoteTally{Upvotes: 11, Downvotes: 2, MyVote: models.Upvote}}
	require.NoError(t, <-firstDone)

	assert.Equal(t, models.VoteTally{Upvotes: 10, Downvotes: 2, MyVote: models.NoVote}, tallyOfRant(t, f, "r1"))
}

func TestStaleResponseGuardSkipsStaleRollback(t *testing.T) {
	remote := newBlockingRemote()
	f := New(signedIn, remote, WithStaleResponseGuard())
	f.Replace([]models.RantView{rant("r1", 10, 2, models.NoVote)})

	first, firstDone := castAsync(t, f, remote, models.Upvote)
	second, secondDone := castAsync(t, f, remote, models.Downvote)
	assert.Equal(t, models.Downvote, second.next)

	first.reply <- result{err: errors.New("timeout")}
	assert.ErrorIs(t, <-firstDone, ErrRemoteFailure)
	// the newer optimistic state survives the older failure
	assert.Equal(t, models.VoteTally{Upvotes: 10, Downvotes: 3, MyVote: models.Downvote}, tallyOfRant(t, f, "r1"))

	second.reply <- result{tally: models.VoteTally{Upvotes: 10, Downvotes: 3, MyVote: models.Downvote}}
	require.NoError(t, <-secondDone)
	assert.Equal(t, models.VoteTally{Upvotes: 10, Downvotes: 3, MyVote: models.Downvote}, tallyOfRant(t, f, "r1"))
}

func TestFailureRestoresValuesCapturedByThatCall(t *testing.T) {
	remote := newBlockingRemote()
	f, _ := newFeed(t, signedIn, remote, rant("r1", 10, 2, models.NoVote))

	first, firstDone := castAsync(t, f, remote, models.Upvote)
	second, secondDone := castAsync(t, f, remote, models.Downvote)

	second.reply <- result{tally: models.VoteTally{Upvotes: 10, Downvotes: 3, MyVote: models.Downvote}}
	require.NoError(t, <-secondDone)
	first.reply <- result{err: errors.New("timeout")}
	assert.ErrorIs(t, <-firstDone, ErrRemoteFailure)

	assert.Equal(t, models.VoteTally{Upvotes: 10, Downvotes: 2, MyVote: models.NoVote}, tallyOfRant(t, f, "r1"))
}
