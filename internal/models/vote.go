package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoteValue is a viewer's vote on a rant: +1, -1 or 0 for no vote.
type VoteValue int

const (
	Downvote VoteValue = -1
	NoVote   VoteValue = 0
	Upvote   VoteValue = 1
)

// Valid reports whether v is one of the three vote values.
func (v VoteValue) Valid() bool {
	return v == Downvote || v == NoVote || v == Upvote
}

// IsDirection reports whether v can be cast as a direction (up or down).
func (v VoteValue) IsDirection() bool {
	return v == Upvote || v == Downvote
}

func (v VoteValue) String() string {
	switch v {
	case Upvote:
		return "upvoted"
	case Downvote:
		return "downvoted"
	case NoVote:
		return "no-vote"
	}
	return "invalid"
}

// NextVote applies the toggle rule: casting the current direction again
// retracts it, anything else replaces it.
func NextVote(previous, direction VoteValue) VoteValue {
	if previous == direction {
		return NoVote
	}
	return direction
}

// VoteTally is the vote state of one rant as seen by one viewer.
type VoteTally struct {
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	MyVote    VoteValue `json:"my_vote"`
}

// Apply moves the viewer's vote from t.MyVote to next and adjusts the
// counts. Counts never drop below zero.
func (t VoteTally) Apply(next VoteValue) VoteTally {
	switch t.MyVote {
	case Upvote:
		t.Upvotes = decrement(t.Upvotes)
	case Downvote:
		t.Downvotes = decrement(t.Downvotes)
	}
	switch next {
	case Upvote:
		t.Upvotes++
	case Downvote:
		t.Downvotes++
	}
	t.MyVote = next
	return t
}

func decrement(n int) int {
	if n <= 0 {
		return 0
	}
	return n - 1
}

// Vote model - at most one row per (user, rant)
type Vote struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_user_rant" json:"user_id"`
	RantID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_votes_user_rant;index" json:"rant_id"`
	Value     VoteValue `gorm:"not null;check:chk_votes_value,value IN (-1, 1)" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}

// ToggleVoteRequest is the body of the toggle_vote procedure. Value is a
// pointer so that an omitted value is rejected instead of read as NoVote.
type ToggleVoteRequest struct {
	RantID string     `json:"rant_id" binding:"required"`
	Value  *VoteValue `json:"value" binding:"required"`
}
