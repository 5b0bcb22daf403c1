package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const MaxRantLength = 500

// Rant is a short feed item. UserID always records the owner; the public
// author reference is only exposed when the rant is not anonymous.
type Rant struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:uuid;not null;index" json:"-"`
	User      User      `gorm:"foreignKey:UserID" json:"-"`
	Content   string    `gorm:"type:varchar(500);not null" json:"content"`
	Category  *string   `gorm:"index" json:"category"`
	Anonymous bool      `gorm:"not null;default:false" json:"anonymous"`
	Hidden    bool      `gorm:"not null;default:false;index" json:"-"`
	Upvotes   int       `gorm:"not null;default:0;check:upvotes >= 0" json:"upvotes"`
	Downvotes int       `gorm:"not null;default:0;check:downvotes >= 0" json:"downvotes"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Rant) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// AuthorID returns the owner's id, or nil for anonymous rants.
func (r *Rant) AuthorID() *string {
	if r.Anonymous || r.UserID == "" {
		return nil
	}
	id := r.UserID
	return &id
}

// Tally returns the rant's counts combined with a viewer's vote.
func (r *Rant) Tally(myVote VoteValue) VoteTally {
	return VoteTally{Upvotes: r.Upvotes, Downvotes: r.Downvotes, MyVote: myVote}
}

// RantView is the per-viewer shape of a rant returned by the API.
type RantView struct {
	ID        string    `json:"id"`
	AuthorID  *string   `json:"author_id"`
	Author    *string   `json:"author,omitempty"`
	Content   string    `json:"content"`
	Category  *string   `json:"category"`
	Anonymous bool      `json:"anonymous"`
	Upvotes   int       `json:"upvotes"`
	Downvotes int       `json:"downvotes"`
	MyVote    VoteValue `json:"my_vote"`
	CreatedAt time.Time `json:"created_at"`
}

// View builds the response for a viewer whose vote on r is myVote.
func (r *Rant) View(myVote VoteValue) RantView {
	v := RantView{
		ID:        r.ID,
		AuthorID:  r.AuthorID(),
		Content:   r.Content,
		Category:  r.Category,
		Anonymous: r.Anonymous,
		Upvotes:   r.Upvotes,
		Downvotes: r.Downvotes,
		MyVote:    myVote,
		CreatedAt: r.CreatedAt,
	}
	if v.AuthorID != nil && r.User.Username != "" {
		name := r.User.Username
		v.Author = &name
	}
	return v
}

type CreateRantRequest struct {
	Content   string  `json:"content" binding:"required"`
	Category  *string `json:"category"`
	Anonymous bool    `json:"anonymous"`
}
