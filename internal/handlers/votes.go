package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/campus/backend/internal/models"
	"github.com/emilythestrangee/campus/backend/internal/notify"
)

var errRantNotFound = errors.New("rant not found")

type VoteHandler struct {
	db         *gorm.DB
	dispatcher *notify.Dispatcher
}

func NewVoteHandler(db *gorm.DB, dispatcher *notify.Dispatcher) *VoteHandler {
	return &VoteHandler{db: db, dispatcher: dispatcher}
}

// ToggleVote sets the caller's vote on a rant to the requested value and
// returns the resulting tally (PROTECTED - requires authentication).
func (h *VoteHandler) ToggleVote(c *gin.Context) {
	voterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.ToggleVoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rant_id and value are required"})
		return
	}
	if !input.Value.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote value must be -1, 0 or 1"})
		return
	}

	tally, err := h.SetVote(c.Request.Context(), voterID, input.RantID, *input.Value)
	if err != nil {
		if errors.Is(err, errRantNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rant not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to vote"})
		return
	}

	c.JSON(http.StatusOK, tally)
}

// SetVote atomically moves voterID's vote on rantID to next. The rant row
// is locked for the duration of the transaction, so concurrent voters are
// serialized and no count update is lost. Setting the value the voter
// already holds changes nothing.
func (h *VoteHandler) SetVote(ctx context.Context, voterID, rantID string, next models.VoteValue) (models.VoteTally, error) {
	if _, err := uuid.Parse(rantID); err != nil {
		return models.VoteTally{}, errRantNotFound
	}

	var (
		tally        models.VoteTally
		notification *models.Notification
	)

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rant models.Rant
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("hidden = ?", false).First(&rant, "id = ?", rantID).Error
		if isNotFound(err) {
			return errRantNotFound
		}
		if err != nil {
			return err
		}

		var existing models.Vote
		previous := models.NoVote
		err = tx.Where("user_id = ? AND rant_id = ?", voterID, rantID).First(&existing).Error
		switch {
		case err == nil:
			previous = existing.Value
		case isNotFound(err):
		default:
			return err
		}

		tally = rant.Tally(previous)
		if previous == next {
			return nil
		}
		tally = tally.Apply(next)

		switch {
		case next == models.NoVote:
			err = tx.Delete(&existing).Error
		case previous == models.NoVote:
			err = tx.Create(&models.Vote{UserID: voterID, RantID: rantID, Value: next}).Error
		default:
			err = tx.Model(&existing).Update("value", next).Error
		}
		if err != nil {
			return err
		}

		err = tx.Model(&rant).Updates(map[string]interface{}{
			"upvotes":   tally.Upvotes,
			"downvotes": tally.Downvotes,
		}).Error
		if err != nil {
			return err
		}

		if next == models.Upvote && rant.UserID != voterID && h.dispatcher != nil {
			notification = &models.Notification{
				UserID: rant.UserID,
				Kind:   models.NotificationUpvote,
				RantID: &rant.ID,
				Body:   "Someone upvoted your rant",
			}
			return h.dispatcher.Record(tx, notification)
		}
		return nil
	})
	if err != nil {
		return models.VoteTally{}, err
	}

	if notification != nil {
		h.dispatcher.Deliver(notification)
	}
	return tally, nil
}
