package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus/backend/internal/notify"
)

// Handler combines all handler types
type Handler struct {
	Auth         *AuthHandler
	User         *UserHandler
	Rant         *RantHandler
	Vote         *VoteHandler
	Notification *NotificationHandler
	Moderation   *ModerationHandler
}

type Options struct {
	JWTSecret           []byte
	ReportHideThreshold int
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(db *gorm.DB, dispatcher *notify.Dispatcher, opts Options) *Handler {
	return &Handler{
		Auth:         NewAuthHandler(db, opts.JWTSecret),
		User:         NewUserHandler(db),
		Rant:         NewRantHandler(db),
		Vote:         NewVoteHandler(db, dispatcher),
		Notification: NewNotificationHandler(db),
		Moderation:   NewModerationHandler(db, dispatcher, opts.ReportHideThreshold),
	}
}

// extractUserID returns the caller set by the auth middleware.
func extractUserID(c *gin.Context) (string, bool) {
	id := c.GetString("user_id")
	return id, id != ""
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
