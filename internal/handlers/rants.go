package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus/backend/internal/models"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 100
)

type RantHandler struct {
	db *gorm.DB
}

func NewRantHandler(db *gorm.DB) *RantHandler {
	return &RantHandler{db: db}
}

// viewerVotes returns the viewer's vote on each of the given rants. Rants
// without a vote row are absent from the map (NoVote).
func viewerVotes(db *gorm.DB, viewerID string, rantIDs []string) (map[string]models.VoteValue, error) {
	votes := make(map[string]models.VoteValue, len(rantIDs))
	if viewerID == "" || len(rantIDs) == 0 {
		return votes, nil
	}

	var rows []models.Vote
	if err := db.Where("user_id = ? AND rant_id IN ?", viewerID, rantIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, v := range rows {
		votes[v.RantID] = v.Value
	}
	return votes, nil
}

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultFeedLimit
	}
	if n > maxFeedLimit {
		return maxFeedLimit
	}
	return n
}

// GetRants returns the feed, newest first, with the caller's vote on each
// rant when a token is supplied.
func (h *RantHandler) GetRants(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	viewerID, _ := extractUserID(c)

	query := db.Preload("User").Where("hidden = ?", false).
		Order("created_at desc").Limit(parseLimit(c.Query("limit")))
	if category := strings.TrimSpace(c.Query("category")); category != "" {
		query = query.Where("category = ?", category)
	}

	var rants []models.Rant
	if err := query.Find(&rants).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rants"})
		return
	}

	ids := make([]string, 0, len(rants))
	for _, r := range rants {
		ids = append(ids, r.ID)
	}
	votes, err := viewerVotes(db, viewerID, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch votes"})
		return
	}

	// If no rants, return empty array not null
	views := make([]models.RantView, 0, len(rants))
	for i := range rants {
		views = append(views, rants[i].View(votes[rants[i].ID]))
	}

	c.JSON(http.StatusOK, views)
}

// GetRant returns a single rant by ID
func (h *RantHandler) GetRant(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	viewerID, _ := extractUserID(c)

	var rant models.Rant
	if err := db.Preload("User").Where("hidden = ?", false).First(&rant, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rant not found"})
		return
	}

	votes, err := viewerVotes(db, viewerID, []string{rant.ID})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch votes"})
		return
	}

	c.JSON(http.StatusOK, rant.View(votes[rant.ID]))
}

// CreateRant creates a new rant (PROTECTED - requires authentication)
func (h *RantHandler) CreateRant(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.CreateRantRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content is required"})
		return
	}

	content := strings.TrimSpace(input.Content)
	if content == "" || utf8.RuneCountInString(content) > models.MaxRantLength {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Content must be between 1 and 500 characters"})
		return
	}

	var category *string
	if input.Category != nil {
		if trimmed := strings.TrimSpace(*input.Category); trimmed != "" {
			category = &trimmed
		}
	}

	rant := models.Rant{
		UserID:    authorID,
		Content:   content,
		Category:  category,
		Anonymous: input.Anonymous,
	}

	db := h.db.WithContext(c.Request.Context())
	if err := db.Create(&rant).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create rant"})
		return
	}

	// Reload with user information
	db.Preload("User").First(&rant, "id = ?", rant.ID)

	c.JSON(http.StatusCreated, rant.View(models.NoVote))
}

// DeleteRant deletes a rant with its votes and reports (owner or moderator)
func (h *RantHandler) DeleteRant(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	db := h.db.WithContext(c.Request.Context())
	var rant models.Rant
	if err := db.First(&rant, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rant not found"})
		return
	}

	if rant.UserID != userID && c.GetString("role") != models.RoleModerator {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own rants"})
		return
	}

	if err := deleteRant(db, rant.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete rant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Rant deleted successfully"})
}

func deleteRant(db *gorm.DB, rantID string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("rant_id = ?", rantID).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("rant_id = ?", rantID).Delete(&models.Report{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Rant{}, "id = ?", rantID).Error
	})
}
