package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/campus/backend/internal/models"
	"github.com/emilythestrangee/campus/backend/internal/notify"
)

type ModerationHandler struct {
	db            *gorm.DB
	dispatcher    *notify.Dispatcher
	hideThreshold int
}

func NewModerationHandler(db *gorm.DB, dispatcher *notify.Dispatcher, hideThreshold int) *ModerationHandler {
	return &ModerationHandler{db: db, dispatcher: dispatcher, hideThreshold: hideThreshold}
}

// ReportRant flags a rant. Once it collects hideThreshold open reports it
// is hidden from the feed until a moderator resolves the reports.
func (h *ModerationHandler) ReportRant(c *gin.Context) {
	reporterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.CreateReportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reason is required"})
		return
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Reason is required"})
		return
	}

	ctx := c.Request.Context()
	var hidden bool
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rant models.Rant
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&rant, "id = ?", c.Param("id")).Error; err != nil {
			return err
		}

		report := models.Report{RantID: rant.ID, ReporterID: reporterID, Reason: reason}
		if err := tx.Create(&report).Error; err != nil {
			return err
		}

		var open int64
		if err := tx.Model(&models.Report{}).Where("rant_id = ? AND status = ?", rant.ID, models.ReportOpen).Count(&open).Error; err != nil {
			return err
		}
		if !rant.Hidden && int(open) >= h.hideThreshold {
			hidden = true
			return tx.Model(&rant).Update("hidden", true).Error
		}
		return nil
	})
	switch {
	case isNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": "Rant not found"})
		return
	case isUniqueViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": "You already reported this rant"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to report rant"})
		return
	}

	if hidden {
		h.alert(ctx, c.Param("id"), fmt.Sprintf("Rant %s was hidden after %d reports", c.Param("id"), h.hideThreshold))
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Report submitted", "hidden": hidden})
}

func (h *ModerationHandler) alert(ctx context.Context, rantID, body string) {
	if h.dispatcher == nil {
		return
	}
	if err := h.dispatcher.AlertModerators(ctx, rantID, body); err != nil {
		log.Printf("❌ Failed to alert moderators: %v", err)
	}
}

// GetReports lists open reports (MODERATOR)
func (h *ModerationHandler) GetReports(c *gin.Context) {
	status := c.DefaultQuery("status", models.ReportOpen)

	reports := []models.Report{}
	err := h.db.WithContext(c.Request.Context()).Preload("Rant").
		Where("status = ?", status).Order("created_at asc").
		Limit(parseLimit(c.Query("limit"))).Find(&reports).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch reports"})
		return
	}

	responses := make([]gin.H, 0, len(reports))
	for _, r := range reports {
		responses = append(responses, gin.H{
			"id":          r.ID,
			"rant_id":     r.RantID,
			"reason":      r.Reason,
			"status":      r.Status,
			"created_at":  r.CreatedAt,
			"rant":        r.Rant.View(models.NoVote),
			"rant_hidden": r.Rant.Hidden,
		})
	}

	c.JSON(http.StatusOK, responses)
}

// ResolveReport dismisses a report (restoring the rant once it is back
// under the threshold) or deletes the reported rant together with all of
// its reports (MODERATOR).
func (h *ModerationHandler) ResolveReport(c *gin.Context) {
	moderatorID, _ := extractUserID(c)

	var input models.ResolveReportRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Action must be dismiss or remove"})
		return
	}

	ctx := c.Request.Context()
	var owner, rantID string
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.Report
		if err := tx.First(&report, "id = ?", c.Param("id")).Error; err != nil {
			return err
		}
		rantID = report.RantID

		if input.Action == "remove" {
			var rant models.Rant
			if err := tx.First(&rant, "id = ?", report.RantID).Error; err != nil {
				return err
			}
			owner = rant.UserID
			return deleteRant(tx, rant.ID)
		}

		if err := tx.Model(&report).Updates(map[string]interface{}{
			"status": models.ReportDismissed, "resolved_by": moderatorID, "resolved_at": time.Now().UTC(),
		}).Error; err != nil {
			return err
		}

		var open int64
		if err := tx.Model(&models.Report{}).Where("rant_id = ? AND status = ?", report.RantID, models.ReportOpen).Count(&open).Error; err != nil {
			return err
		}
		if int(open) < h.hideThreshold {
			return tx.Model(&models.Rant{}).Where("id = ?", report.RantID).Update("hidden", false).Error
		}
		return nil
	})
	if isNotFound(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve report"})
		return
	}

	if owner != "" && h.dispatcher != nil {
		n := &models.Notification{
			UserID: owner,
			Kind:   models.NotificationModerated,
			Body:   "One of your rants was removed by a moderator",
		}
		if err := h.dispatcher.Record(h.db.WithContext(ctx), n); err != nil {
			log.Printf("❌ Failed to notify rant owner: %v", err)
		} else {
			h.dispatcher.Deliver(n)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Report resolved", "rant_id": rantID, "action": input.Action})
}
