package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ReportOpen      = "open"
	ReportDismissed = "dismissed"
)

// Report flags a rant for moderation. One report per (reporter, rant).
type Report struct {
	ID         string     `gorm:"type:uuid;primaryKey" json:"id"`
	RantID     string     `gorm:"type:uuid;not null;index;uniqueIndex:idx_reports_reporter_rant" json:"rant_id"`
	Rant       Rant       `gorm:"foreignKey:RantID" json:"-"`
	ReporterID string     `gorm:"type:uuid;not null;uniqueIndex:idx_reports_reporter_rant" json:"-"`
	Reason     string     `gorm:"not null" json:"reason"`
	Status     string     `gorm:"not null;default:open;index" json:"status"`
	ResolvedBy *string    `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (r *Report) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = ReportOpen
	}
	return nil
}

type CreateReportRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type ResolveReportRequest struct {
	Action string `json:"action" binding:"required,oneof=dismiss remove"`
}
