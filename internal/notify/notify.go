// Package notify records user notifications and fans them out to web push
// and moderator SMS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/emilythestrangee/campus/backend/internal/models"
)

var logf = log.Printf

const deliveryTimeout = 15 * time.Second

// Dispatcher persists notifications and delivers them out of band. Push
// and SMS are optional; a nil sender disables that channel.
type Dispatcher struct {
	db             *gorm.DB
	push           PushSender
	sms            SMSSender
	moderatorPhone string

	// async runs delivery work; tests replace it with a synchronous call.
	async func(func())
}

func NewDispatcher(db *gorm.DB, push PushSender, sms SMSSender, moderatorPhone string) *Dispatcher {
	return &Dispatcher{
		db:             db,
		push:           push,
		sms:            sms,
		moderatorPhone: moderatorPhone,
		async:          func(f func()) { go f() },
	}
}

// Record stores n using tx so it commits with the caller's transaction.
// Call Deliver once the transaction has committed.
func (d *Dispatcher) Record(tx *gorm.DB, n *models.Notification) error {
	if err := tx.Create(n).Error; err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// Deliver schedules web push delivery of a stored notification.
func (d *Dispatcher) Deliver(n *models.Notification) {
	if d.push == nil {
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		logf("❌ Encode notification %s: %v", n.ID, err)
		return
	}
	userID := n.UserID
	d.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := d.push.Push(ctx, userID, payload); err != nil {
			logf("❌ Push delivery to user %s failed: %v", userID, err)
		}
	})
}

// AlertModerators sends body to every moderator: a notification row each,
// plus SMS to the configured phone and to moderators with a phone number.
func (d *Dispatcher) AlertModerators(ctx context.Context, rantID, body string) error {
	var mods []models.User
	if err := d.db.WithContext(ctx).Where("role = ?", models.RoleModerator).Find(&mods).Error; err != nil {
		return fmt.Errorf("load moderators: %w", err)
	}

	for _, m := range mods {
		id := rantID
		n := &models.Notification{UserID: m.ID, Kind: models.NotificationReport, RantID: &id, Body: body}
		if err := d.Record(d.db.WithContext(ctx), n); err != nil {
			return err
		}
		d.Deliver(n)
	}

	if d.sms == nil {
		return nil
	}
	phones := map[string]bool{}
	if d.moderatorPhone != "" {
		phones[d.moderatorPhone] = true
	}
	for _, m := range mods {
		if m.Phone != "" {
			phones[m.Phone] = true
		}
	}
	d.async(func() {
		for phone := range phones {
			if err := d.sms.SendSMS(phone, body); err != nil {
				logf("❌ Moderator SMS failed: %v", err)
			}
		}
	})
	return nil
}
