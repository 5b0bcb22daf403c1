package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"github.com/emilythestrangee/campus/backend/internal/models"
)

type PushSender interface {
	Push(ctx context.Context, userID string, payload []byte) error
}

// WebPush delivers payloads to every browser subscription a user holds.
// Subscriptions the push service reports as gone are deleted.
type WebPush struct {
	db      *gorm.DB
	options webpush.Options
}

func NewWebPush(db *gorm.DB, subscriber, publicKey, privateKey string) *WebPush {
	return &WebPush{
		db: db,
		options: webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  publicKey,
			VAPIDPrivateKey: privateKey,
			TTL:             30,
		},
	}
}

func (w *WebPush) Push(ctx context.Context, userID string, payload []byte) error {
	var subs []models.PushSubscription
	if err := w.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return fmt.Errorf("load push subscriptions: %w", err)
	}

	var firstErr error
	for _, sub := range subs {
		opts := w.options
		resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &opts)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("push to %s: %w", sub.Endpoint, err)
			}
			continue
		}
		resp.Body.Close()

		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			logf("Push subscription expired for user %s, deleting...", userID)
			if err := w.db.WithContext(ctx).Delete(&sub).Error; err != nil {
				logf("Failed to delete expired subscription: %v", err)
			}
		}
	}
	return firstErr
}
