package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/campus/backend/internal/models"
)

type fakePush struct {
	users    []string
	payloads [][]byte
	err      error
}

func (f *fakePush) Push(ctx context.Context, userID string, payload []byte) error {
	f.users = append(f.users, userID)
	f.payloads = append(f.payloads, payload)
	return f.err
}

func syncDispatcher(push PushSender, sms SMSSender) *Dispatcher {
	d := NewDispatcher(nil, push, sms, "")
	d.async = func(f func()) { f() }
	return d
}

func TestDeliverPushesNotificationJSON(t *testing.T) {
	push := &fakePush{}
	d := syncDispatcher(push, nil)

	rantID := "r1"
	n := &models.Notification{ID: "n1", UserID: "u1", Kind: models.NotificationUpvote, RantID: &rantID, Body: "Someone upvoted your rant"}
	d.Deliver(n)

	require.Equal(t, []string{"u1"}, push.users)
	var got models.Notification
	require.NoError(t, json.Unmarshal(push.payloads[0], &got))
	assert.Equal(t, "n1", got.ID)
	assert.Equal(t, models.NotificationUpvote, got.Kind)
	assert.Equal(t, "r1", *got.RantID)
}

func TestDeliverSwallowsPushErrors(t *testing.T) {
	push := &fakePush{err: errors.New("push service down")}
	d := syncDispatcher(push, nil)

	assert.NotPanics(t, func() {
		d.Deliver(&models.Notification{ID: "n1", UserID: "u1", Kind: models.NotificationUpvote})
	})
	assert.Len(t, push.users, 1)
}

func TestDeliverWithoutPushIsNoop(t *testing.T) {
	d := syncDispatcher(nil, nil)
	assert.NotPanics(t, func() {
		d.Deliver(&models.Notification{ID: "n1", UserID: "u1"})
	})
}
