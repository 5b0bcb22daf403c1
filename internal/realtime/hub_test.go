package realtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, s *Subscription) Change {
	t.Helper()
	select {
	case c, ok := <-s.C():
		require.True(t, ok, "subscription closed")
		return c
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}
	return Change{}
}

func assertNothing(t *testing.T, s *Subscription) {
	t.Helper()
	select {
	case c := <-s.C():
		t.Fatalf("unexpected change %+v", c)
	default:
	}
}

func TestHubDeliversMatchingChanges(t *testing.T) {
	hub := NewHub()
	mine := hub.Subscribe(Filter{Table: "notifications", Field: "user_id", Value: "u1"})
	all := hub.Subscribe(Filter{Table: "rants"})
	defer mine.Unsubscribe()
	defer all.Unsubscribe()

	hub.Publish(Change{Table: "notifications", Type: Insert, Record: map[string]any{"id": "n1", "user_id": "u2"}})
	hub.Publish(Change{Table: "notifications", Type: Insert, Record: map[string]any{"id": "n2", "user_id": "u1"}})
	hub.Publish(Change{Table: "rants", Type: Update, Record: map[string]any{"id": "r1", "upvotes": float64(3)}})

	got := receive(t, mine)
	assert.Equal(t, "n2", got.RecordID())
	assertNothing(t, mine)

	got = receive(t, all)
	assert.Equal(t, "r1", got.RecordID())
	up, ok := got.Int("upvotes")
	assert.True(t, ok)
	assert.Equal(t, 3, up)
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	s := hub.Subscribe(Filter{Table: "rants"})
	assert.Equal(t, 1, hub.Len())

	s.Unsubscribe()
	s.Unsubscribe()
	assert.Equal(t, 0, hub.Len())

	_, ok := <-s.C()
	assert.False(t, ok)

	// publishing after unsubscribe must not panic
	hub.Publish(Change{Table: "rants", Type: Delete, Record: map[string]any{"id": "r1"}})
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	s := hub.Subscribe(Filter{Table: "rants"})
	defer s.Unsubscribe()

	for i := 0; i < subscriptionBuffer+10; i++ {
		hub.Publish(Change{Table: "rants", Type: Update, Record: map[string]any{"id": "r1"}})
	}
	assert.Len(t, s.ch, subscriptionBuffer)
}

func TestHubClose(t *testing.T) {
	hub := NewHub()
	s := hub.Subscribe(Filter{Table: "rants"})
	hub.Close()

	_, ok := <-s.C()
	assert.False(t, ok)
	s.Unsubscribe()

	late := hub.Subscribe(Filter{Table: "rants"})
	_, ok = <-late.C()
	assert.False(t, ok)
}

func TestParseChange(t *testing.T) {
	c, err := ParseChange(`{"table":"rants","type":"UPDATE","record":{"id":"r1","upvotes":11,"downvotes":2,"anonymous":true}}`)
	require.NoError(t, err)
	assert.Equal(t, "rants", c.Table)
	assert.Equal(t, Update, c.Type)
	assert.Equal(t, "r1", c.RecordID())
	assert.Equal(t, "true", c.Field("anonymous"))
	assert.Equal(t, "", c.Field("missing"))
	assert.False(t, c.Unhidden)

	c, err = ParseChange(`{"table":"rants","type":"UPDATE","record":{"id":"r1","hidden":false},"unhidden":true}`)
	require.NoError(t, err)
	assert.True(t, c.Unhidden)

	_, err = ParseChange(`{"table":"rants","type":"TRUNCATE","record":{}}`)
	assert.Error(t, err)

	_, err = ParseChange(`{"type":"INSERT"}`)
	assert.Error(t, err)

	_, err = ParseChange(`not json`)
	assert.Error(t, err)
}

func TestViewerFilter(t *testing.T) {
	f, ok := ViewerFilter("me", "notifications", "user_id", "someone-else")
	require.True(t, ok)
	assert.Equal(t, Filter{Table: "notifications", Field: "user_id", Value: "me"}, f)

	f, ok = ViewerFilter("me", "rants", "", "ignored")
	require.True(t, ok)
	assert.Equal(t, Filter{Table: "rants"}, f)

	_, ok = ViewerFilter("me", "users", "", "")
	assert.False(t, ok)
}
