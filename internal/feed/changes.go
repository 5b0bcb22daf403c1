package feed

import (
	"time"

	"github.com/emilythestrangee/campus/backend/internal/models"
	"github.com/emilythestrangee/campus/backend/internal/realtime"
)

// RantFilter subscribes to every change on the rants table.
var RantFilter = realtime.Filter{Table: "rants"}

// ApplyChange folds a realtime change on the rants table into the feed and
// reports whether the feed changed. An update that un-hides a rant the feed
// does not hold puts it back in created_at order; other updates and deletes
// for rants the feed does not hold are ignored. Updates replace the counts
// but never the viewer's own vote, which only CastVote changes.
func (f *Feed) ApplyChange(c realtime.Change) bool {
	if c.Table != RantFilter.Table {
		return false
	}
	id := c.RecordID()
	if id == "" {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}

	i := f.find(id)
	switch c.Type {
	case realtime.Insert:
		if i >= 0 || c.Field("hidden") == "true" {
			return false
		}
		f.rants = append([]models.RantView{rantFromRecord(c)}, f.rants...)
		return true

	case realtime.Update:
		if i < 0 {
			if !c.Unhidden {
				return false
			}
			f.insertByAge(rantFromRecord(c))
			return true
		}
		if c.Field("hidden") == "true" {
			f.remove(i)
			return true
		}
		if up, ok := c.Int("upvotes"); ok {
			f.rants[i].Upvotes = up
		}
		if down, ok := c.Int("downvotes"); ok {
			f.rants[i].Downvotes = down
		}
		return true

	case realtime.Delete:
		if i < 0 {
			return false
		}
		f.remove(i)
		return true
	}
	return false
}

// insertByAge places r before the first rant older than it, keeping the
// newest-first order.
func (f *Feed) insertByAge(r models.RantView) {
	i := 0
	for i < len(f.rants) && !f.rants[i].CreatedAt.Before(r.CreatedAt) {
		i++
	}
	f.rants = append(f.rants, models.RantView{})
	copy(f.rants[i+1:], f.rants[i:])
	f.rants[i] = r
}

func (f *Feed) remove(i int) {
	f.rants = append(f.rants[:i], f.rants[i+1:]...)
}

// rantFromRecord builds a view from a change record. The owner is never in
// the record, so the author stays unset until the feed is reloaded.
func rantFromRecord(c realtime.Change) models.RantView {
	r := models.RantView{
		ID:        c.RecordID(),
		Content:   c.Field("content"),
		Anonymous: c.Field("anonymous") == "true",
		MyVote:    models.NoVote,
	}
	if category := c.Field("category"); category != "" {
		r.Category = &category
	}
	r.Upvotes, _ = c.Int("upvotes")
	r.Downvotes, _ = c.Int("downvotes")
	if ts, err := time.Parse(time.RFC3339Nano, c.Field("created_at")); err == nil {
		r.CreatedAt = ts
	}
	return r
}
