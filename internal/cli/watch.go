package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/campus/backend/internal/backend"
	"github.com/emilythestrangee/campus/backend/internal/feed"
	"github.com/emilythestrangee/campus/backend/internal/realtime"
)

var watchFeed bool

func init() {
	watchCmd.Flags().BoolVar(&watchFeed, "feed", false, "follow live rant changes instead of notifications")
	RootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream notifications (or the live feed) until interrupted",
	Args:  cobra.NoArgs,
	RunE:  watch,
}

var errSignedOut = errors.New("sign in first: campus login <email>")

func watch(cmd *cobra.Command, args []string) error {
	client := newClient()
	if _, ok := client.Viewer(); !ok {
		return errSignedOut
	}
	if watchFeed {
		return followFeed(cmd.Context(), cmd.OutOrStdout(), client)
	}
	return followNotifications(cmd.Context(), cmd.OutOrStdout(), client)
}

func followNotifications(ctx context.Context, w io.Writer, client *backend.Client) error {
	changes, err := client.Subscribe(ctx, realtime.Filter{Table: "notifications"})
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "👀 Watching notifications, Ctrl+C to stop")
	for c := range changes {
		if c.Type != realtime.Insert {
			continue
		}
		fmt.Fprintf(w, "🔔 [%s] %s\n", c.Field("kind"), c.Field("body"))
	}
	return nil
}

func followFeed(ctx context.Context, w io.Writer, client *backend.Client) error {
	f := feed.New(client, client)
	defer f.Close()
	if err := f.Load(ctx, client); err != nil {
		return err
	}

	changes, err := client.Subscribe(ctx, feed.RantFilter)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "👀 Following %d rants, Ctrl+C to stop\n", len(f.Rants()))
	for c := range changes {
		if !f.ApplyChange(c) {
			continue
		}
		id := c.RecordID()
		r, held := f.Rant(id)
		switch {
		case !held:
			fmt.Fprintf(w, "🗑  %s removed\n", id)
		case c.Type == realtime.Insert:
			fmt.Fprintf(w, "🆕 %s %s\n", id, preview(r.Content))
		default:
			fmt.Fprintf(w, "🔁 %s +%d/-%d\n", id, r.Upvotes, r.Downvotes)
		}
	}
	return nil
}
