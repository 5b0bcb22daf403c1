package cli

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/campus/backend/internal/feed"
	"github.com/emilythestrangee/campus/backend/internal/models"
)

func init() {
	RootCmd.AddCommand(voteCmd)
}

var voteCmd = &cobra.Command{
	Use:   "vote <rant-id> up|down",
	Short: "Vote on a rant; voting the same way again retracts it",
	Args:  cobra.ExactArgs(2),
	RunE:  vote,
}

func parseDirection(s string) (models.VoteValue, error) {
	switch s {
	case "up", "+1", "+":
		return models.Upvote, nil
	case "down", "-1", "-":
		return models.Downvote, nil
	}
	return models.NoVote, fmt.Errorf("direction must be up or down, got %q", s)
}

func vote(cmd *cobra.Command, args []string) error {
	direction, err := parseDirection(args[1])
	if err != nil {
		return err
	}

	client := newClient()
	rant, err := client.GetRant(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	f := feed.New(client, client, feed.WithAlerter(printAlert(cmd)), feed.WithStaleResponseGuard())
	defer f.Close()
	f.Replace([]models.RantView{*rant})

	tally, err := f.CastVote(cmd.Context(), rant.ID, direction)
	if errors.Is(err, feed.ErrUnauthenticated) || errors.Is(err, feed.ErrRemoteFailure) {
		return errReported
	}
	if err != nil {
		return err
	}

	mark := color.New(color.Bold).Sprint("•")
	switch tally.MyVote {
	case models.Upvote:
		mark = color.New(color.FgGreen, color.Bold).Sprint("▲")
	case models.Downvote:
		mark = color.New(color.FgRed, color.Bold).Sprint("▼")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s rant %s (+%d/-%d)\n", mark, tally.MyVote, rant.ID, tally.Upvotes, tally.Downvotes)
	return nil
}
