package cli

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/emilythestrangee/campus/backend/internal/models"
)

const previewLength = 60

var feedCategory string

func init() {
	feedCmd.Flags().StringVarP(&feedCategory, "category", "c", "", "only show rants in this category")
	RootCmd.AddCommand(feedCmd)
}

var feedCmd = &cobra.Command{
	Use:     "feed",
	Aliases: []string{"ls"},
	Short:   "List the latest rants",
	Args:    cobra.NoArgs,
	RunE:    showFeed,
}

func showFeed(cmd *cobra.Command, args []string) error {
	rants, err := newClient().ListRantsIn(cmd.Context(), feedCategory)
	if err != nil {
		return err
	}
	if len(rants) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "🤷 No rants yet")
		return nil
	}
	renderRants(cmd.OutOrStdout(), rants)
	return nil
}

func renderRants(w io.Writer, rants []models.RantView) {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Id", "Votes", "Mine", "Category", "Author", "Rant"})

	for _, r := range rants {
		row := []string{
			r.ID,
			fmt.Sprintf("+%d/-%d", r.Upvotes, r.Downvotes),
			voteMark(r.MyVote),
			deref(r.Category),
			author(r),
			preview(r.Content),
		}
		switch r.MyVote {
		case models.Upvote:
			table.Rich(row, []tablewriter.Colors{{}, {tablewriter.FgGreenColor, tablewriter.Bold}})
		case models.Downvote:
			table.Rich(row, []tablewriter.Colors{{}, {tablewriter.FgRedColor, tablewriter.Bold}})
		default:
			table.Append(row)
		}
	}
	table.Render()
}

func voteMark(v models.VoteValue) string {
	switch v {
	case models.Upvote:
		return "▲"
	case models.Downvote:
		return "▼"
	}
	return ""
}

func author(r models.RantView) string {
	if r.Anonymous {
		return "anonymous"
	}
	if r.Author != nil {
		return *r.Author
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:previewLength-1]) + "…"
}
