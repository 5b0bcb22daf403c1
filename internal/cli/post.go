package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/emilythestrangee/campus/backend/internal/models"
)

var (
	postCategory  string
	postAnonymous bool
)

func init() {
	postCmd.Flags().StringVarP(&postCategory, "category", "c", "", "category for the rant")
	postCmd.Flags().BoolVarP(&postAnonymous, "anonymous", "a", false, "hide your name on the rant")
	RootCmd.AddCommand(postCmd)
}

var postCmd = &cobra.Command{
	Use:   "post <text...>",
	Short: "Post a rant",
	Args:  cobra.MinimumNArgs(1),
	RunE:  post,
}

func post(cmd *cobra.Command, args []string) error {
	req := models.CreateRantRequest{
		Content:   strings.Join(args, " "),
		Anonymous: postAnonymous,
	}
	if postCategory != "" {
		req.Category = &postCategory
	}

	rant, err := newClient().CreateRant(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Posted rant %s\n", rant.ID)
	return nil
}
