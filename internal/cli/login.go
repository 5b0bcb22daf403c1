package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var loginPassword string

func init() {
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "password (read from stdin when empty)")
	RootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and save the session token",
	Args:  cobra.ExactArgs(1),
	RunE:  login,
}

func login(cmd *cobra.Command, args []string) error {
	password := loginPassword
	if password == "" {
		fmt.Fprint(cmd.OutOrStdout(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		password = strings.TrimSpace(line)
	}

	client := newClient()
	resp, err := client.Login(cmd.Context(), args[0], password)
	if err != nil {
		return err
	}
	if err := saveToken(resp.Token); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Signed in as %s\n", color.New(color.Bold).Sprint(resp.User.Username))
	return nil
}
