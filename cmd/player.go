package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPlayerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player",
		Short: "Manage players",
	}
	cmd.AddCommand(newPlayerEnsureCmd())
	return cmd
}

func newPlayerEnsureCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "ensure <username>",
		Short: "Create a player if needed and print its ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			player, err := a.credentials.EnsurePlayer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if email != "" {
				if err := a.credentials.SetEmail(cmd.Context(), player.Username, email); err != nil {
					return err
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), player.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address for authentication codes")
	return cmd
}
