package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satchelhq/satchel/internal/client"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and revoke the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := client.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		sess, err := client.NewSession(cfg)
		if err != nil {
			return err
		}

		if !sess.SignedIn() {
			fmt.Println("Already signed out.")
			return nil
		}
		if err := sess.SignOut(cmd.Context()); err != nil {
			return err
		}

		fmt.Println("Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
