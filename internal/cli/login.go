package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/satchelhq/satchel/internal/client"
)

// loginWait bounds the whole browser round trip.
const loginWait = 5 * time.Minute

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser",
	Long:  "Open the server's sign-in page in a browser and wait for the session to land in this terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := client.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		sess, err := client.NewSession(cfg)
		if err != nil {
			return err
		}

		h := client.NewLoginHandoff(cfg.ServerURL)
		if err := client.OpenBrowser(h.AuthURL); err != nil {
			fmt.Println("Could not open a browser. Visit this URL to sign in:")
		} else {
			fmt.Println("Opening your browser. If nothing happens, visit:")
		}
		fmt.Printf("\n  %s\n\n", h.AuthURL)
		fmt.Println("Waiting for sign-in to finish...")

		ctx, cancel := context.WithTimeout(cmd.Context(), loginWait)
		defer cancel()

		g, err := sess.AwaitGrant(ctx, h.Nonce)
		if err != nil {
			return fmt.Errorf("sign-in did not finish: %w", err)
		}

		fmt.Printf("Signed in as %s.\n", g.Login)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
