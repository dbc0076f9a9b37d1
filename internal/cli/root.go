// Package cli defines the satchel command tree. The bare command opens
// the TUI; subcommands cover scripting and one-shot use.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/satchelhq/satchel/internal/client"
	"github.com/satchelhq/satchel/internal/tui"
)

var rootCmd = &cobra.Command{
	Use:   "satchel",
	Short: "Your bookmarks, in every terminal",
	Long:  "Satchel keeps a personal bookmark collection on a satcheld server and live-syncs it across all your sessions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := client.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return tui.Run(cfg)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newAPI wires the config, session, and API for one-shot commands.
func newAPI() (*client.API, *client.Session, error) {
	cfg, err := client.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	sess, err := client.NewSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	return client.NewAPI(cfg, sess), sess, nil
}

// friendly rewrites wire-level errors into something a person at a
// terminal can act on.
func friendly(err error) error {
	if errors.Is(err, client.ErrSignedOut) {
		return errors.New("not signed in; run `satchel login` first")
	}
	return err
}
