package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add <url> [title]",
	Short: "Add a bookmark",
	Long:  "Store a URL on the server. With no title, the URL itself is used.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		title := url
		if len(args) == 2 {
			title = args[1]
		}

		api, _, err := newAPI()
		if err != nil {
			return err
		}

		b, err := api.Create(cmd.Context(), strings.TrimSpace(title), url)
		if err != nil {
			return friendly(err)
		}

		fmt.Printf("Added %s: %s\n", b.ID, b.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
