package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List bookmarks, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		api, _, err := newAPI()
		if err != nil {
			return err
		}

		items, err := api.List(cmd.Context())
		if err != nil {
			return friendly(err)
		}

		if len(items) == 0 {
			fmt.Println("No bookmarks yet. Add one with `satchel add <url>`.")
			return nil
		}
		for _, b := range items {
			fmt.Printf("%s\t%s\t%s\n", b.ID, b.Title, b.URL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
}
