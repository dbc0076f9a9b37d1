package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satchelhq/satchel/internal/markfile"
)

var importCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import bookmarks from a markfile",
	Long:  "Read a YAML markfile and store every valid entry on the server. Invalid entries are skipped, not fatal.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := markfile.NewLoader(args[0]).Load()
		if err != nil {
			return err
		}
		records, skipped := markfile.NewMapper().Map(f)

		api, _, err := newAPI()
		if err != nil {
			return err
		}

		added := 0
		for _, r := range records {
			if _, err := api.Create(cmd.Context(), r.Title, r.URL); err != nil {
				fmt.Printf("failed  %s: %v\n", r.URL, friendly(err))
				continue
			}
			added++
			fmt.Printf("added   %s\n", r.URL)
		}
		for _, s := range skipped {
			fmt.Printf("skipped entry %d (%s): %s\n", s.Index+1, s.Title, s.Reason)
		}

		fmt.Printf("\nImported %d of %d entries.\n", added, len(f.Bookmarks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
