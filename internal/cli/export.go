package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satchelhq/satchel/internal/markfile"
)

var exportCmd = &cobra.Command{
	Use:   "export [file.yaml]",
	Short: "Export bookmarks to a markfile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "satchel-export.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		api, _, err := newAPI()
		if err != nil {
			return err
		}

		items, err := api.List(cmd.Context())
		if err != nil {
			return friendly(err)
		}
		if err := markfile.Export(path, items); err != nil {
			return err
		}

		fmt.Printf("Exported %d bookmarks to %s\n", len(items), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
