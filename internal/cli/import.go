package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	importUser string
	importFile string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a Homepage bookmarks.yaml for a user",
	Long: "Import the bookmarks of a Homepage (gethomepage.dev) bookmarks.yaml. " +
		"Each group becomes a PRIMARY tag. Titles come from the file; nothing is scraped.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		defer a.Close()

		res, err := a.Import(cmd.Context(), importUser, importFile)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "read %d, created %d bookmark(s) and %d tag(s), %d invalid\n",
			res.Read, res.Created, res.TagsCreated, res.Invalid)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVarP(&importUser, "user", "u", "", "owner of the imported bookmarks (required)")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "path to bookmarks.yaml (required)")
	_ = importCmd.MarkFlagRequired("user")
	_ = importCmd.MarkFlagRequired("file")
}
