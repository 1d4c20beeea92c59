package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rescoreUser string

var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute visit scores now",
	Long:  "Recompute the visit scores of one user, or of every user when --user is omitted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, log, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		defer a.Close()

		n, err := a.Rescore(cmd.Context(), rescoreUser)
		if err != nil {
			return fmt.Errorf("rescore: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "rescored %d user(s)\n", n)
		return nil
	},
}

func init() {
	rescoreCmd.Flags().StringVarP(&rescoreUser, "user", "u", "", "only rescore this user")
}
