package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var suggestLimit int

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Show suggestions for the current context",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := setupEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		suggestions, err := eng.Suggestions(cmd.Context(), suggestLimit)
		if err != nil {
			return err
		}
		if len(suggestions) == 0 {
			fmt.Println(dimStyle.Render("nothing to suggest yet; keep recording"))
			return nil
		}

		for i, s := range suggestions {
			reasons := ""
			for j, r := range s.Reasons {
				if j > 0 {
					reasons += ", "
				}
				reasons += r.Type
			}
			fmt.Printf("%d. %s  %s  %s\n",
				i+1,
				commandStyle.Render(s.Signature),
				scoreStyle.Render(fmt.Sprintf("%.2f", s.Score)),
				dimStyle.Render(reasons))
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVarP(&suggestLimit, "limit", "n", 0, "maximum suggestions to show (default from config)")
}
