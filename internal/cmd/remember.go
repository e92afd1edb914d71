package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var rememberCmd = &cobra.Command{
	Use:   "remember <phrase...>",
	Short: "Store a stated preference",
	Long: `Store a stated preference with high confidence.

Examples:
  bittu remember prefer Chrome browser
  bittu remember use dark mode theme
  bittu remember browser=Firefox`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := setupEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		key, value, err := eng.ExplicitRemember(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("%s %s = %s\n", okStyle.Render("remembered"), commandStyle.Render(key), value)
		return nil
	},
}

var forgetCmd = &cobra.Command{
	Use:   "forget <phrase...>",
	Short: "Forget a preference",
	Long: `Forget the preference for a domain, e.g. "bittu forget browser" or
"bittu forget my browser". The fact is hidden from suggestions; future
evidence can re-establish it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := setupEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		key, err := eng.ExplicitForget(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", okStyle.Render("forgotten"), commandStyle.Render(key))
		return nil
	},
}
