package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var habitsCmd = &cobra.Command{
	Use:   "habits",
	Short: "Show what has been learned so far",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := setupEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		s, err := eng.HabitsSummary(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("%s %d experiences, session %d\n",
			headerStyle.Render("memory:"), s.Experiences, s.SessionSeq)
		if s.Stale {
			fmt.Println(warnStyle.Render("patterns not computed yet; run `bittu recompute`"))
		}
		if s.Warning != nil {
			fmt.Println(warnStyle.Render(s.Warning.Error()))
		}

		if len(s.TopCommands) > 0 {
			fmt.Println(headerStyle.Render("\nfrequent commands"))
			for _, h := range s.TopCommands {
				fmt.Printf("  %s  %s\n",
					commandStyle.Render(h.Signature),
					dimStyle.Render(fmt.Sprintf("%dx (%d recent), %.0f%% ok", h.Total, h.RecentCount, h.SuccessRate*100)))
			}
		}

		if len(s.TimeHabits) > 0 {
			fmt.Println(headerStyle.Render("\ntime-of-day habits"))
			for _, h := range s.TimeHabits {
				fmt.Printf("  %s  %s\n",
					commandStyle.Render(h.Signature),
					dimStyle.Render(fmt.Sprintf("around %d:00 (%s), %dx", h.Hour, h.TimeOfDay, h.Support)))
			}
		}

		if len(s.Preferences) > 0 {
			fmt.Println(headerStyle.Render("\npreferences"))
			for _, p := range s.Preferences {
				fmt.Printf("  %s = %s  %s\n",
					commandStyle.Render(p.Key),
					p.Value,
					dimStyle.Render(fmt.Sprintf("%.0f%% %s", p.Confidence*100, p.Source)))
			}
		}

		if len(s.Themes) > 0 {
			fmt.Println(headerStyle.Render("\nsession themes"))
			for _, th := range s.Themes {
				fmt.Printf("  %s %s\n", th.Token, dimStyle.Render(fmt.Sprintf("x%d", th.Count)))
			}
		}
		return nil
	},
}
