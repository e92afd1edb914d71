package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Rahiman13/Personal-assistant/internal/engine"
)

var recordFailed bool

var recordCmd = &cobra.Command{
	Use:   "record <text...>",
	Short: "Record an interaction",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, err := setupEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		ack, err := eng.Record(cmd.Context(), engine.RecordRequest{
			Text:    strings.Join(args, " "),
			Success: !recordFailed,
		})
		if err != nil {
			return err
		}
		if ack.Degraded {
			fmt.Println(warnStyle.Render("recorded (not persisted, see logs)"))
			return nil
		}
		fmt.Printf("%s %s\n", okStyle.Render("recorded"), dimStyle.Render(ack.Signature))
		return nil
	},
}

func init() {
	recordCmd.Flags().BoolVar(&recordFailed, "failed", false, "mark the interaction as unsuccessful")
}
