package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase all learned memory",
	Long:  "Erase the experience log, preferences, and all derived patterns. Irreversible.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetForce {
			fmt.Print(warnStyle.Render("this erases everything bittu has learned.") + " type 'yes' to continue: ")
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if strings.TrimSpace(line) != "yes" {
				fmt.Println("aborted")
				return nil
			}
		}

		eng, _, err := setupEngine(cmd.Context())
		if err != nil {
			return err
		}
		defer eng.Close()

		if err := eng.PurgeAll(cmd.Context()); err != nil {
			return err
		}
		fmt.Println(okStyle.Render("memory erased"))
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "skip the confirmation prompt")
}
