package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyquest/backend/internal/ui"
)

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push progress to the store now",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			m, err := c.Push()
			if err != nil {
				return err
			}
			if !m.OK {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Warn.Render(ui.IconWarn+" push not accepted, see server log"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render(ui.IconSync+" pushed"))
			return nil
		},
	}
}

func newPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Replace local progress with the stored copy",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			m, err := c.Pull()
			if err != nil {
				return err
			}
			if !m.OK {
				fmt.Fprintln(cmd.OutOrStdout(), ui.Warn.Render(ui.IconWarn+" nothing pulled (rate limited or no stored copy)"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render(ui.IconSync+" pulled"))
			printResult(cmd, m)
			return nil
		},
	}
}
