package root

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/studyquest/backend/internal/ui"
	"github.com/studyquest/backend/internal/ws"
)

func newPointsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "points <amount>",
		Short: "Add (or with a negative amount, remove) points",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("amount must be an integer: %w", err)
			}
			c, err := connect()
			if err != nil {
				return err
			}
			m, err := c.AddPoints(amount)
			if err != nil {
				return err
			}
			printResult(cmd, m)
			return nil
		},
	}
}

func newStudyCmd() *cobra.Command {
	var abandoned bool
	cmd := &cobra.Command{
		Use:   "study <minutes>",
		Short: "Log a finished study session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			minutes, err := strconv.Atoi(args[0])
			if err != nil || minutes <= 0 {
				return fmt.Errorf("minutes must be a positive integer")
			}
			c, err := connect()
			if err != nil {
				return err
			}
			m, err := c.StudySession(minutes, !abandoned)
			if err != nil {
				return err
			}
			if !abandoned {
				if m, err = c.StudyTime(minutes); err != nil {
					return err
				}
			}
			printResult(cmd, m)
			return nil
		},
	}
	cmd.Flags().BoolVar(&abandoned, "abandoned", false, "session ended early (penalty, no study time)")
	return cmd
}

func newQuizCmd() *cobra.Command {
	var correct, wrong, revealed int
	cmd := &cobra.Command{
		Use:   "quiz",
		Short: "Score a finished quiz",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			m, err := c.Quiz(correct, wrong, revealed)
			if err != nil {
				return err
			}
			printResult(cmd, m)
			return nil
		},
	}
	cmd.Flags().IntVar(&correct, "correct", 0, "correct answers")
	cmd.Flags().IntVar(&wrong, "wrong", 0, "wrong answers")
	cmd.Flags().IntVar(&revealed, "revealed", 0, "answers revealed with coins")
	return cmd
}

func newBuyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "buy <power-up>",
		Short: "Spend points on a power-up",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			m, err := c.BuyPowerUp(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Good.Render(ui.IconBolt+" "+args[0]+" active"))
			printResult(cmd, m)
			return nil
		},
	}
}

func printResult(cmd *cobra.Command, m *ws.MutationResponse) {
	out := cmd.OutOrStdout()
	if m.Applied != 0 {
		fmt.Fprintln(out, ui.LabelValue("Applied", ui.Signed(m.Applied)))
	}
	fmt.Fprintf(out, "%s  %s  %s\n",
		ui.LabelValue("Points", m.Points),
		ui.LabelValue("Level", m.Level),
		ui.LabelValue("Streak", m.Streak))
}
