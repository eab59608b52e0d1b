package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/studyquest/backend/internal/ui"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show points, level, streak and unlocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			p, err := c.Progress()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			snap := p.Progress

			fmt.Fprintln(out, ui.Heading(ui.IconStar, "Progress for "+p.Session.UserID))
			fmt.Fprintln(out, ui.LabelValue("Level", snap.Level))
			fmt.Fprintln(out, ui.LabelValue("Points", fmt.Sprintf("%d %s %s", snap.Points,
				ui.Bar(p.Level.Pct, 20), ui.Muted.Render(fmt.Sprintf("(%d to next)", p.Level.Needed)))))
			fmt.Fprintln(out, ui.LabelValue("Streak", fmt.Sprintf("%s %d days", ui.IconFire, snap.Streak)))
			fmt.Fprintln(out, ui.LabelValue("Today", fmt.Sprintf("%d/%d min", snap.DailyProgress, snap.DailyGoal)))
			fmt.Fprintln(out, ui.LabelValue("Total study", fmt.Sprintf("%d min", snap.TotalStudyTime)))
			fmt.Fprintln(out, ui.LabelValue("Coins", fmt.Sprintf("%s %d", ui.IconCoin, p.Coins)))
			fmt.Fprintln(out, "")

			fmt.Fprintln(out, ui.H2.Render(ui.IconBook+" Quests"))
			for _, q := range snap.Quests {
				state := ui.Muted.Render(fmt.Sprintf("%d/%d", q.Progress, q.Target))
				if q.Completed {
					state = ui.Good.Render("done")
				}
				fmt.Fprintf(out, "- %s %s %s\n", q.Icon, q.Name, state)
			}
			fmt.Fprintln(out, "")

			fmt.Fprintln(out, ui.H2.Render(ui.IconTrophy+" Unlocked"))
			unlocked := 0
			for _, b := range snap.Badges {
				if b.Earned {
					fmt.Fprintf(out, "- %s %s %s\n", b.Icon, b.Name, ui.Muted.Render(string(b.Rarity)))
					unlocked++
				}
			}
			for _, a := range snap.Achievements {
				if a.Earned {
					fmt.Fprintf(out, "- %s %s %s\n", a.Icon, a.Name, ui.Gold.Render(fmt.Sprintf("+%d", a.Points)))
					unlocked++
				}
			}
			if unlocked == 0 {
				fmt.Fprintln(out, ui.Muted.Render("nothing yet"))
			}

			if len(p.PowerUps) > 0 {
				fmt.Fprintln(out, "")
				fmt.Fprintln(out, ui.H2.Render(ui.IconBolt+" Active power-ups"))
				for _, pu := range p.PowerUps {
					until := ""
					if pu.EndTime != nil {
						until = ui.Muted.Render("until " + pu.EndTime.Local().Format("15:04:05"))
					}
					fmt.Fprintf(out, "- %s %s\n", pu.Name, until)
				}
			}

			if p.Sync.LastError != "" {
				fmt.Fprintln(out, "")
				fmt.Fprintln(out, ui.Warn.Render(ui.IconWarn+" last sync failed: "+p.Sync.LastError))
			}
			return nil
		},
	}
}
