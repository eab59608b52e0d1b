package root

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/studyquest/backend/internal/app"
	"github.com/studyquest/backend/internal/client"
	"github.com/studyquest/backend/internal/ui"
	"github.com/studyquest/backend/internal/ws"
)

func newWatchCmd() *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live dashboard of level progress, power-ups and rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := connect()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			wsc := client.NewWSClient(serverURL, token)
			if plain {
				return watchPlain(ctx, cmd.OutOrStdout(), wsc)
			}
			return watchDashboard(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), c, wsc)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "print one line per notification instead of the dashboard")
	return cmd
}

// watchDashboard runs the Bubble Tea dashboard, feeding it the socket's
// notifications until the user quits or the socket is rejected.
func watchDashboard(ctx context.Context, in io.Reader, out io.Writer, source app.ProgressSource, wsc *client.WSClient) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(app.New(source),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
		tea.WithAltScreen(),
	)
	wsc.OnDrop(func(err error) { p.Send(app.WSDroppedMsg{Err: err}) })
	go func() {
		err := wsc.Watch(ctx, func(m client.Message) { p.Send(app.WSMsg(m)) })
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		p.Send(app.WatchDoneMsg{Err: err})
	}()

	final, err := p.Run()
	cancel()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(app.Model); ok {
		return m.Err()
	}
	return nil
}

func watchPlain(ctx context.Context, out io.Writer, wsc *client.WSClient) error {
	err := wsc.Watch(ctx, func(m client.Message) {
		if m.Type == ws.MsgHello {
			fmt.Fprintln(out, ui.Muted.Render("watching for rewards, Ctrl-C to stop"))
			return
		}
		if line := app.FormatMessage(m); line != "" {
			fmt.Fprintln(out, line)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
