// Package app is the live progress dashboard behind studyctl watch: level
// progress, running power-ups and a feed of rewards, refreshed whenever the
// reward socket reports something.
package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/studyquest/backend/internal/client"
	"github.com/studyquest/backend/internal/ui"
	"github.com/studyquest/backend/internal/ws"
)

const (
	maxFeed  = 8
	barWidth = 30
	tickRate = time.Second
)

// ProgressSource loads the caller's current progress.
type ProgressSource interface {
	Progress() (*ws.ProgressResponse, error)
}

type (
	// WSMsg carries one notification from the reward socket.
	WSMsg client.Message
	// WSDroppedMsg reports a lost socket; the client is reconnecting.
	WSDroppedMsg struct{ Err error }
	// WatchDoneMsg reports that the socket watch ended for good.
	WatchDoneMsg struct{ Err error }

	progressMsg    struct{ resp *ws.ProgressResponse }
	progressErrMsg struct{ err error }
	tickMsg        time.Time
)

// Model is the root Bubble Tea model.
type Model struct {
	source ProgressSource
	keys   KeyMap
	help   help.Model
	bar    progress.Model
	spin   spinner.Model

	width     int
	connected bool
	now       time.Time

	progress *ws.ProgressResponse
	feed     []string // newest first
	err      error
}

// New creates the dashboard reading progress from source.
func New(source ProgressSource) Model {
	return Model{
		source: source,
		keys:   DefaultKeyMap(),
		help:   help.New(),
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(barWidth),
			progress.WithoutPercentage(),
		),
		spin: spinner.New(spinner.WithSpinner(spinner.Dot)),
		now:  time.Now(),
	}
}

// Err returns the error that ended the watch, if any.
func (m Model) Err() error {
	return m.err
}

// Init loads the first progress and starts the clocks.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.spin.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) fetch() tea.Cmd {
	source := m.source
	if source == nil {
		return nil
	}
	return func() tea.Msg {
		resp, err := source.Progress()
		if err != nil {
			return progressErrMsg{err}
		}
		return progressMsg{resp}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Refresh):
			return m, m.fetch()
		case key.Matches(msg, m.keys.Clear):
			m.feed = nil
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case progressMsg:
		m.progress = msg.resp
		m.err = nil
		return m, nil

	case progressErrMsg:
		m.err = msg.err
		return m, nil

	case WSMsg:
		return m.handleWS(client.Message(msg))

	case WSDroppedMsg:
		m.connected = false
		return m, nil

	case WatchDoneMsg:
		m.connected = false
		m.err = msg.Err
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) handleWS(msg client.Message) (tea.Model, tea.Cmd) {
	if msg.Type == ws.MsgHello {
		m.connected = true
		return m, m.fetch()
	}
	line := FormatMessage(msg)
	if line == "" {
		return m, nil
	}
	m.feed = append([]string{line}, m.feed...)
	if len(m.feed) > maxFeed {
		m.feed = m.feed[:maxFeed]
	}
	return m, m.fetch()
}

// View renders the dashboard.
func (m Model) View() string {
	sections := []string{m.statusLine(), ""}

	if m.progress == nil {
		sections = append(sections, m.spin.View()+" loading progress...")
	} else {
		sections = append(sections, m.progressView()...)
	}

	sections = append(sections, "", ui.H2.Render(ui.IconTrophy+" Rewards"))
	if len(m.feed) == 0 {
		sections = append(sections, ui.Muted.Render("nothing yet this session"))
	}
	sections = append(sections, m.feed...)

	if m.err != nil {
		sections = append(sections, "", ui.Warn.Render(ui.IconWarn+" "+m.err.Error()))
	}
	sections = append(sections, "", m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) statusLine() string {
	user := ""
	if m.progress != nil {
		user = ui.Muted.Render("  " + m.progress.Session.UserID)
	}
	if m.connected {
		return ui.Good.Render("● live") + user
	}
	return ui.Warn.Render(m.spin.View()+" connecting") + user
}

func (m Model) progressView() []string {
	p := m.progress
	lines := []string{
		ui.Heading(ui.IconStar, fmt.Sprintf("Level %d", p.Level.Level)),
		m.bar.ViewAs(p.Level.Pct) + " " +
			ui.Muted.Render(fmt.Sprintf("%d pts, %d to next", p.Level.Points, p.Level.Needed)),
	}
	if snap := p.Progress; snap != nil {
		lines = append(lines,
			ui.LabelValue("Streak", fmt.Sprintf("%s %d days", ui.IconFire, snap.Streak)),
			ui.LabelValue("Today", fmt.Sprintf("%d/%d min", snap.DailyProgress, snap.DailyGoal)),
		)
	}
	lines = append(lines, ui.LabelValue("Coins", fmt.Sprintf("%s %d", ui.IconCoin, p.Coins)))

	var running []string
	for _, pu := range p.PowerUps {
		if pu.EndTime == nil {
			continue
		}
		left := pu.EndTime.Sub(m.now)
		if left <= 0 {
			continue
		}
		running = append(running, fmt.Sprintf("%s %s %s", ui.IconBolt, pu.Name, ui.Gold.Render(Remaining(left))))
	}
	if len(running) > 0 {
		lines = append(lines, "", ui.H2.Render(ui.IconBolt+" Power-ups"))
		lines = append(lines, running...)
	}
	if p.Sync.LastError != "" {
		lines = append(lines, ui.Warn.Render(ui.IconWarn+" last sync failed: "+p.Sync.LastError))
	}
	return lines
}

// Remaining formats a countdown as "4m 05s" or "42s".
func Remaining(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm %02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatMessage renders one notification as a feed line, or "" for
// messages that are not rewards.
func FormatMessage(m client.Message) string {
	switch m.Type {
	case ws.MsgLevelUp:
		p, err := m.Reward()
		if err != nil {
			return ""
		}
		return ui.Gold.Render(fmt.Sprintf("%s LEVEL UP → %d", ui.IconSparkle, p.Level)) + " " + ui.Signed(p.Points)
	case ws.MsgRewardGranted:
		p, err := m.Reward()
		if err != nil {
			return ""
		}
		line := fmt.Sprintf("%s %s %s", ui.IconTrophy, ui.Key.Render(string(p.Kind)), p.Name)
		if p.Points != 0 {
			line += " " + ui.Signed(p.Points)
		}
		return line
	}
	return ""
}
