// Package tui renders the player in the terminal: the playlist with the
// active track centered, a transport/progress footer, and overlay input
// modes for search and the sleep timer.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/tapedeck-player/tapedeck/internal/session"
	"github.com/tapedeck-player/tapedeck/internal/sleeptimer"
)

type mode int

const (
	modeList mode = iota
	modeSearch
	modeTimer
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	activeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type stateMsg session.Snapshot

type tickMsg time.Time

type settleMsg struct{}

type seekCommitMsg struct{ seq int }

type reloadDoneMsg struct{ err error }

// Model is the bubbletea model for the player.
type Model struct {
	log     *zap.Logger
	session *session.Session
	timer   *sleeptimer.Timer
	reload  func() error

	snap   session.Snapshot
	width  int
	height int
	mode   mode
	input  textinput.Model

	matches  []session.Match
	selected int

	seekSeq     int
	seeking     bool
	seekPreview float64
	lastErr     error
	settled     bool
}

// New creates the model. reload runs a full playlist refetch and is invoked
// on its own goroutine.
func New(log *zap.Logger, sess *session.Session, timer *sleeptimer.Timer, reload func() error) Model {
	input := textinput.New()
	input.CharLimit = 64
	input.Width = 30
	return Model{
		log:     log,
		session: sess,
		timer:   timer,
		reload:  reload,
		snap:    sess.Snapshot(),
		input:   input,
	}
}

// Run wires the session's change feed into a bubbletea program and blocks
// until the user quits.
func Run(m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	m.session.OnChange(func(snap session.Snapshot) {
		p.Send(stateMsg(snap))
	})
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(),
		// Let the list settle before the first centering pass.
		tea.Tick(500*time.Millisecond, func(time.Time) tea.Msg { return settleMsg{} }),
	)
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case stateMsg:
		m.snap = session.Snapshot(msg)
		return m, nil

	case settleMsg:
		m.settled = true
		return m, nil

	case tickMsg:
		return m, tick()

	case reloadDoneMsg:
		m.lastErr = msg.err
		if msg.err != nil {
			m.log.Warn("reload failed", zap.Error(msg.err))
		}
		return m, nil

	case seekCommitMsg:
		if msg.seq == m.seekSeq && m.seeking {
			m.seeking = false
			m.session.SeekCommit(m.seekPreview)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeTimer:
			return m.updateTimer(msg)
		default:
			return m.updateList(msg)
		}
	}
	return m, nil
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ":
		m.session.Toggle()
	case "n", "down":
		m.session.Navigate(1)
	case "p", "up":
		m.session.Navigate(-1)
	case "s":
		m.session.Shuffle()
	case "r":
		m.lastErr = nil
		reload := m.reload
		return m, func() tea.Msg { return reloadDoneMsg{err: reload()} }
	case "enter":
		m.session.SelectAndPlay(m.snap.Index)
	case "left", "right":
		step := 10.0
		if msg.String() == "left" {
			step = -10
		}
		if !m.seeking {
			m.seeking = true
			m.seekPreview = m.snap.CurrentTime
		}
		m.seekPreview += step
		if m.seekPreview < 0 {
			m.seekPreview = 0
		}
		m.seekSeq++
		seq := m.seekSeq
		m.session.SeekPreview(m.seekPreview)
		// Commit once the arrows stop for a beat.
		return m, tea.Tick(400*time.Millisecond, func(time.Time) tea.Msg {
			return seekCommitMsg{seq: seq}
		})
	case "/":
		m.mode = modeSearch
		m.input.Placeholder = "search titles"
		m.input.SetValue("")
		m.input.Focus()
		m.matches = nil
		m.selected = 0
	case "t":
		m.mode = modeTimer
		m.input.Placeholder = "hh:mm (empty cancels)"
		m.input.SetValue("")
		m.input.Focus()
	}
	return m, nil
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		m.matches = nil
		return m, nil
	case "up":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down":
		if m.selected < len(m.matches)-1 {
			m.selected++
		}
		return m, nil
	case "enter":
		if m.selected < len(m.matches) {
			m.session.SelectAndPlay(m.matches[m.selected].Index)
		}
		m.mode = modeList
		m.matches = nil
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.matches = session.Search(m.snap.Items, m.input.Value())
	if m.selected >= len(m.matches) {
		m.selected = 0
	}
	return m, cmd
}

func (m Model) updateTimer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modeList
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		if value == "" {
			m.timer.Cancel()
		} else if err := m.timer.Start(value); err != nil {
			m.lastErr = err
		}
		m.mode = modeList
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("tapedeck"))
	b.WriteString("\n\n")

	switch {
	case m.mode == modeSearch:
		b.WriteString(m.viewSearch())
	case m.snap.Loading:
		b.WriteString(dimStyle.Render("loading playlist..."))
		b.WriteString("\n")
	default:
		b.WriteString(m.viewList())
	}

	b.WriteString("\n")
	b.WriteString(m.viewFooter())
	return b.String()
}

// viewList renders a window of the playlist with the active track centered,
// mirroring a list view that scrolls the selection into the middle.
func (m Model) viewList() string {
	items := m.snap.Items
	if len(items) == 0 {
		return dimStyle.Render("playlist empty, press r to reload") + "\n"
	}

	rows := m.listHeight()
	start := 0
	if m.settled && m.snap.Index >= 0 {
		start = m.snap.Index - rows/2
	}
	if start > len(items)-rows {
		start = len(items) - rows
	}
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	for i := start; i < start+rows && i < len(items); i++ {
		line := runewidth.Truncate(items[i].Title, m.width-4, "…")
		if i == m.snap.Index {
			marker := "▶"
			if !m.snap.Playing {
				marker = "⏸"
			}
			b.WriteString(activeStyle.Render(fmt.Sprintf(" %s %s ", marker, line)))
		} else {
			b.WriteString(fmt.Sprintf("   %s", line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewSearch() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	titles := lo.Map(m.matches, func(match session.Match, _ int) string {
		return runewidth.Truncate(match.Item.Title, m.width-4, "…")
	})
	rows := m.listHeight()
	for i, title := range titles {
		if i >= rows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  … %d more", len(titles)-rows)))
			b.WriteString("\n")
			break
		}
		if i == m.selected {
			b.WriteString(selectedStyle.Render(fmt.Sprintf(" > %s", title)))
		} else {
			b.WriteString(fmt.Sprintf("   %s", title))
		}
		b.WriteString("\n")
	}
	if len(titles) == 0 && m.input.Value() != "" {
		b.WriteString(dimStyle.Render("  no matches"))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) viewFooter() string {
	var b strings.Builder

	if item, ok := m.snap.Current(); ok {
		b.WriteString(runewidth.Truncate(item.Title, m.width-2, "…"))
		b.WriteString("\n")
		b.WriteString(m.progressBar())
		b.WriteString("\n")
	}

	if m.timer.Active() {
		remaining := m.timer.Remaining().Round(time.Second)
		b.WriteString(dimStyle.Render(fmt.Sprintf("sleep in %s", remaining)))
		b.WriteString("\n")
	}
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(m.lastErr.Error()))
		b.WriteString("\n")
	}

	switch m.mode {
	case modeSearch:
		b.WriteString(dimStyle.Render("enter select • esc close"))
	case modeTimer:
		b.WriteString(m.input.View())
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("enter set • esc close"))
	default:
		b.WriteString(dimStyle.Render("space play/pause • n/p track • ←/→ seek • s shuffle • / search • t timer • r reload • q quit"))
	}
	return b.String()
}

func (m Model) progressBar() string {
	width := m.width - 16
	if width < 10 {
		width = 10
	}
	filled := int(m.snap.Progress() / 100 * float64(width))
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %s/%s",
		bar,
		formatSeconds(m.snap.CurrentTime),
		formatSeconds(m.snap.Duration),
	)
}

func (m Model) listHeight() int {
	h := m.height - 8
	if h < 3 {
		h = 3
	}
	return h
}

func formatSeconds(s float64) string {
	d := time.Duration(s) * time.Second
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
