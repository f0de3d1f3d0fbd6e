// Package statusui renders live activity tracker status in the terminal.
package statusui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keytally/internal/model"
)

const (
	pollInterval   = time.Second
	timeoutStep    = time.Second
	minIdleTimeout = time.Second
	maxIdleTimeout = 10 * time.Minute
	maxHistoryRows = 50
)

// Tracker is the activity source the status view polls.
type Tracker interface {
	Metrics() model.ActivitySnapshot
	Reset()
	UpdateConfiguration(idleTimeoutSeconds float64)
	IdleTimeout() time.Duration
}

type pollMsg time.Time

type keyMap struct {
	Reset    key.Binding
	Increase key.Binding
	Decrease key.Binding
	Quit     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Reset, k.Increase, k.Decrease, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reset"),
		),
		Increase: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "idle timeout +1s"),
		),
		Decrease: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "idle timeout -1s"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Model implements the Bubble Tea status view.
type Model struct {
	tracker Tracker
	dirs    []string
	now     func() time.Time

	keys keyMap
	help help.Model

	snapshot model.ActivitySnapshot
	history  table.Model
	rows     []table.Row
	lastKeys int

	width int
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F0F0F0"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	activeBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E1E1E")).Background(lipgloss.Color("#7FB069")).Padding(0, 1)
	pausedBadge = lipgloss.NewStyle().Foreground(lipgloss.Color("#1E1E1E")).Background(lipgloss.Color("#C89A3A")).Padding(0, 1)
)

// NewModel constructs a status view for tracker. dirs are shown in the header.
func NewModel(tracker Tracker, dirs []string) *Model {
	m := &Model{
		tracker: tracker,
		dirs:    dirs,
		now:     time.Now,
		keys:    defaultKeyMap(),
		help:    help.New(),
	}
	m.history = table.New(
		table.WithColumns(historyColumns()),
		table.WithHeight(8),
	)
	m.history.SetStyles(historyTableStyles())
	m.snapshot = tracker.Metrics()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return poll()
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		m.history.SetWidth(msg.Width)
		return m, nil
	case pollMsg:
		m.refresh()
		return m, poll()
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Reset):
			m.tracker.Reset()
			m.rows = nil
			m.lastKeys = 0
			m.history.SetRows(nil)
			m.refresh()
		case key.Matches(msg, m.keys.Increase):
			m.adjustTimeout(timeoutStep)
		case key.Matches(msg, m.keys.Decrease):
			m.adjustTimeout(-timeoutStep)
		}
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) adjustTimeout(delta time.Duration) {
	next := m.tracker.IdleTimeout() + delta
	if next < minIdleTimeout {
		next = minIdleTimeout
	}
	if next > maxIdleTimeout {
		next = maxIdleTimeout
	}
	m.tracker.UpdateConfiguration(next.Seconds())
}

// refresh polls the tracker and appends a history row when new keystrokes arrived.
func (m *Model) refresh() {
	m.snapshot = m.tracker.Metrics()
	if m.snapshot.TotalKeystrokes == m.lastKeys {
		return
	}
	m.lastKeys = m.snapshot.TotalKeystrokes
	m.rows = append(m.rows, historyRow(m.now(), m.snapshot))
	if len(m.rows) > maxHistoryRows {
		m.rows = m.rows[len(m.rows)-maxHistoryRows:]
	}
	m.history.SetRows(m.rows)
	m.history.GotoBottom()
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("keytally watch"))
	b.WriteString("  ")
	b.WriteString(statusBadge(m.snapshot))
	b.WriteString("\n")
	if len(m.dirs) > 0 {
		b.WriteString(labelStyle.Render("watching " + strings.Join(m.dirs, ", ")))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderMetrics(m.snapshot, m.tracker.IdleTimeout()))
	b.WriteString("\n\n")
	if len(m.rows) > 0 {
		b.WriteString(m.history.View())
		b.WriteString("\n\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func statusBadge(s model.ActivitySnapshot) string {
	if s.IsPaused {
		return pausedBadge.Render("PAUSED")
	}
	return activeBadge.Render("ACTIVE")
}

func renderMetrics(s model.ActivitySnapshot, idle time.Duration) string {
	fields := []struct {
		label string
		value string
	}{
		{"WPM", fmt.Sprintf("%.1f", s.WPM)},
		{"Accuracy", fmt.Sprintf("%.1f%%", s.Accuracy)},
		{"Active", FormatActive(s.ActiveDurationMs)},
		{"Keystrokes", fmt.Sprintf("%d", s.TotalKeystrokes)},
		{"Backspaces", fmt.Sprintf("%d", s.Backspaces)},
		{"Idle timeout", idle.String()},
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, labelStyle.Render(f.label+" ")+valueStyle.Render(f.value))
	}
	return strings.Join(parts, "   ")
}

// FormatActive renders an active duration as m:ss.
func FormatActive(ms int64) string {
	secs := ms / 1000
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}

func historyColumns() []table.Column {
	return []table.Column{
		{Title: "Time", Width: 8},
		{Title: "Keys", Width: 6},
		{Title: "WPM", Width: 7},
		{Title: "Accuracy", Width: 9},
		{Title: "Active", Width: 7},
	}
}

func historyRow(at time.Time, s model.ActivitySnapshot) table.Row {
	return table.Row{
		at.Format("15:04:05"),
		fmt.Sprintf("%d", s.TotalKeystrokes),
		fmt.Sprintf("%.1f", s.WPM),
		fmt.Sprintf("%.1f%%", s.Accuracy),
		FormatActive(s.ActiveDurationMs),
	}
}

func historyTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell
	return styles
}
