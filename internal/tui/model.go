// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/keytally/internal/generator"
	"github.com/verte-zerg/keytally/internal/metrics"
	"github.com/verte-zerg/keytally/internal/model"
	statsPkg "github.com/verte-zerg/keytally/internal/stats"
	"github.com/verte-zerg/keytally/internal/store"
)

const defaultLiveInterval = 500 * time.Millisecond

type liveTickMsg time.Time

// Options carries the collaborators of a practice session.
type Options struct {
	Store    *store.Store
	Gen      *generator.Generator
	Words    []string
	Source   string
	Lesson   string
	PunctSet []rune
	Focus    generator.Focus
	Logger   *slog.Logger
}

// Model implements the Bubble Tea typing UI.
type Model struct {
	config   model.Config
	store    *store.Store
	gen      *generator.Generator
	words    []string
	source   string
	lesson   string
	punctSet []rune
	focus    generator.Focus
	logger   *slog.Logger

	now     func() time.Time
	created time.Time

	width  int
	height int

	targetRunes []rune
	inputRunes  []rune
	keystrokes  []model.KeystrokeEvent

	started   bool
	startedAt time.Time

	live    model.LiveMetrics
	hasLive bool

	lastWPM float64
	lastAcc float64
	hasLast bool

	allWPM      float64
	allAcc      float64
	allWPMSum   float64
	allAccSum   float64
	allDuration int64
}

var (
	correctStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	focusStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#B48EAD"))
	currentWordStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	cursorStyle      = pendingStyle.Underline(true)
	footerStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	liveStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FB069"))
)

// NewModel constructs a typing TUI model.
func NewModel(cfg model.Config, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.LiveInterval <= 0 {
		cfg.LiveInterval = defaultLiveInterval
	}
	m := &Model{
		config:   cfg,
		store:    opts.Store,
		gen:      opts.Gen,
		words:    opts.Words,
		source:   opts.Source,
		lesson:   opts.Lesson,
		punctSet: opts.PunctSet,
		focus:    opts.Focus,
		logger:   logger,
		now:      time.Now,
	}
	m.created = m.now()
	m.resetSession()
	m.loadFooterStats()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.liveTick()
}

func (m *Model) liveTick() tea.Cmd {
	return tea.Tick(m.config.LiveInterval, func(t time.Time) tea.Msg {
		return liveTickMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case liveTickMsg:
		m.refreshLive()
		return m, m.liveTick()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyBackspace, tea.KeyDelete:
			m.handleBackspace()
			return m, nil
		case tea.KeySpace:
			m.handleRunes([]rune{' '})
			return m, nil
		case tea.KeyRunes:
			m.handleRunes(msg.Runes)
			return m, nil
		default:
			return m, nil
		}
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if len(m.targetRunes) == 0 {
		return ""
	}
	cursorIndex := -1
	if len(m.inputRunes) < len(m.targetRunes) {
		cursorIndex = len(m.inputRunes)
	}
	styledRunes := buildStyledRunes(m.targetRunes, m.inputRunes, cursorIndex, m.focus.WeakChars)
	if m.width == 0 || m.height == 0 {
		return renderStyledRunes(styledRunes)
	}
	contentWidth := int(float64(m.width) * 0.70)
	if contentWidth < 1 {
		contentWidth = 1
	}
	wrapped := wrapStyledRunes(styledRunes, contentWidth)
	content := lipgloss.NewStyle().Width(contentWidth).Render(wrapped)
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

// elapsedMs is the keystroke clock: milliseconds since the model was created.
func (m *Model) elapsedMs() int64 {
	return m.now().Sub(m.created).Milliseconds()
}

func (m *Model) handleBackspace() {
	if len(m.inputRunes) == 0 {
		return
	}
	m.inputRunes = m.inputRunes[:len(m.inputRunes)-1]
	m.keystrokes = append(m.keystrokes, model.KeystrokeEvent{
		Key:       model.KeyBackspace,
		EventType: model.EventKeydown,
		Timestamp: m.elapsedMs(),
	})
}

func (m *Model) handleRunes(runes []rune) {
	for _, r := range runes {
		if len(m.inputRunes) >= len(m.targetRunes) {
			return
		}
		if !m.started {
			m.started = true
			m.startedAt = m.now()
		}
		expected := m.targetRunes[len(m.inputRunes)]
		m.inputRunes = append(m.inputRunes, r)
		m.keystrokes = append(m.keystrokes, model.KeystrokeEvent{
			Key:         string(r),
			EventType:   model.EventKeydown,
			Timestamp:   m.elapsedMs(),
			ExpectedKey: string(expected),
		})
		if len(m.inputRunes) == len(m.targetRunes) {
			m.finishSession()
			m.resetSession()
		}
	}
}

func (m *Model) refreshLive() {
	if !m.started {
		return
	}
	m.live = metrics.CalculateLiveMetrics(m.keystrokes, string(m.targetRunes), m.elapsedMs())
	m.hasLive = true
}

func (m *Model) loadFooterStats() {
	if m.store == nil {
		return
	}
	ctx := context.Background()
	sessions, err := m.store.ListSessions(ctx, model.StatsConfig{Lang: m.config.Lang})
	if err != nil {
		m.logger.Error("failed to load session stats", "error", err)
		return
	}
	if len(sessions) == 0 {
		return
	}
	last := sessions[len(sessions)-1]
	m.lastWPM = last.NetWPM
	m.lastAcc = last.Accuracy
	m.hasLast = true

	for _, s := range sessions {
		m.addToAllTime(s.NetWPM, s.Accuracy, s.DurationMs)
	}
}

// addToAllTime folds a session into duration-weighted all-time averages.
func (m *Model) addToAllTime(netWPM, acc float64, durationMs int64) {
	if durationMs <= 0 {
		return
	}
	m.allWPMSum += netWPM * float64(durationMs)
	m.allAccSum += acc * float64(durationMs)
	m.allDuration += durationMs
	m.allWPM = m.allWPMSum / float64(m.allDuration)
	m.allAcc = m.allAccSum / float64(m.allDuration)
}

func (m *Model) renderFooter() string {
	if len(m.targetRunes) == 0 {
		return ""
	}
	progress := int(float64(len(m.inputRunes)) / float64(len(m.targetRunes)) * 100)
	segments := []string{fmt.Sprintf("Progress %d%%", progress)}
	if m.hasLive {
		segments = append(segments, liveStyle.Render(fmt.Sprintf("Live %.1f WPM · %.1f%%", m.live.CurrentWPM, m.live.CurrentAccuracy)))
	}
	if m.hasLast {
		segments = append(segments, fmt.Sprintf("Last %.1f WPM · %.1f%%", m.lastWPM, m.lastAcc))
	}
	segments = append(segments, fmt.Sprintf("All-time %.1f WPM · %.1f%%", m.allWPM, m.allAcc))
	footer := strings.Join(segments, "  ")
	return footerStyle.Render(footer)
}

func (m *Model) resetSession() {
	m.inputRunes = nil
	m.keystrokes = nil
	m.started = false
	m.startedAt = time.Time{}
	m.live = model.LiveMetrics{}
	m.hasLive = false

	m.targetRunes = []rune(m.generateText())
}

func (m *Model) generateText() string {
	if m.lesson != "" {
		return m.lesson
	}
	if m.gen == nil || len(m.words) == 0 {
		return ""
	}
	var words []string
	if m.config.FocusWeak && !m.focus.Empty() {
		words = m.gen.GenerateWeighted(m.words, m.config.Words, m.config.CapsPct, m.config.PunctPct, m.punctSet, m.focus)
	} else {
		words = m.gen.Generate(m.words, m.config.Words, m.config.CapsPct, m.config.PunctPct, m.punctSet)
	}
	return strings.Join(words, " ")
}

func (m *Model) finishSession() {
	if !m.started {
		return
	}
	target := string(m.targetRunes)
	result := metrics.CalculateMetrics(m.keystrokes, target)
	perKey := metrics.GetPerKeyStats(metrics.EnhanceKeystrokes(m.keystrokes))
	sequences := metrics.CalculateSequenceStats(m.keystrokes, target)

	m.lastWPM = result.NetWPM
	m.lastAcc = result.Accuracy
	m.hasLast = true
	m.addToAllTime(result.NetWPM, result.Accuracy, result.DurationMs)

	if m.store == nil {
		return
	}
	stats := model.SessionStats{
		StartedAt: m.startedAt,
		EndedAt:   m.now(),
		Lang:      m.config.Lang,
		Words:     m.config.Words,
		CapsPct:   m.config.CapsPct,
		PunctPct:  m.config.PunctPct,
		PunctSet:  m.config.PunctSet,
		Source:    m.source,
		TargetLen: len(m.targetRunes),
		Metrics:   result,
	}
	ctx := context.Background()
	id, err := m.store.InsertSession(ctx, stats, metrics.ToCharStats(perKey), metrics.ToBigramStats(sequences))
	if err != nil {
		m.logger.Error("failed to save session", "error", err)
		return
	}
	if err := m.store.UpsertKeyStats(ctx, perKey, stats.EndedAt); err != nil {
		m.logger.Error("failed to update key stats", "session_id", id, "error", err)
	}
	m.logger.Info("session saved",
		"session_id", id,
		"net_wpm", result.NetWPM,
		"gross_wpm", result.GrossWPM,
		"accuracy", result.Accuracy,
		"errors", result.Errors,
		"duration_ms", result.DurationMs,
	)

	if m.config.FocusWeak {
		m.refreshFocus()
	}
}

func (m *Model) refreshFocus() {
	ctx := context.Background()
	charAggs, err := m.store.GetWeakChars(ctx, m.config.WeakWindow, m.config.Lang)
	if err != nil {
		m.logger.Error("failed to load weak chars", "error", err)
		return
	}
	bigramAggs, err := m.store.GetSlowBigrams(ctx, m.config.WeakWindow, m.config.Lang)
	if err != nil {
		m.logger.Error("failed to load slow bigrams", "error", err)
		return
	}
	m.focus.WeakChars = statsPkg.SelectWeakChars(charAggs, m.config.WeakTop)
	m.focus.SlowBigrams = statsPkg.BigramSet(statsPkg.SelectSlowBigrams(bigramAggs, m.config.WeakTop))
	if m.focus.Empty() {
		m.logger.Info("no stats available for focus practice yet; using normal generator")
	}
}
