package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	errs "github.com/matzehuels/tanglescope/pkg/errors"
	"github.com/matzehuels/tanglescope/pkg/visualizer"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

const refreshInterval = 250 * time.Millisecond

// =============================================================================
// watchModel - Interactive feed view
// =============================================================================

// watchController is the part of [visualizer.Runner] the view drives.
type watchController interface {
	Stats(ctx context.Context) (visualizer.Stats, error)
	Recent(ctx context.Context, n int) ([]visualizer.NodeView, error)
	Select(id string)
	Search(pattern string)
}

type (
	tickMsg    time.Time
	refreshMsg struct {
		stats  visualizer.Stats
		recent []visualizer.NodeView
		err    error
	}
	feedDoneMsg struct{ err error }
)

// watchModel is the bubbletea model behind watch --tui.
type watchModel struct {
	ctx    context.Context
	ctl    watchController
	feed   <-chan error
	search textinput.Model

	stats   visualizer.Stats
	recent  []visualizer.NodeView
	cursor  int
	height  int
	err     error
	feedEnd bool
	feedErr error
}

// newWatchModel creates the view. feed receives the source's result when it
// stops; it may be nil.
func newWatchModel(ctx context.Context, ctl watchController, feed <-chan error) watchModel {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search id or payload (regex)"
	ti.CharLimit = errs.MaxPatternLength
	return watchModel{ctx: ctx, ctl: ctl, feed: feed, search: ti, height: 15}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick(), m.waitFeed())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m watchModel) refresh() tea.Cmd {
	n := m.height
	return func() tea.Msg {
		st, err := m.ctl.Stats(m.ctx)
		if err != nil {
			return refreshMsg{err: err}
		}
		recent, err := m.ctl.Recent(m.ctx, n)
		return refreshMsg{stats: st, recent: recent, err: err}
	}
}

func (m watchModel) waitFeed() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return func() tea.Msg { return feedDoneMsg{err: <-m.feed} }
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())

	case refreshMsg:
		m.err = msg.err
		if msg.err == nil {
			m.stats = msg.stats
			m.recent = msg.recent
			m.cursor = min(m.cursor, max(len(m.recent)-1, 0))
		}
		return m, nil

	case feedDoneMsg:
		m.feedEnd = true
		m.feedErr = msg.err
		return m, nil

	case tea.WindowSizeMsg:
		m.height = max(msg.Height-12, 5)
		return m, m.refresh()

	case tea.KeyMsg:
		if m.search.Focused() {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "/":
			cmd := m.search.Focus()
			return m, cmd
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.recent)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.recent) {
				m.ctl.Select(m.recent[m.cursor].ID)
				return m, m.refresh()
			}
		case "esc", "x":
			m.ctl.Select("")
			return m, m.refresh()
		}
	}
	return m, nil
}

// updateSearch handles keys while the search box has focus. Every edit is
// sent to the controller, which debounces it.
func (m watchModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.search.Blur()
		return m, nil
	case "esc":
		m.search.Blur()
		if m.search.Value() != "" {
			m.search.SetValue("")
			m.ctl.Search("")
		}
		return m, nil
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.ctl.Search(v)
	}
	return m, cmd
}

func (m watchModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("tanglescope"))
	b.WriteString("  ")
	b.WriteString(m.statusLine())
	b.WriteString("\n\n")
	b.WriteString(m.search.View())
	if s := m.stats.Search; s.Active {
		if s.Invalid {
			b.WriteString("  " + StyleWarning.Render("invalid pattern"))
		} else {
			b.WriteString("  " + StyleDim.Render(fmt.Sprintf("%d matches", s.Matches)))
		}
	}
	b.WriteString("\n\n")
	b.WriteString(m.table())
	b.WriteString("\n")
	if m.stats.Selected != "" {
		b.WriteString(listSelectedStyle.Render("selected " + shortID(m.stats.Selected)))
		b.WriteString(StyleDim.Render(fmt.Sprintf("  %d cone edges", m.stats.ConeEdges)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(StyleWarning.Render(m.err.Error()) + "\n")
	}
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  x clear  / search  q quit"))
	return b.String()
}

func (m watchModel) statusLine() string {
	parts := []string{
		fmt.Sprintf("%d/%d nodes", m.stats.Nodes, m.stats.MaxItems),
		fmt.Sprintf("%d edges", m.stats.Edges),
		fmt.Sprintf("%d pending", m.stats.Placeholders),
		fmt.Sprintf("%d evicted", m.stats.Totals.Evicted),
	}
	line := StyleDim.Render(strings.Join(parts, " · "))
	switch {
	case m.feedErr != nil:
		line += "  " + StyleWarning.Render("feed failed")
	case m.feedEnd:
		line += "  " + StyleDim.Render("feed finished")
	default:
		line += "  " + StyleSuccess.Render("live")
	}
	return line
}

func (m watchModel) table() string {
	rows := make([][]string, 0, len(m.recent))
	for i, n := range m.recent {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}
		value := "—"
		if n.Value != 0 {
			value = strconv.FormatUint(n.Value, 10)
		}
		rows = append(rows, []string{cursor, shortID(n.ID), n.State, value, strconv.Itoa(len(n.Parents))})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Transaction", "State", "Value", "Parents").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row >= len(m.recent) {
				return lipgloss.NewStyle()
			}
			n := m.recent[row]
			base := lipgloss.NewStyle()
			if col == 2 && n.Style.Color != "" {
				base = base.Foreground(lipgloss.Color(n.Style.Color))
			}
			if n.Highlighted {
				base = base.Underline(true)
			}
			if row == m.cursor {
				return base.Bold(true)
			}
			return base
		}).
		Render()
}

// shortID abbreviates long transaction hashes for display.
func shortID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "…" + id[len(id)-6:]
}
