package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/search"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

// BrowserModel lists the catalog with a local fuzzy filter and an inspector
// for the selected title.
type BrowserModel struct {
	svc  Catalog
	keys KeyMap
	help help.Model

	titles  []domain.Title
	matches []search.Match // nil when no filter is applied
	cursor  int

	filter    textinput.Model
	filtering bool

	inspected *domain.Title
	loading   bool
	stale     bool
	status    string
	statusErr bool

	width  int
	height int
}

// NewBrowserModel creates the browser
func NewBrowserModel(svc Catalog) BrowserModel {
	ti := textinput.New()
	ti.Prompt = styles.FilterPromptStyle.Render("/ ")
	ti.Placeholder = "filter titles"

	return BrowserModel{
		svc:     svc,
		keys:    DefaultKeyMap(),
		help:    help.New(),
		filter:  ti,
		loading: true,
		width:   80,
	}
}

func (m BrowserModel) Init() tea.Cmd {
	return LoadTitlesCmd(m.svc)
}

// visible returns the rows currently shown
func (m BrowserModel) visible() []search.Match {
	if m.matches != nil {
		return m.matches
	}
	rows := make([]search.Match, len(m.titles))
	for i, t := range m.titles {
		rows[i] = search.Match{Title: t}
	}
	return rows
}

// Selected returns the title under the cursor
func (m BrowserModel) Selected() (domain.Title, bool) {
	rows := m.visible()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return domain.Title{}, false
	}
	return rows[m.cursor].Title, true
}

func (m *BrowserModel) applyFilter() {
	text := strings.TrimSpace(m.filter.Value())
	if text == "" {
		m.matches = nil
	} else {
		m.matches = m.svc.FilterCached(text)
		if m.matches == nil {
			m.matches = []search.Match{}
		}
	}
	m.clampCursor()
}

func (m *BrowserModel) clampCursor() {
	n := len(m.visible())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case TitlesLoadedMsg:
		m.loading = false
		m.stale = msg.Stale
		if msg.Err != nil {
			m.status, m.statusErr = domain.UserMessage(msg.Err), true
			if msg.Titles == nil {
				return m, nil
			}
		} else {
			m.status, m.statusErr = fmt.Sprintf("%d titles", len(msg.Titles)), false
		}
		m.titles = msg.Titles
		if m.matches != nil {
			m.applyFilter()
		}
		m.clampCursor()
		return m, nil

	case TitleLoadedMsg:
		if msg.Err != nil {
			m.status, m.statusErr = domain.UserMessage(msg.Err), true
			m.inspected = nil
			return m, nil
		}
		m.inspected = msg.Title
		return m, nil

	case StatusMsg:
		m.status, m.statusErr = msg.Message, msg.IsError
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.handleFilterKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m BrowserModel) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue("")
		m.applyFilter()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		m.filtering = false
		m.filter.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	m.applyFilter()
	return m, cmd
}

func (m BrowserModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Enter):
		if t, ok := m.Selected(); ok {
			return m, LoadTitleCmd(m.svc, t.ID)
		}
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		m.status, m.statusErr = "Refreshing...", false
		return m, RefreshTitlesCmd(m.svc)
	case key.Matches(msg, m.keys.Escape):
		m.inspected = nil
		if m.matches != nil {
			m.filter.SetValue("")
			m.applyFilter()
		}
	}
	return m, nil
}

func (m BrowserModel) View() string {
	var b strings.Builder

	b.WriteString(styles.BadgeStyle.Render("marquee"))
	if m.stale {
		b.WriteString(" " + styles.DimBadgeStyle.Render("stale"))
	}
	b.WriteString("\n\n")

	if m.filtering || m.filter.Value() != "" {
		b.WriteString(m.filter.View())
		b.WriteString("\n\n")
	}

	rows := m.visible()
	switch {
	case m.loading && len(rows) == 0:
		b.WriteString(styles.DimStyle.Render("Loading..."))
		b.WriteString("\n")
	case len(rows) == 0 && m.matches != nil:
		b.WriteString(styles.DimStyle.Render("No matches"))
		b.WriteString("\n")
	case len(rows) == 0:
		b.WriteString(styles.DimStyle.Render("No titles"))
		b.WriteString("\n")
	default:
		for i, r := range rows {
			b.WriteString(RenderTitleRow(r, i == m.cursor, m.width))
			b.WriteString("\n")
		}
	}

	if m.inspected != nil {
		b.WriteString("\n")
		b.WriteString(RenderTitleDetail(m.inspected, min(m.width, 72)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.status != "" {
		if m.statusErr {
			b.WriteString(styles.ErrorStyle.Render(m.status))
		} else {
			b.WriteString(styles.DimStyle.Render(m.status))
		}
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
