package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/query"
	"github.com/mmcdole/marquee/internal/search"
)

type fakeCatalog struct {
	mu        sync.Mutex
	titles    []domain.Title
	err       error
	refreshed []query.Key
}

func (f *fakeCatalog) Titles(ctx context.Context) query.Result[[]domain.Title] {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return query.Result[[]domain.Title]{Status: query.StatusError, Err: f.err}
	}
	return query.Result[[]domain.Title]{Status: query.StatusSuccess, Value: f.titles, HasValue: true}
}

func (f *fakeCatalog) Title(ctx context.Context, id domain.TitleID) query.Result[*domain.Title] {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.titles {
		if t.ID == id {
			return query.Result[*domain.Title]{Status: query.StatusSuccess, Value: &t, HasValue: true}
		}
	}
	return query.Result[*domain.Title]{Status: query.StatusError, Err: domain.ErrTitleNotFound}
}

func (f *fakeCatalog) FilterCached(text string, types ...domain.TitleType) []search.Match {
	f.mu.Lock()
	defer f.mu.Unlock()
	return search.NewIndex(f.titles).Filter(text, types...)
}

func (f *fakeCatalog) Refresh(key query.Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, key)
}

func sampleTitles() []domain.Title {
	return []domain.Title{
		{ID: 1, Title: "Alien", Description: "Space horror", Type: domain.TitleTypeMovie, AverageRating: 4.5, RatingCount: 2},
		{ID: 2, Title: "Breaking Bad", Description: "A chemistry teacher", Type: domain.TitleTypeSeries},
		{ID: 3, Title: "Heat", Description: "Heist thriller", Type: domain.TitleTypeMovie},
	}
}

func browse(t *testing.T, m BrowserModel, msg tea.Msg) (BrowserModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	bm, ok := next.(BrowserModel)
	require.True(t, ok)
	return bm, cmd
}

func loadedBrowser(t *testing.T) (BrowserModel, *fakeCatalog) {
	t.Helper()
	svc := &fakeCatalog{titles: sampleTitles()}
	m := NewBrowserModel(svc)
	msg := m.Init()()
	m, _ = browse(t, m, msg)
	return m, svc
}

func TestBrowser_ListsTitles(t *testing.T) {
	m, _ := loadedBrowser(t)

	view := m.View()
	assert.Contains(t, view, "Alien")
	assert.Contains(t, view, "Breaking Bad")
	assert.Contains(t, view, "4.5 (2)")
	assert.Contains(t, view, "unrated")
	assert.Contains(t, view, "3 titles")
}

func TestBrowser_Navigation(t *testing.T) {
	m, _ := loadedBrowser(t)

	m, _ = browse(t, m, keyPress("j"))
	m, _ = browse(t, m, keyPress("j"))
	m, _ = browse(t, m, keyPress("j"))
	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "Heat", sel.Title, "cursor stops at the last row")

	m, _ = browse(t, m, keyPress("k"))
	sel, _ = m.Selected()
	assert.Equal(t, "Breaking Bad", sel.Title)
}

func TestBrowser_FilterUsesCachedTitles(t *testing.T) {
	m, _ := loadedBrowser(t)

	m, _ = browse(t, m, keyPress("/"))
	require.True(t, m.filtering)
	for _, r := range "heat" {
		m, _ = browse(t, m, keyPress(string(r)))
	}

	rows := m.visible()
	require.Len(t, rows, 1)
	assert.Equal(t, "Heat", rows[0].Title.Title)
	assert.NotEmpty(t, rows[0].MatchedIndexes)

	m, _ = browse(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.False(t, m.filtering)
	assert.Len(t, m.visible(), 1, "filter stays applied after editing")

	m, _ = browse(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Len(t, m.visible(), 3)
}

func TestBrowser_FilterNoMatches(t *testing.T) {
	m, _ := loadedBrowser(t)
	m, _ = browse(t, m, keyPress("/"))
	for _, r := range "zzzz" {
		m, _ = browse(t, m, keyPress(string(r)))
	}
	assert.Empty(t, m.visible())
	assert.Contains(t, m.View(), "No matches")
}

func TestBrowser_InspectSelected(t *testing.T) {
	m, _ := loadedBrowser(t)

	_, cmd := browse(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	loaded, ok := msg.(TitleLoadedMsg)
	require.True(t, ok)
	assert.Equal(t, domain.TitleID(1), loaded.ID)

	m, _ = browse(t, m, msg)
	assert.Contains(t, m.View(), "Space horror")

	m, _ = browse(t, m, TitleLoadedMsg{ID: 9, Err: domain.ErrTitleNotFound})
	assert.Nil(t, m.inspected)
	assert.Contains(t, m.View(), domain.UserMessage(domain.ErrTitleNotFound))
}

func TestBrowser_RefreshInvalidatesList(t *testing.T) {
	m, svc := loadedBrowser(t)

	m, cmd := browse(t, m, keyPress("r"))
	require.NotNil(t, cmd)
	assert.True(t, m.loading)

	m, _ = browse(t, m, cmd())
	assert.Equal(t, []query.Key{query.TitlesKey()}, svc.refreshed)
	assert.False(t, m.loading)
}

func TestBrowser_LoadError(t *testing.T) {
	svc := &fakeCatalog{err: domain.ErrServerOffline}
	m := NewBrowserModel(svc)
	m, _ = browse(t, m, m.Init()())

	view := m.View()
	assert.Contains(t, view, domain.UserMessage(domain.ErrServerOffline))
	assert.Contains(t, view, "No titles")
}

func TestRenderTitleTable(t *testing.T) {
	out := RenderTitleTable(sampleTitles(), 80)
	assert.Equal(t, 3, strings.Count(out, "\n"))
	assert.Contains(t, out, "#2")
	assert.Contains(t, out, "Series")

	assert.Contains(t, RenderTitleTable(nil, 80), "No titles")
}
