package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/query"
	"github.com/mmcdole/marquee/internal/search"
)

const loadTimeout = 30 * time.Second

// Catalog is the read surface the browser needs
type Catalog interface {
	Titles(ctx context.Context) query.Result[[]domain.Title]
	Title(ctx context.Context, id domain.TitleID) query.Result[*domain.Title]
	FilterCached(text string, types ...domain.TitleType) []search.Match
	Refresh(key query.Key)
}

// LoadTitlesCmd reads the title list through the cache
func LoadTitlesCmd(svc Catalog) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		res := svc.Titles(ctx)
		return TitlesLoadedMsg{Titles: res.Value, Stale: res.Stale, Err: res.Err}
	}
}

// RefreshTitlesCmd marks the list stale and reads it again
func RefreshTitlesCmd(svc Catalog) tea.Cmd {
	return func() tea.Msg {
		svc.Refresh(query.TitlesKey())
		return LoadTitlesCmd(svc)()
	}
}

// LoadTitleCmd reads one title for the inspector
func LoadTitleCmd(svc Catalog, id domain.TitleID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		res := svc.Title(ctx, id)
		return TitleLoadedMsg{ID: id, Title: res.Value, Err: res.Err}
	}
}

// listenProgressCmd reads one progress event. The model re-issues it after
// each event until the job finishes.
func listenProgressCmd(ctx context.Context, events <-chan ProgressMsg) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-ctx.Done():
			return nil
		}
	}
}

// runJobCmd executes the publish job in the background
func runJobCmd(ctx context.Context, run JobFunc) tea.Cmd {
	return func() tea.Msg {
		result, err := run(ctx)
		return PublishDoneMsg{Result: result, Err: err}
	}
}
