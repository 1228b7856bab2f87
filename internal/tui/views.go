package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/search"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

const (
	idWidth     = 6
	typeWidth   = 8
	ratingWidth = 10
)

// RenderTitleRow renders one catalog row. Highlight offsets come from a
// fuzzy match against the name.
func RenderTitleRow(m search.Match, selected bool, width int) string {
	t := m.Title
	nameW := max(10, width-idWidth-typeWidth-ratingWidth-6)

	name := styles.Truncate(t.Title, nameW)
	if name == t.Title {
		name = styles.Highlight(name, m.MatchedIndexes, selected)
	}

	cursor := "  "
	if selected {
		cursor = styles.AccentStyle.Render("> ")
	}

	row := cursor +
		styles.DimStyle.Render(styles.Pad("#"+t.ID.String(), idWidth)) + " " +
		styles.SubtitleStyle.Render(styles.Pad(t.Type.Label(), typeWidth)) + " " +
		styles.Pad(name, nameW) + " " +
		styles.DimStyle.Render(t.FormattedRating())
	if m.InDescription {
		row += " " + styles.DimStyle.Render("(description)")
	}
	return row
}

// RenderTitleTable renders a plain title listing
func RenderTitleTable(titles []domain.Title, width int) string {
	if len(titles) == 0 {
		return styles.DimStyle.Render("No titles") + "\n"
	}
	var b strings.Builder
	for _, t := range titles {
		b.WriteString(RenderTitleRow(search.Match{Title: t}, false, width))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderMatches renders filter results with their highlights
func RenderMatches(matches []search.Match, width int) string {
	if len(matches) == 0 {
		return styles.DimStyle.Render("No matches") + "\n"
	}
	var b strings.Builder
	for _, m := range matches {
		b.WriteString(RenderTitleRow(m, false, width))
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTitleDetail renders the inspector view of a title
func RenderTitleDetail(t *domain.Title, width int) string {
	if t == nil {
		return ""
	}
	inner := max(20, width-4)

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(t.Title))
	b.WriteString("  ")
	b.WriteString(styles.BadgeStyle.Render(t.Type.Label()))
	b.WriteString("\n")
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("Rating: %s", t.FormattedRating())))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(inner).Render(t.Description))
	b.WriteString("\n\n")
	b.WriteString(urlLine("Video", t.Video))
	b.WriteString(urlLine("Cover", t.CoverImage))

	return styles.InspectorStyle.Width(inner + 2).Render(strings.TrimRight(b.String(), "\n"))
}

func urlLine(label string, h *domain.Handle) string {
	url := "-"
	if h != nil {
		if u, err := h.ResolveURL(); err == nil {
			url = u
		}
	}
	return styles.DimStyle.Render(styles.Pad(label, 6)) + url + "\n"
}
