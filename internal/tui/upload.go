package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/tui/styles"
)

const (
	defaultBarWidth = 40
	maxBarWidth     = 60
)

// JobFunc performs the publish and returns a line describing the outcome
type JobFunc func(ctx context.Context) (string, error)

// AssetRow describes one payload shown with its own bar
type AssetRow struct {
	Name string
	Size int64
}

type assetRow struct {
	AssetRow
	percent float64
	failed  bool
	bar     progress.Model
}

// UploadModel shows per-asset progress of a publish job and exits when the
// job finishes. Quit while running cancels the job and waits for it to stop.
type UploadModel struct {
	title   string
	rows    []assetRow
	labelW  int
	spinner spinner.Model
	keys    KeyMap
	help    help.Model

	events <-chan ProgressMsg
	run    JobFunc
	ctx    context.Context
	cancel context.CancelFunc

	done      bool
	cancelled bool
	result    string
	err       error
}

// NewUploadModel creates the model. Rows are indexed the same way as the
// Asset field of the ProgressMsg values arriving on events.
func NewUploadModel(ctx context.Context, title string, assets []AssetRow, events <-chan ProgressMsg, run JobFunc) UploadModel {
	ctx, cancel := context.WithCancel(ctx)

	rows := make([]assetRow, len(assets))
	labelW := 0
	for i, a := range assets {
		rows[i] = assetRow{
			AssetRow: a,
			bar: progress.New(
				progress.WithSolidFill(string(styles.Marquee)),
				progress.WithoutPercentage(),
				progress.WithWidth(defaultBarWidth),
			),
		}
		labelW = max(labelW, lipgloss.Width(a.Name))
	}

	return UploadModel{
		title:   title,
		rows:    rows,
		labelW:  labelW,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.AccentStyle)),
		keys:    DefaultKeyMap(),
		help:    help.New(),
		events:  events,
		run:     run,
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (m UploadModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		runJobCmd(m.ctx, m.run),
		listenProgressCmd(m.ctx, m.events),
	)
}

func (m UploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := min(maxBarWidth, msg.Width-m.labelW-30)
		for i := range m.rows {
			m.rows[i].bar.Width = max(10, w)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			if m.done {
				return m, tea.Quit
			}
			m.cancelled = true
			m.cancel()
		}
		return m, nil

	case ProgressMsg:
		if msg.Asset >= 0 && msg.Asset < len(m.rows) && msg.Percent > m.rows[msg.Asset].percent {
			m.rows[msg.Asset].percent = msg.Percent
		}
		if m.done {
			return m, nil
		}
		return m, listenProgressCmd(m.ctx, m.events)

	case PublishDoneMsg:
		m.done = true
		m.result, m.err = msg.Result, msg.Err
		for i := range m.rows {
			if msg.Err == nil {
				m.rows[i].percent = 100
			} else if m.rows[i].percent < 100 {
				m.rows[i].failed = true
			}
		}
		m.cancel()
		return m, tea.Quit

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m UploadModel) View() string {
	var b strings.Builder

	switch {
	case !m.done && m.cancelled:
		b.WriteString(m.spinner.View() + " " + styles.DimStyle.Render("Cancelling "+m.title+"..."))
	case !m.done:
		b.WriteString(m.spinner.View() + " " + styles.TitleStyle.Render("Publishing "+m.title))
	case m.err != nil:
		b.WriteString(styles.ErrorStyle.Render(styles.FailedChar + " Could not publish " + m.title))
	default:
		b.WriteString(styles.SuccessStyle.Render(styles.DoneChar + " Published " + m.title))
	}
	b.WriteString("\n\n")

	for _, r := range m.rows {
		b.WriteString("  ")
		b.WriteString(styles.Pad(r.Name, m.labelW))
		b.WriteString("  ")
		b.WriteString(r.bar.ViewAs(r.percent / 100))
		b.WriteString("  ")
		switch {
		case r.failed:
			b.WriteString(styles.ErrorStyle.Render(styles.FailedChar + " failed"))
		case r.percent >= 100:
			b.WriteString(styles.SuccessStyle.Render(styles.DoneChar + " 100%"))
		default:
			b.WriteString(fmt.Sprintf("%3.0f%%", r.percent))
		}
		b.WriteString("  ")
		b.WriteString(styles.DimStyle.Render(transferred(r.Size, r.percent)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString("  " + styles.ErrorStyle.Render(domain.UserMessage(m.err)) + "\n")
	case m.done && m.result != "":
		b.WriteString("  " + styles.SubtitleStyle.Render(m.result) + "\n")
	case !m.done:
		b.WriteString("  " + m.help.ShortHelpView([]key.Binding{m.keys.Quit}) + "\n")
	}

	return styles.PanelStyle.Render(b.String())
}

// Outcome returns the job result once the program has exited
func (m UploadModel) Outcome() (string, error) {
	if !m.done {
		return "", context.Canceled
	}
	return m.result, m.err
}

func transferred(size int64, percent float64) string {
	sent := uint64(float64(size) * min(percent, 100) / 100)
	return humanize.IBytes(sent) + " / " + humanize.IBytes(uint64(size))
}
