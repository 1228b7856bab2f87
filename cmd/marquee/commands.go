package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mmcdole/marquee/internal/catalog"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/query"
	"github.com/mmcdole/marquee/internal/session"
	"github.com/mmcdole/marquee/internal/tui"
	"github.com/mmcdole/marquee/internal/tui/styles"
	"github.com/mmcdole/marquee/internal/upload"
)

const listWidth = 80

type commandFunc func(ctx context.Context, a *app, args []string) error

var commands = map[string]commandFunc{
	"browse":  browseCmd,
	"titles":  titlesCmd,
	"search":  searchCmd,
	"show":    showCmd,
	"rate":    rateCmd,
	"publish": publishCmd,
	"update":  updateCmd,
	"delete":  deleteCmd,
	"login":   loginCmd,
	"logout":  logoutCmd,
	"whoami":  whoamiCmd,
	"profile": profileCmd,
}

func parseID(s string) (domain.TitleID, error) {
	id, err := domain.ParseTitleID(s)
	if err != nil {
		return 0, domain.NewValidationError("id", fmt.Sprintf("%q is not a title id", s))
	}
	return id, nil
}

// result unwraps a cache read into a plain value/error pair
func result[T any](res query.Result[T]) (T, error) {
	return res.Value, res.Err
}

func browseCmd(ctx context.Context, a *app, args []string) error {
	p := tea.NewProgram(tui.NewBrowserModel(a.svc), tea.WithAltScreen(), tea.WithContext(ctx))
	a.logger.Info("starting TUI")
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		a.logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

func titlesCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("titles", flag.ContinueOnError)
	typ := fs.String("type", "", "movie or series")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var res query.Result[[]domain.Title]
	if *typ == "" {
		res = a.svc.Titles(ctx)
	} else {
		t := domain.TitleType(*typ)
		if !t.Valid() {
			return domain.NewValidationError("type", "must be movie or series")
		}
		res = a.svc.TitlesByType(ctx, t)
	}
	titles, err := result(res)
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, tui.RenderTitleTable(titles, listWidth))
	return nil
}

func searchCmd(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	local := fs.Bool("local", false, "fuzzy-filter the cached list instead of asking the catalog")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	text := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(text) == "" {
		return errUsage
	}

	if *local {
		if _, err := result(a.svc.Titles(ctx)); err != nil {
			return err
		}
		fmt.Fprint(a.out, tui.RenderMatches(a.svc.FilterCached(text), listWidth))
		return nil
	}

	titles, err := result(a.svc.Search(ctx, text))
	if err != nil {
		return err
	}
	fmt.Fprint(a.out, tui.RenderTitleTable(titles, listWidth))
	return nil
}

func showCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	title, err := result(a.svc.Title(ctx, id))
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, tui.RenderTitleDetail(title, listWidth))

	rating, err := result(a.svc.Ratings(ctx, id))
	switch {
	case err != nil:
		a.logger.Warn("ratings unavailable", "id", id, "error", err)
	case rating == nil:
		fmt.Fprintln(a.out, styles.DimStyle.Render("No ratings yet"))
	default:
		fmt.Fprintf(a.out, "%.1f from %d ratings\n", rating.AverageRating, rating.RatingCount)
	}
	return nil
}

func rateCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 2 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	rating, err := strconv.Atoi(args[1])
	if err != nil {
		return domain.NewValidationError("rating", "must be a number")
	}
	if err := a.svc.Rate(ctx, id, rating); err != nil {
		return err
	}
	fmt.Fprintln(a.out, styles.SuccessStyle.Render(styles.DoneChar+" Rating saved"))
	return nil
}

// draftFlags are shared by publish and update
type draftFlags struct {
	fs          *flag.FlagSet
	title       *string
	description *string
	typ         *string
	video       *string
	cover       *string
}

func newDraftFlags(name string) *draftFlags {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &draftFlags{
		fs:          fs,
		title:       fs.String("title", "", "title name"),
		description: fs.String("description", "", "description"),
		typ:         fs.String("type", "", "movie or series"),
		video:       fs.String("video", "", "video file"),
		cover:       fs.String("cover", "", "cover image file"),
	}
}

// prepareAsset reads path and applies the asset's size and format gate.
// An empty path keeps current.
func prepareAsset(e *upload.Engine, path string, kind upload.Asset, current *domain.Handle) (*domain.Handle, error) {
	if path == "" {
		return current, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	// Reject before reading the file into memory
	if err := e.CheckSize(kind, info.Size()); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return e.PrepareAsset(data, kind)
}

func (f *draftFlags) apply(a *app, d catalog.Draft) (catalog.Draft, error) {
	if *f.title != "" {
		d.Title = *f.title
	}
	if *f.description != "" {
		d.Description = *f.description
	}
	if *f.typ != "" {
		d.Type = domain.TitleType(*f.typ)
	}
	var err error
	if d.Video, err = prepareAsset(a.uploads, *f.video, upload.AssetVideo, d.Video); err != nil {
		return d, err
	}
	if d.CoverImage, err = prepareAsset(a.uploads, *f.cover, upload.AssetImage, d.CoverImage); err != nil {
		return d, err
	}
	return d, nil
}

func publishCmd(ctx context.Context, a *app, args []string) error {
	f := newDraftFlags("publish")
	if err := f.fs.Parse(args); err != nil {
		return errUsage
	}
	draft, err := f.apply(a, catalog.Draft{})
	if err != nil {
		return err
	}
	return a.transfer(ctx, &draft, func(ctx context.Context) (string, error) {
		id, err := a.svc.Publish(ctx, draft)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Added as title #%s", id), nil
	})
}

func updateCmd(ctx context.Context, a *app, args []string) error {
	if len(args) < 1 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	f := newDraftFlags("update")
	if err := f.fs.Parse(args[1:]); err != nil {
		return errUsage
	}

	current, err := result(a.svc.Title(ctx, id))
	if err != nil {
		return err
	}
	draft, err := f.apply(a, catalog.DraftFrom(*current))
	if err != nil {
		return err
	}
	return a.transfer(ctx, &draft, func(ctx context.Context) (string, error) {
		if err := a.svc.Update(ctx, id, draft); err != nil {
			return "", err
		}
		return fmt.Sprintf("Updated title #%s", id), nil
	})
}

// transfer attaches progress reporting to each pending asset of draft and
// runs job: bars on a terminal, percent lines otherwise.
func (a *app) transfer(ctx context.Context, draft *catalog.Draft, job tui.JobFunc) error {
	pending := []struct {
		name string
		h    **domain.Handle
	}{{"video", &draft.Video}, {"cover image", &draft.CoverImage}}

	var rows []tui.AssetRow
	for _, p := range pending {
		if *p.h != nil && (*p.h).Kind() == domain.HandleByBytes {
			rows = append(rows, tui.AssetRow{Name: p.name, Size: (*p.h).Size()})
		}
	}

	if !a.interactive || len(rows) == 0 {
		lp := newLineProgress(a.out)
		for _, p := range pending {
			if *p.h != nil && (*p.h).Kind() == domain.HandleByBytes {
				*p.h = (*p.h).WithProgress(lp.track(p.name))
			}
		}
		msg, err := job(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, msg)
		return nil
	}

	obs := tui.NewChannelObserver(64)
	defer obs.Close()
	row := 0
	for _, p := range pending {
		if *p.h != nil && (*p.h).Kind() == domain.HandleByBytes {
			*p.h = (*p.h).WithProgress(obs.Track(row))
			row++
		}
	}

	model := tui.NewUploadModel(ctx, draft.Title, rows, obs.Events(), job)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	um, _ := final.(tui.UploadModel)
	_, err = um.Outcome()
	return err
}

func deleteCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := a.svc.Delete(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, styles.SuccessStyle.Render(styles.DoneChar+" Deleted title #"+id.String()))
	return nil
}

func loginCmd(ctx context.Context, a *app, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	if a.gate.State() == session.StateAuthenticated {
		if err := a.gate.Logout(); err != nil {
			return err
		}
	}
	if err := a.gate.BeginLogin(); err != nil {
		return err
	}
	if err := a.gate.CompleteLogin(domain.Principal(args[0])); err != nil {
		_ = a.gate.FailLogin()
		return err
	}

	p, _ := a.gate.Principal()
	a.cfg.Identity.Principal = string(p)
	if err := a.cfg.Save(); err != nil {
		return err
	}
	a.logger.Info("identity saved", "principal", p)

	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", p, a.gate.Role(ctx))
	if needs, err := a.svc.NeedsProfileSetup(ctx); err == nil && needs {
		fmt.Fprintln(a.out, styles.DimStyle.Render("No profile yet. Set a display name with: marquee profile <name>"))
	}
	return nil
}

func logoutCmd(ctx context.Context, a *app, args []string) error {
	if a.gate.State() == session.StateAuthenticated {
		if err := a.gate.Logout(); err != nil {
			return err
		}
	}
	a.cfg.Identity.Principal = ""
	if err := a.cfg.Save(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func whoamiCmd(ctx context.Context, a *app, args []string) error {
	p, ok := a.gate.Principal()
	if !ok {
		fmt.Fprintln(a.out, "guest (not logged in)")
		return nil
	}
	role := a.gate.Role(ctx)
	fmt.Fprintf(a.out, "%s\nrole: %s\n", p, role)
	if a.gate.IsAdmin(ctx) {
		fmt.Fprintln(a.out, styles.BadgeStyle.Render("admin"))
	}
	return nil
}

func profileCmd(ctx context.Context, a *app, args []string) error {
	if len(args) > 0 {
		if err := a.svc.SaveProfile(ctx, strings.Join(args, " ")); err != nil {
			return err
		}
		fmt.Fprintln(a.out, styles.SuccessStyle.Render(styles.DoneChar+" Profile saved"))
		return nil
	}

	if err := a.gate.CheckCanAttempt(string(query.OpSaveMyProfile)); err != nil {
		return err
	}
	prof, err := result(a.svc.MyProfile(ctx))
	if err != nil {
		return err
	}
	if prof == nil {
		fmt.Fprintln(a.out, styles.DimStyle.Render("No profile yet"))
		return nil
	}
	fmt.Fprintln(a.out, prof.Name)
	return nil
}

// lineProgress prints percent lines in steps of ten
type lineProgress struct {
	mu   sync.Mutex
	w    io.Writer
	last map[string]int
}

func newLineProgress(w io.Writer) *lineProgress {
	return &lineProgress{w: w, last: make(map[string]int)}
}

func (l *lineProgress) track(name string) domain.ProgressFunc {
	l.last[name] = -1
	return func(pct float64) {
		l.mu.Lock()
		defer l.mu.Unlock()
		step := int(pct) / 10
		if step <= l.last[name] {
			return
		}
		l.last[name] = step
		fmt.Fprintf(l.w, "%s %3d%%\n", name, step*10)
	}
}
