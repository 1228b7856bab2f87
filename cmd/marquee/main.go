package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/mmcdole/marquee/internal/catalog"
	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/mmcdole/marquee/internal/log"
	"github.com/mmcdole/marquee/internal/query"
	"github.com/mmcdole/marquee/internal/remote"
	"github.com/mmcdole/marquee/internal/session"
	"github.com/mmcdole/marquee/internal/upload"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `usage: marquee [-config path] <command> [args]

commands:
  browse                      interactive catalog browser (default on a terminal)
  titles [-type movie|series] list titles
  search [-local] <text>      search titles
  show <id>                   show a title and its ratings
  rate <id> <1-5>             rate a title
  publish [flags]             upload assets and add a title
  update <id> [flags]         replace a title, keeping assets not given
  delete <id>                 delete a title
  login <name>                set the identity used for requests
  logout                      clear the identity
  whoami                      show identity and role
  profile [name]              show or set the display name
`

func main() {
	var (
		showVersion bool
		configPath  string
	)
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.StringVar(&configPath, "config", config.DefaultPath(), "config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if showVersion {
		fmt.Printf("marquee %s\n", Version)
		return
	}

	if err := run(configPath, flag.Args()); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		slog.Error("command failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %s\n", userMessage(err))
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

// userMessage maps domain errors to their user text and leaves local
// failures (config, files) as they are.
func userMessage(err error) string {
	var verr *domain.ValidationError
	var aerr *domain.AuthorizationError
	var uerr *domain.UploadError
	switch {
	case errors.As(err, &verr), errors.As(err, &aerr), errors.As(err, &uerr),
		errors.Is(err, domain.ErrTitleNotFound), errors.Is(err, domain.ErrServerOffline),
		errors.Is(err, domain.ErrHandleUnusable):
		return domain.UserMessage(err)
	default:
		return err.Error()
	}
}

// app holds the wired components for one invocation
type app struct {
	cfg         *config.Config
	logger      *slog.Logger
	svc         *catalog.Service
	gate        *session.Gate
	uploads     *upload.Engine
	out         io.Writer
	interactive bool
	closers     []io.Closer
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i].Close()
	}
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg, out: os.Stdout, interactive: term.IsTerminal(int(os.Stdout.Fd()))}

	logger, closer, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	} else {
		a.closers = append(a.closers, closer)
	}
	slog.SetDefault(logger)
	a.logger = logger

	logger.Info("starting marquee", "version", Version, "remote", cfg.Remote.Type)

	client, closer, err := remote.NewClient(cfg, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create catalog client: %w", err)
	}
	a.closers = append(a.closers, closer)

	cache := query.New(logger, query.WithFetchTimeout(cfg.Cache.FetchTimeout))
	a.gate = session.NewGate(client, cache, logger)
	if cfg.HasIdentity() {
		if err := a.gate.Resume(domain.Principal(cfg.Identity.Principal)); err != nil {
			logger.Warn("could not restore identity", "error", err)
		}
	}

	a.uploads = upload.NewEngine(client, upload.Config{
		ChunkSize:    cfg.Upload.ChunkSize,
		MaxVideoSize: cfg.Upload.MaxVideoSize,
		MaxImageSize: cfg.Upload.MaxImageSize,
	}, logger)
	a.svc = catalog.NewService(client, cache, a.gate, a.uploads, logger)
	return a, nil
}

func run(configPath string, args []string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := "browse"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}
	if cmd == "browse" && !a.interactive {
		cmd = "titles"
	}

	handler, ok := commands[cmd]
	if !ok {
		return errUsage
	}
	a.logger.Debug("running command", "command", cmd, "args", len(args))
	return handler(ctx, a, args)
}
