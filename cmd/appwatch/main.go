package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appwatch/internal/config"
	"appwatch/internal/inventory"
	"appwatch/internal/loop"
	"appwatch/internal/shared"
	"appwatch/internal/telemetry"
	"appwatch/internal/termination"
	"appwatch/internal/ui"

	"github.com/gdamore/tcell/v2"
	"github.com/pkg/browser"
	"golang.org/x/term"
)

/* ---------------- CLI helpers ---------------- */

type runConfig struct {
	configPath    string
	interval      time.Duration
	grace         time.Duration
	filter        string
	once          bool
	format        string
	journalPath   string
	journalPretty bool
	debugLog      string
}

// parseFlags reads the command line. Only flags given explicitly are
// reported in set, so they can take precedence over the config file.
func parseFlags(args []string) (runConfig, map[string]bool, error) {
	fs := flag.NewFlagSet("appwatch", flag.ContinueOnError)

	var rc runConfig
	fs.StringVar(&rc.configPath, "config", "", "Config file (default $APPWATCH_CONFIG or ~/.config/appwatch/config.yaml)")
	fs.DurationVar(&rc.interval, "interval", config.DefaultInterval, "Refresh interval (e.g. 250ms, 1s)")
	fs.DurationVar(&rc.grace, "grace", config.DefaultGrace, "How long a window gets to close before the force prompt")
	fs.StringVar(&rc.filter, "filter", "", "Initial name filter")
	fs.BoolVar(&rc.once, "once", false, "Print one refresh and exit")
	fs.StringVar(&rc.format, "format", "table", "One-shot output format: table, json or yaml")
	fs.StringVar(&rc.journalPath, "log", "", "Append every refresh to a JSON journal (- for stdout)")
	fs.BoolVar(&rc.journalPretty, "log-pretty", false, "Indent the JSON journal")
	fs.StringVar(&rc.debugLog, "debug-log", "", "Write diagnostics to this file")

	if err := fs.Parse(args); err != nil {
		return runConfig{}, nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	switch rc.format {
	case "table", "json", "yaml":
	default:
		return runConfig{}, nil, fmt.Errorf("unknown -format %q", rc.format)
	}
	return rc, set, nil
}

// merge fills everything not given on the command line from cfg.
func merge(rc runConfig, set map[string]bool, cfg config.Config) runConfig {
	if !set["interval"] || rc.interval <= 0 {
		rc.interval = cfg.Refresh.Interval
	}
	if !set["grace"] || rc.grace <= 0 {
		rc.grace = cfg.Termination.Grace
	}
	if !set["filter"] {
		rc.filter = cfg.Filter.Text
	}
	if !set["log"] {
		rc.journalPath = cfg.Journal.Path
	}
	if !set["log-pretty"] {
		rc.journalPretty = cfg.Journal.Pretty
	}
	if !set["debug-log"] {
		rc.debugLog = cfg.Log.Path
	}
	return rc
}

// checkJournal refuses a stdout journal while the TUI owns the terminal. In
// one-shot mode a stdout journal replaces the -format output.
func checkJournal(rc runConfig, interactive bool) error {
	if rc.journalPath == "-" && interactive {
		return errors.New("-log - writes to stdout, which the TUI owns; use -once or a file path")
	}
	return nil
}

// refreshOnResolve re-reads the inventory whenever a close attempt settles.
func refreshOnResolve(ctrl *termination.Controller, engine *inventory.Engine) {
	ctrl.OnResolved(func(termination.Attempt) {
		engine.Refresh()
	})
}

func openLogger(path string) (*log.Logger, func() error, error) {
	if path == "" {
		return log.New(io.Discard, "", 0), func() error { return nil }, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return log.New(f, "[appwatch] ", log.LstdFlags), f.Close, nil
}

/* ---------------- main ---------------- */

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	rc, set, err := parseFlags(args)
	if err != nil {
		return err
	}

	src, err := config.Open(rc.configPath, nil)
	if err != nil {
		return err
	}
	rc = merge(rc, set, src.Config())

	interactive := !rc.once && term.IsTerminal(int(os.Stdout.Fd()))
	if err := checkJournal(rc, interactive); err != nil {
		return err
	}

	logger, closeLog, err := openLogger(rc.debugLog)
	if err != nil {
		return fmt.Errorf("debug log: %w", err)
	}
	defer closeLog()
	src.SetLogger(logger)
	if f := src.File(); f != "" {
		logger.Printf("config file %s", f)
	}

	journal, err := shared.NewJSONLogger(rc.journalPath, rc.journalPretty)
	if err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	defer journal.Close()

	desktop := telemetry.NewDesktop(logger)

	// -------- one-shot mode --------
	if !interactive {
		return runOnce(os.Stdout, desktop, rc, journal, logger)
	}

	// -------- interactive TUI --------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()

	browser.Stdout = logger.Writer()
	browser.Stderr = logger.Writer()

	lp := loop.New()
	engine := inventory.New(desktop, desktop, desktop, lp, inventory.Options{
		Interval: rc.interval,
		Filter:   rc.filter,
		Logger:   logger,
	})
	tui := ui.New(s, ui.Options{
		Engine: engine,
		Queue:  lp,
		Reveal: browser.OpenFile,
		Logger: logger,
	})
	ctrl := termination.New(desktop, desktop, tui, lp, termination.Options{
		Grace:  rc.grace,
		Logger: logger,
	})
	tui.SetTerminator(ctrl)
	refreshOnResolve(ctrl, engine)

	if journal != nil {
		engine.OnUpdate(func(rows []shared.DisplayRow) {
			if err := journal.WriteRows(engine.LastRefresh(), rows); err != nil {
				logger.Printf("journal: %v", err)
			}
		})
	}

	src.Watch(func(c config.Config) {
		lp.Post(func() {
			if !set["interval"] {
				engine.SetInterval(c.Refresh.Interval)
			}
			if !set["grace"] {
				ctrl.SetGrace(c.Termination.Grace)
			}
		})
	})

	engine.Start()
	err = tui.Run(ctx)

	ctrl.Close()
	engine.Stop()
	return err
}

// runOnce waits one interval between two refreshes so the CPU column holds a
// measurement instead of the baseline.
func runOnce(w io.Writer, desktop *telemetry.Desktop, rc runConfig, journal *shared.JSONLogger, logger *log.Logger) error {
	engine := inventory.New(desktop, desktop, desktop, loop.New(), inventory.Options{
		Interval: rc.interval,
		Filter:   rc.filter,
		Logger:   logger,
	})
	defer engine.Stop()

	engine.Refresh()
	time.Sleep(rc.interval)
	engine.Refresh()

	snap := shared.NewLogSnapshot(time.Now(), engine.Rows())
	snap.Windows = engine.WindowCount()
	if err := journal.WriteRows(snap.CapturedAt, engine.Rows()); err != nil {
		logger.Printf("journal: %v", err)
	}
	if rc.journalPath == "-" {
		return nil
	}
	return writeSnapshot(w, rc.format, snap)
}
