package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"notescli/internal/app/backend"
	"notescli/internal/app/exporter"
	"notescli/internal/app/render"
	"notescli/internal/config"
	"notescli/internal/domain/notes"
	"notescli/internal/infra/notesdb"
	"notescli/internal/infra/osascript"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: notescli [flags] <command> [args]

Commands:
  accounts              list accounts
  folders               list folders in the account
  notes                 list notes (optionally -folder "A/B")
  show <note-id>        print one note as Markdown
  export                export the account to -out
  new-note              create a note (-folder, -title, body on stdin)
  delete-note <id>      delete a note
  new-folder <name>     create a folder (under -folder when given)

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	_ = godotenv.Load()

	var (
		configPath  = flag.String("config", "", "config file path")
		account     = flag.String("account", "", "account name")
		mode        = flag.String("backend", "", "backend mode: auto, db or automation")
		out         = flag.String("out", "", "export output directory")
		jobs        = flag.Int("jobs", 0, "export worker count")
		folder      = flag.String("folder", "", `folder path, segments separated by "/"`)
		title       = flag.String("title", "", "note title for new-note")
		includeHTML = flag.Bool("include-html", false, "also export contents.html for HTML bodies")
		debug       = flag.Bool("debug", false, "verbose logging")
	)
	flag.Usage = usage
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *account != "" {
		cfg.Account = *account
	}
	if *mode != "" {
		cfg.Backend = *mode
	}
	if *out != "" {
		cfg.Output = *out
	}
	if *jobs != 0 {
		cfg.Jobs = *jobs
	}
	if *includeHTML {
		cfg.IncludeHTML = true
	}
	if *debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	log := newLogger(cfg.Debug)

	b, cleanup, err := buildBackend(cfg, log)
	if err != nil {
		fatal(err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := flag.Arg(0)
	if command == "" {
		usage()
		os.Exit(2)
	}

	if err := run(ctx, command, b, cfg, log, splitFolder(*folder), *title); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, command string, b backend.Backend, cfg config.Config, log zerolog.Logger, folderPath []string, title string) error {
	switch command {
	case "accounts":
		accounts, err := b.ListAccounts(ctx)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			fmt.Println(a.Name)
		}
		return nil

	case "folders":
		folders, err := b.ListFolders(ctx, cfg.Account)
		if err != nil {
			return err
		}
		for _, f := range folders {
			fmt.Println(f.PathString())
		}
		return nil

	case "notes":
		return b.StreamNoteSummaries(ctx, cfg.Account, folderPath, func(s notes.NoteSummary) {
			fmt.Printf("%s\t%s\n", s.ID, s.Title)
		})

	case "show":
		id := flag.Arg(1)
		if id == "" {
			return fmt.Errorf("show: note id required")
		}
		note, err := b.GetNote(ctx, id)
		if err != nil {
			return err
		}
		if note.Body.IsStructured() {
			return fmt.Errorf("note %s: body is not rendered; use the automation backend", id)
		}
		md, err := render.HTMLToMarkdown(note.Body.Rendered)
		if err != nil {
			return err
		}
		fmt.Print(render.NoteDocument(note.Title, md))
		return nil

	case "export":
		e := exporter.Exporter{
			Backend: b,
			Options: exporter.Options{
				Account:          cfg.Account,
				OutputDir:        cfg.Output,
				Jobs:             cfg.Jobs,
				IncludeHTML:      cfg.IncludeHTML,
				FilenameEscaping: cfg.FilenameEscaping,
				Progress:         true,
			},
			Log: log,
		}
		summary, err := e.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d notes (%d best effort, %d failed) from %d folders\n",
			summary.Exported+summary.BestEffort, summary.BestEffort, summary.Failed, summary.Folders)
		for _, f := range summary.Failures {
			fmt.Fprintf(os.Stderr, "failed: %s: %v\n", f.Title, f.Err)
		}
		return nil

	case "new-note":
		if title == "" {
			return fmt.Errorf("new-note: -title is required")
		}
		if len(folderPath) == 0 {
			return fmt.Errorf("new-note: -folder is required")
		}
		body, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("read note body: %w", err)
		}
		id, err := b.CreateNote(ctx, cfg.Account, folderPath, title, render.TextToHTML(string(body)))
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil

	case "delete-note":
		id := flag.Arg(1)
		if id == "" {
			return fmt.Errorf("delete-note: note id required")
		}
		return b.DeleteNote(ctx, id)

	case "new-folder":
		name := flag.Arg(1)
		if name == "" {
			return fmt.Errorf("new-folder: folder name required")
		}
		id, err := b.CreateFolder(ctx, cfg.Account, folderPath, name)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

// buildBackend wires the mode-appropriate backends behind the resolver, or
// the fixture when one is configured.
func buildBackend(cfg config.Config, log zerolog.Logger) (backend.Backend, func(), error) {
	noop := func() {}
	if cfg.Fixture != "" {
		f, err := backend.LoadFixture(cfg.Fixture)
		if err != nil {
			return nil, noop, err
		}
		return f, noop, nil
	}

	mode, err := backend.ParseMode(cfg.Backend)
	if err != nil {
		return nil, noop, err
	}

	automation := osascript.New(cfg.OsascriptBin, log.With().Str("component", "osascript").Logger())

	var (
		database backend.Backend
		dbErr    error
		cleanup  = noop
	)
	if mode != backend.ModeAutomationOnly {
		path := cfg.DBPath
		if path == "" {
			path, dbErr = notesdb.DefaultPath()
		}
		if dbErr == nil {
			var db *notesdb.DB
			db, dbErr = notesdb.Open(path, log.With().Str("component", "notesdb").Logger())
			if dbErr == nil {
				database = backend.NewDatabase(db)
				cleanup = func() { _ = db.Close() }
			}
		}
		if dbErr != nil {
			log.Debug().Err(dbErr).Msg("local store unavailable")
		}
	}

	return backend.NewResolver(mode, database, dbErr, automation, log.With().Str("component", "backend").Logger()), cleanup, nil
}

func splitFolder(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var parts []string
	for _, p := range strings.Split(s, "/") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func newLogger(debug bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "notescli: %v\n", err)
	os.Exit(1)
}
