// Package exporter mirrors an account's folder tree and notes onto the
// filesystem as Markdown plus JSON metadata.
package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"notescli/internal/app/backend"
	"notescli/internal/app/extract"
	"notescli/internal/app/render"
	"notescli/internal/domain/notes"
	"notescli/internal/infra/exportfs"
)

const (
	defaultJobs = 4
	maxJobs     = 16
)

type Options struct {
	Account   string
	OutputDir string
	// Jobs bounds pipeline parallelism; clamped to [1,16], default 4.
	Jobs int
	// IncludeHTML writes a contents.html sidecar for notes whose body
	// arrived as HTML.
	IncludeHTML bool
	// FilenameEscaping is "posix" or "windows".
	FilenameEscaping string
	// Progress renders a progress bar on stderr when it is a terminal.
	Progress bool
}

type Exporter struct {
	Backend backend.Backend
	Options Options
	Log     zerolog.Logger
}

type NoteFailure struct {
	ID    string
	Title string
	Err   error
}

// Summary totals one export run. Exported counts notes written with exact
// content, BestEffort notes written from a degraded extraction.
type Summary struct {
	Folders    int
	Notes      int
	Exported   int
	BestEffort int
	Failed     int
	Failures   []NoteFailure
}

// fetched carries a note from the fetch stage to the convert/write stage.
type fetched struct {
	summary notes.NoteSummary
	note    notes.Note
	err     error
}

type result struct {
	summary  notes.NoteSummary
	degraded bool
	err      error
}

// Run indexes the account, creates the mirrored directory tree, then
// fetches and writes every note. Per-note failures are collected in the
// summary; only indexing failures and cancellation abort the run.
func (e Exporter) Run(ctx context.Context) (Summary, error) {
	if e.Options.Account == "" || e.Options.OutputDir == "" {
		return Summary{}, fmt.Errorf("account and output directory are required")
	}
	escaping := e.Options.FilenameEscaping
	if escaping == "" {
		escaping = "posix"
	}
	jobs := clampJobs(e.Options.Jobs)

	// phase 1: index
	folders, err := e.Backend.ListFolders(ctx, e.Options.Account)
	if err != nil {
		return Summary{}, fmt.Errorf("index folders: %w", err)
	}
	index, err := notes.NewFolderIndex(folders)
	if err != nil {
		return Summary{}, fmt.Errorf("index folders: %w", err)
	}

	accountDir := filepath.Join(e.Options.OutputDir, exportfs.SanitizeComponent(e.Options.Account, escaping))
	if err := exportfs.EnsureDir(accountDir); err != nil {
		return Summary{}, err
	}
	for _, f := range index.Folders() {
		if err := exportfs.EnsureDir(folderDir(accountDir, f.Path, escaping)); err != nil {
			return Summary{}, err
		}
	}

	summaries, err := e.Backend.ListNotes(ctx, e.Options.Account)
	if err != nil {
		return Summary{}, fmt.Errorf("index notes: %w", err)
	}

	summary := Summary{Folders: len(folders), Notes: len(summaries)}
	e.Log.Debug().
		Str("backend", e.Backend.Name()).
		Int("folders", summary.Folders).
		Int("notes", summary.Notes).
		Int("jobs", jobs).
		Bool("parallel_fetch", e.Backend.ConcurrentReads()).
		Msg("index built, exporting")

	// phase 2: fetch, convert, write
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bar := newProgressBar(len(summaries), e.Options.Progress)
	defer bar.Close()

	results := make(chan result)
	if e.Backend.ConcurrentReads() {
		e.runParallelFetch(ctx, summaries, accountDir, index, escaping, jobs, results)
	} else {
		e.runSerialFetch(ctx, summaries, accountDir, index, escaping, jobs, results)
	}

	var systemic error
	for r := range results {
		if systemic != nil {
			continue
		}
		switch {
		case abortsRun(r.err):
			systemic = r.err
			cancel()
		case r.err != nil:
			summary.Failed++
			summary.Failures = append(summary.Failures, NoteFailure{
				ID:    r.summary.ID,
				Title: r.summary.Title,
				Err:   r.err,
			})
			e.Log.Warn().Err(r.err).Str("note", r.summary.Title).Msg("note not exported")
		case r.degraded:
			summary.BestEffort++
		default:
			summary.Exported++
		}
		bar.Advance(r.summary.Title)
	}

	if systemic != nil {
		return summary, fmt.Errorf("export aborted: %w", systemic)
	}
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}
	bar.Finish("done")
	return summary, nil
}

// abortsRun marks fetch errors that hit every remaining note the same way,
// so continuing would only repeat them. Permission denials additionally
// re-prompt the user on each attempt.
func abortsRun(err error) bool {
	return errors.Is(err, notes.ErrPermissionDenied) || errors.Is(err, notes.ErrBackendUnavailable)
}

// runParallelFetch lets every worker fetch, convert and write on its own.
func (e Exporter) runParallelFetch(ctx context.Context, summaries []notes.NoteSummary, accountDir string, index *notes.FolderIndex, escaping string, jobs int, results chan<- result) {
	work := make(chan notes.NoteSummary)

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s := range work {
				note, err := e.Backend.GetNote(ctx, s.ID)
				if err != nil {
					results <- result{summary: s, err: err}
					continue
				}
				results <- e.convertAndWrite(fetched{summary: s, note: note}, accountDir, index, escaping)
			}
		}()
	}

	go func() {
		defer close(work)
		for _, s := range summaries {
			select {
			case <-ctx.Done():
				return
			case work <- s:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()
}

// runSerialFetch keeps a single goroutine talking to the backend and fans
// the fetched notes out to convert/write workers. Used when the backend
// serializes reads anyway, so only the local work parallelizes.
func (e Exporter) runSerialFetch(ctx context.Context, summaries []notes.NoteSummary, accountDir string, index *notes.FolderIndex, escaping string, jobs int, results chan<- result) {
	fetchedCh := make(chan fetched)

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range fetchedCh {
				if f.err != nil {
					results <- result{summary: f.summary, err: f.err}
					continue
				}
				results <- e.convertAndWrite(f, accountDir, index, escaping)
			}
		}()
	}

	go func() {
		defer close(fetchedCh)
		for _, s := range summaries {
			if ctx.Err() != nil {
				return
			}
			note, err := e.Backend.GetNote(ctx, s.ID)
			select {
			case <-ctx.Done():
				return
			case fetchedCh <- fetched{summary: s, note: note, err: err}:
			}
			if abortsRun(err) {
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()
}

// convertAndWrite turns one fetched note into its on-disk document set.
func (e Exporter) convertAndWrite(f fetched, accountDir string, index *notes.FolderIndex, escaping string) result {
	s := f.summary
	folderPath, ok := index.Path(s.FolderID)
	if !ok {
		return result{summary: s, err: fmt.Errorf(
			"note %q references unknown folder %s: %w", s.Title, s.FolderID, notes.ErrInconsistentData)}
	}

	var (
		doc      string
		htmlBody string
		degraded bool
	)
	if f.note.Body.IsStructured() {
		// an unreadable blob still exports, with an empty body and the
		// degraded flag set
		res, err := extract.Body(f.note.Body.Structured)
		if err != nil && !errors.Is(err, notes.ErrExtractionDegraded) {
			return result{summary: s, err: fmt.Errorf("extract body of %q: %w", s.Title, err)}
		}
		doc = render.NoteDocument(s.Title, res.Text)
		degraded = res.Degraded
	} else {
		md, err := render.HTMLToMarkdown(f.note.Body.Rendered)
		if err != nil {
			return result{summary: s, err: fmt.Errorf("convert body of %q: %w", s.Title, err)}
		}
		doc = render.NoteDocument(s.Title, md)
		htmlBody = f.note.Body.Rendered
	}

	meta := notes.ExportMetadata{
		ID:         s.ID,
		Title:      s.Title,
		Account:    e.Options.Account,
		FolderPath: folderPath,
		CreatedAt:  f.note.CreatedAt,
		ModifiedAt: f.note.ModifiedAt,
	}
	metaBytes, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return result{summary: s, err: fmt.Errorf("marshal metadata of %q: %w", s.Title, err)}
	}
	metaBytes = append(metaBytes, '\n')

	noteDir := filepath.Join(folderDir(accountDir, folderPath, escaping), noteDirName(s, escaping))
	if err := exportfs.EnsureDir(noteDir); err != nil {
		return result{summary: s, err: err}
	}
	if err := exportfs.WriteFileAtomic(filepath.Join(noteDir, "metadata.json"), metaBytes); err != nil {
		return result{summary: s, err: err}
	}
	if err := exportfs.WriteFileAtomic(filepath.Join(noteDir, "contents.md"), []byte(doc)); err != nil {
		return result{summary: s, err: err}
	}
	if e.Options.IncludeHTML && htmlBody != "" {
		if err := exportfs.WriteFileAtomic(filepath.Join(noteDir, "contents.html"), []byte(htmlBody)); err != nil {
			return result{summary: s, err: err}
		}
	}
	return result{summary: s, degraded: degraded}
}

func folderDir(accountDir string, path []string, escaping string) string {
	dir := accountDir
	for _, part := range path {
		dir = filepath.Join(dir, exportfs.SanitizeComponent(part, escaping))
	}
	return dir
}

// noteDirName disambiguates same-titled notes with the stable tail of the
// note id.
func noteDirName(s notes.NoteSummary, escaping string) string {
	return exportfs.SanitizeComponent(s.Title, escaping) + "-" + shortID(s.ID, escaping)
}

func shortID(id, escaping string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	return exportfs.SanitizeComponent(id, escaping)
}

func clampJobs(jobs int) int {
	if jobs == 0 {
		return defaultJobs
	}
	if jobs < 1 {
		return 1
	}
	if jobs > maxJobs {
		return maxJobs
	}
	return jobs
}
