package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"notescli/internal/domain/notes"
)

// Resolver executes operations against the strategy plan for its mode,
// falling back on recoverable failures. Results from different candidates
// are never mixed: a fallback restarts the operation from scratch.
type Resolver struct {
	mode Mode
	log  zerolog.Logger

	database    Backend
	databaseErr error
	automation  Backend

	mu   sync.Mutex
	used Strategy
}

// NewResolver wires the two concrete backends. database may be nil when
// the store could not be opened; databaseErr then carries the reason and
// is surfaced if a plan has no other candidate.
func NewResolver(mode Mode, database Backend, databaseErr error, automation Backend, log zerolog.Logger) *Resolver {
	if database == nil && databaseErr == nil {
		databaseErr = notes.ErrBackendUnavailable
	}
	return &Resolver{
		mode:        mode,
		log:         log,
		database:    database,
		databaseErr: databaseErr,
		automation:  automation,
	}
}

func (r *Resolver) Name() string { return "selector(" + string(r.mode) + ")" }

// ConcurrentReads reflects the backend that will serve body reads.
func (r *Resolver) ConcurrentReads() bool {
	plan, err := Plan(r.mode, OpReadBody)
	if err != nil || len(plan) == 0 {
		return false
	}
	b, berr := r.backendFor(plan[0])
	if berr != nil {
		return false
	}
	return b.ConcurrentReads()
}

// Used reports the strategy that served the most recent successful
// operation, for diagnostics.
func (r *Resolver) Used() Strategy {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.used
}

func (r *Resolver) setUsed(s Strategy) {
	r.mu.Lock()
	r.used = s
	r.mu.Unlock()
}

func (r *Resolver) backendFor(s Strategy) (Backend, error) {
	switch s {
	case StrategyDatabase:
		if r.database == nil {
			return nil, fmt.Errorf("database backend: %w", r.databaseErr)
		}
		return r.database, nil
	case StrategyAutomation:
		if r.automation == nil {
			return nil, fmt.Errorf("automation backend: %w", notes.ErrBackendUnavailable)
		}
		return r.automation, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", s)
	}
}

// exec runs fn against each planned backend in order until one succeeds.
func (r *Resolver) exec(ctx context.Context, op Operation, fn func(Backend) error) error {
	plan, err := Plan(r.mode, op)
	if err != nil {
		return err
	}
	var lastErr error
	for i, strategy := range plan {
		b, err := r.backendFor(strategy)
		if err == nil {
			err = fn(b)
			if err == nil {
				r.setUsed(strategy)
				return nil
			}
		}
		lastErr = err
		if i+1 < len(plan) && notes.Recoverable(err) && ctx.Err() == nil {
			r.log.Debug().Err(err).
				Str("failed", string(strategy)).
				Str("next", string(plan[i+1])).
				Msgf("falling back for %s", op)
			continue
		}
		return lastErr
	}
	return lastErr
}

func (r *Resolver) ListAccounts(ctx context.Context) ([]notes.Account, error) {
	var out []notes.Account
	err := r.exec(ctx, OpListAccounts, func(b Backend) error {
		var err error
		out, err = b.ListAccounts(ctx)
		return err
	})
	return out, err
}

func (r *Resolver) ListFolders(ctx context.Context, account string) ([]notes.Folder, error) {
	var out []notes.Folder
	err := r.exec(ctx, OpListFolders, func(b Backend) error {
		var err error
		out, err = b.ListFolders(ctx, account)
		return err
	})
	return out, err
}

func (r *Resolver) ListNotes(ctx context.Context, account string) ([]notes.NoteSummary, error) {
	var out []notes.NoteSummary
	err := r.exec(ctx, OpListNotes, func(b Backend) error {
		var err error
		out, err = b.ListNotes(ctx, account)
		return err
	})
	return out, err
}

func (r *Resolver) ListNotesInFolder(ctx context.Context, account string, path []string) ([]notes.NoteSummary, error) {
	var out []notes.NoteSummary
	err := r.exec(ctx, OpListNotes, func(b Backend) error {
		var err error
		out, err = b.ListNotesInFolder(ctx, account, path)
		return err
	})
	return out, err
}

// StreamNoteSummaries cannot fall back once records have been emitted:
// the consumer would see duplicates from the restarted listing.
func (r *Resolver) StreamNoteSummaries(ctx context.Context, account string, path []string, fn func(notes.NoteSummary)) error {
	plan, err := Plan(r.mode, OpListNotes)
	if err != nil {
		return err
	}
	var lastErr error
	for i, strategy := range plan {
		emitted := false
		b, err := r.backendFor(strategy)
		if err == nil {
			err = b.StreamNoteSummaries(ctx, account, path, func(s notes.NoteSummary) {
				emitted = true
				fn(s)
			})
			if err == nil {
				r.setUsed(strategy)
				return nil
			}
		}
		lastErr = err
		if i+1 < len(plan) && notes.Recoverable(err) && !emitted && ctx.Err() == nil {
			r.log.Debug().Err(err).Str("failed", string(strategy)).Msg("falling back for note listing")
			continue
		}
		return lastErr
	}
	return lastErr
}

func (r *Resolver) GetNote(ctx context.Context, id string) (notes.Note, error) {
	var out notes.Note
	err := r.exec(ctx, OpReadBody, func(b Backend) error {
		var err error
		out, err = b.GetNote(ctx, id)
		return err
	})
	return out, err
}

func (r *Resolver) CreateNote(ctx context.Context, account string, path []string, title, bodyHTML string) (string, error) {
	var id string
	err := r.exec(ctx, OpWrite, func(b Backend) error {
		var err error
		id, err = b.CreateNote(ctx, account, path, title, bodyHTML)
		return err
	})
	return id, err
}

func (r *Resolver) SetNoteTitle(ctx context.Context, id, title string) error {
	return r.exec(ctx, OpWrite, func(b Backend) error {
		return b.SetNoteTitle(ctx, id, title)
	})
}

func (r *Resolver) SetNoteBody(ctx context.Context, id, bodyHTML string) error {
	return r.exec(ctx, OpWrite, func(b Backend) error {
		return b.SetNoteBody(ctx, id, bodyHTML)
	})
}

func (r *Resolver) AppendNoteBody(ctx context.Context, id, bodyHTML string) error {
	return r.exec(ctx, OpWrite, func(b Backend) error {
		return b.AppendNoteBody(ctx, id, bodyHTML)
	})
}

func (r *Resolver) DeleteNote(ctx context.Context, id string) error {
	return r.exec(ctx, OpWrite, func(b Backend) error {
		return b.DeleteNote(ctx, id)
	})
}

func (r *Resolver) MoveNote(ctx context.Context, id, account string, path []string) error {
	return r.exec(ctx, OpWrite, func(b Backend) error {
		return b.MoveNote(ctx, id, account, path)
	})
}

func (r *Resolver) CreateFolder(ctx context.Context, account string, parentPath []string, name string) (string, error) {
	var id string
	err := r.exec(ctx, OpWrite, func(b Backend) error {
		var err error
		id, err = b.CreateFolder(ctx, account, parentPath, name)
		return err
	})
	return id, err
}

func (r *Resolver) RenameFolder(ctx context.Context, account string, path []string, name string) error {
	return r.exec(ctx, OpWrite, func(b Backend) error {
		return b.RenameFolder(ctx, account, path, name)
	})
}

func (r *Resolver) DeleteFolder(ctx context.Context, account string, path []string) error {
	return r.exec(ctx, OpWrite, func(b Backend) error {
		return b.DeleteFolder(ctx, account, path)
	})
}
