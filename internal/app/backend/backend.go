// Package backend selects between the two ways of reaching the note data:
// the fast read-only local store and the slow authoritative automation
// host.
package backend

import (
	"context"
	"fmt"

	"notescli/internal/domain/notes"
)

type Mode string

const (
	// ModeAuto prefers the fast backend where it is usable and falls back
	// to automation on recoverable failures.
	ModeAuto Mode = "auto"
	// ModeDatabaseOnly never touches the automation host. Reads only.
	ModeDatabaseOnly Mode = "db"
	// ModeAutomationOnly never touches the local store.
	ModeAutomationOnly Mode = "automation"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAuto, ModeDatabaseOnly, ModeAutomationOnly:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown backend mode %q (want auto, db or automation)", s)
	}
}

type Operation int

const (
	OpListAccounts Operation = iota
	OpListFolders
	OpListNotes
	OpReadBody
	OpWrite
)

func (op Operation) String() string {
	switch op {
	case OpListAccounts:
		return "list accounts"
	case OpListFolders:
		return "list folders"
	case OpListNotes:
		return "list notes"
	case OpReadBody:
		return "read note body"
	case OpWrite:
		return "write"
	default:
		return fmt.Sprintf("operation(%d)", int(op))
	}
}

type Strategy string

const (
	StrategyDatabase   Strategy = "database"
	StrategyAutomation Strategy = "automation"
)

// Backend is one way of reaching the note data. Implementations must be
// safe for concurrent use; ConcurrentReads declares whether parallel
// GetNote calls actually help or just contend.
type Backend interface {
	Name() string
	ConcurrentReads() bool

	ListAccounts(ctx context.Context) ([]notes.Account, error)
	ListFolders(ctx context.Context, account string) ([]notes.Folder, error)
	ListNotes(ctx context.Context, account string) ([]notes.NoteSummary, error)
	ListNotesInFolder(ctx context.Context, account string, path []string) ([]notes.NoteSummary, error)
	StreamNoteSummaries(ctx context.Context, account string, path []string, fn func(notes.NoteSummary)) error
	GetNote(ctx context.Context, id string) (notes.Note, error)

	CreateNote(ctx context.Context, account string, path []string, title, bodyHTML string) (string, error)
	SetNoteTitle(ctx context.Context, id, title string) error
	SetNoteBody(ctx context.Context, id, bodyHTML string) error
	AppendNoteBody(ctx context.Context, id, bodyHTML string) error
	DeleteNote(ctx context.Context, id string) error
	MoveNote(ctx context.Context, id, account string, path []string) error

	CreateFolder(ctx context.Context, account string, parentPath []string, name string) (string, error)
	RenameFolder(ctx context.Context, account string, path []string, name string) error
	DeleteFolder(ctx context.Context, account string, path []string) error
}

// Plan returns the ordered strategies to try for op under mode. The second
// candidate is only consulted when the first fails recoverably.
func Plan(mode Mode, op Operation) ([]Strategy, error) {
	switch mode {
	case ModeDatabaseOnly:
		if op == OpWrite {
			return nil, fmt.Errorf("%s in db mode: the local store is read-only: %w",
				op, notes.ErrUnsupportedOperation)
		}
		return []Strategy{StrategyDatabase}, nil
	case ModeAutomationOnly:
		return []Strategy{StrategyAutomation}, nil
	case ModeAuto:
		switch op {
		case OpListAccounts, OpListFolders, OpListNotes:
			return []Strategy{StrategyDatabase, StrategyAutomation}, nil
		case OpReadBody:
			// full-body reads are automation only: the store keeps bodies
			// as blobs that decode best effort, never an exact substitute
			return []Strategy{StrategyAutomation}, nil
		case OpWrite:
			return []Strategy{StrategyAutomation}, nil
		}
	}
	return nil, fmt.Errorf("no plan for %s in mode %q", op, mode)
}
