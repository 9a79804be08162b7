// Package notesdb reads the note application's local SQLite store directly.
// It is strictly read-only and fast, but best effort: the store is an
// internal format, so unknown layouts and contradictory rows are reported,
// never guessed at.
package notesdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"notescli/internal/domain/notes"
)

const (
	openAttempts = 3
	openBackoff  = 150 * time.Millisecond
)

// appleEpoch is the store's timestamp origin (2001-01-01 UTC).
var appleEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

type DB struct {
	sql       *sql.DB
	storeUUID string
	gen       generation
	log       zerolog.Logger
}

// DefaultPath returns the per-user location of the live note store.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, "Library", "Group Containers",
		"group.com.apple.notes", "NoteStore.sqlite"), nil
}

// Open opens the store read-only. A missing file or a store that stays
// locked through the retry budget is ErrBackendUnavailable; an unknown
// layout is ErrSchemaMismatch. Both let auto mode fall back.
func Open(path string, log zerolog.Logger) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("note store at %s: %v: %w", path, err, notes.ErrBackendUnavailable)
	}

	sqlDB, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open note store: %v: %w", err, notes.ErrBackendUnavailable)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var storeUUID string
	for attempt := 1; ; attempt++ {
		err = sqlDB.QueryRowContext(ctx,
			"SELECT Z_UUID FROM Z_METADATA WHERE Z_VERSION = 1").Scan(&storeUUID)
		if err == nil {
			break
		}
		if attempt >= openAttempts {
			sqlDB.Close()
			if strings.Contains(err.Error(), "no such table") {
				return nil, fmt.Errorf("store metadata missing: %w", notes.ErrSchemaMismatch)
			}
			return nil, fmt.Errorf("read store metadata: %v: %w", err, notes.ErrBackendUnavailable)
		}
		log.Debug().Err(err).Int("attempt", attempt).Msg("note store busy, retrying")
		time.Sleep(openBackoff)
	}

	gen, err := detectGeneration(ctx, sqlDB)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	log.Debug().Str("generation", gen.name).Str("store_uuid", storeUUID).Msg("note store opened")
	return &DB{sql: sqlDB, storeUUID: storeUUID, gen: gen, log: log}, nil
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func (d *DB) StoreUUID() string {
	return d.storeUUID
}

func (d *DB) Generation() string {
	return d.gen.name
}

// NoteID formats the durable handle for a note row.
func (d *DB) NoteID(pk int64) string {
	return fmt.Sprintf("x-coredata://%s/ICNote/p%d", d.storeUUID, pk)
}

func (d *DB) FolderID(pk int64) string {
	return fmt.Sprintf("x-coredata://%s/ICFolder/p%d", d.storeUUID, pk)
}

// parsePK extracts the row key from an "x-coredata://<uuid>/<entity>/p<pk>"
// handle, checking both the entity kind and the store identity.
func (d *DB) parsePK(id, entity string) (int64, error) {
	prefix := fmt.Sprintf("x-coredata://%s/%s/p", d.storeUUID, entity)
	rest, ok := strings.CutPrefix(id, prefix)
	if !ok {
		return 0, fmt.Errorf("id %q is not a %s handle of this store: %w", id, entity, notes.ErrNotFound)
	}
	pk, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("id %q: %v: %w", id, err, notes.ErrNotFound)
	}
	return pk, nil
}

func (d *DB) ListAccounts(ctx context.Context) ([]notes.Account, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE Z_ENT = ? AND %s IS NOT NULL ORDER BY %s",
		accountNameCol, objectTable, accountNameCol, accountNameCol)
	rows, err := d.sql.QueryContext(ctx, query, d.gen.accountEnt)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []notes.Account
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, notes.Account{Name: name})
	}
	return out, rows.Err()
}

func (d *DB) accountPK(ctx context.Context, account string) (int64, error) {
	query := fmt.Sprintf("SELECT Z_PK FROM %s WHERE Z_ENT = ? AND %s = ?",
		objectTable, accountNameCol)
	var pk int64
	err := d.sql.QueryRowContext(ctx, query, d.gen.accountEnt, account).Scan(&pk)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("account %q: %w", account, notes.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve account %q: %w", account, err)
	}
	return pk, nil
}

// DroppedFolder records a subtree excluded from a folder listing because
// its parent chain was broken.
type DroppedFolder struct {
	Name string
	Err  error
}

// FolderTree reconstructs the folder hierarchy of one account. Cycles and
// dangling parent references drop the affected folders into Dropped rather
// than failing the whole listing.
type FolderTree struct {
	Folders []notes.Folder
	Dropped []DroppedFolder
}

type folderRow struct {
	pk     int64
	name   string
	parent sql.NullInt64
}

func (d *DB) FolderTree(ctx context.Context, account string) (FolderTree, error) {
	acctPK, err := d.accountPK(ctx, account)
	if err != nil {
		return FolderTree{}, err
	}

	query := fmt.Sprintf(
		"SELECT Z_PK, COALESCE(%s, ''), %s FROM %s WHERE Z_ENT = ? AND %s = ? AND COALESCE(%s, 0) = 0 ORDER BY Z_PK",
		folderNameCol, folderParentCol, objectTable, d.gen.folderAccountCol, deletedCol)
	rows, err := d.sql.QueryContext(ctx, query, d.gen.folderEnt, acctPK)
	if err != nil {
		return FolderTree{}, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	byPK := map[int64]folderRow{}
	var order []int64
	for rows.Next() {
		var r folderRow
		if err := rows.Scan(&r.pk, &r.name, &r.parent); err != nil {
			return FolderTree{}, fmt.Errorf("scan folder: %w", err)
		}
		byPK[r.pk] = r
		order = append(order, r.pk)
	}
	if err := rows.Err(); err != nil {
		return FolderTree{}, err
	}

	var tree FolderTree
	for _, pk := range order {
		row := byPK[pk]
		path, err := folderPath(byPK, pk)
		if err != nil {
			d.log.Warn().Err(err).Str("folder", row.name).Msg("skipping folder with broken parent chain")
			tree.Dropped = append(tree.Dropped, DroppedFolder{Name: row.name, Err: err})
			continue
		}
		tree.Folders = append(tree.Folders, notes.Folder{
			ID:      d.FolderID(pk),
			Name:    folderName(row),
			Account: account,
			Path:    path,
		})
	}
	return tree, nil
}

func (d *DB) ListFolders(ctx context.Context, account string) ([]notes.Folder, error) {
	tree, err := d.FolderTree(ctx, account)
	if err != nil {
		return nil, err
	}
	return tree.Folders, nil
}

// folderPath walks the parent chain to the root. The seen set turns a
// parent cycle into an error instead of an infinite loop.
func folderPath(byPK map[int64]folderRow, pk int64) ([]string, error) {
	var rev []string
	seen := map[int64]bool{}
	cur := pk
	for {
		if seen[cur] {
			return nil, fmt.Errorf("folder parent cycle at p%d: %w", cur, notes.ErrInconsistentData)
		}
		seen[cur] = true
		row, ok := byPK[cur]
		if !ok {
			return nil, fmt.Errorf("folder parent p%d missing: %w", cur, notes.ErrInconsistentData)
		}
		rev = append(rev, folderName(row))
		if !row.parent.Valid {
			break
		}
		cur = row.parent.Int64
	}
	path := make([]string, len(rev))
	for i, name := range rev {
		path[len(rev)-1-i] = name
	}
	return path, nil
}

func folderName(r folderRow) string {
	if strings.TrimSpace(r.name) == "" {
		return "Untitled"
	}
	return r.name
}

func (d *DB) ListNotes(ctx context.Context, account string) ([]notes.NoteSummary, error) {
	acctPK, err := d.accountPK(ctx, account)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(
		`SELECT n.Z_PK, COALESCE(n.%s, ''), n.%s
		 FROM %s n
		 JOIN %s f ON f.Z_PK = n.%s AND f.Z_ENT = ?
		 WHERE n.Z_ENT = ? AND f.%s = ? AND COALESCE(n.%s, 0) = 0
		 ORDER BY n.Z_PK`,
		noteTitleCol, noteFolderCol,
		objectTable, objectTable, noteFolderCol,
		d.gen.folderAccountCol, deletedCol)
	rows, err := d.sql.QueryContext(ctx, query, d.gen.folderEnt, d.gen.noteEnt, acctPK)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	var out []notes.NoteSummary
	for rows.Next() {
		var (
			pk       int64
			title    string
			folderPK int64
		)
		if err := rows.Scan(&pk, &title, &folderPK); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, notes.NoteSummary{
			ID:       d.NoteID(pk),
			Title:    noteTitle(title),
			FolderID: d.FolderID(folderPK),
		})
	}
	return out, rows.Err()
}

func (d *DB) ListNotesInFolder(ctx context.Context, account string, path []string) ([]notes.NoteSummary, error) {
	folder, err := d.resolveFolder(ctx, account, path)
	if err != nil {
		return nil, err
	}
	all, err := d.ListNotes(ctx, account)
	if err != nil {
		return nil, err
	}
	var out []notes.NoteSummary
	for _, n := range all {
		if n.FolderID == folder.ID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (d *DB) resolveFolder(ctx context.Context, account string, path []string) (notes.Folder, error) {
	tree, err := d.FolderTree(ctx, account)
	if err != nil {
		return notes.Folder{}, err
	}
	want := strings.Join(path, " > ")
	var matches []notes.Folder
	for _, f := range tree.Folders {
		if f.PathString() == want {
			matches = append(matches, f)
		}
	}
	switch len(matches) {
	case 0:
		return notes.Folder{}, fmt.Errorf("folder %q in account %q: %w", want, account, notes.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return notes.Folder{}, fmt.Errorf("folder %q in account %q: %w", want, account, notes.ErrAmbiguousFolder)
	}
}

// GetNote loads a note's metadata and its raw body blob. The body stays
// structured; decoding it is the extractor's job.
func (d *DB) GetNote(ctx context.Context, id string) (notes.Note, error) {
	pk, err := d.parsePK(id, "ICNote")
	if err != nil {
		return notes.Note{}, err
	}

	query := fmt.Sprintf(
		"SELECT COALESCE(%s, ''), %s, %s, %s FROM %s WHERE Z_PK = ? AND Z_ENT = ?",
		noteTitleCol, noteFolderCol, d.gen.createdExpr, d.gen.modifiedExpr, objectTable)

	var (
		title    string
		folderPK sql.NullInt64
		created  sql.NullFloat64
		modified sql.NullFloat64
	)
	err = d.sql.QueryRowContext(ctx, query, pk, d.gen.noteEnt).
		Scan(&title, &folderPK, &created, &modified)
	if err == sql.ErrNoRows {
		return notes.Note{}, fmt.Errorf("note %s: %w", id, notes.ErrNotFound)
	}
	if err != nil {
		return notes.Note{}, fmt.Errorf("load note %s: %w", id, err)
	}

	var blob []byte
	err = d.sql.QueryRowContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", bodyDataCol, bodyTable, bodyNoteCol),
		pk).Scan(&blob)
	if err != nil && err != sql.ErrNoRows {
		return notes.Note{}, fmt.Errorf("load note body %s: %w", id, err)
	}
	if blob == nil {
		blob = []byte{}
	}

	note := notes.Note{
		ID:         id,
		Title:      noteTitle(title),
		CreatedAt:  appleTime(created),
		ModifiedAt: appleTime(modified),
		Body:       notes.StructuredBody(blob),
	}
	if folderPK.Valid {
		note.FolderID = d.FolderID(folderPK.Int64)
	}
	return note, nil
}

func noteTitle(title string) string {
	if strings.TrimSpace(title) == "" {
		return "Untitled"
	}
	return title
}

func appleTime(v sql.NullFloat64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return appleEpoch.Add(time.Duration(v.Float64 * float64(time.Second))).UTC()
}
