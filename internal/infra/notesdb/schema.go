package notesdb

import (
	"context"
	"database/sql"
	"fmt"

	"notescli/internal/domain/notes"
)

// The store keeps every synced object in one wide table and distinguishes
// row kinds by the Z_ENT discriminator. Column names drift between app
// releases, so each supported layout is described by a generation entry and
// detection is a column probe, never a version sniff.
const (
	objectTable = "ZICCLOUDSYNCINGOBJECT"
	bodyTable   = "ZICNOTEDATA"

	accountNameCol  = "ZNAME"
	folderNameCol   = "ZTITLE2"
	folderParentCol = "ZPARENT"
	noteTitleCol    = "ZTITLE1"
	noteFolderCol   = "ZFOLDER"
	deletedCol      = "ZMARKEDFORDELETION"

	bodyDataCol = "ZDATA"
	bodyNoteCol = "ZNOTE"
)

type generation struct {
	name string

	accountEnt int
	folderEnt  int
	noteEnt    int

	// column linking a folder row to its account row
	folderAccountCol string

	// SQL expressions for note timestamps; newer layouts stack extra
	// date columns in front of the old ones
	createdExpr  string
	modifiedExpr string

	// columns that must all be present for this generation to match
	required []string
}

var generations = []generation{
	{
		name:             "modern",
		accountEnt:       14,
		folderEnt:        15,
		noteEnt:          12,
		folderAccountCol: "ZACCOUNT8",
		createdExpr:      "COALESCE(ZCREATIONDATE3, ZCREATIONDATE2, ZCREATIONDATE1)",
		modifiedExpr:     "COALESCE(ZMODIFICATIONDATE1, ZMODIFICATIONDATEATIMPORT)",
		required: []string{
			"ZACCOUNT8", "ZCREATIONDATE3", "ZMODIFICATIONDATEATIMPORT",
			accountNameCol, folderNameCol, folderParentCol,
			noteTitleCol, noteFolderCol, deletedCol,
			"ZCREATIONDATE1", "ZCREATIONDATE2", "ZMODIFICATIONDATE1",
		},
	},
	{
		name:             "legacy",
		accountEnt:       14,
		folderEnt:        15,
		noteEnt:          12,
		folderAccountCol: "ZACCOUNT7",
		createdExpr:      "COALESCE(ZCREATIONDATE2, ZCREATIONDATE1)",
		modifiedExpr:     "ZMODIFICATIONDATE1",
		required: []string{
			"ZACCOUNT7",
			accountNameCol, folderNameCol, folderParentCol,
			noteTitleCol, noteFolderCol, deletedCol,
			"ZCREATIONDATE1", "ZCREATIONDATE2", "ZMODIFICATIONDATE1",
		},
	},
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// detectGeneration probes the object table's columns and returns the first
// generation fully covered by them.
func detectGeneration(ctx context.Context, db *sql.DB) (generation, error) {
	cols, err := tableColumns(ctx, db, objectTable)
	if err != nil || len(cols) == 0 {
		return generation{}, fmt.Errorf("object table %s not readable: %w", objectTable, notes.ErrSchemaMismatch)
	}
	bodyCols, err := tableColumns(ctx, db, bodyTable)
	if err != nil || !bodyCols[bodyDataCol] || !bodyCols[bodyNoteCol] {
		return generation{}, fmt.Errorf("body table %s not readable: %w", bodyTable, notes.ErrSchemaMismatch)
	}

next:
	for _, gen := range generations {
		for _, col := range gen.required {
			if !cols[col] {
				continue next
			}
		}
		return gen, nil
	}
	return generation{}, fmt.Errorf("no known generation matches %s columns: %w", objectTable, notes.ErrSchemaMismatch)
}
