package osascript

import (
	"context"
	"fmt"
	"strings"

	"notescli/internal/domain/notes"
)

// quoteAS wraps s as an AppleScript string literal. Backslash and quote
// are the only metacharacters inside AppleScript strings.
func quoteAS(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// flattenHandler collapses tabs and line breaks inside note titles so each
// streamed log line stays a single TSV record.
const flattenHandler = `on flatten(t)
	set AppleScript's text item delimiters to {tab, return, linefeed}
	set parts to text items of t
	set AppleScript's text item delimiters to " "
	set flat to parts as text
	set AppleScript's text item delimiters to ""
	return flat
end flatten`

func listAllNotesScript(account string) string {
	return fmt.Sprintf(`%s

tell application "Notes"
	tell account %s
		repeat with f in folders
			set fid to id of f
			repeat with n in notes of f
				log (id of n) & tab & fid & tab & (my flatten(name of n as text))
			end repeat
		end repeat
	end tell
end tell`, flattenHandler, quoteAS(account))
}

func listFolderNotesScript(folderID string) string {
	return fmt.Sprintf(`%s

tell application "Notes"
	set f to folder id %s
	set fid to id of f
	repeat with n in notes of f
		log (id of n) & tab & fid & tab & (my flatten(name of n as text))
	end repeat
end tell`, flattenHandler, quoteAS(folderID))
}

// StreamNoteSummaries lists notes one record at a time, calling fn as each
// arrives. A nil path means the whole account. Records are deduplicated by
// note id: some host versions emit a note once per ancestor folder.
func (c *Client) StreamNoteSummaries(ctx context.Context, account string, path []string, fn func(notes.NoteSummary)) error {
	var script string
	if len(path) == 0 {
		script = listAllNotesScript(account)
	} else {
		folderID, err := c.resolveFolderID(ctx, account, path)
		if err != nil {
			return err
		}
		script = listFolderNotesScript(folderID)
	}

	seen := map[string]bool{}
	err := c.runStreaming(ctx, []string{"-"}, script, func(line string) bool {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 || !strings.HasPrefix(parts[0], "x-coredata://") {
			return false
		}
		id := parts[0]
		if seen[id] {
			return true
		}
		seen[id] = true
		title := strings.TrimSpace(parts[2])
		if title == "" {
			title = "Untitled"
		}
		fn(notes.NoteSummary{ID: id, Title: title, FolderID: parts[1]})
		return true
	})
	if err != nil {
		return fmt.Errorf("list notes in account %q: %w", account, err)
	}
	return nil
}

func (c *Client) ListNotes(ctx context.Context, account string) ([]notes.NoteSummary, error) {
	var out []notes.NoteSummary
	err := c.StreamNoteSummaries(ctx, account, nil, func(s notes.NoteSummary) {
		out = append(out, s)
	})
	return out, err
}

func (c *Client) ListNotesInFolder(ctx context.Context, account string, path []string) ([]notes.NoteSummary, error) {
	var out []notes.NoteSummary
	err := c.StreamNoteSummaries(ctx, account, path, func(s notes.NoteSummary) {
		out = append(out, s)
	})
	return out, err
}

// CreateNote makes a new note in the folder at path and returns its id.
// The body must already be HTML (render.TextToHTML for plain text).
func (c *Client) CreateNote(ctx context.Context, account string, path []string, title, bodyHTML string) (string, error) {
	folderID, err := c.resolveFolderID(ctx, account, path)
	if err != nil {
		return "", err
	}
	script := fmt.Sprintf(`tell application "Notes"
	set f to folder id %s
	set n to make new note at f with properties {name:%s, body:%s}
	return id of n
end tell`, quoteAS(folderID), quoteAS(title), quoteAS(bodyHTML))
	id, err := c.run(ctx, []string{"-"}, script)
	if err != nil {
		return "", fmt.Errorf("create note %q: %w", title, err)
	}
	return id, nil
}

func (c *Client) SetNoteTitle(ctx context.Context, id, title string) error {
	script := fmt.Sprintf(`tell application "Notes" to set name of note id %s to %s`,
		quoteAS(id), quoteAS(title))
	if _, err := c.run(ctx, []string{"-"}, script); err != nil {
		return fmt.Errorf("set title of note %s: %w", id, err)
	}
	return nil
}

func (c *Client) SetNoteBody(ctx context.Context, id, bodyHTML string) error {
	script := fmt.Sprintf(`tell application "Notes" to set body of note id %s to %s`,
		quoteAS(id), quoteAS(bodyHTML))
	if _, err := c.run(ctx, []string{"-"}, script); err != nil {
		return fmt.Errorf("set body of note %s: %w", id, err)
	}
	return nil
}

func (c *Client) AppendNoteBody(ctx context.Context, id, bodyHTML string) error {
	script := fmt.Sprintf(`tell application "Notes"
	set n to note id %s
	set body of n to (body of n) & %s
end tell`, quoteAS(id), quoteAS(bodyHTML))
	if _, err := c.run(ctx, []string{"-"}, script); err != nil {
		return fmt.Errorf("append to note %s: %w", id, err)
	}
	return nil
}

func (c *Client) DeleteNote(ctx context.Context, id string) error {
	script := fmt.Sprintf(`tell application "Notes" to delete note id %s`, quoteAS(id))
	if _, err := c.run(ctx, []string{"-"}, script); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	return nil
}

func (c *Client) MoveNote(ctx context.Context, id, account string, path []string) error {
	folderID, err := c.resolveFolderID(ctx, account, path)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`tell application "Notes" to move note id %s to folder id %s`,
		quoteAS(id), quoteAS(folderID))
	if _, err := c.run(ctx, []string{"-"}, script); err != nil {
		return fmt.Errorf("move note %s: %w", id, err)
	}
	return nil
}

// CreateFolder makes a folder under parentPath (top level when empty) and
// returns its id.
func (c *Client) CreateFolder(ctx context.Context, account string, parentPath []string, name string) (string, error) {
	var script string
	if len(parentPath) == 0 {
		script = fmt.Sprintf(`tell application "Notes"
	tell account %s
		set f to make new folder with properties {name:%s}
	end tell
	return id of f
end tell`, quoteAS(account), quoteAS(name))
	} else {
		parentID, err := c.resolveFolderID(ctx, account, parentPath)
		if err != nil {
			return "", err
		}
		script = fmt.Sprintf(`tell application "Notes"
	set p to folder id %s
	set f to make new folder at p with properties {name:%s}
	return id of f
end tell`, quoteAS(parentID), quoteAS(name))
	}
	id, err := c.run(ctx, []string{"-"}, script)
	if err != nil {
		return "", fmt.Errorf("create folder %q: %w", name, err)
	}
	return id, nil
}

func (c *Client) RenameFolder(ctx context.Context, account string, path []string, name string) error {
	folderID, err := c.resolveFolderID(ctx, account, path)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`tell application "Notes" to set name of folder id %s to %s`,
		quoteAS(folderID), quoteAS(name))
	if _, err := c.run(ctx, []string{"-"}, script); err != nil {
		return fmt.Errorf("rename folder %s: %w", folderID, err)
	}
	return nil
}

func (c *Client) DeleteFolder(ctx context.Context, account string, path []string) error {
	folderID, err := c.resolveFolderID(ctx, account, path)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(`tell application "Notes" to delete folder id %s`, quoteAS(folderID))
	if _, err := c.run(ctx, []string{"-"}, script); err != nil {
		return fmt.Errorf("delete folder %s: %w", folderID, err)
	}
	return nil
}
