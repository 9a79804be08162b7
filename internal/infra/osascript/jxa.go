package osascript

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"notescli/internal/domain/notes"
)

// One JXA program serves every read action. The request payload is
// embedded as marshaled JSON, so titles and paths can never alter script
// structure.
const jxaProgram = `function run() {
  const payload = %s;
  const action = %s;
  const app = Application("Notes");

  function findAccount(name) {
    const accounts = app.accounts();
    for (const a of accounts) {
      if (a.name() === name) { return a; }
    }
    throw new Error("not found: account " + name);
  }

  function folderPath(folder) {
    const parts = [folder.name()];
    let cur = folder;
    while (true) {
      let parent = null;
      try { parent = cur.container(); } catch (e) { break; }
      if (!parent) { break; }
      let kind = null;
      try { kind = parent.class(); } catch (e) { break; }
      if (kind !== "folder") { break; }
      parts.unshift(parent.name());
      cur = parent;
    }
    return parts;
  }

  function accountFolders(account) {
    return account.folders().map(f => ({
      id: f.id(),
      name: f.name(),
      path: folderPath(f),
    }));
  }

  if (action === "accounts.list") {
    return JSON.stringify(app.accounts().map(a => ({ name: a.name() })));
  }
  if (action === "folders.list") {
    return JSON.stringify(accountFolders(findAccount(payload.account)));
  }
  if (action === "folders.resolve") {
    const want = payload.path.join("\u0000");
    const ids = accountFolders(findAccount(payload.account))
      .filter(f => f.path.join("\u0000") === want)
      .map(f => f.id);
    return JSON.stringify(ids);
  }
  if (action === "notes.get") {
    const note = app.notes.byId(payload.id);
    return JSON.stringify({
      id: note.id(),
      title: note.name(),
      body_html: note.body(),
      folder_id: note.container().id(),
      created_at: note.creationDate().toISOString(),
      modified_at: note.modificationDate().toISOString(),
    });
  }
  throw new Error("unknown action: " + action);
}`

func (c *Client) jxa(ctx context.Context, action string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", action, err)
	}
	script := fmt.Sprintf(jxaProgram, string(body), strconv.Quote(action))
	raw, err := c.run(ctx, []string{"-l", "JavaScript", "-"}, script)
	if err != nil {
		return fmt.Errorf("%s: %w", action, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("parse %s output: %v: %w", action, err, notes.ErrAutomationFailure)
	}
	return nil
}

func (c *Client) ListAccounts(ctx context.Context) ([]notes.Account, error) {
	var out []notes.Account
	if err := c.jxa(ctx, "accounts.list", struct{}{}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type folderWire struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Path []string `json:"path"`
}

func (c *Client) ListFolders(ctx context.Context, account string) ([]notes.Folder, error) {
	var wires []folderWire
	payload := map[string]string{"account": account}
	if err := c.jxa(ctx, "folders.list", payload, &wires); err != nil {
		return nil, err
	}
	out := make([]notes.Folder, 0, len(wires))
	for _, w := range wires {
		out = append(out, notes.Folder{
			ID:      w.ID,
			Name:    w.Name,
			Account: account,
			Path:    w.Path,
		})
	}
	return out, nil
}

// resolveFolderID maps an account-scoped folder path to exactly one id.
func (c *Client) resolveFolderID(ctx context.Context, account string, path []string) (string, error) {
	var ids []string
	payload := map[string]any{"account": account, "path": path}
	if err := c.jxa(ctx, "folders.resolve", payload, &ids); err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("folder %v in account %q: %w", path, account, notes.ErrNotFound)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("folder %v in account %q: %w", path, account, notes.ErrAmbiguousFolder)
	}
}

type noteWire struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	BodyHTML   string `json:"body_html"`
	FolderID   string `json:"folder_id"`
	CreatedAt  string `json:"created_at"`
	ModifiedAt string `json:"modified_at"`
}

func (c *Client) GetNote(ctx context.Context, id string) (notes.Note, error) {
	var w noteWire
	if err := c.jxa(ctx, "notes.get", map[string]string{"id": id}, &w); err != nil {
		return notes.Note{}, err
	}
	note := notes.Note{
		ID:       w.ID,
		Title:    w.Title,
		FolderID: w.FolderID,
		Body:     notes.RenderedBody(w.BodyHTML),
	}
	if t, err := time.Parse(time.RFC3339, w.CreatedAt); err == nil {
		note.CreatedAt = t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, w.ModifiedAt); err == nil {
		note.ModifiedAt = t.UTC()
	}
	return note, nil
}
