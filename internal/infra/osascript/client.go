// Package osascript drives the note application through the system
// scripting host. It is the slow, authoritative backend: reads go through
// the JavaScript dialect and return JSON, writes go through AppleScript,
// and bulk note listing streams one line per note over the host's log
// channel.
package osascript

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"notescli/internal/domain/notes"
)

// EnvBin overrides the scripting host binary, mainly so tests can point
// the client at a stub.
const EnvBin = "NOTESCLI_OSASCRIPT_BIN"

const (
	maxRetries   = 2
	retryBackoff = 200 * time.Millisecond
)

type Client struct {
	bin string
	log zerolog.Logger
}

func New(bin string, log zerolog.Logger) *Client {
	if bin == "" {
		bin = os.Getenv(EnvBin)
	}
	if bin == "" {
		bin = "osascript"
	}
	return &Client{bin: bin, log: log}
}

func (c *Client) Name() string { return "automation" }

// ConcurrentReads is false: the scripting host serializes Apple events per
// target app, so parallel fetches only add contention and flakiness.
func (c *Client) ConcurrentReads() bool { return false }

// run executes a script, retrying transient host failures. Permission
// rejections are never retried: each attempt would re-prompt the user.
func (c *Client) run(ctx context.Context, args []string, script string) (string, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		out, err := c.runOnce(ctx, args, script)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if attempt >= maxRetries || !isTransient(err) || ctx.Err() != nil {
			return "", lastErr
		}
		c.log.Debug().Err(err).Int("attempt", attempt+1).Msg("automation host failed, retrying")
		select {
		case <-ctx.Done():
			return "", lastErr
		case <-time.After(retryBackoff):
		}
	}
}

func (c *Client) runOnce(ctx context.Context, args []string, script string) (string, error) {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdin = strings.NewReader(script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", classify(stderr.String(), err)
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		// some host versions log the script result to stderr
		out = strings.TrimSpace(stderr.String())
	}
	return out, nil
}

// runStreaming executes a script whose per-item output arrives as log
// lines on stderr. Lines onLine rejects are kept as diagnostic context for
// a failing exit.
func (c *Client) runStreaming(ctx context.Context, args []string, script string, onLine func(string) bool) error {
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Stdin = strings.NewReader(script)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("pipe automation host stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return classify("", err)
	}

	var noise []string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !onLine(line) && strings.TrimSpace(line) != "" {
			noise = append(noise, line)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(strings.Join(noise, "\n"), err)
	}
	if scanErr != nil {
		return fmt.Errorf("read automation host output: %v: %w", scanErr, notes.ErrAutomationFailure)
	}
	return nil
}

// transientError marks host failures worth one more attempt.
type transientError struct {
	msg string
}

func (e *transientError) Error() string { return e.msg }

func (e *transientError) Unwrap() error { return notes.ErrAutomationFailure }

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// classify maps a failed host invocation onto the domain error kinds.
func classify(stderr string, err error) error {
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("automation host not installed: %v: %w", err, notes.ErrBackendUnavailable)
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	switch {
	case strings.Contains(msg, "-1743"),
		strings.Contains(msg, "Not authorized to send Apple events"):
		return fmt.Errorf("%s: %w", msg, notes.ErrPermissionDenied)
	case strings.Contains(msg, "not found:"),
		strings.Contains(msg, "Can't get object"):
		return fmt.Errorf("%s: %w", msg, notes.ErrNotFound)
	case strings.Contains(msg, "ambiguous:"):
		return fmt.Errorf("%s: %w", msg, notes.ErrAmbiguousFolder)
	case strings.Contains(msg, "-600"),
		strings.Contains(msg, "-609"),
		strings.Contains(msg, "-1712"),
		strings.Contains(strings.ToLower(msg), "timed out"):
		return &transientError{msg: fmt.Sprintf("transient host failure: %s", msg)}
	default:
		return fmt.Errorf("%s: %w", msg, notes.ErrAutomationFailure)
	}
}
