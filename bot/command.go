// Package bot defines the command model and the per-dispatch context
// handed to command handlers.
package bot

import (
	"context"
	"errors"
	"regexp"
	"strings"
)

// ErrNoHandler is returned when a command without a handler is matched.
var ErrNoHandler = errors.New("bot: command handler is not configured")

// Trigger is one pattern a command responds to: either a literal prefix
// or a compiled regular expression. A literal matches when the text
// starts with it; a regex matches anywhere in the text.
type Trigger struct {
	literal string
	pattern *regexp.Regexp
}

// Literal returns a prefix trigger.
func Literal(prefix string) Trigger {
	return Trigger{literal: prefix}
}

// Regex returns a regular-expression trigger.
func Regex(pattern *regexp.Regexp) Trigger {
	return Trigger{pattern: pattern}
}

// String returns the trigger's source text, for logging and DLQ metadata.
func (t Trigger) String() string {
	if t.pattern != nil {
		return t.pattern.String()
	}
	return t.literal
}

// Matches reports whether the trigger fires on text. Case folding is
// the caller's responsibility.
func (t Trigger) Matches(text string) bool {
	if t.pattern != nil {
		return t.pattern.FindStringIndex(text) != nil
	}
	return strings.HasPrefix(text, t.literal)
}

// HandlerFunc is the signature of a command handler.
type HandlerFunc func(ctx context.Context, c *Context) error

// Command couples triggers with a handler. Whitelist, when non-empty,
// restricts execution to the listed sources; the restriction is
// enforced at dispatch, not at match time.
type Command struct {
	// Name identifies the command in logs and DLQ metadata.
	Name string

	// Triggers are evaluated in order.
	Triggers []Trigger

	// Whitelist of authorized sources. Empty means open to all.
	Whitelist []string

	// CaseSensitive disables the default case folding of message text.
	CaseSensitive bool

	// Handle runs when a trigger matches and the sender is authorized.
	Handle HandlerFunc
}

// Authorized reports whether source may execute this command.
func (c *Command) Authorized(source string) bool {
	if len(c.Whitelist) == 0 {
		return true
	}
	for _, allowed := range c.Whitelist {
		if allowed == source {
			return true
		}
	}
	return false
}
