// Package router matches incoming message text against registered
// command triggers.
package router

import (
	"strings"
	"sync"

	"github.com/AltairaLabs/chatkit/bot"
)

// Router holds commands in registration order. Matching walks commands
// and their triggers in that order and returns the first hit.
//
// Whitelisting is deliberately not evaluated here: an unauthorized
// sender should still consume the match (and be checkpointed) rather
// than fall through to a later command. The worker enforces the
// whitelist at dispatch.
type Router struct {
	mu       sync.RWMutex
	commands []*bot.Command
	seen     map[*bot.Command]struct{}
}

// New creates an empty Router.
func New() *Router {
	return &Router{seen: make(map[*bot.Command]struct{})}
}

// Register appends a command. Registration is idempotent on object
// identity: registering the same *Command twice is a no-op.
func (r *Router) Register(cmd *bot.Command) {
	if cmd == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[cmd]; ok {
		return
	}
	r.seen[cmd] = struct{}{}
	r.commands = append(r.commands, cmd)
}

// Commands returns the registered commands in registration order.
func (r *Router) Commands() []*bot.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*bot.Command, len(r.commands))
	copy(out, r.commands)
	return out
}

// Match returns the first command whose trigger matches text, along
// with the trigger's source text. Empty text never matches.
func (r *Router) Match(text string) (*bot.Command, string, bool) {
	if text == "" {
		return nil, "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	folded := strings.ToLower(text)
	for _, cmd := range r.commands {
		candidate := folded
		if cmd.CaseSensitive {
			candidate = text
		}
		for _, trigger := range cmd.Triggers {
			if trigger.Matches(candidate) {
				return cmd, trigger.String(), true
			}
		}
	}
	return nil, "", false
}
