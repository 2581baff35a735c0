package worker

import (
	"context"

	"github.com/AltairaLabs/chatkit/bot"
)

// Middleware wraps command dispatch. A middleware may run code before
// and after next, short-circuit by not calling it, or replace the
// context it passes down.
type Middleware func(ctx context.Context, c *bot.Context, next bot.HandlerFunc) error

// Chain composes middlewares around handler. The first middleware in
// the slice is the outermost: it sees the dispatch first and its
// post-next code runs last.
func Chain(handler bot.HandlerFunc, middlewares ...Middleware) bot.HandlerFunc {
	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		mw := middlewares[i]
		next := wrapped
		wrapped = func(ctx context.Context, c *bot.Context) error {
			return mw(ctx, c, next)
		}
	}
	return wrapped
}
