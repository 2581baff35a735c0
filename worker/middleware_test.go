package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/chatkit/bot"
	"github.com/AltairaLabs/chatkit/envelope"
	"github.com/AltairaLabs/chatkit/router"
	"github.com/AltairaLabs/chatkit/types"
)

func TestChainOrder(t *testing.T) {
	var trace []string

	mw := func(name string) Middleware {
		return func(ctx context.Context, c *bot.Context, next bot.HandlerFunc) error {
			trace = append(trace, name+":before")
			err := next(ctx, c)
			trace = append(trace, name+":after")
			return err
		}
	}

	handler := func(_ context.Context, _ *bot.Context) error {
		trace = append(trace, "handler")
		return nil
	}

	err := Chain(handler, mw("outer"), mw("inner"))(context.Background(), &bot.Context{})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"outer:before",
		"inner:before",
		"handler",
		"inner:after",
		"outer:after",
	}, trace)
}

func TestChainShortCircuit(t *testing.T) {
	sentinel := errors.New("denied")
	blocked := func(_ context.Context, _ *bot.Context, _ bot.HandlerFunc) error {
		return sentinel
	}

	handlerRan := false
	handler := func(_ context.Context, _ *bot.Context) error {
		handlerRan = true
		return nil
	}

	err := Chain(handler, blocked)(context.Background(), &bot.Context{})
	assert.ErrorIs(t, err, sentinel)
	assert.False(t, handlerRan, "short-circuited middleware skips the handler")
}

func TestChainEmpty(t *testing.T) {
	handler := func(_ context.Context, _ *bot.Context) error { return nil }
	assert.NoError(t, Chain(handler)(context.Background(), &bot.Context{}))
}

func TestUseIdempotent(t *testing.T) {
	pool, err := New(Config{
		Ingress: make(chan *types.QueuedMessage, 1),
		Parser:  envelope.NewParser(),
		Router:  router.New(),
	})
	require.NoError(t, err)

	logging := Middleware(func(ctx context.Context, c *bot.Context, next bot.HandlerFunc) error {
		return next(ctx, c)
	})
	pool.Use(logging)
	pool.Use(logging)
	pool.Use(nil)

	assert.Len(t, pool.middleware, 1)
}
