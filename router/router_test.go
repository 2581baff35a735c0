package router

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AltairaLabs/chatkit/bot"
)

func TestMatchLiteralPrefix(t *testing.T) {
	r := New()
	ping := &bot.Command{Name: "ping", Triggers: []bot.Trigger{bot.Literal("!ping")}}
	r.Register(ping)

	cmd, trigger, ok := r.Match("!ping extra args")
	require.True(t, ok)
	assert.Same(t, ping, cmd)
	assert.Equal(t, "!ping", trigger)

	_, _, ok = r.Match("say !ping")
	assert.False(t, ok, "literal triggers match only as prefix")
}

func TestMatchRegex(t *testing.T) {
	r := New()
	weather := &bot.Command{
		Name:     "weather",
		Triggers: []bot.Trigger{bot.Regex(regexp.MustCompile(`\bweather\b`))},
	}
	r.Register(weather)

	cmd, _, ok := r.Match("what is the weather today")
	require.True(t, ok)
	assert.Same(t, weather, cmd)
}

func TestMatchCaseFolding(t *testing.T) {
	r := New()
	r.Register(&bot.Command{Name: "ping", Triggers: []bot.Trigger{bot.Literal("!ping")}})

	_, _, ok := r.Match("!PING")
	assert.True(t, ok, "matching folds case by default")
}

func TestMatchCaseSensitive(t *testing.T) {
	r := New()
	r.Register(&bot.Command{
		Name:          "strict",
		Triggers:      []bot.Trigger{bot.Literal("!Strict")},
		CaseSensitive: true,
	})

	_, _, ok := r.Match("!strict")
	assert.False(t, ok)

	_, _, ok = r.Match("!Strict")
	assert.True(t, ok)
}

func TestMatchRegistrationOrder(t *testing.T) {
	r := New()
	first := &bot.Command{Name: "first", Triggers: []bot.Trigger{bot.Literal("!cmd")}}
	second := &bot.Command{Name: "second", Triggers: []bot.Trigger{bot.Literal("!cmd")}}
	r.Register(first)
	r.Register(second)

	cmd, _, ok := r.Match("!cmd")
	require.True(t, ok)
	assert.Same(t, first, cmd, "first registered command wins")
}

func TestMatchEmptyText(t *testing.T) {
	r := New()
	r.Register(&bot.Command{Name: "all", Triggers: []bot.Trigger{bot.Literal("")}})

	_, _, ok := r.Match("")
	assert.False(t, ok, "empty text never matches")
}

func TestRegisterIdempotent(t *testing.T) {
	r := New()
	cmd := &bot.Command{Name: "ping", Triggers: []bot.Trigger{bot.Literal("!ping")}}
	r.Register(cmd)
	r.Register(cmd)
	r.Register(nil)

	assert.Len(t, r.Commands(), 1)
}

func TestMatchSkipsWhitelist(t *testing.T) {
	r := New()
	restricted := &bot.Command{
		Name:      "admin",
		Triggers:  []bot.Trigger{bot.Literal("!admin")},
		Whitelist: []string{"+490000000000"},
	}
	r.Register(restricted)

	cmd, _, ok := r.Match("!admin")
	require.True(t, ok, "whitelist is enforced at dispatch, not at match")
	assert.Same(t, restricted, cmd)
}
