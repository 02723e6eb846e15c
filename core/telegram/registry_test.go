package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/topupbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	reg := NewRegistry()
	assert.Error(t, reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"}))
	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Description: "x"}))
	assert.Error(t, reg.RegisterCommand("/start", commands.Command{Handler: noop}))

	require.NoError(t, reg.RegisterCommand("/accept", commands.Command{Handler: noop, Description: "a", Aliases: []string{"yes", "/Yes"}}))
	assert.Error(t, reg.RegisterCommand("/accept", commands.Command{Handler: noop, Description: "a"}))
	assert.Error(t, reg.RegisterCommand("/YES", commands.Command{Handler: noop, Description: "clash"}))
	assert.Error(t, reg.RegisterCommand("/other", commands.Command{Handler: noop, Description: "o", Aliases: []string{"/ACCEPT"}}))
}

func TestLookupCommand(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/reject", commands.Command{Handler: noop, Description: "r", Aliases: []string{"/no"}}))

	for _, text := range []string{"/reject", "/REJECT now", "/no@topup_bot", "no", "  /No  "} {
		key, _, ok := reg.LookupCommand(text)
		assert.True(t, ok, text)
		assert.Equal(t, "/reject", key, text)
	}
	_, _, ok := reg.LookupCommand("/nope")
	assert.False(t, ok)
	_, _, ok = reg.LookupCommand("   ")
	assert.False(t, ok)
}

func TestCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("b", noop))
	require.NoError(t, reg.RegisterCallback("a", noop))
	assert.Error(t, reg.RegisterCallback("a", noop))
	assert.Error(t, reg.RegisterCallback("", noop))
	assert.Equal(t, []string{"a", "b"}, reg.ListCallbacks())

	_, ok := reg.GetCallback("missing")
	assert.False(t, ok)
	assert.NotNil(t, reg.CallbackNotFound())

	called := false
	reg.SetCallbackNotFound(func(tele.Context) error { called = true; return nil })
	require.NoError(t, reg.CallbackNotFound()(nil))
	assert.True(t, called)
}

type fakeSetter struct {
	calls []tele.CommandScope
	lists [][]tele.Command
	err   error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	for _, o := range opts {
		switch v := o.(type) {
		case []tele.Command:
			f.lists = append(f.lists, v)
		case tele.CommandScope:
			f.calls = append(f.calls, v)
		}
	}
	return f.err
}

func TestInitBotCommandsScopes(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "s"}))
	require.NoError(t, reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "d", Hidden: true}))
	require.NoError(t, reg.RegisterCommand("/pending", commands.Command{Handler: noop, Description: "p", OperatorOnly: true}))

	s := &fakeSetter{}
	InitBotCommands(s, reg, -100)
	require.Len(t, s.calls, 2)
	assert.Equal(t, tele.CommandScopeAllPrivateChats, s.calls[0].Type)
	assert.Equal(t, []tele.Command{{Text: "start", Description: "s"}}, s.lists[0])
	assert.Equal(t, tele.CommandScope{Type: tele.CommandScopeChat, ChatID: -100}, s.calls[1])
	assert.Equal(t, []tele.Command{{Text: "pending", Description: "p"}}, s.lists[1])

	s = &fakeSetter{err: errors.New("offline")}
	InitBotCommands(s, reg, 0)
	assert.Len(t, s.calls, 1)
}
