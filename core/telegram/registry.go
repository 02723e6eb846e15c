package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry holds bot commands and callbacks. Commands are registered
// before the bot starts; callbacks may be looked up concurrently.
type Registry struct {
	commands map[string]commands.Command
	// names maps lower-cased command names and aliases to the canonical key.
	names map[string]string

	callbacksMu      sync.RWMutex
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		names:     make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func commandName(name string) string {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	return name
}

// RegisterCommand adds cmd under name ("/start") and its aliases. Names
// and aliases are unique regardless of case.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) error {
	if cmd.Handler == nil || cmd.Description == "" || !strings.HasPrefix(name, "/") || len(name) < 2 {
		logger.Warn(context.Background(), "tg.wire", "register.command.skip", slog.String("name", name))
		return fmt.Errorf("telegram: invalid command %q", name)
	}
	keys := []string{strings.ToLower(name)}
	for _, alias := range cmd.Aliases {
		keys = append(keys, strings.ToLower(commandName(alias)))
	}
	for _, k := range keys {
		if owner, taken := r.names[k]; taken && owner != name {
			logger.Warn(context.Background(), "tg.wire", "register.command.duplicate",
				slog.String("name", name),
				slog.String("owner", owner),
			)
			return fmt.Errorf("telegram: %s already registered by %s", k, owner)
		}
	}
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("telegram: command %s already registered", name)
	}
	r.commands[name] = cmd
	for _, k := range keys {
		r.names[k] = name
	}
	return nil
}

// MenuCommands splits the command menu into the commands shown in private
// chats and those shown in the operator chat. Hidden commands are omitted.
func (r *Registry) MenuCommands() (public, operator []tele.Command) {
	for name, meta := range r.commands {
		if meta.Hidden {
			continue
		}
		entry := tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description}
		if meta.OperatorOnly {
			operator = append(operator, entry)
		} else {
			public = append(public, entry)
		}
	}
	byText := func(list []tele.Command) {
		sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	}
	byText(public)
	byText(operator)
	return public, operator
}

// LookupCommand resolves the first word of text to a canonical command.
// A trailing @botname is ignored and matching is case-insensitive.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", commands.Command{}, false
	}
	name, _, _ := strings.Cut(fields[0], "@")
	key, ok := r.names[strings.ToLower(commandName(name))]
	if !ok {
		return "", commands.Command{}, false
	}
	return key, r.commands[key], true
}

// Commands returns all registered commands by canonical name.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// RegisterCallback maps a button unique key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		logger.Warn(context.Background(), "tg.wire", "register.callback.skip", slog.String("key", key))
		return fmt.Errorf("telegram: invalid callback %q", key)
	}
	r.callbacksMu.Lock()
	defer r.callbacksMu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		return fmt.Errorf("telegram: callback %s already registered", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbacksMu.Lock()
		r.callbackNotFound = h
		r.callbacksMu.Unlock()
	}
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.callbacksMu.RLock()
	defer r.callbacksMu.RUnlock()
	return r.callbackNotFound
}

// CommandSetter is the part of *tele.Bot that publishes the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// InitBotCommands publishes the public menu to all private chats and the
// operator menu to operatorChatID when it is set.
func InitBotCommands(bot CommandSetter, reg *Registry, operatorChatID int64) {
	public, operator := reg.MenuCommands()
	publish := func(scope string, list []tele.Command, s tele.CommandScope) {
		if len(list) == 0 {
			return
		}
		if err := bot.SetCommands(list, s); err != nil {
			logger.Error(context.Background(), "tg.wire", "register.commands.set_failed",
				slog.String("scope", scope),
				slog.String("err", err.Error()),
			)
		}
	}
	publish("private", public, tele.CommandScope{Type: tele.CommandScopeAllPrivateChats})
	if operatorChatID != 0 {
		publish("operator", operator, tele.CommandScope{Type: tele.CommandScopeChat, ChatID: operatorChatID})
	}
}
