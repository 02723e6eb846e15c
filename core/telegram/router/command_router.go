package router

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/topupbot/core/logger"
	tg "github.com/m3rciful/topupbot/core/telegram"
	"github.com/m3rciful/topupbot/core/telegram/commands"
	"github.com/m3rciful/topupbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	// OperatorChatID restricts OperatorOnly commands to one group chat.
	OperatorChatID   int64
	OnOperatorReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
// Every alias is bound as its own endpoint sharing the canonical handler.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	routes := make([]tg.Route, 0, len(reg.Commands()))
	aliases := 0
	for cmd, def := range reg.Commands() {
		h := wrapCommand(cmd, def, opts)
		routes = append(routes, tg.Route{Endpoint: cmd, Handler: h})
		for _, alias := range def.Aliases {
			if !strings.HasPrefix(alias, "/") {
				alias = "/" + alias
			}
			if alias == cmd {
				continue
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
			aliases++
		}
	}
	logger.Info(context.Background(), "tg.wire", "complete",
		slog.Int("commands", len(reg.Commands())),
		slog.Int("aliases", aliases),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

func wrapCommand(key string, def commands.Command, opts CommandRouteOptions) tele.HandlerFunc {
	name := normalizeHandlerName(key)
	inner := def.Handler
	h := func(c tele.Context) error {
		return handleWithSummary(c, name, time.Now(), func() error {
			return inner(c)
		})
	}
	if def.OperatorOnly {
		h = middleware.OperatorOnlyMiddleware(middleware.OperatorOptions{
			ChatID:   opts.OperatorChatID,
			OnReject: opts.OnOperatorReject,
		})(h)
	}
	return h
}
