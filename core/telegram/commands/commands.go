package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command is a slash command as registered with the bot.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// OperatorOnly limits the command to the operator group, whose chat
	// scope carries its own menu.
	OperatorOnly bool
	// Hidden commands work but are left out of every menu.
	Hidden bool
	// Aliases route to the same handler, e.g. /yes for /accept.
	Aliases []string
}
