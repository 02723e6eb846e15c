package middleware

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Update kinds reported in logs and metrics.
const (
	KindCallback    = "callback"
	KindCommand     = "command"
	KindText        = "text"
	KindPhoto       = "photo"
	KindMedia       = "media"
	KindInlineQuery = "inline_query"
	KindOther       = "other"
)

// UpdateKind classifies upd for logs and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.Query != nil:
		return KindInlineQuery
	case upd.Message != nil:
		msg := upd.Message
		switch {
		case strings.HasPrefix(msg.Text, "/"):
			return KindCommand
		case msg.Text != "":
			return KindText
		case msg.Photo != nil:
			return KindPhoto
		}
		return KindMedia
	}
	return KindOther
}

// limitClass maps a kind onto the rate_limit.exclude_updates vocabulary.
func limitClass(kind string) string {
	switch kind {
	case KindCommand, KindText, KindPhoto, KindMedia:
		return "message"
	}
	return kind
}
