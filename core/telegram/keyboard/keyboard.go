// Package keyboard builds inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button is a callback button, or a link button when URL is set.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

// Callback returns a button routed to the callback registered as unique.
func Callback(text, unique string) Button {
	return Button{Text: text, Unique: unique}
}

// With returns a copy of b carrying data as the callback payload.
func (b Button) With(data string) Button {
	b.Data = data
	return b
}

// Link returns a button that opens url.
func Link(text, url string) Button {
	return Button{Text: text, URL: url}
}

// Column stacks the buttons one per row.
func Column(buttons ...Button) *tele.ReplyMarkup {
	rows := make([][]Button, len(buttons))
	for i, b := range buttons {
		rows[i] = []Button{b}
	}
	return Rows(rows...)
}

// Rows lays the buttons out as given. Empty rows are dropped.
func Rows(rows ...[]Button) *tele.ReplyMarkup {
	m := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			var btn tele.Btn
			if b.URL != "" {
				btn = m.URL(b.Text, b.URL)
			} else {
				btn = m.Data(b.Text, b.Unique, b.Data)
			}
			line = append(line, *btn.Inline())
		}
		m.InlineKeyboard = append(m.InlineKeyboard, line)
	}
	return m
}
