package callbacks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestParseCallbackData(t *testing.T) {
	cases := []struct {
		name    string
		cb      *tele.Callback
		unique  string
		payload string
	}{
		{"nil", nil, "", ""},
		{"raw", &tele.Callback{Data: "\fretryEmail|42"}, "retryEmail", "42"},
		{"raw without payload", &tele.Callback{Data: "\ftopup"}, "topup", ""},
		{"split by telebot", &tele.Callback{Unique: "retryEmail", Data: "7"}, "retryEmail", "7"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, p := ParseCallbackData(tc.cb)
			assert.Equal(t, tc.unique, u)
			assert.Equal(t, tc.payload, p)
		})
	}
}

func TestPayloadID(t *testing.T) {
	cases := map[string]struct {
		data string
		id   int64
		ok   bool
	}{
		"valid":     {"\fretryEmail|42", 42, true},
		"spaces":    {"\fretryEmail| 7 ", 7, true},
		"zero":      {"\fretryEmail|0", 0, false},
		"negative":  {"\fretryEmail|-3", 0, false},
		"malformed": {"\fretryEmail|x1", 0, false},
		"missing":   {"\fretryEmail", 0, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			c := tele.NewContext(nil, tele.Update{Callback: &tele.Callback{Data: tc.data}})
			id, ok := PayloadID(c)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.id, id)
		})
	}
}
