package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func msgCtx(userID int64, m *tele.Message) tele.Context {
	m.Sender = &tele.User{ID: userID}
	m.Chat = &tele.Chat{ID: userID, Type: tele.ChatPrivate}
	return tele.NewContext(nil, tele.Update{ID: 7, Message: m})
}

func TestUpdateKind(t *testing.T) {
	cases := map[string]tele.Update{
		KindCallback:    {Callback: &tele.Callback{Data: "\fcancel"}},
		KindInlineQuery: {Query: &tele.Query{}},
		KindCommand:     {Message: &tele.Message{Text: "/start"}},
		KindText:        {Message: &tele.Message{Text: "someone@mail.com"}},
		KindPhoto:       {Message: &tele.Message{Photo: &tele.Photo{}}},
		KindMedia:       {Message: &tele.Message{Sticker: &tele.Sticker{}}},
		KindOther:       {},
	}
	for want, upd := range cases {
		assert.Equal(t, want, UpdateKind(upd), want)
	}
}

func TestUpdateKindAttrsSkipText(t *testing.T) {
	attrs := updateKind(tele.Update{Message: &tele.Message{Text: "someone@mail.com"}})
	require.Len(t, attrs, 2)
	assert.Equal(t, "text_len", attrs[1].Key)
	assert.Equal(t, int64(16), attrs[1].Value.Int64())

	attrs = updateKind(tele.Update{Message: &tele.Message{Text: "/accept now"}})
	require.Len(t, attrs, 2)
	assert.Equal(t, "/accept", attrs[1].Value.String())

	attrs = updateKind(tele.Update{Callback: &tele.Callback{Data: "\fretryEmail|42"}})
	require.Len(t, attrs, 3)
	assert.Equal(t, "retryEmail", attrs[1].Value.String())
	assert.Equal(t, "42", attrs[2].Value.String())

	assert.Nil(t, updateKind(tele.Update{}))
}

func TestRateLimit(t *testing.T) {
	now := time.Unix(1000, 0)
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Second,
		Exclude:   map[string]struct{}{"callback": {}},
		OnLimited: func(tele.Context) error { limited++; return nil },
		Now:       func() time.Time { return now },
	})
	handled := 0
	h := mw(func(tele.Context) error { handled++; return nil })

	require.NoError(t, h(msgCtx(1, &tele.Message{Text: "100"})))
	require.NoError(t, h(msgCtx(1, &tele.Message{Text: "100"})))
	require.NoError(t, h(msgCtx(2, &tele.Message{Text: "100"})))
	assert.Equal(t, 2, handled)
	assert.Equal(t, 1, limited)

	cb := tele.NewContext(nil, tele.Update{Callback: &tele.Callback{Sender: &tele.User{ID: 1}}})
	require.NoError(t, h(cb))
	assert.Equal(t, 3, handled)

	now = now.Add(1500 * time.Millisecond)
	require.NoError(t, h(msgCtx(1, &tele.Message{Text: "100"})))
	assert.Equal(t, 4, handled)
}

func TestLastSeenSweeps(t *testing.T) {
	l := &lastSeen{byUser: make(map[int64]time.Time)}
	base := time.Unix(5000, 0)
	for id := int64(1); id <= 3; id++ {
		assert.True(t, l.allow(id, base, time.Second))
	}
	assert.True(t, l.allow(4, base.Add(2*time.Minute), time.Second))
	assert.Len(t, l.byUser, 1)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(msgCtx(1, &tele.Message{Text: "x"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	ok := RecoverMiddleware(func(tele.Context) error { return nil })
	assert.NoError(t, ok(msgCtx(1, &tele.Message{Text: "x"})))
}

func TestInboundMetricsStoresKind(t *testing.T) {
	var seen any
	h := InboundMetricsMiddleware(func(c tele.Context) error {
		seen = c.Get("update_kind")
		return nil
	})
	require.NoError(t, h(msgCtx(1, &tele.Message{Photo: &tele.Photo{}})))
	assert.Equal(t, KindPhoto, seen)
}
