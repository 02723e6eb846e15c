package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRows(t *testing.T) {
	markup := Rows(
		[]Button{Callback("Top up", "topup")},
		nil,
		[]Button{Link("Guide", "https://example.com/howto"), Callback("Retry", "retryEmail").With("5")},
	)
	require.Len(t, markup.InlineKeyboard, 2)

	assert.Equal(t, "topup", markup.InlineKeyboard[0][0].Unique)

	link := markup.InlineKeyboard[1][0]
	assert.Equal(t, "https://example.com/howto", link.URL)
	assert.Empty(t, link.Unique)

	retry := markup.InlineKeyboard[1][1]
	assert.Equal(t, "retryEmail", retry.Unique)
	assert.Equal(t, "5", retry.Data)
}

func TestColumn(t *testing.T) {
	markup := Column(Callback("A", "a"), Callback("B", "b"))
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[1], 1)
	assert.Equal(t, "b", markup.InlineKeyboard[1][0].Unique)
}
