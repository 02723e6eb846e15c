package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/topupbot/core/config"

	tele "gopkg.in/telebot.v4"
)

func TestNewPollerLongpoll(t *testing.T) {
	cfg := &coreconfig.Config{Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeLongpoll}}
	p, ok := NewPoller(cfg).(*tele.LongPoller)
	require.True(t, ok)
	assert.Equal(t, defaultLongPollTimeout, p.Timeout)

	cfg.Telegram.LongPollTimeoutSeconds = 25
	p = NewPoller(cfg).(*tele.LongPoller)
	assert.Equal(t, 25*time.Second, p.Timeout)
}

func TestNewPollerWebhook(t *testing.T) {
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{RunMode: coreconfig.RunModeWebhook},
		Webhook: coreconfig.WebhookConfig{
			URL:         "https://bot.example.com/hook",
			Listen:      "0.0.0.0",
			Port:        8443,
			SecretToken: "s3cret",
		},
	}
	wh, ok := NewPoller(cfg).(*tele.Webhook)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:8443", wh.Listen)
	assert.Equal(t, "s3cret", wh.SecretToken)
	assert.Equal(t, "https://bot.example.com/hook", wh.Endpoint.PublicURL)
}

func TestSenderOptions(t *testing.T) {
	opts := SenderOptions(coreconfig.SenderConfig{Workers: 2, RetryBackoffMS: 250})
	assert.Equal(t, 2, opts.Workers)
	assert.Equal(t, defaultSendRetries, opts.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, opts.RetryBackoff)

	opts = SenderOptions(coreconfig.SenderConfig{MaxRetries: 1})
	assert.Equal(t, 1, opts.MaxRetries)
}

func TestRunTelegramNilConfig(t *testing.T) {
	assert.Error(t, RunTelegram(context.Background(), RunOptions{}))
}
