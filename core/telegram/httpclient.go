package telegram

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/topupbot/core/logger"
	"github.com/m3rciful/topupbot/core/metrics"
	"github.com/m3rciful/topupbot/core/telegram/netutil"
)

const (
	dialTimeout     = 5 * time.Second
	tlsTimeout      = 5 * time.Second
	idleConnTimeout = 90 * time.Second
	keepAlive       = 30 * time.Second
	// clientTimeout covers the long poll itself, so it must exceed the
	// poller timeout.
	clientTimeout = 75 * time.Second

	connectRetries = 2
	connectBackoff = 500 * time.Millisecond
)

// NewHTTPClient returns the client used for Bot API calls. Requests that
// never reached the server (DNS or dial failures) are retried in place.
// Everything else is left to the sender dispatcher.
func NewHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: &connectRetry{base: base, retries: connectRetries, backoff: connectBackoff},
	}
}

type connectRetry struct {
	base    http.RoundTripper
	retries int
	backoff time.Duration
}

func (t *connectRetry) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	for attempt := 1; err != nil && attempt <= t.retries && netutil.ShouldRetryRequest(err); attempt++ {
		// A consumed body without GetBody cannot be replayed.
		if req.Body != nil && req.GetBody == nil {
			return nil, err
		}
		kind := string(netutil.Classify(err))
		metrics.SendRetries.WithLabelValues(kind).Inc()
		logger.Debug(req.Context(), "tg.http", "connect.retry",
			slog.Int("attempt", attempt),
			slog.String("kind", kind),
			slog.String("err", netutil.Redact(err)),
		)

		timer := time.NewTimer(t.backoff * time.Duration(attempt))
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		next := req.Clone(req.Context())
		if req.GetBody != nil {
			body, berr := req.GetBody()
			if berr != nil {
				return nil, berr
			}
			next.Body = body
		}
		resp, err = t.base.RoundTrip(next)
	}
	return resp, err
}
