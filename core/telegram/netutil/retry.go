// Package netutil classifies Telegram API failures for retry decisions.
package netutil

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	tele "gopkg.in/telebot.v4"
)

// Kind names a class of send failure. It is used as a log attribute and
// as a metrics label.
type Kind string

const (
	KindNone     Kind = ""
	KindTimeout  Kind = "timeout"
	KindDNS      Kind = "dns"
	KindDial     Kind = "dial"
	KindTLS      Kind = "tls"
	KindFlood    Kind = "flood"
	KindServer   Kind = "http_5xx"
	KindClient   Kind = "http_4xx"
	KindCanceled Kind = "canceled"
	KindUnknown  Kind = "unknown"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// Classify maps err onto a Kind.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return KindFlood
	}
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		return kindForStatus(apiErr.Code)
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return KindTimeout
		}
		return KindDNS
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return KindTimeout
		}
		if opErr.Op == "dial" {
			return KindDial
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return KindTimeout
	}
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return KindTLS
	}
	return KindUnknown
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindFlood
	case code >= 500:
		return KindServer
	case code >= 400:
		return KindClient
	}
	return KindUnknown
}

// ShouldRetry reports whether err is transient. Client errors such as a
// blocked bot or an unknown chat are final.
func ShouldRetry(err error) bool {
	switch Classify(err) {
	case KindTimeout, KindDNS, KindDial, KindFlood, KindServer:
		return true
	}
	return false
}

// ShouldRetryRequest is the stricter rule for the HTTP transport: only
// failures that happened before the request reached Telegram are repeated,
// so a slow but successful send is never delivered twice.
func ShouldRetryRequest(err error) bool {
	switch Classify(err) {
	case KindDNS, KindDial:
		return true
	}
	return false
}

// RetryAfter returns the wait Telegram asked for on a flood error, or 0.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if errors.As(err, &flood) && flood.RetryAfter > 0 {
		return time.Duration(flood.RetryAfter) * time.Second
	}
	return 0
}

// Redact removes bot tokens from error text before it is logged.
func Redact(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllString(err.Error(), "bot<redacted>")
}
