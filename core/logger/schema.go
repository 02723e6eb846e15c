package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
}

// statusValues are the handler-level statuses; others pass through unchanged.
var statusValues = map[string]bool{
	"ok":           true,
	"fail":         true,
	"skip":         true,
	"retry":        true,
	"rate_limited": true,
	"cancelled":    true,
}

// outcomeValues are the handler summary outcomes; others are dropped.
var outcomeValues = map[string]bool{
	"ok":           true,
	"fail":         true,
	"cancelled":    true,
	"rate_limited": true,
}

// resultValues are the decision results; others are reported as "other".
var resultValues = map[string]bool{
	"credited":           true,
	"rejected":           true,
	"not_found":          true,
	"account_not_found":  true,
	"ledger_unavailable": true,
	"failed":             true,
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if name, ok := levelNames[strings.ToLower(level)]; ok {
		return name
	}
	return strings.ToUpper(level)
}

func normalizeEnum(value string, allowed map[string]bool) (string, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	return value, value != "" && allowed[value]
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"result",
	"rid",
	"rid_full",
	"trace_id",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"state",
	"kind",
	"command",
	"cb_key",
	"outcome",
	"duration_ms",
	"request_id",
	"decision",
	"operator",
	"email",
	"amount",
	"balance",
	"proof_ref",
	"message_id",
	"username",
	"payload",
	"text_len",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"driver",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"pending_count",
}
