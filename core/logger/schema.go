package logger

import "strings"

const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// allowedOutcome lists handler outcomes; anything else is dropped.
var allowedOutcome = map[string]bool{
	"ok": true, "fail": true, "cancelled": true, "rate_limited": true,
}

// maskedKeys hold phone numbers and are written through MaskPhone.
var maskedKeys = map[string]bool{
	"phone":         true,
	"contact_phone": true,
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeStatus(status string) string {
	return strings.ToLower(strings.TrimSpace(status))
}

func normalizeOutcome(outcome string) (string, bool) {
	outcome = strings.ToLower(strings.TrimSpace(outcome))
	return outcome, allowedOutcome[outcome]
}

// defaultKeyOrder fixes the column order of every line; unknown keys follow
// alphabetically.
var defaultKeyOrder = []string{
	// envelope
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	// telegram update
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"payload",
	"lang",
	"username",
	// funnel
	"stage",
	"action",
	"trigger_id",
	"trigger",
	"delay_ms",
	"audience",
	"recipients",
	"candidates",
	"sent",
	"skipped",
	"failed",
	"phone",
	// infrastructure
	"db",
	"host",
	"port",
	"endpoint",
	"count",
	// errors
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
	"collapsed",
	"repeats",
	"pending_count",
}
