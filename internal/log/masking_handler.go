package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// sensitiveKeys contains attribute keys whose values are always masked.
// These keys carry device-identifying or authentication material that
// must not leak into logs shared for troubleshooting.
var sensitiveKeys = map[string]bool{
	// Device identity
	"serial":        true,
	"serial_number": true,
	"imei":          true,
	"meid":          true,
	"device_id":     true,

	// SLA / unlock material
	"challenge":     true,
	"challenge_hex": true,
	"unlock_token":  true,
	"signature":     true,
	"sla_response":  true,

	// Generic credentials
	"token":       true,
	"secret":      true,
	"password":    true,
	"private_key": true,
}

// sensitivePatterns match values that look like challenge or key material
// regardless of the attribute key they arrive under.
var sensitivePatterns = []*regexp.Regexp{
	// Long bare hex blobs: SLA challenges and signatures are 32+ bytes
	regexp.MustCompile(`^(0x)?[0-9a-fA-F]{64,}$`),

	// PEM key markers
	regexp.MustCompile(`(?i)-----BEGIN.*(PRIVATE|SECRET).*KEY-----`),

	// Qualcomm unlock token format (base64, 344 chars for 2048-bit RSA)
	regexp.MustCompile(`^[A-Za-z0-9+/]{340,}={0,2}$`),
}

// MaskValue is the string used to replace masked values.
const MaskValue = "***REDACTED***"

// MaskingHandler wraps an slog.Handler and redacts device-identifying
// attribute values before passing records on.
//
// Design decision: a handler wrapper rather than a custom logger because
// it composes with any underlying handler (text, JSON) and with every
// component that accepts a *slog.Logger.
type MaskingHandler struct {
	handler slog.Handler
}

// NewMaskingHandler creates a MaskingHandler wrapping the given handler.
// If handler is nil, slog.Default().Handler() is used.
func NewMaskingHandler(handler slog.Handler) *MaskingHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &MaskingHandler{handler: handler}
}

// Enabled reports whether the handler handles records at the given level.
func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle masks the record's attributes and forwards it.
func (h *MaskingHandler) Handle(ctx context.Context, r slog.Record) error {
	masked := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)

	r.Attrs(func(a slog.Attr) bool {
		masked.AddAttrs(h.maskAttr(a))
		return true
	})

	return h.handler.Handle(ctx, masked)
}

// WithAttrs returns a new handler with the given attributes added,
// masked first.
func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	maskedAttrs := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		maskedAttrs[i] = h.maskAttr(a)
	}
	return &MaskingHandler{handler: h.handler.WithAttrs(maskedAttrs)}
}

// WithGroup returns a new handler with the given group name.
func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{handler: h.handler.WithGroup(name)}
}

// maskAttr masks a single attribute, recursing into groups.
func (h *MaskingHandler) maskAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		maskedAttrs := make([]slog.Attr, len(attrs))
		for i, groupAttr := range attrs {
			maskedAttrs[i] = h.maskAttr(groupAttr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(maskedAttrs...)}
	}

	keyLower := strings.ToLower(a.Key)
	if sensitiveKeys[keyLower] || containsSensitiveKeyword(keyLower) {
		return slog.String(a.Key, MaskValue)
	}

	if a.Value.Kind() == slog.KindString && isSensitiveValue(a.Value.String()) {
		return slog.String(a.Key, MaskValue)
	}

	return a
}

// containsSensitiveKeyword checks whether the key embeds a sensitive term.
// Short addresses and error codes pass through untouched; only identity
// and credential terms match.
func containsSensitiveKeyword(key string) bool {
	keywords := []string{
		"serial", "imei", "challenge", "token", "secret",
		"password", "private", "unlock",
	}
	for _, keyword := range keywords {
		if strings.Contains(key, keyword) {
			return true
		}
	}
	return false
}

// isSensitiveValue checks whether a value matches key-material patterns.
func isSensitiveValue(value string) bool {
	for _, pattern := range sensitivePatterns {
		if pattern.MatchString(value) {
			return true
		}
	}
	return false
}

// NewLogger creates a *slog.Logger writing text records to w with
// masking applied. Verbose selects Debug level, otherwise Warn.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	return slog.New(NewMaskingHandler(slog.NewTextHandler(w, opts)))
}

// NewJSONLogger creates a *slog.Logger writing JSON records to w with
// masking applied. Useful when logs feed structured aggregation.
func NewJSONLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	return slog.New(NewMaskingHandler(slog.NewJSONHandler(w, opts)))
}
