// Package analytics carries the client envelope (platform, app version,
// session, locale) on every API request and reads it back on the server.
package analytics

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	HeaderPlatform       = "X-Platform"
	HeaderAppVersion     = "X-App-Version"
	HeaderSessionID      = "X-Session-Id"
	HeaderDeviceLocale   = "X-Device-Locale"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderSourceEventKey = "X-Source-Event-Key"
)

// Envelope is what travels with every request.
type Envelope struct {
	UserID       int64
	SessionID    string
	Platform     string
	AppVersion   string
	DeviceLocale string
}

// NewEnvelope starts a client envelope with a fresh session id.
func NewEnvelope(platform, appVersion, locale string) Envelope {
	return Envelope{
		SessionID:    uuid.NewString(),
		Platform:     normalizePlatform(platform),
		AppVersion:   strings.TrimSpace(appVersion),
		DeviceLocale: strings.TrimSpace(locale),
	}
}

// Apply writes the envelope headers onto an outgoing request.
func (e Envelope) Apply(h http.Header) {
	if e.Platform != "" {
		h.Set(HeaderPlatform, e.Platform)
	}
	if e.AppVersion != "" {
		h.Set(HeaderAppVersion, e.AppVersion)
	}
	if e.SessionID != "" {
		h.Set(HeaderSessionID, e.SessionID)
	}
	if e.DeviceLocale != "" {
		h.Set("Accept-Language", e.DeviceLocale)
	}
}

// FromRequest extracts event envelope fields from request.
// Backend-trustable fields only.
func FromRequest(r *http.Request) Envelope {
	locale := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if locale == "" {
		locale = strings.TrimSpace(r.Header.Get(HeaderDeviceLocale))
	}

	return Envelope{
		SessionID:    strings.TrimSpace(r.Header.Get(HeaderSessionID)),
		Platform:     normalizePlatform(r.Header.Get(HeaderPlatform)),
		AppVersion:   strings.TrimSpace(r.Header.Get(HeaderAppVersion)),
		DeviceLocale: locale,
	}
}

func normalizePlatform(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	switch p {
	case "ios", "android", "web", "cli":
		return p
	default:
		return "unknown"
	}
}

// NewIdempotencyKey returns a key for one mutation attempt.
func NewIdempotencyKey() string {
	return uuid.NewString()
}

// IdempotencyKeyFromRequest returns the client-provided key, if any.
func IdempotencyKeyFromRequest(r *http.Request) string {
	if k := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey)); k != "" {
		return k
	}
	return strings.TrimSpace(r.Header.Get(HeaderSourceEventKey))
}

// Log records one event. Callers pass sanitized props, never raw goal text.
func Log(ctx context.Context, log *slog.Logger, env Envelope, eventName string, props map[string]any) {
	if eventName == "" || log == nil {
		return
	}

	attrs := []any{
		"event", eventName,
		"user_id", env.UserID,
		"platform", env.Platform,
	}
	if env.SessionID != "" {
		attrs = append(attrs, "session_id", env.SessionID)
	}
	if env.AppVersion != "" {
		attrs = append(attrs, "app_version", env.AppVersion)
	}
	if len(props) > 0 {
		attrs = append(attrs, slog.Any("props", props))
	}
	log.InfoContext(ctx, "analytics event", attrs...)
}
