package audit

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"recruitcore.io/internal/auth"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Event is a single security-relevant action.
type Event struct {
	Name      string         `json:"event"`
	Time      time.Time      `json:"ts"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// Publisher forwards audit events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Recorder writes audit events to the context logger and an optional publisher.
type Recorder struct {
	publisher Publisher
	now       func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithPublisher forwards every recorded event to p.
func WithPublisher(p Publisher) RecorderOption {
	return func(r *Recorder) { r.publisher = p }
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRecorder builds a Recorder.
func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record emits an audit event enriched with request and user context. Publisher failures are
// logged and never returned. A nil Recorder is a no-op.
func (r *Recorder) Record(ctx context.Context, event string, fields map[string]any) error {
	if r == nil {
		return nil
	}
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	ev := Event{
		Name:      event,
		Time:      r.now().UTC(),
		RequestID: RequestIDFromContext(ctx),
		Fields:    make(map[string]any, len(fields)),
	}
	if actx, ok := auth.AuthFromContext(ctx); ok && actx.User != nil {
		ev.UserID = actx.User.ID
	}
	for k, v := range fields {
		ev.Fields[k] = v
	}

	logger := zerolog.Ctx(ctx)
	entry := logger.Info().
		Str("type", "audit").
		Str("event", ev.Name).
		Time("ts", ev.Time).
		Fields(map[string]any{"fields": ev.Fields})
	if ev.RequestID != "" {
		entry = entry.Str("request_id", ev.RequestID)
	}
	if ev.UserID != "" {
		entry = entry.Str("user_id", ev.UserID)
	}
	entry.Send()

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			logger.Warn().Err(err).Str("event", ev.Name).Msg("audit publish failed")
		}
	}
	return nil
}
