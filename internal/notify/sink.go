// Package notify defines where user-facing failure notifications go. The
// request pipeline only decides whether and what to notify, presentation is up
// to the sink implementation.
package notify

import (
	"log/slog"

	"github.com/codearena/portal-gateway/internal/classify"
	"github.com/getsentry/sentry-go"
)

type Sink interface {
	Notify(kind classify.Kind, message string)
}

// SlogSink emits notifications as structured log records
type SlogSink struct{}

func (SlogSink) Notify(kind classify.Kind, message string) {
	slog.Warn("NOTIFICATION", "kind", kind, "message", message)
}

// SentrySink forwards server-side failures to Sentry in addition to logging
// them. Client-side kinds are the user's problem, not an incident.
type SentrySink struct {
	hub *sentry.Hub
}

func NewSentrySink() *SentrySink {
	return &SentrySink{hub: sentry.CurrentHub()}
}

func (s *SentrySink) Notify(kind classify.Kind, message string) {
	SlogSink{}.Notify(kind, message)
	if kind != classify.ServerError && kind != classify.Unknown {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_kind", string(kind))
		s.hub.CaptureMessage(message)
	})
}

// NopSink discards all notifications
type NopSink struct{}

func (NopSink) Notify(kind classify.Kind, message string) {}
