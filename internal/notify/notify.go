// Package notify separates user-facing dialogs from domain logic. Services
// present success and error notices to a Sink without knowing who renders them.
package notify

import (
	"context"
	"log/slog"
	"sync"
)

// Icon selects the dialog style.
type Icon string

const (
	IconSuccess Icon = "success"
	IconError   Icon = "error"
)

// Notification is one dialog payload.
type Notification struct {
	Icon  Icon   `json:"icon"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Sink presents notifications. Present is fire-and-forget: implementations
// must not block the caller on delivery and report failures themselves.
type Sink interface {
	Present(ctx context.Context, n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification)

func (f SinkFunc) Present(ctx context.Context, n Notification) { f(ctx, n) }

// Success builds a success notification.
func Success(title, text string) Notification {
	return Notification{Icon: IconSuccess, Title: title, Text: text}
}

// Failure builds an error notification.
func Failure(title, text string) Notification {
	return Notification{Icon: IconError, Title: title, Text: text}
}

// LogSink writes notifications to slog.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Present(ctx context.Context, n Notification) {
	level := slog.LevelInfo
	if n.Icon == IconError {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "Notification presented",
		"icon", n.Icon,
		"title", n.Title,
		"text", n.Text)
}

// Recorder keeps every notification it receives. HTTP handlers use one per
// request to return the dialogs in the response body.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Present(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// Notifications returns a copy of what was presented so far.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Multi fans a notification out to several sinks, skipping nil ones.
func Multi(sinks ...Sink) Sink {
	out := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return multiSink(out)
}

type multiSink []Sink

func (m multiSink) Present(ctx context.Context, n Notification) {
	for _, s := range m {
		s.Present(ctx, n)
	}
}

// Discard drops everything.
var Discard Sink = SinkFunc(func(context.Context, Notification) {})
