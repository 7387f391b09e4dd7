package pdk

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/rushsh/rush/internal/logging"
)

// LogHandler is a slog.Handler that forwards records to the shell's log.
type LogHandler struct {
	opts   handlerConfig
	send   func([]byte)
	attrs  []slog.Attr
	groups []string
}

// HandlerOption configures a LogHandler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	level slog.Leveler
}

func defaultHandlerConfig() handlerConfig {
	return handlerConfig{
		level: slog.LevelInfo,
	}
}

// WithLevel sets the minimum level forwarded. Records below it are dropped
// inside the plugin.
func WithLevel(level slog.Leveler) HandlerOption {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// NewLogHandler returns a handler passing each encoded record to send.
func NewLogHandler(send func([]byte), opts ...HandlerOption) *LogHandler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &LogHandler{opts: cfg, send: send}
}

// Enabled reports whether records at level are forwarded.
func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.level.Level()
}

// Handle encodes the record and sends it.
func (h *LogHandler) Handle(_ context.Context, record slog.Record) error {
	msg := logging.MessageWire{
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}
	for _, a := range h.attrs {
		msg.Attrs = append(msg.Attrs, logging.AttrToWire(a))
	}
	record.Attrs(func(a slog.Attr) bool {
		for _, flat := range flatten(h.qualify(a)) {
			msg.Attrs = append(msg.Attrs, logging.AttrToWire(flat))
		}
		return true
	})

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	h.send(payload)
	return nil
}

// WithAttrs returns a handler that adds attrs to every record.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		next.attrs = append(next.attrs, flatten(h.qualify(a))...)
	}
	return next
}

// WithGroup returns a handler that prefixes later attribute keys with name.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.groups = append(next.groups, name)
	return next
}

func (h *LogHandler) clone() *LogHandler {
	next := *h
	next.attrs = slices.Clip(h.attrs)
	next.groups = slices.Clip(h.groups)
	return &next
}

func (h *LogHandler) qualify(a slog.Attr) slog.Attr {
	for _, g := range slices.Backward(h.groups) {
		a.Key = g + "." + a.Key
	}
	return a
}

// flatten expands group values into dotted keys and drops empty attributes.
func flatten(a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return nil
	}
	if a.Value.Kind() != slog.KindGroup {
		return []slog.Attr{a}
	}
	var out []slog.Attr
	for _, member := range a.Value.Group() {
		if a.Key != "" {
			member.Key = a.Key + "." + member.Key
		}
		out = append(out, flatten(member)...)
	}
	return out
}
