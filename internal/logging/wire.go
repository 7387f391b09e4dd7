package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// MessageWire is the JSON a plugin sends to the log_message binding.
type MessageWire struct {
	Timestamp time.Time  `json:"timestamp,omitzero"`
	Attrs     []AttrWire `json:"attrs,omitempty"`
	Level     string     `json:"level"`
	Message   string     `json:"message"`
}

// AttrWire is one attribute of a plugin log record. Value is the textual
// form of the value and Type says how to read it back.
type AttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Attr converts the wire attribute back to a slog attribute. A value that
// does not parse as its declared type is kept as a string.
func (w AttrWire) Attr() slog.Attr {
	switch w.Type {
	case "int64":
		if v, err := strconv.ParseInt(w.Value, 10, 64); err == nil {
			return slog.Int64(w.Key, v)
		}
	case "uint64":
		if v, err := strconv.ParseUint(w.Value, 10, 64); err == nil {
			return slog.Uint64(w.Key, v)
		}
	case "bool":
		if v, err := strconv.ParseBool(w.Value); err == nil {
			return slog.Bool(w.Key, v)
		}
	case "float64":
		if v, err := strconv.ParseFloat(w.Value, 64); err == nil {
			return slog.Float64(w.Key, v)
		}
	case "time":
		if v, err := time.Parse(time.RFC3339Nano, w.Value); err == nil {
			return slog.Time(w.Key, v)
		}
	case "duration":
		if v, err := time.ParseDuration(w.Value); err == nil {
			return slog.Duration(w.Key, v)
		}
	case "json":
		if json.Valid([]byte(w.Value)) {
			return slog.Any(w.Key, json.RawMessage(w.Value))
		}
	}
	return slog.String(w.Key, w.Value)
}

// AttrToWire encodes a slog attribute for the wire. Plugin SDKs written in
// Go use it; the host uses it in tests.
func AttrToWire(attr slog.Attr) AttrWire {
	w := AttrWire{Key: attr.Key}
	v := attr.Value.Resolve()

	switch v.Kind() {
	case slog.KindString:
		w.Type, w.Value = "string", v.String()
	case slog.KindInt64:
		w.Type, w.Value = "int64", strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		w.Type, w.Value = "uint64", strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		w.Type, w.Value = "bool", strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		w.Type, w.Value = "float64", strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		w.Type, w.Value = "time", v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		w.Type, w.Value = "duration", v.Duration().String()
	default:
		w.Type, w.Value = anyToWire(v.Any())
	}
	return w
}

func anyToWire(v any) (typ, value string) {
	if v == nil {
		return "any", "<nil>"
	}
	if err, ok := v.(error); ok {
		return "error", err.Error()
	}
	if data, err := json.Marshal(v); err == nil {
		return "json", string(data)
	}
	return "any", fmt.Sprintf("%v", v)
}

// Record returns the message's level and its attributes as slog arguments.
func (m MessageWire) Record() (slog.Level, []any) {
	args := make([]any, 0, len(m.Attrs))
	for _, a := range m.Attrs {
		args = append(args, a.Attr())
	}
	return ParseLevel(m.Level), args
}
