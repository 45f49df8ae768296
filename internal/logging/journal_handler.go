package logging

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// syslogIdentifier tags entries so `journalctl -t astroplant-camera`
// filters the service's logs.
const syslogIdentifier = "astroplant-camera"

// JournalHandler is a slog.Handler that writes native journal entries,
// flattening attributes into uppercase journal fields.
type JournalHandler struct {
	level slog.Leveler
	// bound holds fields from WithAttrs, resolved at bind time so the
	// group prefix in effect then applies, not the one at Handle time.
	bound  map[string]string
	prefix string
}

// NewJournalHandler creates a journal handler gated at level.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the record to the journal. MESSAGE and PRIORITY travel
// as journal.Send arguments, everything else as fields.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(map[string]string, len(h.bound)+r.NumAttrs()+1)
	for k, v := range h.bound {
		fields[k] = v
	}
	fields["SYSLOG_IDENTIFIER"] = syslogIdentifier

	r.Attrs(func(a slog.Attr) bool {
		flattenAttr(fields, h.prefix, a)
		return true
	})

	return journal.Send(r.Message, priorityFor(r.Level), fields)
}

func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.clone()
	for _, a := range attrs {
		flattenAttr(next.bound, next.prefix, a)
	}
	return next
}

func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := h.clone()
	next.prefix = joinFieldName(next.prefix, name)
	return next
}

func (h *JournalHandler) clone() *JournalHandler {
	bound := make(map[string]string, len(h.bound))
	for k, v := range h.bound {
		bound[k] = v
	}
	return &JournalHandler{level: h.level, bound: bound, prefix: h.prefix}
}

// priorityFor maps slog levels onto syslog priorities.
func priorityFor(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// flattenAttr adds one attribute to fields. Groups recurse with an
// extended prefix; an empty-keyed group is inlined per slog convention.
func flattenAttr(fields map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		next := prefix
		if a.Key != "" {
			next = joinFieldName(prefix, a.Key)
		}
		for _, ga := range a.Value.Group() {
			flattenAttr(fields, next, ga)
		}
		return
	}

	key := joinFieldName(prefix, a.Key)
	if key == "" {
		return
	}

	switch a.Value.Kind() {
	case slog.KindInt64:
		fields[key] = strconv.FormatInt(a.Value.Int64(), 10)
	case slog.KindUint64:
		fields[key] = strconv.FormatUint(a.Value.Uint64(), 10)
	case slog.KindBool:
		fields[key] = strconv.FormatBool(a.Value.Bool())
	case slog.KindTime:
		fields[key] = a.Value.Time().Format(time.RFC3339Nano)
	default:
		fields[key] = a.Value.String()
	}
}

// joinFieldName appends key to prefix in journal field form. Journald
// only accepts uppercase letters, digits and underscores, and treats a
// leading underscore as a trusted field, so anything else is mapped
// away.
func joinFieldName(prefix, key string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	mapped = strings.TrimLeft(mapped, "_")
	if prefix == "" {
		return mapped
	}
	if mapped == "" {
		return prefix
	}
	return prefix + "_" + mapped
}

// IsJournalAvailable reports whether the systemd journal socket is
// reachable from this process.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
