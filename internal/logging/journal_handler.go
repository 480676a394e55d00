package logging

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
)

// SyslogIdentifier tags every journal entry written by this process.
const SyslogIdentifier = "phonecam"

// JournalHandler is a slog.Handler that sends logs to systemd journal.
type JournalHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewJournalHandler creates a journal handler. level may be a *slog.LevelVar
// so module levels can change at runtime.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the log record to systemd journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	fields := map[string]string{
		"SYSLOG_IDENTIFIER": SyslogIdentifier,
	}

	for _, attr := range h.attrs {
		addAttrToFields(fields, attr, h.groups)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addAttrToFields(fields, attr, h.groups)
		return true
	})

	return journal.Send(r.Message, mapLevelToPriority(r.Level), fields)
}

// WithAttrs returns a new handler with additional attributes.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &JournalHandler{
		level:  h.level,
		attrs:  append(slices.Clip(h.attrs), attrs...),
		groups: h.groups,
	}
}

// WithGroup returns a new handler with a group prefix.
func (h *JournalHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &JournalHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: append(slices.Clip(h.groups), name),
	}
}

// mapLevelToPriority maps slog levels to journal priorities.
func mapLevelToPriority(level slog.Level) journal.Priority {
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

// addAttrToFields adds an slog attribute to journal fields. Journal field
// names are upper case; groups are joined with underscores.
func addAttrToFields(fields map[string]string, attr slog.Attr, groups []string) {
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := attr.Key
	if len(groups) > 0 {
		key = strings.Join(groups, "_") + "_" + key
	}
	key = strings.ToUpper(key)

	v := attr.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		fields[key] = v.String()
	case slog.KindInt64:
		fields[key] = strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		fields[key] = strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		fields[key] = strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		fields[key] = strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		fields[key] = v.Duration().String()
	case slog.KindTime:
		fields[key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindGroup:
		nested := append(slices.Clone(groups), attr.Key)
		for _, a := range v.Group() {
			addAttrToFields(fields, a, nested)
		}
	default:
		fields[key] = v.String()
	}
}

// IsJournalAvailable checks if systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
