package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes trace events to an slog.Logger.
// Useful for development when you want to see commands in the console.
type SlogAdapter struct {
	logger *slog.Logger
	level  slog.Level
}

// NewSlogAdapter creates a SlogAdapter that writes at Debug level.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger, level: slog.LevelDebug}
}

// WithLevel returns a copy of the adapter that writes at level.
func (a *SlogAdapter) WithLevel(level slog.Level) *SlogAdapter {
	return &SlogAdapter{logger: a.logger, level: level}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.Uint64("device", uint64(event.Device)),
		slog.String("category", event.Category.String()),
	}
	if event.SessionID != "" {
		attrs = append(attrs, slog.String("session", event.SessionID))
	}
	if event.Minor != "" {
		attrs = append(attrs, slog.String("minor", event.Minor))
	}

	switch {
	case event.Ioctl != nil:
		attrs = append(attrs,
			slog.String("cmd", event.Ioctl.Name),
			slog.String("phase", event.Ioctl.Phase.String()),
			slog.Duration("duration", event.Ioctl.Duration),
		)
		if event.Ioctl.Object != 0 {
			attrs = append(attrs, slog.Uint64("object", uint64(event.Ioctl.Object)))
		}
		if event.Ioctl.Errno != 0 {
			attrs = append(attrs, slog.Uint64("errno", uint64(event.Ioctl.Errno)))
		}
	case event.StateChange != nil:
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Snapshot != nil:
		attrs = append(attrs,
			slog.String("reason", event.Snapshot.Reason),
			slog.Int("snapshot_bytes", len(event.Snapshot.Data)),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), a.level, "ioctl trace", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
