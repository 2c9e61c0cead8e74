// Package commands implements the kms-log CLI commands.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kms-core/kms-go/pkg/inspect"
	"github.com/kms-core/kms-go/pkg/log"
	"github.com/kms-core/kms-go/pkg/model"
	"github.com/kms-core/kms-go/pkg/wire"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	Category   *log.Category
	Command    string
	FailedOnly bool

	// ShowSnapshots renders the decoded registry for snapshot events.
	ShowSnapshots bool
}

func (f ViewFilter) toLogFilter() log.Filter {
	return log.Filter{
		Category:   f.Category,
		Command:    f.Command,
		FailedOnly: f.FailedOnly,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event, showSnapshots bool) {
	// Header line: timestamp [card:N sess:id] CATEGORY label
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var label string
	switch {
	case event.Ioctl != nil:
		label = event.Ioctl.Name
	case event.StateChange != nil:
		label = event.StateChange.Entity.String()
	case event.Snapshot != nil:
		label = event.Snapshot.Reason
	case event.Error != nil:
		label = event.Error.Context
	}

	where := fmt.Sprintf("card:%d", event.Device)
	if event.SessionID != "" {
		where += " sess:" + shortenSessionID(event.SessionID)
	}
	fmt.Fprintf(w, "%s [%s] %s %s\n", ts, where, event.Category.String(), label)

	switch {
	case event.Ioctl != nil:
		formatIoctlDetails(w, event.Ioctl)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Snapshot != nil:
		formatSnapshotDetails(w, event.Snapshot, showSnapshots)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenSessionID returns the first 8 characters of the session ID.
func shortenSessionID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatIoctlDetails(w io.Writer, ev *log.IoctlEvent) {
	fmt.Fprintf(w, "  Command: 0x%08x", ev.Command)
	if ev.Phase != log.PhaseSingle {
		fmt.Fprintf(w, " (%s)", ev.Phase.String())
	}
	fmt.Fprintln(w)
	if ev.Object != 0 {
		fmt.Fprintf(w, "  Object: %d\n", ev.Object)
	}
	if ev.Failed() {
		errno := wire.Errno(ev.Errno)
		fmt.Fprintf(w, "  Errno: %s (%d) %s\n", errno.String(), ev.Errno, errno.Error())
	} else {
		fmt.Fprintln(w, "  Result: ok")
	}
	fmt.Fprintf(w, "  Duration: %s\n", formatDuration(ev.Duration))
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
}

// formatSnapshotDetails decodes the registry snapshot and renders it with
// the inspect formatter, indented under the header.
func formatSnapshotDetails(w io.Writer, ev *log.SnapshotEvent, render bool) {
	snap, err := model.DecodeSnapshot(ev.Data)
	if err != nil {
		fmt.Fprintf(w, "  (undecodable snapshot, %d bytes: %v)\n", len(ev.Data), err)
		return
	}
	fmt.Fprintf(w, "  %d connectors, %d encoders, %d crtcs, %d planes, %d fbs\n",
		len(snap.Connectors), len(snap.Encoders), len(snap.Crtcs), len(snap.Planes), len(snap.Framebuffers))
	if !render {
		return
	}
	f := inspect.NewFormatter()
	f.ShowProperties = true
	for _, line := range strings.Split(strings.TrimRight(f.FormatSnapshot(snap), "\n"), "\n") {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseCategoryFlag parses a category string from command-line flag (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	return parseCategory(s)
}

func parseCategory(s string) (log.Category, error) {
	switch strings.ToLower(s) {
	case "ioctl":
		return log.CategoryIoctl, nil
	case "snapshot":
		return log.CategorySnapshot, nil
	case "state":
		return log.CategoryState, nil
	case "error":
		return log.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be ioctl, snapshot, state, or error)", s)
	}
}

// RunView executes the view command.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.toLogFilter())
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	return eachEvent(reader, func(event log.Event) error {
		formatEvent(output, event, filter.ShowSnapshots)
		return nil
	})
}

// eachEvent calls fn for every remaining event of reader.
func eachEvent(reader *log.Reader, fn func(log.Event) error) error {
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}
