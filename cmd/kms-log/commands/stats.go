package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/kms-core/kms-go/pkg/log"
	"github.com/kms-core/kms-go/pkg/wire"
)

// Stats holds aggregate statistics about a trace file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Commands         map[string]*CommandStats
	Sessions         map[string]*SessionStats
	Errnos           map[wire.Errno]int
	FailedCommands   int
	Errors           int
	Snapshots        int
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// CommandStats holds statistics for one command name.
type CommandStats struct {
	Calls  int
	Failed int
	Probes int
	Total  time.Duration
}

// Mean returns the average duration of the command.
func (c *CommandStats) Mean() time.Duration {
	if c.Calls == 0 {
		return 0
	}
	return c.Total / time.Duration(c.Calls)
}

// SessionStats holds statistics for a single session.
type SessionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Device    uint32
	Minor     string
}

func newStats() *Stats {
	return &Stats{
		EventsByCategory: make(map[log.Category]int),
		Commands:         make(map[string]*CommandStats),
		Sessions:         make(map[string]*SessionStats),
		Errnos:           make(map[wire.Errno]int),
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	if event.SessionID != "" {
		sess, ok := s.Sessions[event.SessionID]
		if !ok {
			sess = &SessionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
				Device:    event.Device,
			}
			s.Sessions[event.SessionID] = sess
		}
		sess.Events++
		if event.Timestamp.After(sess.LastSeen) {
			sess.LastSeen = event.Timestamp
		}
		if sess.Minor == "" {
			sess.Minor = event.Minor
		}
	}

	switch {
	case event.Ioctl != nil:
		cs, ok := s.Commands[event.Ioctl.Name]
		if !ok {
			cs = &CommandStats{}
			s.Commands[event.Ioctl.Name] = cs
		}
		cs.Calls++
		cs.Total += event.Ioctl.Duration
		if event.Ioctl.Phase == log.PhaseProbe {
			cs.Probes++
		}
		if event.Ioctl.Failed() {
			cs.Failed++
			s.FailedCommands++
			s.Errnos[wire.Errno(event.Ioctl.Errno)]++
		}
	case event.Snapshot != nil:
		s.Snapshots++
	case event.Error != nil:
		s.Errors++
	}
}

// RunStats analyzes the trace file and prints statistics.
func RunStats(path string, w io.Writer) error {
	reader, err := log.NewReader(path)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	err = eachEvent(reader, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return err
	}

	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Mode-setting Trace Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryIoctl, log.CategorySnapshot, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	if len(stats.Commands) > 0 {
		names := make([]string, 0, len(stats.Commands))
		for name := range stats.Commands {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "Commands:")
		for _, name := range names {
			cs := stats.Commands[name]
			fmt.Fprintf(w, "  %-24s %5d calls", name, cs.Calls)
			if cs.Probes > 0 {
				fmt.Fprintf(w, ", %d probes", cs.Probes)
			}
			if cs.Failed > 0 {
				fmt.Fprintf(w, ", %d failed", cs.Failed)
			}
			fmt.Fprintf(w, ", mean %s\n", formatDuration(cs.Mean()))
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Sessions: %d\n", len(stats.Sessions))
	if len(stats.Sessions) > 0 {
		type sessInfo struct {
			id    string
			stats *SessionStats
		}
		sessions := make([]sessInfo, 0, len(stats.Sessions))
		for id, ss := range stats.Sessions {
			sessions = append(sessions, sessInfo{id, ss})
		}
		sort.Slice(sessions, func(i, j int) bool {
			return sessions[i].stats.FirstSeen.Before(sessions[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, s := range sessions {
			duration := s.stats.LastSeen.Sub(s.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] card%d %d events, duration %s\n",
				shortenSessionID(s.id), s.stats.Device, s.stats.Events, duration)
			if s.stats.Minor != "" {
				fmt.Fprintf(w, "           Minor: %s\n", s.stats.Minor)
			}
		}
	}

	if stats.Snapshots > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Snapshots: %d\n", stats.Snapshots)
	}

	if stats.FailedCommands > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Failed Commands: %d\n", stats.FailedCommands)
		errnos := make([]wire.Errno, 0, len(stats.Errnos))
		for e := range stats.Errnos {
			errnos = append(errnos, e)
		}
		sort.Slice(errnos, func(i, j int) bool { return errnos[i] < errnos[j] })
		for _, e := range errnos {
			fmt.Fprintf(w, "  %-12s %d\n", e.String()+":", stats.Errnos[e])
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
