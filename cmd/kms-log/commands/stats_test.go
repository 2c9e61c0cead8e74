package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/kms-core/kms-go/pkg/log"
	"github.com/kms-core/kms-go/pkg/wire"
)

func TestStatsCountsByCategory(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	stats := newStats()
	stats.add(ioctlEvent(ts, "s", "VERSION", 0))
	stats.add(ioctlEvent(ts, "s", "VERSION", 0))
	stats.add(testSnapshotEvent(t))
	stats.add(log.Event{Timestamp: ts, Category: log.CategoryError, Error: &log.ErrorEventData{Message: "x"}})

	if stats.TotalEvents != 4 {
		t.Errorf("TotalEvents = %d, want 4", stats.TotalEvents)
	}
	if stats.EventsByCategory[log.CategoryIoctl] != 2 {
		t.Errorf("ioctl count = %d, want 2", stats.EventsByCategory[log.CategoryIoctl])
	}
	if stats.Snapshots != 1 {
		t.Errorf("Snapshots = %d, want 1", stats.Snapshots)
	}
	if stats.Errors != 1 {
		t.Errorf("Errors = %d, want 1", stats.Errors)
	}
}

func TestStatsCommands(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	probe := ioctlEvent(ts, "s", "MODE_GETCONNECTOR", 0)
	probe.Ioctl.Phase = log.PhaseProbe
	probe.Ioctl.Duration = time.Microsecond
	fill := ioctlEvent(ts, "s", "MODE_GETCONNECTOR", wire.EINVAL)
	fill.Ioctl.Phase = log.PhaseFill
	fill.Ioctl.Duration = 3 * time.Microsecond

	stats := newStats()
	stats.add(probe)
	stats.add(fill)

	cs := stats.Commands["MODE_GETCONNECTOR"]
	if cs == nil {
		t.Fatal("missing MODE_GETCONNECTOR stats")
	}
	if cs.Calls != 2 || cs.Probes != 1 || cs.Failed != 1 {
		t.Errorf("unexpected command stats: %+v", cs)
	}
	if cs.Mean() != 2*time.Microsecond {
		t.Errorf("Mean = %s, want 2us", cs.Mean())
	}
	if stats.FailedCommands != 1 || stats.Errnos[wire.EINVAL] != 1 {
		t.Errorf("failed = %d, errnos = %v", stats.FailedCommands, stats.Errnos)
	}
}

func TestStatsSessions(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	stats := newStats()
	stats.add(ioctlEvent(base, "session-a", "VERSION", 0))
	stats.add(ioctlEvent(base.Add(time.Second), "session-a", "GET_CAP", 0))
	stats.add(ioctlEvent(base, "session-b", "VERSION", 0))
	stats.add(testSnapshotEvent(t))

	if len(stats.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(stats.Sessions))
	}
	a := stats.Sessions["session-a"]
	if a.Events != 2 || a.LastSeen.Sub(a.FirstSeen) != time.Second {
		t.Errorf("unexpected session stats: %+v", a)
	}
	if a.Minor != "dri/card0" {
		t.Errorf("Minor = %q", a.Minor)
	}
}

func TestStatsTimeRange(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	stats := newStats()
	stats.add(ioctlEvent(base.Add(time.Minute), "s", "VERSION", 0))
	stats.add(ioctlEvent(base, "s", "VERSION", 0))
	stats.add(ioctlEvent(base.Add(2*time.Minute), "s", "VERSION", 0))

	if !stats.TimeRange.Start.Equal(base) {
		t.Errorf("Start = %s", stats.TimeRange.Start)
	}
	if !stats.TimeRange.End.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("End = %s", stats.TimeRange.End)
	}
}

func TestRunStatsOutput(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		ioctlEvent(ts, "abcdef0123", "MODE_ADDFB", 0),
		ioctlEvent(ts, "abcdef0123", "MODE_ADDFB", wire.EINVAL),
	})

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{
		"Total Events: 2",
		"IOCTL:",
		"MODE_ADDFB",
		"1 failed",
		"Sessions: 1",
		"[abcdef01] card0 2 events",
		"Failed Commands: 1",
		"EINVAL:",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}
