package log

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ioctlEvent(session string, name string, errno uint32) Event {
	return Event{
		Timestamp: time.Now(),
		SessionID: session,
		Device:    0,
		Minor:     "dri/card0",
		Category:  CategoryIoctl,
		Ioctl: &IoctlEvent{
			Command:  0xc04064a0,
			Name:     name,
			Phase:    PhaseProbe,
			Errno:    errno,
			Duration: 1500 * time.Nanosecond,
		},
	}
}

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	code := 22

	tests := []struct {
		name  string
		event Event
	}{
		{"ioctl", Event{
			Timestamp: ts,
			SessionID: "abc12345-def6-7890-abcd-ef1234567890",
			Device:    1,
			Minor:     "dri/card1",
			Category:  CategoryIoctl,
			Ioctl:     &IoctlEvent{Command: 0xc02064b2, Name: "MODE_CREATE_DUMB", Phase: PhaseSingle, Duration: time.Millisecond, Object: 3},
		}},
		{"state", Event{
			Timestamp:   ts,
			SessionID:   "s1",
			Category:    CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntitySession, OldState: "OPEN", NewState: "CLOSED", Reason: "released 2 handles"},
		}},
		{"snapshot", Event{
			Timestamp: ts,
			Device:    2,
			Category:  CategorySnapshot,
			Snapshot:  &SnapshotEvent{Reason: "probe", Data: []byte{0xa1, 0x01, 0x02}},
		}},
		{"error", Event{
			Timestamp: ts,
			Category:  CategoryError,
			Error:     &ErrorEventData{Message: "release failed", Code: &code, Context: "session close"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := EncodeEvent(tt.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}
			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}
			if !decoded.Timestamp.Equal(tt.event.Timestamp) {
				t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, tt.event.Timestamp)
			}
			decoded.Timestamp = tt.event.Timestamp
			assert.Equal(t, tt.event, decoded)
		})
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{CategoryIoctl.String(), "IOCTL"},
		{CategorySnapshot.String(), "SNAPSHOT"},
		{CategoryState.String(), "STATE"},
		{CategoryError.String(), "ERROR"},
		{Category(99).String(), "UNKNOWN"},
		{PhaseSingle.String(), "SINGLE"},
		{PhaseProbe.String(), "PROBE"},
		{PhaseFill.String(), "FILL"},
		{Phase(9).String(), "UNKNOWN"},
		{StateEntitySession.String(), "SESSION"},
		{StateEntityDevice.String(), "DEVICE"},
		{StateEntityBuffer.String(), "BUFFER"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func writeTrace(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace"+Extension)

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Sync())
	require.NoError(t, logger.Close())
	assert.Equal(t, 0, logger.Dropped())
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	defer r.Close()
	var out []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, e)
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	events := []Event{
		ioctlEvent("s1", "VERSION", 0),
		ioctlEvent("s2", "MODE_GETRESOURCES", 0),
		ioctlEvent("s1", "MODE_DESTROY_DUMB", 2),
	}
	path := writeTrace(t, events)

	r, err := NewReader(path)
	require.NoError(t, err)
	read := readAll(t, r)

	require.Len(t, read, 3)
	for i := range events {
		if read[i].Ioctl.Name != events[i].Ioctl.Name {
			t.Errorf("event %d: got %q, want %q", i, read[i].Ioctl.Name, events[i].Ioctl.Name)
		}
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := writeTrace(t, []Event{ioctlEvent("s1", "VERSION", 0)})

	logger, err := NewFileLogger(path)
	require.NoError(t, err)
	assert.Equal(t, path, logger.Path())
	logger.Log(ioctlEvent("s1", "GET_CAP", 0))
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	// Logging after close is ignored.
	logger.Log(ioctlEvent("s1", "SET_CLIENT_CAP", 0))

	r, err := NewReader(path)
	require.NoError(t, err)
	assert.Len(t, readAll(t, r), 2)
}

func TestNewFileLoggerBadPath(t *testing.T) {
	_, err := NewFileLogger(filepath.Join(t.TempDir(), "missing", "trace.klog"))
	assert.Error(t, err)
}

func TestFilter(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, SessionID: "s1", Device: 0, Category: CategoryIoctl,
			Ioctl: &IoctlEvent{Name: "VERSION"}},
		{Timestamp: base.Add(time.Second), SessionID: "s2", Device: 1, Category: CategoryIoctl,
			Ioctl: &IoctlEvent{Name: "MODE_MAP_DUMB", Errno: 2}},
		{Timestamp: base.Add(2 * time.Second), SessionID: "s1", Device: 0, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntitySession, NewState: "CLOSED"}},
	}
	path := writeTrace(t, events)

	dev1 := uint32(1)
	state := CategoryState
	start := base.Add(time.Second)
	end := base.Add(2 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 3},
		{"session", Filter{SessionID: "s1"}, 2},
		{"device", Filter{Device: &dev1}, 1},
		{"category", Filter{Category: &state}, 1},
		{"command", Filter{Command: "VERSION"}, 1},
		{"failed only", Filter{FailedOnly: true}, 1},
		{"time window", Filter{TimeStart: &start, TimeEnd: &end}, 1},
		{"no match", Filter{SessionID: "nobody"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewFilteredReader(path, tt.filter)
			require.NoError(t, err)
			if got := len(readAll(t, r)); got != tt.want {
				t.Errorf("got %d events, want %d", got, tt.want)
			}
		})
	}
}

func TestReaderTruncatedTail(t *testing.T) {
	path := writeTrace(t, []Event{ioctlEvent("s1", "VERSION", 0)})

	partial, err := EncodeEvent(ioctlEvent("s1", "GET_CAP", 0))
	require.NoError(t, err)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	_, err = f.Write(partial[:len(partial)/2])
	require.NoError(t, err)
	require.NoError(t, f.Close())

	r, err := NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	e, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, "VERSION", e.Ioctl.Name)

	_, err = r.Next()
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestReaderMissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "nope.klog"))
	assert.Error(t, err)
}

func TestSlogAdapterLogsIoctl(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	adapter := NewSlogAdapter(slog.New(handler))

	e := ioctlEvent("sess-1", "MODE_GETCONNECTOR", 22)
	e.Ioctl.Object = 31
	adapter.Log(e)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "ioctl trace", entry["msg"])
	assert.Equal(t, "sess-1", entry["session"])
	assert.Equal(t, "dri/card0", entry["minor"])
	assert.Equal(t, "MODE_GETCONNECTOR", entry["cmd"])
	assert.Equal(t, "PROBE", entry["phase"])
	assert.Equal(t, float64(22), entry["errno"])
	assert.Equal(t, float64(31), entry["object"])
}

func TestSlogAdapterStateAndLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	adapter := NewSlogAdapter(slog.New(handler))

	state := Event{
		Category:    CategoryState,
		StateChange: &StateChangeEvent{Entity: StateEntityDevice, NewState: "PROBED"},
	}

	// Debug is below the handler level.
	adapter.Log(state)
	assert.Zero(t, buf.Len())

	adapter.WithLevel(slog.LevelInfo).Log(state)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEVICE", entry["entity"])
	assert.Equal(t, "PROBED", entry["new_state"])
}

type countingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (c *countingLogger) Log(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func TestMultiLogger(t *testing.T) {
	a, b := &countingLogger{}, &countingLogger{}
	m := NewMultiLogger(a, nil, b)
	assert.Equal(t, 2, m.Len())

	m.Log(ioctlEvent("s", "VERSION", 0))
	m.Log(ioctlEvent("s", "GET_CAP", 0))

	assert.Len(t, a.events, 2)
	assert.Len(t, b.events, 2)
}

func TestMemoryLoggerRing(t *testing.T) {
	m := NewMemoryLogger(2)
	assert.Empty(t, m.Events())

	m.Log(ioctlEvent("s", "A", 0))
	assert.Equal(t, 1, m.Len())

	m.Log(ioctlEvent("s", "B", 0))
	m.Log(ioctlEvent("s", "C", 0))

	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "B", events[0].Ioctl.Name)
	assert.Equal(t, "C", events[1].Ioctl.Name)
	assert.Equal(t, 2, m.Len())

	assert.Equal(t, 1, len(NewMemoryLogger(0).events))
}

func TestOrNoop(t *testing.T) {
	assert.Equal(t, NoopLogger{}, OrNoop(nil))
	m := NewMemoryLogger(1)
	assert.Same(t, m, OrNoop(m))

	// NoopLogger accepts events without effect.
	NoopLogger{}.Log(ioctlEvent("s", "VERSION", 0))
}
