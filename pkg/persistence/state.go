package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/kms-core/kms-go/pkg/drm"
	"github.com/kms-core/kms-go/pkg/model"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// ErrVersion is returned when a state file has an unknown format version.
var ErrVersion = errors.New("persistence: unsupported state version")

// TopologyState is the saved topology of every probed device.
type TopologyState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	Devices []DeviceRecord `json:"devices,omitempty"`
}

// DeviceRecord is one device in a TopologyState.
type DeviceRecord struct {
	Index  uint32 `json:"index"`
	Driver string `json:"driver"`

	// Minors lists the device paths registered for the device.
	Minors []string `json:"minors,omitempty"`

	Snapshot model.Snapshot `json:"snapshot"`
}

// Device returns the record for a device index.
func (s *TopologyState) Device(index uint32) (DeviceRecord, bool) {
	for _, d := range s.Devices {
		if d.Index == index {
			return d, true
		}
	}
	return DeviceRecord{}, false
}

// Capture snapshots devices. Each registry is locked only while it is copied.
func Capture(devices []*drm.Device) *TopologyState {
	state := &TopologyState{Version: StateVersion}
	for _, dev := range devices {
		rec := DeviceRecord{
			Index:  dev.Index(),
			Driver: dev.Driver().Name(),
		}
		for _, m := range dev.Minors() {
			rec.Minors = append(rec.Minors, m.DevicePath())
		}
		dev.WithRegistry(func(r *model.Registry) error {
			rec.Snapshot = r.Snapshot()
			return nil
		})
		state.Devices = append(state.Devices, rec)
	}
	return state
}

// TopologyStore manages persistence of topology state to a JSON file.
type TopologyStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewTopologyStore creates a store backed by the file at path.
func NewTopologyStore(path string) *TopologyStore {
	return &TopologyStore{path: path, now: time.Now}
}

// Path returns the state file path.
func (s *TopologyStore) Path() string {
	return s.path
}

// Save persists the state to disk. The file is written to a temporary
// sibling and renamed into place.
func (s *TopologyStore) Save(state *TopologyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = s.now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// Load reads the state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *TopologyStore) Load() (*TopologyState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &TopologyState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	if state.Version != StateVersion {
		return nil, fmt.Errorf("%w: %d", ErrVersion, state.Version)
	}
	return state, nil
}

// Clear removes the state file.
func (s *TopologyStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
