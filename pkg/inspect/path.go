// Package inspect renders and queries mode-setting topology snapshots.
//
// The inspect package offers:
//   - Parsing path expressions (e.g., "card0/connector/Virtual-1")
//   - Resolving object names to ids
//   - Looking up objects in a snapshot, locally or through the ioctl path
//   - Formatting output in the style of modetest
package inspect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path errors.
var (
	ErrEmptyPath     = errors.New("empty path")
	ErrInvalidPath   = errors.New("invalid path format")
	ErrInvalidNumber = errors.New("invalid numeric value in path")
	ErrUnknownKind   = errors.New("unknown object kind")
)

// Path represents a parsed inspection path.
// Format: [card/]kind[/object]
type Path struct {
	// Card is the device node name, for example "card0" (empty for the
	// current device).
	Card string

	// Kind is the object class.
	Kind Kind

	// ID is the object id, zero when Name is set or the path is partial.
	ID uint32

	// Name is a symbolic object name still to be resolved against a
	// snapshot.
	Name string

	// IsPartial indicates the path names a kind but no object (used to list
	// every object of the kind).
	IsPartial bool

	// Raw stores the original input string.
	Raw string
}

// ParsePath parses a path string into a Path struct.
//
// Supported formats:
//   - "connectors" - partial (list every connector)
//   - "connector/34" - object by id
//   - "connector/Virtual-1" - object by name
//   - "card0/crtc/32" - object on a named card
//
// Numeric values can be decimal or hex (0x prefix).
func ParsePath(input string) (*Path, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, ErrEmptyPath
	}

	if strings.HasPrefix(input, "/") || strings.HasSuffix(input, "/") || strings.Contains(input, "//") {
		return nil, ErrInvalidPath
	}

	parts := strings.Split(input, "/")
	p := &Path{Raw: input}

	if isCardName(parts[0]) {
		p.Card = parts[0]
		parts = parts[1:]
	}
	if len(parts) == 0 || len(parts) > 2 {
		return nil, ErrInvalidPath
	}

	k, ok := ResolveKindName(parts[0])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, parts[0])
	}
	p.Kind = k

	if len(parts) == 1 {
		p.IsPartial = true
		return p, nil
	}

	if id, err := parseUint32(parts[1]); err == nil {
		if id == 0 {
			return nil, fmt.Errorf("%w: object id 0", ErrInvalidNumber)
		}
		p.ID = id
		return p, nil
	}
	if !nameable(k) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidNumber, parts[1])
	}
	p.Name = parts[1]
	return p, nil
}

// String returns the path as a string.
func (p *Path) String() string {
	var sb strings.Builder

	if p.Card != "" {
		sb.WriteString(p.Card)
		sb.WriteString("/")
	}
	sb.WriteString(p.Kind.String())

	switch {
	case p.IsPartial:
	case p.Name != "":
		sb.WriteString("/")
		sb.WriteString(p.Name)
	default:
		sb.WriteString("/")
		sb.WriteString(strconv.FormatUint(uint64(p.ID), 10))
	}
	return sb.String()
}

// isCardName reports whether s is a primary node name such as "card0".
func isCardName(s string) bool {
	rest, ok := strings.CutPrefix(s, "card")
	if !ok || rest == "" {
		return false
	}
	_, err := strconv.ParseUint(rest, 10, 32)
	return err == nil
}

// nameable reports whether objects of k carry names.
func nameable(k Kind) bool {
	return k == KindConnector || k == KindCrtc || k == KindProperty
}

// parseUint32 parses a uint32 from decimal or hex string.
func parseUint32(s string) (uint32, error) {
	var v uint64
	var err error

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 32)
	} else {
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}
