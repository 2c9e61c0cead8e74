package log

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// A trace file is a bare concatenation of CBOR-encoded events. Files may be
// reopened and appended to; a reader only needs to know where an event ends.

// maxEventDepth bounds nesting when decoding. Events are at most three
// levels deep.
const maxEventDepth = 8

var (
	traceEnc cbor.EncMode
	traceDec cbor.DecMode
)

func init() {
	traceEnc = mustEnc(cbor.EncOptions{
		Sort:        cbor.SortCoreDeterministic,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode())
	traceDec = mustDec(cbor.DecOptions{
		DupMapKey:       cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels: maxEventDepth,
	}.DecMode())
}

func mustEnc(m cbor.EncMode, err error) cbor.EncMode {
	if err != nil {
		panic("log: trace encoder mode: " + err.Error())
	}
	return m
}

func mustDec(m cbor.DecMode, err error) cbor.DecMode {
	if err != nil {
		panic("log: trace decoder mode: " + err.Error())
	}
	return m
}

// EncodeEvent returns the trace encoding of one event.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent decodes exactly one event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	err := traceDec.Unmarshal(data, &event)
	return event, err
}

// NewEncoder returns a stream encoder writing events to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return traceEnc.NewEncoder(w)
}

// NewDecoder returns a stream decoder reading events from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return traceDec.NewDecoder(r)
}
