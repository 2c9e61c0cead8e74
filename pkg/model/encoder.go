package model

// EncoderType is the DRM_MODE_ENCODER_* type.
type EncoderType uint32

const (
	EncoderNone    EncoderType = 0
	EncoderDAC     EncoderType = 1
	EncoderTMDS    EncoderType = 2
	EncoderLVDS    EncoderType = 3
	EncoderTVDAC   EncoderType = 4
	EncoderVirtual EncoderType = 5
	EncoderDSI     EncoderType = 6
	EncoderDPMST   EncoderType = 7
	EncoderDPI     EncoderType = 8
)

// String returns the encoder type name.
func (t EncoderType) String() string {
	switch t {
	case EncoderNone:
		return "none"
	case EncoderDAC:
		return "DAC"
	case EncoderTMDS:
		return "TMDS"
	case EncoderLVDS:
		return "LVDS"
	case EncoderTVDAC:
		return "TVDAC"
	case EncoderVirtual:
		return "Virtual"
	case EncoderDSI:
		return "DSI"
	case EncoderDPMST:
		return "DPMST"
	case EncoderDPI:
		return "DPI"
	default:
		return "unknown"
	}
}

// Encoder converts the CRTC signal for a connector.
type Encoder struct {
	modeObject

	encoderType    EncoderType
	index          uint8
	crtcID         uint32
	possibleCrtcs  uint32
	possibleClones uint32
}

// Type implements Object.
func (e *Encoder) Type() ObjectType {
	return ObjectEncoder
}

// EncoderType returns the encoder type.
func (e *Encoder) EncoderType() EncoderType {
	return e.encoderType
}

// Index returns the encoder's bit position in connector encoder masks.
func (e *Encoder) Index() uint8 {
	return e.index
}

// CrtcID returns the bound CRTC id, or 0.
func (e *Encoder) CrtcID() uint32 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.crtcID
}

// PossibleCrtcs returns the mask of CRTC indices this encoder can drive.
func (e *Encoder) PossibleCrtcs() uint32 {
	return e.possibleCrtcs
}

// PossibleClones returns the mask of encoders that can clone this one.
// No creation path populates it, so it is always 0.
func (e *Encoder) PossibleClones() uint32 {
	return e.possibleClones
}

func (e *Encoder) setCrtc(id uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.crtcID = id
}

var _ Object = (*Encoder)(nil)
