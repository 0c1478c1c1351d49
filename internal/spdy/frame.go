package spdy

import (
	"fmt"
	"sort"
)

// Frame is a single decoded SPDY frame event.
type Frame interface {
	// FrameType identifies the concrete frame variant.
	FrameType() FrameType
}

// HeaderBlock holds the name/value pairs carried by a SYN_STREAM,
// SYN_REPLY or HEADERS frame, together with the state bits the header
// block decoder may raise while populating it. Header chunks accumulate
// here as they are decompressed; the owning frame is emitted once, when
// the block ends.
type HeaderBlock struct {
	Headers map[string][]string

	// Invalid is set when the block violates the name/value grammar
	// (zero-length or duplicate name, bad entry count, corrupt value).
	Invalid bool
	// Truncated is set when the decompressed block exceeded the
	// decoder's header size budget and was cut short.
	Truncated bool
}

// Add appends a value under name.
func (h *HeaderBlock) Add(name, value string) {
	if h.Headers == nil {
		h.Headers = make(map[string][]string)
	}
	h.Headers[name] = append(h.Headers[name], value)
}

// Has reports whether at least one value is recorded under name.
func (h *HeaderBlock) Has(name string) bool {
	_, ok := h.Headers[name]
	return ok
}

// SetInvalid marks the block as malformed.
func (h *HeaderBlock) SetInvalid() { h.Invalid = true }

// SetTruncated marks the block as cut short by the size budget.
func (h *HeaderBlock) SetTruncated() { h.Truncated = true }

// HeaderBlockFrame is implemented by the three frame variants that
// carry a compressed header block.
type HeaderBlockFrame interface {
	Frame
	Block() *HeaderBlock
}

// DataFrame is a chunk of stream payload. A single wire frame larger
// than the decoder's chunk size is emitted as several DataFrames; Last
// is only set on the final chunk of a frame whose FIN flag was set.
type DataFrame struct {
	StreamID uint32
	Last     bool
	Payload  []byte
}

func (f *DataFrame) FrameType() FrameType { return FrameTypeData }

// SynStreamFrame opens a stream. The header block follows; Headers is
// complete by the time the frame is emitted.
type SynStreamFrame struct {
	HeaderBlock
	StreamID             uint32
	AssociatedToStreamID uint32
	Priority             uint8
	Last                 bool
	Unidirectional       bool
}

// NewSynStreamFrame validates the prologue fields and returns the frame.
func NewSynStreamFrame(streamID, associatedToStreamID uint32, priority uint8) (*SynStreamFrame, error) {
	if streamID == 0 {
		return nil, fmt.Errorf("SYN_STREAM stream-id must be positive: %d", streamID)
	}
	if priority > 7 {
		return nil, fmt.Errorf("SYN_STREAM priority out of range: %d", priority)
	}
	return &SynStreamFrame{
		StreamID:             streamID,
		AssociatedToStreamID: associatedToStreamID,
		Priority:             priority,
	}, nil
}

func (f *SynStreamFrame) FrameType() FrameType { return FrameTypeSynStream }
func (f *SynStreamFrame) Block() *HeaderBlock  { return &f.HeaderBlock }

// SynReplyFrame answers a SYN_STREAM.
type SynReplyFrame struct {
	HeaderBlock
	StreamID uint32
	Last     bool
}

// NewSynReplyFrame validates the stream-id and returns the frame.
func NewSynReplyFrame(streamID uint32) (*SynReplyFrame, error) {
	if streamID == 0 {
		return nil, fmt.Errorf("SYN_REPLY stream-id must be positive: %d", streamID)
	}
	return &SynReplyFrame{StreamID: streamID}, nil
}

func (f *SynReplyFrame) FrameType() FrameType { return FrameTypeSynReply }
func (f *SynReplyFrame) Block() *HeaderBlock  { return &f.HeaderBlock }

// HeadersFrame carries additional headers for an established stream.
type HeadersFrame struct {
	HeaderBlock
	StreamID uint32
	Last     bool
}

// NewHeadersFrame validates the stream-id and returns the frame.
func NewHeadersFrame(streamID uint32) (*HeadersFrame, error) {
	if streamID == 0 {
		return nil, fmt.Errorf("HEADERS stream-id must be positive: %d", streamID)
	}
	return &HeadersFrame{StreamID: streamID}, nil
}

func (f *HeadersFrame) FrameType() FrameType { return FrameTypeHeaders }
func (f *HeadersFrame) Block() *HeaderBlock  { return &f.HeaderBlock }

// RstStreamFrame aborts a stream.
type RstStreamFrame struct {
	StreamID uint32
	Status   StreamStatus
}

// NewRstStreamFrame validates its fields and returns the frame. The
// draft defines no status code 0; a frame carrying one is malformed.
func NewRstStreamFrame(streamID uint32, status StreamStatus) (*RstStreamFrame, error) {
	if streamID == 0 {
		return nil, fmt.Errorf("RST_STREAM stream-id must be positive: %d", streamID)
	}
	if status == 0 {
		return nil, fmt.Errorf("RST_STREAM status code must be positive: %d", status)
	}
	return &RstStreamFrame{StreamID: streamID, Status: status}, nil
}

func (f *RstStreamFrame) FrameType() FrameType { return FrameTypeRstStream }

// SettingValue is one entry of a SETTINGS frame.
type SettingValue struct {
	Value        int32
	PersistValue bool
	Persisted    bool
}

// SettingsFrame carries the peer's id/value configuration pairs.
type SettingsFrame struct {
	ClearPreviouslyPersisted bool
	Entries                  map[uint32]SettingValue
}

// NewSettingsFrame returns an empty SETTINGS frame.
func NewSettingsFrame() *SettingsFrame {
	return &SettingsFrame{Entries: make(map[uint32]SettingValue)}
}

func (f *SettingsFrame) FrameType() FrameType { return FrameTypeSettings }

// IsSet reports whether id already has a recorded value.
func (f *SettingsFrame) IsSet(id uint32) bool {
	_, ok := f.Entries[id]
	return ok
}

// Set records a value for id, overwriting any previous entry.
func (f *SettingsFrame) Set(id uint32, value int32, persistValue, persisted bool) {
	f.Entries[id] = SettingValue{Value: value, PersistValue: persistValue, Persisted: persisted}
}

// IDs returns the recorded setting ids in ascending order.
func (f *SettingsFrame) IDs() []uint32 {
	ids := make([]uint32, 0, len(f.Entries))
	for id := range f.Entries {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PingFrame is a liveness probe. ID is kept bit-exact for the echo.
type PingFrame struct {
	ID int32
}

func (f *PingFrame) FrameType() FrameType { return FrameTypePing }

// GoAwayFrame announces session shutdown.
type GoAwayFrame struct {
	LastGoodStreamID uint32
	Status           SessionStatus
}

func (f *GoAwayFrame) FrameType() FrameType { return FrameTypeGoAway }

// WindowUpdateFrame grows a flow-control window. Stream-id 0 addresses
// the session window.
type WindowUpdateFrame struct {
	StreamID        uint32
	DeltaWindowSize uint32
}

// NewWindowUpdateFrame validates the delta and returns the frame.
func NewWindowUpdateFrame(streamID, deltaWindowSize uint32) (*WindowUpdateFrame, error) {
	if deltaWindowSize == 0 {
		return nil, fmt.Errorf("WINDOW_UPDATE delta-window-size must be positive: %d", deltaWindowSize)
	}
	return &WindowUpdateFrame{StreamID: streamID, DeltaWindowSize: deltaWindowSize}, nil
}

func (f *WindowUpdateFrame) FrameType() FrameType { return FrameTypeWindowUpdate }
