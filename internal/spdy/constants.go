package spdy

import "fmt"

// Version identifies the SPDY protocol version negotiated for a session.
// A decoder speaks exactly one version for its whole lifetime.
type Version uint16

const (
	// Version2 is SPDY/2.
	Version2 Version = 2
	// Version3 is SPDY/3 (and SPDY/3.1, which shares the framing layer).
	Version3 Version = 3
)

// Supported reports whether v is a version this package can decode.
func (v Version) Supported() bool {
	return v == Version2 || v == Version3
}

func (v Version) String() string {
	return fmt.Sprintf("spdy/%d", uint16(v))
}

// FrameType represents a SPDY frame type. Control frame types are 16-bit
// values carried on the wire; DATA frames have no type field and use the
// zero sentinel internally.
type FrameType uint16

const (
	// FrameTypeData is the internal sentinel for data frames (not on the wire).
	FrameTypeData FrameType = 0
	// FrameTypeSynStream is for SYN_STREAM frames (0x1).
	FrameTypeSynStream FrameType = 1
	// FrameTypeSynReply is for SYN_REPLY frames (0x2).
	FrameTypeSynReply FrameType = 2
	// FrameTypeRstStream is for RST_STREAM frames (0x3).
	FrameTypeRstStream FrameType = 3
	// FrameTypeSettings is for SETTINGS frames (0x4).
	FrameTypeSettings FrameType = 4
	// FrameTypePing is for PING frames (0x6). 0x5 was NOOP, removed in SPDY/3.
	FrameTypePing FrameType = 6
	// FrameTypeGoAway is for GOAWAY frames (0x7).
	FrameTypeGoAway FrameType = 7
	// FrameTypeHeaders is for HEADERS frames (0x8).
	FrameTypeHeaders FrameType = 8
	// FrameTypeWindowUpdate is for WINDOW_UPDATE frames (0x9).
	FrameTypeWindowUpdate FrameType = 9
)

// String returns the string representation of the FrameType.
func (t FrameType) String() string {
	switch t {
	case FrameTypeData:
		return "DATA"
	case FrameTypeSynStream:
		return "SYN_STREAM"
	case FrameTypeSynReply:
		return "SYN_REPLY"
	case FrameTypeRstStream:
		return "RST_STREAM"
	case FrameTypeSettings:
		return "SETTINGS"
	case FrameTypePing:
		return "PING"
	case FrameTypeGoAway:
		return "GOAWAY"
	case FrameTypeHeaders:
		return "HEADERS"
	case FrameTypeWindowUpdate:
		return "WINDOW_UPDATE"
	default:
		return fmt.Sprintf("UNKNOWN_FRAME_TYPE_%d", uint16(t))
	}
}

// Flags represents the flags byte of a SPDY frame header.
type Flags uint8

const (
	// FlagFin indicates the last frame to be transmitted on this stream.
	// Shared by DATA, SYN_STREAM, SYN_REPLY and HEADERS frames.
	FlagFin Flags = 0x01
	// FlagUnidirectional marks a SYN_STREAM stream as one-way.
	FlagUnidirectional Flags = 0x02
	// FlagSettingsClearSettings asks the peer to clear previously persisted
	// settings before applying this SETTINGS frame.
	FlagSettingsClearSettings Flags = 0x01
)

// Per-entry flag bits inside a SETTINGS frame. These live in the entry's
// own flags byte, not in the frame header.
const (
	// SettingsFlagPersistValue requests that the receiver persist the entry.
	SettingsFlagPersistValue uint8 = 0x01
	// SettingsFlagPersisted marks a value replayed from persisted state.
	SettingsFlagPersisted uint8 = 0x02
)

// SettingID values defined by the SPDY/3 draft.
const (
	SettingsUploadBandwidth      uint32 = 1
	SettingsDownloadBandwidth    uint32 = 2
	SettingsRoundTripTime        uint32 = 3
	SettingsMaxConcurrentStreams uint32 = 4
	SettingsCurrentCwnd          uint32 = 5
	SettingsDownloadRetransRate  uint32 = 6
	SettingsInitialWindowSize    uint32 = 7
	SettingsClientCertVectorSize uint32 = 8
)

// Common frame header layout. All frames open with the same 8 bytes:
// a control bit plus version/type (control) or stream-id (data) in the
// first word, then one flags byte and a 24-bit payload length.
const (
	// HeaderSize is the length of the common SPDY frame header.
	HeaderSize = 8

	headerTypeOffset   = 2
	headerFlagsOffset  = 4
	headerLengthOffset = 5
)

// Payload sizes of the fixed-shape frames and prologues.
const (
	rstStreamPayloadSize    = 8
	pingPayloadSize         = 4
	goAwayPayloadSize       = 8
	windowUpdatePayloadSize = 8

	synStreamPrologueSize = 10
	synReplyPrologueSize  = 4
	headersPrologueSize   = 4

	settingsEntrySize = 8
)
