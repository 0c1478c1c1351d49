package spdy

import "fmt"

type decoderState int

const (
	stateReadCommonHeader decoderState = iota
	stateReadControlFrame
	stateReadSettingsFrame
	stateReadHeaderBlockFrame
	stateReadHeaderBlock
	stateReadDataFrame
	stateDiscardFrame
	stateFrameError
)

// Decoder is an incremental SPDY frame decoder. It consumes an
// arbitrarily fragmented byte stream and produces typed frame events,
// never blocking and never reading past the current frame.
//
// A Decoder is single-owner: one instance per session direction, all
// calls serialized by the caller. Typical use pins a Decoder to a
// connection's read loop:
//
//	for {
//		f, err := d.Decode(buf)
//		if err != nil { ... tear down ... }
//		if f != nil { ... handle frame ... ; continue }
//		if no bytes were consumed { break } // feed more input
//	}
//
// A call that cannot make progress returns (nil, nil) without moving
// the cursor; re-invoking on identical input yields the same result.
type Decoder struct {
	version      Version
	maxChunkSize int

	headerBlockDecoder HeaderBlockDecoder
	ended              bool

	state decoderState

	// Registers for the frame currently being decoded, populated by the
	// common-header parser. length counts the payload bytes still to
	// consume; it reaches zero exactly at the frame boundary.
	flags        Flags
	length       int
	frameVersion uint16
	frameType    FrameType
	streamID     uint32

	settings *SettingsFrame
	headers  HeaderBlockFrame
}

// NewDecoder creates a Decoder for the given version with a zlib header
// block decoder. maxChunkSize bounds the payload of any emitted
// DataFrame; maxHeaderSize bounds the decompressed size of one header
// block.
func NewDecoder(version Version, maxChunkSize, maxHeaderSize int) (*Decoder, error) {
	if maxHeaderSize <= 0 {
		return nil, fmt.Errorf("spdy: maxHeaderSize must be a positive integer: %d", maxHeaderSize)
	}
	return NewDecoderWith(version, maxChunkSize, newZlibHeaderBlockDecoder(version, maxHeaderSize))
}

// NewDecoderWith creates a Decoder around a caller-supplied header
// block decoder. The Decoder takes ownership of it: Reset is invoked
// once per completed header block and End once on teardown.
func NewDecoderWith(version Version, maxChunkSize int, headerBlockDecoder HeaderBlockDecoder) (*Decoder, error) {
	if !version.Supported() {
		return nil, fmt.Errorf("spdy: unsupported version: %d", uint16(version))
	}
	if maxChunkSize <= 0 {
		return nil, fmt.Errorf("spdy: maxChunkSize must be a positive integer: %d", maxChunkSize)
	}
	if headerBlockDecoder == nil {
		return nil, fmt.Errorf("spdy: headerBlockDecoder must not be nil")
	}
	return &Decoder{
		version:            version,
		maxChunkSize:       maxChunkSize,
		headerBlockDecoder: headerBlockDecoder,
		state:              stateReadCommonHeader,
	}, nil
}

// Decode advances the state machine over the readable bytes of buf. It
// may return a frame, may consume input, both, or neither. The caller
// drives it to a fixed point (no frame, no consumption) before feeding
// more bytes.
//
// A non-nil error is the decoder's error event: the session is broken
// and the decoder is terminal. Further calls consume and drop input
// without emitting anything. At most one error is ever returned.
func (d *Decoder) Decode(buf *Buffer) (Frame, error) {
	switch d.state {
	case stateReadCommonHeader:
		if buf.ReadableBytes() < HeaderSize {
			return nil, nil
		}
		d.state = d.readCommonHeader(buf)
		if d.state == stateFrameError {
			if d.frameVersion != uint16(d.version) {
				return nil, NewProtocolError(fmt.Sprintf("Unsupported version: %d", d.frameVersion))
			}
			if d.frameType == FrameTypeData && d.streamID == 0 {
				return nil, NewProtocolError("Received invalid data frame")
			}
			return nil, errInvalidFrame()
		}

		// Zero-length frames have no payload state to run; settle them
		// here so every Decode call either consumes input or produces a
		// frame once the header is in.
		if d.length == 0 {
			if d.state == stateReadDataFrame {
				f := &DataFrame{
					StreamID: d.streamID,
					Last:     d.flags&FlagFin != 0,
					Payload:  []byte{},
				}
				d.state = stateReadCommonHeader
				return f, nil
			}
			// There are no zero-length control frames for recognized types.
			d.state = stateReadCommonHeader
		}
		return nil, nil

	case stateReadControlFrame:
		f, err := d.readControlFrame(buf)
		if err != nil {
			d.state = stateFrameError
			return nil, errInvalidFrame()
		}
		if f != nil {
			d.state = stateReadCommonHeader
		}
		return f, nil

	case stateReadSettingsFrame:
		return d.readSettingsFrame(buf)

	case stateReadHeaderBlockFrame:
		f, err := d.readHeaderBlockFrame(buf)
		if err != nil {
			d.state = stateFrameError
			return nil, errInvalidFrame()
		}
		if f != nil {
			if d.length == 0 {
				// No header block body; emit without touching the
				// header block decoder.
				d.state = stateReadCommonHeader
				return f, nil
			}
			d.headers = f
			d.state = stateReadHeaderBlock
		}
		return nil, nil

	case stateReadHeaderBlock:
		return d.readHeaderBlock(buf)

	case stateReadDataFrame:
		if d.streamID == 0 {
			d.state = stateFrameError
			return nil, NewProtocolError("Received invalid data frame")
		}

		// Emit chunks that never exceed maxChunkSize, and only once the
		// whole chunk is readable: DATA waits for a full chunk rather
		// than fragmenting below the configured size.
		chunk := min(d.maxChunkSize, d.length)
		if buf.ReadableBytes() < chunk {
			return nil, nil
		}

		f := &DataFrame{StreamID: d.streamID, Payload: buf.ReadBytes(chunk)}
		d.length -= chunk
		if d.length == 0 {
			f.Last = d.flags&FlagFin != 0
			d.state = stateReadCommonHeader
		}
		return f, nil

	case stateDiscardFrame:
		n := min(buf.ReadableBytes(), d.length)
		buf.Skip(n)
		d.length -= n
		if d.length == 0 {
			d.state = stateReadCommonHeader
		}
		return nil, nil

	case stateFrameError:
		buf.Skip(buf.ReadableBytes())
		return nil, nil

	default:
		panic("spdy: unreachable decoder state")
	}
}

// DecodeLast is Decode for the final buffer of the session. It
// finalizes the header block decoder on every exit path; the Decoder is
// unusable afterwards.
func (d *Decoder) DecodeLast(buf *Buffer) (Frame, error) {
	defer d.end()
	return d.Decode(buf)
}

// Close finalizes the header block decoder without decoding. Owners
// that drop a Decoder without reaching end-of-stream call this instead
// of DecodeLast; the two are interchangeable and idempotent between
// them.
func (d *Decoder) Close() {
	d.end()
}

func (d *Decoder) end() {
	if d.ended {
		return
	}
	d.ended = true
	d.headerBlockDecoder.End()
}

// readCommonHeader consumes the 8-byte common header and selects the
// next state. The caller has verified that all 8 bytes are readable.
func (d *Decoder) readCommonHeader(buf *Buffer) decoderState {
	control := buf.GetByte(0)&0x80 != 0
	d.flags = Flags(buf.GetByte(headerFlagsOffset))
	d.length = int(buf.GetUnsignedMedium(headerLengthOffset))

	if control {
		d.frameVersion = buf.GetUnsignedShort(0) & 0x7FFF
		d.frameType = FrameType(buf.GetUnsignedShort(headerTypeOffset))
		d.streamID = 0 // session stream
	} else {
		// Data frames carry no version field; default to the session's
		// so the version gate below is a no-op on this path.
		d.frameVersion = uint16(d.version)
		d.frameType = FrameTypeData
		d.streamID = buf.GetUnsignedInt(0)
	}
	buf.Skip(HeaderSize)

	// Version first, then per-type header validity.
	if d.frameVersion != uint16(d.version) || !d.validFrameHeader() {
		return stateFrameError
	}

	switch d.frameType {
	case FrameTypeData:
		return stateReadDataFrame
	case FrameTypeSynStream, FrameTypeSynReply, FrameTypeHeaders:
		return stateReadHeaderBlockFrame
	case FrameTypeSettings:
		return stateReadSettingsFrame
	case FrameTypeRstStream, FrameTypePing, FrameTypeGoAway, FrameTypeWindowUpdate:
		return stateReadControlFrame
	}

	// Unknown control types are tolerated: their payload is discarded
	// and no frame is produced.
	if d.length != 0 {
		return stateDiscardFrame
	}
	return stateReadCommonHeader
}

// validFrameHeader checks the per-type constraints that can be decided
// from the common header alone.
func (d *Decoder) validFrameHeader() bool {
	switch d.frameType {
	case FrameTypeData:
		return d.streamID != 0
	case FrameTypeSynStream:
		return d.length >= synStreamPrologueSize
	case FrameTypeSynReply:
		return d.length >= synReplyPrologueSize
	case FrameTypeRstStream:
		return d.flags == 0 && d.length == rstStreamPayloadSize
	case FrameTypeSettings:
		return d.length >= 4
	case FrameTypePing:
		return d.length == pingPayloadSize
	case FrameTypeGoAway:
		return d.length == goAwayPayloadSize
	case FrameTypeHeaders:
		return d.length >= headersPrologueSize
	case FrameTypeWindowUpdate:
		return d.length == windowUpdatePayloadSize
	default:
		return true
	}
}

// readControlFrame parses the four fixed-shape control frames. It
// returns (nil, nil) until the full payload is readable. A constructor
// rejection surfaces as an error.
func (d *Decoder) readControlFrame(buf *Buffer) (Frame, error) {
	switch d.frameType {
	case FrameTypeRstStream:
		if buf.ReadableBytes() < rstStreamPayloadSize {
			return nil, nil
		}
		streamID := buf.GetUnsignedInt(0)
		status := buf.GetSignedInt(4)
		buf.Skip(rstStreamPayloadSize)
		return NewRstStreamFrame(streamID, StreamStatus(status))

	case FrameTypePing:
		if buf.ReadableBytes() < pingPayloadSize {
			return nil, nil
		}
		id := buf.GetSignedInt(0)
		buf.Skip(pingPayloadSize)
		return &PingFrame{ID: id}, nil

	case FrameTypeGoAway:
		if buf.ReadableBytes() < goAwayPayloadSize {
			return nil, nil
		}
		lastGoodStreamID := buf.GetUnsignedInt(0)
		status := buf.GetSignedInt(4)
		buf.Skip(goAwayPayloadSize)
		return &GoAwayFrame{LastGoodStreamID: lastGoodStreamID, Status: SessionStatus(status)}, nil

	case FrameTypeWindowUpdate:
		if buf.ReadableBytes() < windowUpdatePayloadSize {
			return nil, nil
		}
		streamID := buf.GetUnsignedInt(0)
		delta := buf.GetUnsignedInt(4)
		buf.Skip(windowUpdatePayloadSize)
		return NewWindowUpdateFrame(streamID, delta)

	default:
		panic("spdy: not a fixed-shape control frame: " + d.frameType.String())
	}
}

// readSettingsFrame parses the entry-count word on first entry, then
// consumes as many complete 8-byte entries as are readable. The first
// occurrence of an id wins; later duplicates within the frame are
// silently ignored.
func (d *Decoder) readSettingsFrame(buf *Buffer) (Frame, error) {
	if d.settings == nil {
		if buf.ReadableBytes() < 4 {
			return nil, nil
		}
		numEntries := buf.GetUnsignedInt(0)
		buf.Skip(4)
		d.length -= 4

		// Each id/value entry is 8 bytes.
		if d.length&0x07 != 0 || uint32(d.length>>3) != numEntries {
			d.state = stateFrameError
			return nil, errInvalidFrame()
		}

		d.settings = NewSettingsFrame()
		d.settings.ClearPreviouslyPersisted = d.flags&FlagSettingsClearSettings != 0
	}

	readableEntries := min(buf.ReadableBytes()>>3, d.length>>3)
	for i := 0; i < readableEntries; i++ {
		entryFlags := buf.GetByte(0)
		id := buf.GetUnsignedMedium(1)
		value := buf.GetSignedInt(4)
		buf.Skip(settingsEntrySize)
		d.length -= settingsEntrySize

		if id == 0 {
			d.state = stateFrameError
			d.settings = nil
			return nil, errInvalidFrame()
		}

		if !d.settings.IsSet(id) {
			persistValue := entryFlags&SettingsFlagPersistValue != 0
			persisted := entryFlags&SettingsFlagPersisted != 0
			d.settings.Set(id, value, persistValue, persisted)
		}
	}

	if d.length == 0 {
		d.state = stateReadCommonHeader
		f := d.settings
		d.settings = nil
		return f, nil
	}
	return nil, nil
}

// readHeaderBlockFrame parses the fixed prologue of SYN_STREAM,
// SYN_REPLY and HEADERS frames. It returns (nil, nil) until the whole
// prologue is readable; length is decremented by the prologue on
// success, leaving only the compressed header block to stream.
func (d *Decoder) readHeaderBlockFrame(buf *Buffer) (HeaderBlockFrame, error) {
	switch d.frameType {
	case FrameTypeSynStream:
		if buf.ReadableBytes() < synStreamPrologueSize {
			return nil, nil
		}
		streamID := buf.GetUnsignedInt(0)
		associatedToStreamID := buf.GetUnsignedInt(4)
		priority := buf.GetByte(8) >> 5 & 0x07
		buf.Skip(synStreamPrologueSize)
		d.length -= synStreamPrologueSize

		f, err := NewSynStreamFrame(streamID, associatedToStreamID, priority)
		if err != nil {
			return nil, err
		}
		f.Last = d.flags&FlagFin != 0
		f.Unidirectional = d.flags&FlagUnidirectional != 0
		return f, nil

	case FrameTypeSynReply:
		if buf.ReadableBytes() < synReplyPrologueSize {
			return nil, nil
		}
		streamID := buf.GetUnsignedInt(0)
		buf.Skip(synReplyPrologueSize)
		d.length -= synReplyPrologueSize

		f, err := NewSynReplyFrame(streamID)
		if err != nil {
			return nil, err
		}
		f.Last = d.flags&FlagFin != 0
		return f, nil

	case FrameTypeHeaders:
		if buf.ReadableBytes() < headersPrologueSize {
			return nil, nil
		}
		streamID := buf.GetUnsignedInt(0)
		buf.Skip(headersPrologueSize)
		d.length -= headersPrologueSize

		f, err := NewHeadersFrame(streamID)
		if err != nil {
			return nil, err
		}
		f.Last = d.flags&FlagFin != 0
		return f, nil

	default:
		panic("spdy: not a header block frame: " + d.frameType.String())
	}
}

// readHeaderBlock streams the compressed header block into the header
// block decoder, accounting for however much of the slice it consumed.
// An error escaping the decoder is surfaced verbatim.
func (d *Decoder) readHeaderBlock(buf *Buffer) (Frame, error) {
	n := min(buf.ReadableBytes(), d.length)
	sub := buf.Slice(n)

	if err := d.headerBlockDecoder.Decode(sub, d.headers); err != nil {
		d.state = stateFrameError
		d.headers = nil
		return nil, err
	}

	consumed := n - sub.ReadableBytes()
	buf.Skip(consumed)
	d.length -= consumed

	// A decoder that flags the block mid-stream gets the frame emitted
	// early; the rest of the block is then consumed and dropped.
	if d.headers != nil && (d.headers.Block().Invalid || d.headers.Block().Truncated) {
		f := d.headers
		d.headers = nil
		if d.length == 0 {
			d.headerBlockDecoder.Reset()
			d.state = stateReadCommonHeader
		}
		return f, nil
	}

	if d.length == 0 {
		f := d.headers
		d.headers = nil
		if f != nil {
			if err := d.headerBlockDecoder.EndHeaderBlock(f); err != nil {
				d.state = stateFrameError
				return nil, err
			}
		}
		d.headerBlockDecoder.Reset()
		d.state = stateReadCommonHeader
		if f == nil {
			// Tail of a block already emitted as invalid or truncated.
			return nil, nil
		}
		return f, nil
	}
	return nil, nil
}
