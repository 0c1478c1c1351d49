package spdy

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"io"
)

// HeaderBlockDecoder decompresses and parses the header blocks carried
// by SYN_STREAM, SYN_REPLY and HEADERS frames. The frame decoder owns
// exactly one instance and drives it as the block streams in:
//
//   - Decode is called with a view over the next compressed bytes; the
//     implementation consumes some prefix of it (possibly all, possibly
//     none) and may populate or flag the target frame as it goes. The
//     target is nil while draining the tail of a block already emitted.
//   - EndHeaderBlock is called once the block's final byte has been
//     consumed, before the frame is emitted. It is not called for a
//     block whose frame was already emitted as invalid or truncated.
//   - Reset is called exactly once per block that reaches its end,
//     restoring per-block state.
//   - End is called exactly once when the owning decoder is torn down.
type HeaderBlockDecoder interface {
	Decode(buf *Buffer, frame HeaderBlockFrame) error
	EndHeaderBlock(frame HeaderBlockFrame) error
	Reset()
	End()
}

// The deflate dictionaries primed into the header compression context.
// Header blocks share one zlib stream per session direction, so the
// dictionary is only consulted once, for the first block.
const (
	headerDictionaryV2 = `optionsgetheadpostputdeletetraceacceptaccept-charsetaccept-encodingaccept-languageauthorizationexpectfromhostif-modified-sinceif-matchif-none-matchif-rangeif-unmodifiedsincemax-forwardsproxy-authorizationrangerefererteuser-agent100101200201202203204205206300301302303304305306307400401402403404405406407408409410411412413414415416417500501502503504505accept-rangesageetaglocationproxy-authenticatepublicretry-afterservervarywarningwww-authenticateallowcontent-basecontent-encodingcache-controlconnectiondatetrailertransfer-encodingupgradeviawarningcontent-languagecontent-lengthcontent-locationcontent-md5content-rangecontent-typeetagexpireslast-modifiedset-cookieMondayTuesdayWednesdayThursdayFridaySaturdaySundayJanFebMarAprMayJunJulAugSepOctNovDecchunkedtext/htmlimage/pngimage/jpgimage/gifapplication/xmlapplication/xhtmltext/plainpublicmax-agecharset=iso-8859-1utf-8gzipdeflateHTTP/1.1statusversionurl` + "\x00"
	headerDictionaryV3 = `optionsgetheadpostputdeletetraceacceptaccept-charsetaccept-encodingaccept-languageauthorizationexpectfromhostif-modified-sinceif-matchif-none-matchif-rangeif-unmodifiedsincemax-forwardsproxy-authorizationrangerefererteuser-agent100101200201202203204205206300301302303304305306307400401402403404405406407408409410411412413414415416417500501502503504505accept-rangesageetaglocationproxy-authenticatepublicretry-afterservervarywarningwww-authenticateallowcontent-basecontent-encodingcache-controlconnectiondatetrailertransfer-encodingupgradeviawarningcontent-languagecontent-lengthcontent-locationcontent-md5content-rangecontent-typeetagexpireslast-modifiedset-cookieMondayTuesdayWednesdayThursdayFridaySaturdaySundayJanFebMarAprMayJunJulAugSepOctNovDecchunkedtext/htmlimage/pngimage/jpgimage/gifapplication/xmlapplication/xhtmltext/plainpublicmax-agecharset=iso-8859-1utf-8gzipdeflateHTTP/1.1statusversionurl`
)

// HeaderDictionary returns the zlib dictionary for a version's header
// compression context. The encoding side of a test or a peer needs the
// same bytes, so it is exported.
func HeaderDictionary(v Version) []byte {
	if v == Version2 {
		return []byte(headerDictionaryV2)
	}
	return []byte(headerDictionaryV3)
}

// zlibHeaderBlockDecoder inflates header blocks with the per-version
// preset dictionary and parses the length-prefixed name/value grammar.
//
// Compressed bytes are buffered as they arrive and inflated when the
// block ends: encoders terminate every block with a zlib sync flush, so
// a complete block always inflates without needing later input, and the
// single long-lived reader keeps the compression context intact across
// blocks.
type zlibHeaderBlockDecoder struct {
	version       Version
	maxHeaderSize int

	compressed bytes.Buffer
	z          io.ReadCloser

	// headerSize accumulates decompressed name+value bytes for the
	// current block, checked against maxHeaderSize.
	headerSize int
}

func newZlibHeaderBlockDecoder(version Version, maxHeaderSize int) *zlibHeaderBlockDecoder {
	return &zlibHeaderBlockDecoder{version: version, maxHeaderSize: maxHeaderSize}
}

// Decode buffers the view's bytes, consuming all of them. Inflation is
// deferred to EndHeaderBlock.
func (d *zlibHeaderBlockDecoder) Decode(buf *Buffer, frame HeaderBlockFrame) error {
	n := buf.ReadableBytes()
	if n > 0 {
		d.compressed.Write(buf.ReadBytes(n))
	}
	return nil
}

// EndHeaderBlock inflates the buffered block and parses its name/value
// entries into the frame. Grammar violations flag the frame invalid;
// overrunning the size budget flags it truncated. Only a corrupt zlib
// stream is an error.
func (d *zlibHeaderBlockDecoder) EndHeaderBlock(frame HeaderBlockFrame) error {
	if frame == nil {
		return nil
	}
	if d.z == nil {
		z, err := zlib.NewReaderDict(&d.compressed, HeaderDictionary(d.version))
		if err != nil {
			return err
		}
		d.z = z
	}
	return d.decodeHeaderBlock(frame)
}

// Reset clears per-block state. The zlib stream survives: the
// compression context spans all header blocks of the session.
func (d *zlibHeaderBlockDecoder) Reset() {
	d.headerSize = 0
}

// End releases the zlib stream.
func (d *zlibHeaderBlockDecoder) End() {
	if d.z != nil {
		d.z.Close()
		d.z = nil
	}
}

func (d *zlibHeaderBlockDecoder) decodeHeaderBlock(frame HeaderBlockFrame) error {
	block := frame.Block()

	numEntries, err := d.readLength()
	if err != nil {
		return blockInvalid(block, err)
	}
	if numEntries < 0 {
		block.SetInvalid()
		return nil
	}

	for i := 0; i < numEntries; i++ {
		nameLen, err := d.readLength()
		if err != nil {
			return blockInvalid(block, err)
		}
		if nameLen <= 0 {
			block.SetInvalid()
			return nil
		}

		if !block.Truncated && d.headerSize+nameLen > d.maxHeaderSize {
			block.SetTruncated()
		}

		name := make([]byte, nameLen)
		if _, err := io.ReadFull(d.z, name); err != nil {
			return blockInvalid(block, err)
		}

		valueLen, err := d.readLength()
		if err != nil {
			return blockInvalid(block, err)
		}
		if valueLen <= 0 {
			block.SetInvalid()
			return nil
		}

		if !block.Truncated && d.headerSize+nameLen+valueLen > d.maxHeaderSize {
			block.SetTruncated()
		}

		value := make([]byte, valueLen)
		if _, err := io.ReadFull(d.z, value); err != nil {
			return blockInvalid(block, err)
		}

		if block.Truncated {
			// Keep draining the declared entries so the zlib stream
			// stays aligned for the next block, but record nothing.
			continue
		}
		d.headerSize += nameLen + valueLen

		if block.Has(string(name)) {
			block.SetInvalid()
			return nil
		}

		// A value field packs multiple values NUL-separated; an empty
		// element means a stray or trailing NUL.
		for _, v := range bytes.Split(value, []byte{0}) {
			if len(v) == 0 {
				block.SetInvalid()
				return nil
			}
			block.Add(string(name), string(v))
		}
	}
	return nil
}

// readLength reads one length field from the inflated stream: 16 bits
// for SPDY/2, 32 bits (signed on the wire) for SPDY/3.
func (d *zlibHeaderBlockDecoder) readLength() (int, error) {
	if d.version == Version2 {
		var b [2]byte
		if _, err := io.ReadFull(d.z, b[:]); err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(b[:])), nil
	}
	var b [4]byte
	if _, err := io.ReadFull(d.z, b[:]); err != nil {
		return 0, err
	}
	return int(int32(binary.BigEndian.Uint32(b[:]))), nil
}

// blockInvalid maps a short read to the invalid bit: the block ended
// before its declared entries did. Anything else is a real inflate
// failure and propagates.
func blockInvalid(block *HeaderBlock, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		block.SetInvalid()
		return nil
	}
	return err
}
