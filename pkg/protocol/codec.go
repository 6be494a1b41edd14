package protocol

import (
	"bytes"
	"strings"
)

// EncodeCommand serializes a command's text into wire bytes:
// sentinel + text + terminator.
func EncodeCommand(text string) []byte {
	buf := make([]byte, 0, len(text)+2)
	buf = append(buf, CommandPrefix)
	buf = append(buf, text...)
	buf = append(buf, Terminator)
	return buf
}

// Decoder turns a raw byte stream into Frames. It buffers partial lines
// across chunks, so the transport may deliver bytes with arbitrary
// fragmentation or coalescing.
//
// Decoder is not safe for concurrent use; it is owned by the single read
// pump of a connection.
type Decoder struct {
	buf bytes.Buffer
}

// Feed consumes a chunk of raw bytes and returns zero or more complete
// frames. Data after the last terminator is retained for the next call.
// Feed never blocks.
func (d *Decoder) Feed(chunk []byte) []Frame {
	d.buf.Write(chunk)

	var frames []Frame
	for {
		data := d.buf.Bytes()
		i := bytes.IndexByte(data, Terminator)
		if i < 0 {
			break
		}
		line := string(data[:i])
		d.buf.Next(i + 1)

		// Devices with CRLF-terminated firmware leave a stray LF at the
		// start of the next line.
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		frames = append(frames, classify(line))
	}
	return frames
}

// Buffered returns the number of bytes held back waiting for a terminator.
func (d *Decoder) Buffered() int {
	return d.buf.Len()
}

// Reset discards any buffered partial line. Call when the underlying
// connection is replaced.
func (d *Decoder) Reset() {
	d.buf.Reset()
}

// classify maps a complete line to a Frame by its leading sentinel.
func classify(line string) Frame {
	switch line[0] {
	case StatusPrefix:
		return Frame{Kind: FrameStatus, Payload: line[1:]}
	case EchoPrefix:
		return Frame{Kind: FrameEcho, Payload: line[1:]}
	default:
		return Frame{Kind: FrameUnrecognized, Payload: line}
	}
}
