package mysql

// maxPacketBody is the largest payload a single MySQL wire packet can carry
// before the protocol splits it across a continuation packet with the same
// sequence-number-plus-one rule.
const maxPacketBody = 0xFFFFFF

// Frame is one fully reassembled MySQL logical packet: the concatenation of
// one or more wire packets that were split because the payload exceeded
// maxPacketBody.
type Frame struct {
	// SequenceID is the wire sequence number of the frame's final
	// (non-continuation) packet.
	SequenceID uint8
	Body       []byte
}

// Framer reassembles one direction of one TCP byte stream into logical
// MySQL packets, per connection phase.
//
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_packets.html
// ("Splitting a Packet"): a wire packet whose payload length equals
// maxPacketBody is continued by a following packet sharing the same logical
// message; the split ends with a packet shorter than maxPacketBody (the
// empty-payload case included).
//
// Framer owns its own byte buffer and is safe for single-writer use only:
// one Framer per (session, direction) per SPEC_FULL.md §6.E.
type Framer struct {
	buf      []byte
	residual []byte
	pending  bool
}

// NewFramer returns a Framer ready to consume a fresh byte stream.
func NewFramer() *Framer {
	return &Framer{}
}

// Push feeds newly captured bytes into the framer and returns every logical
// frame that became complete as a result, in arrival order. Bytes belonging
// to an incomplete trailing packet are retained for the next call.
func (f *Framer) Push(data []byte) ([]Frame, error) {
	if len(f.residual) > 0 {
		data = append(f.residual, data...)
		f.residual = nil
	} else if len(data) > 0 {
		// avoid aliasing the caller's slice across calls
		buf := make([]byte, len(data))
		copy(buf, data)
		data = buf
	}

	var frames []Frame
	for {
		if len(data) < 4 {
			break
		}
		payloadLen := uint24LE(data[0:3])
		seq := data[3]
		if uint32(len(data)) < 4+payloadLen {
			break
		}
		body := data[4 : 4+payloadLen]
		data = data[4+payloadLen:]

		if f.pending {
			f.buf = append(f.buf, body...)
		} else {
			f.buf = append([]byte{}, body...)
		}

		if payloadLen == maxPacketBody {
			f.pending = true
			continue
		}

		frames = append(frames, Frame{SequenceID: seq, Body: f.buf})
		f.buf = nil
		f.pending = false
	}

	if len(data) > 0 {
		f.residual = data
	}
	return frames, nil
}

// Reset clears any buffered partial frame. Called on session teardown
// (a FIN or RST seen by the pipeline).
func (f *Framer) Reset() {
	f.buf = nil
	f.residual = nil
	f.pending = false
}

// Pending reports whether the framer is mid-way through a split packet.
func (f *Framer) Pending() bool {
	return f.pending
}
