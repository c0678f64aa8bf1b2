package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeWirePacket(seq uint8, body []byte) []byte {
	length := len(body)
	return append([]byte{
		byte(length & 0xff),
		byte((length >> 8) & 0xff),
		byte((length >> 16) & 0xff),
		seq,
	}, body...)
}

// TestFramerRoundTrip verifies Testable Property 2 (spec.md §8): encoding a
// packet and feeding it to the Framer returns the original body and
// sequence.
func TestFramerRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		body []byte
		seq  uint8
	}{
		{"empty", []byte{}, 0},
		{"small", []byte("SELECT 1"), 7},
		{"boundary", make([]byte, 1000), 255},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewFramer()
			frames, err := f.Push(encodeWirePacket(tc.seq, tc.body))
			require.NoError(t, err)
			require.Len(t, frames, 1)
			require.Equal(t, tc.seq, frames[0].SequenceID)
			require.Equal(t, tc.body, frames[0].Body)
		})
	}
}

// TestFramerContinuation verifies Testable Property 3 (spec.md §8): N-1
// maxPacketBody-length packets followed by one shorter packet reassemble
// into a single logical body of the expected total size.
func TestFramerContinuation(t *testing.T) {
	const n = 3
	const tailLen = 100

	var wire []byte
	var want []byte
	for i := 0; i < n-1; i++ {
		chunk := make([]byte, maxPacketBody)
		for j := range chunk {
			chunk[j] = byte(i)
		}
		wire = append(wire, encodeWirePacket(uint8(i), chunk)...)
		want = append(want, chunk...)
	}
	tail := make([]byte, tailLen)
	for j := range tail {
		tail[j] = 0xAB
	}
	wire = append(wire, encodeWirePacket(uint8(n-1), tail)...)
	want = append(want, tail...)

	f := NewFramer()
	frames, err := f.Push(wire)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, (n-1)*maxPacketBody+tailLen, len(frames[0].Body))
	require.Equal(t, want, frames[0].Body)
	require.False(t, f.Pending())
}

// TestFramerPartialDelivery checks that a packet split across two TCP
// segments is only emitted once the trailing bytes arrive.
func TestFramerPartialDelivery(t *testing.T) {
	wire := encodeWirePacket(0, []byte("hello world"))
	f := NewFramer()

	frames, err := f.Push(wire[:5])
	require.NoError(t, err)
	require.Empty(t, frames)

	frames, err = f.Push(wire[5:])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, []byte("hello world"), frames[0].Body)
}

func TestFramerReset(t *testing.T) {
	f := NewFramer()
	_, err := f.Push(encodeWirePacket(0, []byte("partial"))[:4])
	require.NoError(t, err)
	f.Reset()
	require.False(t, f.Pending())

	frames, err := f.Push(encodeWirePacket(1, []byte("fresh")))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Equal(t, []byte("fresh"), frames[0].Body)
}
