package mysql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeLengthEncodedInteger(v uint64) []byte {
	switch {
	case v < 251:
		return []byte{byte(v)}
	case v < 1<<16:
		return []byte{0xfc, byte(v), byte(v >> 8)}
	case v < 1<<24:
		return []byte{0xfd, byte(v), byte(v >> 8), byte(v >> 16)}
	default:
		b := []byte{0xfe, 0, 0, 0, 0, 0, 0, 0, 0}
		for i := 0; i < 8; i++ {
			b[1+i] = byte(v >> (8 * i))
		}
		return b
	}
}

// TestLengthEncodedIntegerRoundTrip verifies Testable Property 4 (spec.md
// §8): round-trip for representative values across every encoding width.
func TestLengthEncodedIntegerRoundTrip(t *testing.T) {
	values := []uint64{
		0, 1, 250,
		251, 300, 65535,
		65536, 1 << 20, 1<<24 - 1,
		1 << 24, 1 << 32, 1<<64 - 1,
	}
	for _, v := range values {
		encoded := encodeLengthEncodedInteger(v)
		got, n, isNull, err := readLengthEncodedInteger(encoded)
		require.NoError(t, err)
		require.False(t, isNull)
		require.Equal(t, v, got)
		require.Equal(t, len(encoded), n)
	}
}

func TestLengthEncodedIntegerNullMarker(t *testing.T) {
	_, n, isNull, err := readLengthEncodedInteger([]byte{0xfb})
	require.NoError(t, err)
	require.True(t, isNull)
	require.Equal(t, 1, n)
}

func TestLengthEncodedIntegerShortPacket(t *testing.T) {
	_, _, _, err := readLengthEncodedInteger([]byte{0xfe, 1, 2})
	require.ErrorIs(t, err, ErrShortPacket)
}

func TestLengthEncodedStringRoundTrip(t *testing.T) {
	value := []byte("root")
	encoded := append(encodeLengthEncodedInteger(uint64(len(value))), value...)
	got, n, err := readLengthEncodedString(encoded)
	require.NoError(t, err)
	require.Equal(t, value, got)
	require.Equal(t, len(encoded), n)
}

func TestSequenceRolloverFlushesOnce(t *testing.T) {
	var tracker seqTracker
	require.False(t, tracker.rolledOver(5))
	require.True(t, tracker.rolledOver(0))
	require.False(t, tracker.rolledOver(1))
}
