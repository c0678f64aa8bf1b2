package mysql

import (
	"encoding/binary"
	"errors"
)

// ErrShortPacket is returned by any decode helper that runs out of bytes
// before it can finish parsing a field.
var ErrShortPacket = errors.New("mysql: packet shorter than its declared fields")

// readLengthEncodedInteger decodes a length-encoded integer (lenenc-int) per
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_dt_integers.html
// It returns the value, the number of bytes consumed, and whether the first
// byte was the NULL marker (0xfb), used only inside length-encoded strings.
func readLengthEncodedInteger(data []byte) (value uint64, n int, isNull bool, err error) {
	if len(data) == 0 {
		return 0, 0, false, ErrShortPacket
	}
	switch data[0] {
	case 0xfb:
		return 0, 1, true, nil
	case 0xfc:
		if len(data) < 3 {
			return 0, 0, false, ErrShortPacket
		}
		return uint64(binary.LittleEndian.Uint16(data[1:3])), 3, false, nil
	case 0xfd:
		if len(data) < 4 {
			return 0, 0, false, ErrShortPacket
		}
		return uint64(data[1]) | uint64(data[2])<<8 | uint64(data[3])<<16, 4, false, nil
	case 0xfe:
		if len(data) < 9 {
			return 0, 0, false, ErrShortPacket
		}
		return binary.LittleEndian.Uint64(data[1:9]), 9, false, nil
	default:
		return uint64(data[0]), 1, false, nil
	}
}

// readLengthEncodedString decodes a length-encoded string: a lenenc-int byte
// count followed by that many raw bytes.
func readLengthEncodedString(data []byte) (value []byte, n int, err error) {
	length, hdrLen, isNull, err := readLengthEncodedInteger(data)
	if err != nil {
		return nil, 0, err
	}
	if isNull {
		return nil, hdrLen, nil
	}
	total := hdrLen + int(length)
	if len(data) < total {
		return nil, 0, ErrShortPacket
	}
	return data[hdrLen:total], total, nil
}

// readNulTerminatedString reads bytes up to and including the first 0x00.
func readNulTerminatedString(data []byte) (value []byte, n int, err error) {
	for i, b := range data {
		if b == 0x00 {
			return data[:i], i + 1, nil
		}
	}
	return nil, 0, ErrShortPacket
}

// uint24LE decodes a 3-byte little-endian unsigned integer, used for the
// packet length header.
func uint24LE(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func isOKPacket(body []byte) bool {
	return len(body) > 0 && body[0] == headerOK && len(body) >= 7
}

func isEOFPacket(body []byte, capabilities uint32) bool {
	if len(body) == 0 || body[0] != headerEOF {
		return false
	}
	if ClientDeprecateEOF.Has(capabilities) {
		return false
	}
	return len(body) < 9
}

func isERRPacket(body []byte) bool {
	return len(body) > 0 && body[0] == headerERR
}

func isLocalInFilePacket(body []byte) bool {
	return len(body) > 0 && body[0] == localInFileHeader
}
