package mysql

import (
	"encoding/binary"
	"fmt"
)

// decodeOK parses an OK packet.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_response_packets.html#sect_protocol_basic_response_ok
func decodeOK(body []byte, capabilities uint32) (*OKPacket, error) {
	if len(body) < 1 || body[0] != headerOK {
		return nil, fmt.Errorf("mysql: not an OK packet")
	}
	pos := 1
	affected, n, _, err := readLengthEncodedInteger(body[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	lastInsert, n, _, err := readLengthEncodedInteger(body[pos:])
	if err != nil {
		return nil, err
	}
	pos += n

	ok := &OKPacket{AffectedRows: affected, LastInsertID: lastInsert}

	switch {
	case ClientProtocol41.Has(capabilities):
		if len(body) < pos+4 {
			return nil, ErrShortPacket
		}
		ok.StatusFlags = binary.LittleEndian.Uint16(body[pos : pos+2])
		ok.Warnings = binary.LittleEndian.Uint16(body[pos+2 : pos+4])
		pos += 4
	case ClientTransactions.Has(capabilities):
		if len(body) < pos+2 {
			return nil, ErrShortPacket
		}
		ok.StatusFlags = binary.LittleEndian.Uint16(body[pos : pos+2])
		pos += 2
	}

	if ClientSessionTrack.Has(capabilities) && ok.StatusFlags&serverSessionStateChanged != 0 && pos < len(body) {
		info, _, err := readLengthEncodedString(body[pos:])
		if err != nil {
			return nil, err
		}
		ok.Info = string(info)
	}
	return ok, nil
}

// decodeERR parses an ERR packet.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_response_packets.html#sect_protocol_basic_response_err
func decodeERR(body []byte, capabilities uint32) (*ERRPacket, error) {
	if len(body) < 1 || body[0] != headerERR {
		return nil, fmt.Errorf("mysql: not an ERR packet")
	}
	if len(body) < 3 {
		return nil, ErrShortPacket
	}
	pos := 1
	e := &ERRPacket{ErrorCode: binary.LittleEndian.Uint16(body[pos : pos+2])}
	pos += 2

	if ClientProtocol41.Has(capabilities) {
		if len(body) < pos+6 {
			return nil, ErrShortPacket
		}
		e.SQLStateMarker = string(body[pos : pos+1])
		e.SQLState = string(body[pos+1 : pos+6])
		pos += 6
	}
	e.ErrorMessage = string(body[pos:])
	return e, nil
}

// decodeEOF parses an EOF packet. Callers must check isEOFPacket first:
// CLIENT_DEPRECATE_EOF servers replace this packet with an OK packet whose
// header byte is also 0xfe when the body happens to be short, so the
// capability-aware length check in isEOFPacket is the only reliable
// discriminator (spec.md §6.D precedence rule).
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_response_packets.html#sect_protocol_basic_response_eof
func decodeEOF(body []byte) (*EOFPacket, error) {
	if len(body) < 1 || body[0] != headerEOF {
		return nil, fmt.Errorf("mysql: not an EOF packet")
	}
	if len(body) < 5 {
		return nil, ErrShortPacket
	}
	return &EOFPacket{
		Warnings:    binary.LittleEndian.Uint16(body[1:3]),
		StatusFlags: binary.LittleEndian.Uint16(body[3:5]),
	}, nil
}

// decodeGenericResponse classifies and decodes whichever of OK/ERR/EOF body
// represents, applying the precedence spec.md §6.D mandates: ERR first (its
// header byte 0xff never collides), then the capability-gated EOF check,
// then OK.
func decodeGenericResponse(body []byte, capabilities uint32) (*GenericResponse, error) {
	switch {
	case isERRPacket(body):
		p, err := decodeERR(body, capabilities)
		if err != nil {
			return nil, err
		}
		return &GenericResponse{Kind: "ERR", Body: p}, nil
	case isEOFPacket(body, capabilities):
		p, err := decodeEOF(body)
		if err != nil {
			return nil, err
		}
		return &GenericResponse{Kind: "EOF", Body: p}, nil
	case isOKPacket(body):
		p, err := decodeOK(body, capabilities)
		if err != nil {
			return nil, err
		}
		return &GenericResponse{Kind: "OK", Body: p}, nil
	default:
		return nil, fmt.Errorf("mysql: body is not a recognized generic response")
	}
}
