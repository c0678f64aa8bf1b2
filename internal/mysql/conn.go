package mysql

import (
	"encoding/binary"
	"fmt"
)

// decodeHandshakeV10 parses the server's initial greeting.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_connection_phase_packets_protocol_handshake_v10.html
func decodeHandshakeV10(body []byte) (*HandshakeV10, error) {
	if len(body) < 1 || body[0] != headerHandshakeV10 {
		return nil, fmt.Errorf("mysql: not a HandshakeV10 packet")
	}
	pos := 1
	h := &HandshakeV10{ProtocolVersion: body[0]}

	version, n, err := readNulTerminatedString(body[pos:])
	if err != nil {
		return nil, err
	}
	h.ServerVersion = string(version)
	pos += n

	if len(body) < pos+4 {
		return nil, ErrShortPacket
	}
	h.ConnectionID = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4

	if len(body) < pos+8 {
		return nil, ErrShortPacket
	}
	authData := make([]byte, 0, 20)
	authData = append(authData, body[pos:pos+8]...)
	pos += 8
	pos++ // filler (0x00)

	if len(body) < pos+2 {
		return nil, ErrShortPacket
	}
	capLower := binary.LittleEndian.Uint16(body[pos : pos+2])
	pos += 2

	var authDataLen int
	if len(body) > pos {
		h.CharacterSet = body[pos]
		pos++
		if len(body) < pos+2 {
			return nil, ErrShortPacket
		}
		h.StatusFlags = binary.LittleEndian.Uint16(body[pos : pos+2])
		pos += 2
		if len(body) < pos+2 {
			return nil, ErrShortPacket
		}
		capUpper := binary.LittleEndian.Uint16(body[pos : pos+2])
		pos += 2
		h.CapabilityFlags = uint32(capLower) | uint32(capUpper)<<16

		if len(body) > pos {
			authDataLen = int(body[pos])
		}
		pos++
		pos += 10 // reserved

		if ClientSecureConnection.Has(h.CapabilityFlags) {
			remaining := authDataLen - 8
			if remaining < 13 {
				remaining = 13
			}
			if len(body) < pos+remaining {
				return nil, ErrShortPacket
			}
			// drop the trailing NUL the protocol always pads with
			authData = append(authData, body[pos:pos+remaining-1]...)
			pos += remaining
		}

		if ClientPluginAuth.Has(h.CapabilityFlags) && len(body) > pos {
			name, _, err := readNulTerminatedString(body[pos:])
			if err == nil {
				h.AuthPluginName = string(name)
			}
		}
	} else {
		h.CapabilityFlags = uint32(capLower)
	}

	h.AuthPluginData = authData
	return h, nil
}

// decodeHandshakeResponse41 parses the client's login packet, or detects an
// SSLRequest truncation of the same packet (spec.md §6.C "TLS upgrade").
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_connection_phase_packets_protocol_handshake_response.html
func decodeHandshakeResponse41(body []byte) (resp *HandshakeResponse41, ssl *SSLRequest, err error) {
	if len(body) < 32 {
		return nil, nil, ErrShortPacket
	}
	caps := binary.LittleEndian.Uint32(body[0:4])
	maxPacket := binary.LittleEndian.Uint32(body[4:8])
	charset := body[8]

	// An SSLRequest packet is exactly the fixed 32-byte header with no
	// username; distinguished by total packet length, since the client
	// sends it before any TLS records and before the rest of the login
	// fields exist on the wire at all.
	if len(body) == 32 {
		return nil, &SSLRequest{CapabilityFlags: caps, MaxPacketSize: maxPacket, CharacterSet: charset}, nil
	}

	pos := 32
	username, n, err := readNulTerminatedString(body[pos:])
	if err != nil {
		return nil, nil, err
	}
	pos += n

	r := &HandshakeResponse41{
		CapabilityFlags: caps,
		MaxPacketSize:   maxPacket,
		CharacterSet:    charset,
		Username:        string(username),
	}

	switch {
	case ClientPluginAuthLenencClientData.Has(caps):
		authResp, n, err := readLengthEncodedString(body[pos:])
		if err != nil {
			return nil, nil, err
		}
		r.AuthResponse = authResp
		pos += n
	case ClientSecureConnection.Has(caps):
		if len(body) <= pos {
			return nil, nil, ErrShortPacket
		}
		authLen := int(body[pos])
		pos++
		if len(body) < pos+authLen {
			return nil, nil, ErrShortPacket
		}
		r.AuthResponse = body[pos : pos+authLen]
		pos += authLen
	default:
		authResp, n, err := readNulTerminatedString(body[pos:])
		if err != nil {
			return nil, nil, err
		}
		r.AuthResponse = authResp
		pos += n
	}

	if ClientConnectWithDB.Has(caps) && len(body) > pos {
		db, n, err := readNulTerminatedString(body[pos:])
		if err != nil {
			return nil, nil, err
		}
		r.Database = string(db)
		pos += n
	}

	if ClientPluginAuth.Has(caps) && len(body) > pos {
		name, n, err := readNulTerminatedString(body[pos:])
		if err != nil {
			return nil, nil, err
		}
		r.AuthPluginName = string(name)
		pos += n
	}

	if ClientConnectAttrs.Has(caps) && len(body) > pos {
		attrsLen, n, _, err := readLengthEncodedInteger(body[pos:])
		if err != nil {
			return nil, nil, err
		}
		pos += n
		end := pos + int(attrsLen)
		if end > len(body) {
			return nil, nil, ErrShortPacket
		}
		r.ConnectionAttributes = map[string]string{}
		for pos < end {
			key, n, err := readLengthEncodedString(body[pos:])
			if err != nil {
				break
			}
			pos += n
			val, n, err := readLengthEncodedString(body[pos:])
			if err != nil {
				break
			}
			pos += n
			r.ConnectionAttributes[string(key)] = string(val)
		}
		pos = end
	}

	if ClientZstdCompressionAlgorithm.Has(caps) && len(body) > pos {
		r.ZstdCompressionLevel = body[pos]
	}

	return r, nil, nil
}

// decodeAuthSwitchRequest parses a server auth-plugin switch request.
func decodeAuthSwitchRequest(body []byte) (*AuthSwitchRequest, error) {
	if len(body) < 1 || body[0] != authSwitchRequest {
		return nil, fmt.Errorf("mysql: not an AuthSwitchRequest packet")
	}
	pos := 1
	name, n, err := readNulTerminatedString(body[pos:])
	if err != nil {
		return nil, err
	}
	pos += n
	return &AuthSwitchRequest{PluginName: string(name), PluginData: body[pos:]}, nil
}
