package mysql

import (
	"encoding/binary"
	"fmt"
	"math"
)

// decodeCommand classifies and decodes a client command-phase packet
// (the first byte is the Command). Returns the decoded value and its
// Command tag; commands flowlens does not need a dedicated struct for
// (COM_QUIT, COM_PING, ...) return a zero-value marker struct so callers
// still get an Event with the right Kind. preparedStmts and capabilities
// are only consulted for COM_STMT_EXECUTE, which must resolve its bound
// parameter count and types against the matching COM_STMT_PREPARE_OK.
func decodeCommand(body []byte, preparedStmts map[uint32]*PreparedStatement, capabilities uint32) (Command, interface{}, error) {
	if len(body) == 0 {
		return 0, nil, fmt.Errorf("mysql: empty command packet")
	}
	cmd := Command(body[0])
	payload := body[1:]

	switch cmd {
	case ComQuery:
		return cmd, &QueryPacket{Query: string(payload)}, nil
	case ComStmtPrepare:
		return cmd, &StmtPreparePacket{Query: string(payload)}, nil
	case ComStmtExecute:
		pkt, err := decodeStmtExecute(payload, preparedStmts, capabilities)
		return cmd, pkt, err
	case ComStmtClose:
		if len(payload) < 4 {
			return cmd, nil, ErrShortPacket
		}
		return cmd, &StmtClosePacket{StatementID: binary.LittleEndian.Uint32(payload[0:4])}, nil
	case ComStmtReset:
		if len(payload) < 4 {
			return cmd, nil, ErrShortPacket
		}
		return cmd, &StmtResetPacket{StatementID: binary.LittleEndian.Uint32(payload[0:4])}, nil
	case ComInitDB:
		return cmd, &InitDBPacket{Schema: string(payload)}, nil
	case ComQuit:
		return cmd, &QuitPacket{}, nil
	case ComPing:
		return cmd, &PingPacket{}, nil
	default:
		return cmd, nil, nil
	}
}

// decodeStmtExecute parses a COM_STMT_EXECUTE request: statement id, flags,
// iteration count, and — when the referenced prepared statement declares
// any parameters — the NULL bitmap and bound parameter values.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_com_stmt_execute.html
func decodeStmtExecute(payload []byte, preparedStmts map[uint32]*PreparedStatement, capabilities uint32) (*StmtExecutePacket, error) {
	if len(payload) < 9 {
		return nil, ErrShortPacket
	}
	pkt := &StmtExecutePacket{
		StatementID:    binary.LittleEndian.Uint32(payload[0:4]),
		Flags:          payload[4],
		IterationCount: binary.LittleEndian.Uint32(payload[5:9]),
	}
	pos := 9

	stmt, ok := preparedStmts[pkt.StatementID]
	if !ok {
		return nil, fmt.Errorf("mysql: prepared statement %d not found", pkt.StatementID)
	}

	pkt.ParameterCount = int(stmt.NumParams)
	if pkt.ParameterCount <= 0 {
		return pkt, nil
	}

	nullBitmapLen := (pkt.ParameterCount + 7) / 8
	if pos+nullBitmapLen > len(payload) {
		return nil, ErrShortPacket
	}
	nullBitmap := payload[pos : pos+nullBitmapLen]
	pos += nullBitmapLen

	if pos+1 > len(payload) {
		return nil, ErrShortPacket
	}
	newParamsBindFlag := payload[pos]
	pos++

	pkt.Parameters = make([]Parameter, pkt.ParameterCount)
	if newParamsBindFlag == 1 {
		for i := 0; i < pkt.ParameterCount; i++ {
			if pos+2 > len(payload) {
				return nil, ErrShortPacket
			}
			pkt.Parameters[i].Type = FieldType(payload[pos])
			pkt.Parameters[i].Unsigned = payload[pos+1]&0x80 != 0
			pos += 2
		}
	} else {
		for i := range pkt.Parameters {
			pkt.Parameters[i].Type = FieldTypeVarString
		}
	}

	for i := range pkt.Parameters {
		param := &pkt.Parameters[i]
		if nullBitmap[i/8]&(1<<uint(i%8)) != 0 {
			continue
		}
		n, err := decodeBoundParameter(payload[pos:], param)
		if err != nil {
			return nil, err
		}
		pos += n
	}

	_ = capabilities // reserved for CLIENT_QUERY_ATTRIBUTES parameter names, not decoded
	return pkt, nil
}

// decodeBoundParameter decodes one non-NULL COM_STMT_EXECUTE parameter
// value per its declared FieldType and stores it in param.Value, returning
// the number of bytes consumed.
func decodeBoundParameter(data []byte, param *Parameter) (int, error) {
	switch param.Type {
	case FieldTypeString, FieldTypeVarString, FieldTypeVarChar, FieldTypeBLOB,
		FieldTypeTinyBLOB, FieldTypeMediumBLOB, FieldTypeLongBLOB, FieldTypeJSON,
		FieldTypeNewDecimal, FieldTypeDecimal:
		value, n, err := readLengthEncodedString(data)
		if err != nil {
			return 0, err
		}
		param.Value = string(value)
		return n, nil
	case FieldTypeLongLong:
		if len(data) < 8 {
			return 0, ErrShortPacket
		}
		if param.Unsigned {
			param.Value = binary.LittleEndian.Uint64(data[0:8])
		} else {
			param.Value = int64(binary.LittleEndian.Uint64(data[0:8]))
		}
		return 8, nil
	case FieldTypeLong, FieldTypeInt24:
		if len(data) < 4 {
			return 0, ErrShortPacket
		}
		if param.Unsigned {
			param.Value = binary.LittleEndian.Uint32(data[0:4])
		} else {
			param.Value = int32(binary.LittleEndian.Uint32(data[0:4]))
		}
		return 4, nil
	case FieldTypeShort, FieldTypeYear:
		if len(data) < 2 {
			return 0, ErrShortPacket
		}
		if param.Unsigned {
			param.Value = binary.LittleEndian.Uint16(data[0:2])
		} else {
			param.Value = int16(binary.LittleEndian.Uint16(data[0:2]))
		}
		return 2, nil
	case FieldTypeTiny:
		if len(data) < 1 {
			return 0, ErrShortPacket
		}
		if param.Unsigned {
			param.Value = data[0]
		} else {
			param.Value = int8(data[0])
		}
		return 1, nil
	case FieldTypeDouble:
		if len(data) < 8 {
			return 0, ErrShortPacket
		}
		param.Value = math.Float64frombits(binary.LittleEndian.Uint64(data[0:8]))
		return 8, nil
	case FieldTypeFloat:
		if len(data) < 4 {
			return 0, ErrShortPacket
		}
		param.Value = math.Float32frombits(binary.LittleEndian.Uint32(data[0:4]))
		return 4, nil
	case FieldTypeDate, FieldTypeNewDate, FieldTypeDateTime, FieldTypeTimestamp, FieldTypeTime:
		return decodeBinaryTemporal(data, param)
	default:
		return 0, fmt.Errorf("mysql: unsupported bound parameter type %d", param.Type)
	}
}

// decodeBinaryTemporal decodes the MySQL binary-protocol date/time/
// timestamp/datetime encoding: a length byte (0, 4, 7, or 11) followed by
// that many bytes of year/month/day[/hour/min/sec[/microsecond]].
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_binary_resultset.html
func decodeBinaryTemporal(data []byte, param *Parameter) (int, error) {
	if len(data) < 1 {
		return 0, ErrShortPacket
	}
	n := int(data[0])
	if len(data) < 1+n {
		return 0, ErrShortPacket
	}
	body := data[1 : 1+n]

	switch n {
	case 0:
		param.Value = ""
	case 4:
		year := binary.LittleEndian.Uint16(body[0:2])
		param.Value = fmt.Sprintf("%04d-%02d-%02d", year, body[2], body[3])
	case 7:
		year := binary.LittleEndian.Uint16(body[0:2])
		param.Value = fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", year, body[2], body[3], body[4], body[5], body[6])
	case 11:
		year := binary.LittleEndian.Uint16(body[0:2])
		micros := binary.LittleEndian.Uint32(body[7:11])
		param.Value = fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%06d", year, body[2], body[3], body[4], body[5], body[6], micros)
	default:
		return 0, fmt.Errorf("mysql: unexpected temporal length %d", n)
	}
	return 1 + n, nil
}

// decodeStmtPrepareOK parses the server's response to a successful
// COM_STMT_PREPARE.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_com_stmt_prepare.html
func decodeStmtPrepareOK(body []byte) (*StmtPrepareOK, error) {
	if len(body) < 12 || body[0] != headerOK {
		return nil, fmt.Errorf("mysql: not a COM_STMT_PREPARE_OK packet")
	}
	return &StmtPrepareOK{
		StatementID:  binary.LittleEndian.Uint32(body[1:5]),
		NumColumns:   binary.LittleEndian.Uint16(body[5:7]),
		NumParams:    binary.LittleEndian.Uint16(body[7:9]),
		WarningCount: binary.LittleEndian.Uint16(body[10:12]),
	}, nil
}
