package mysql

import "encoding/binary"

// decodeColumnDefinition41 parses one column definition packet of a
// resultset.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_com_query_response_text_resultset_column_definition.html
func decodeColumnDefinition41(body []byte) (*ColumnDefinition41, error) {
	pos := 0
	c := &ColumnDefinition41{}

	readStr := func() (string, error) {
		s, n, err := readLengthEncodedString(body[pos:])
		if err != nil {
			return "", err
		}
		pos += n
		return string(s), nil
	}

	var err error
	if c.Catalog, err = readStr(); err != nil {
		return nil, err
	}
	if c.Schema, err = readStr(); err != nil {
		return nil, err
	}
	if c.Table, err = readStr(); err != nil {
		return nil, err
	}
	if c.OrgTable, err = readStr(); err != nil {
		return nil, err
	}
	if c.Name, err = readStr(); err != nil {
		return nil, err
	}
	if c.OrgName, err = readStr(); err != nil {
		return nil, err
	}

	// length-encoded integer fixed at 0x0c, then the fixed fields.
	_, n, _, err := readLengthEncodedInteger(body[pos:])
	if err != nil {
		return nil, err
	}
	pos += n

	if len(body) < pos+10 {
		return nil, ErrShortPacket
	}
	c.CharacterSet = binary.LittleEndian.Uint16(body[pos : pos+2])
	pos += 2
	c.ColumnLength = binary.LittleEndian.Uint32(body[pos : pos+4])
	pos += 4
	c.Type = FieldType(body[pos])
	pos++
	c.Flags = binary.LittleEndian.Uint16(body[pos : pos+2])
	pos += 2
	c.Decimals = body[pos]
	pos++

	return c, nil
}

// decodeTextRow parses one data row of a text resultset: one
// length-encoded string (or the 0xfb NULL marker) per column.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_com_query_response_text_resultset_row.html
func decodeTextRow(body []byte, columns []*ColumnDefinition41) (*TextRow, error) {
	pos := 0
	row := &TextRow{Values: make([]ColumnValue, 0, len(columns))}
	for _, col := range columns {
		length, hdrLen, isNull, err := readLengthEncodedInteger(body[pos:])
		if err != nil {
			return nil, err
		}
		if isNull {
			row.Values = append(row.Values, ColumnValue{Name: col.Name, Null: true})
			pos += hdrLen
			continue
		}
		start := pos + hdrLen
		end := start + int(length)
		if end > len(body) {
			return nil, ErrShortPacket
		}
		value := make([]byte, end-start)
		copy(value, body[start:end])
		row.Values = append(row.Values, ColumnValue{Name: col.Name, Value: value})
		pos = end
	}
	return row, nil
}
