package mysql

// Header is the 4-byte MySQL packet header: a 3-byte little-endian payload
// length followed by a 1-byte sequence number.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_packets.html
type Header struct {
	PayloadLength uint32 `json:"payload_length"`
	SequenceID    uint8  `json:"sequence_id"`
}

// HandshakeV10 is the initial greeting the server sends to a new client.
type HandshakeV10 struct {
	ProtocolVersion uint8  `json:"protocol_version"`
	ServerVersion   string `json:"server_version"`
	ConnectionID    uint32 `json:"connection_id"`
	AuthPluginData  []byte `json:"auth_plugin_data,omitempty"`
	CapabilityFlags uint32 `json:"capability_flags"`
	CharacterSet    uint8  `json:"character_set"`
	StatusFlags     uint16 `json:"status_flags"`
	AuthPluginName  string `json:"auth_plugin_name,omitempty"`
}

// HandshakeResponse41 is the client's reply to HandshakeV10 once both sides
// have negotiated CLIENT_PROTOCOL_41.
type HandshakeResponse41 struct {
	CapabilityFlags      uint32            `json:"capability_flags"`
	MaxPacketSize        uint32            `json:"max_packet_size"`
	CharacterSet         uint8             `json:"character_set"`
	Username             string            `json:"username"`
	AuthResponse         []byte            `json:"auth_response,omitempty"`
	Database             string            `json:"database,omitempty"`
	AuthPluginName       string            `json:"auth_plugin_name,omitempty"`
	ConnectionAttributes map[string]string `json:"connection_attributes,omitempty"`
	ZstdCompressionLevel byte              `json:"zstd_compression_level,omitempty"`
}

// SSLRequest is the truncated HandshakeResponse41 a client sends when it
// asks the server to upgrade to TLS before continuing the handshake. Once
// observed, a passive observer can no longer decode this session.
type SSLRequest struct {
	CapabilityFlags uint32 `json:"capability_flags"`
	MaxPacketSize   uint32 `json:"max_packet_size"`
	CharacterSet    uint8  `json:"character_set"`
}

// AuthSwitchRequest asks the client to restart authentication with a
// different plugin.
type AuthSwitchRequest struct {
	PluginName string `json:"plugin_name"`
	PluginData []byte `json:"plugin_data"`
}

// AuthSwitchResponse carries the client's reply to an AuthSwitchRequest.
type AuthSwitchResponse struct {
	Data []byte `json:"data"`
}

// AuthMoreData carries a server challenge for an in-progress auth plugin
// exchange (e.g. caching_sha2_password).
type AuthMoreData struct {
	Data []byte `json:"data"`
}

// OKPacket signals successful completion of a command.
type OKPacket struct {
	AffectedRows uint64 `json:"affected_rows"`
	LastInsertID uint64 `json:"last_insert_id"`
	StatusFlags  uint16 `json:"status_flags"`
	Warnings     uint16 `json:"warnings"`
	// Info holds the session-state-info string, present only when
	// CLIENT_SESSION_TRACK is negotiated and SERVER_SESSION_STATE_CHANGED
	// is set in StatusFlags.
	Info string `json:"info,omitempty"`
}

// ERRPacket signals a failed command.
type ERRPacket struct {
	ErrorCode      uint16 `json:"error_code"`
	SQLStateMarker string `json:"sql_state_marker,omitempty"`
	SQLState       string `json:"sql_state,omitempty"`
	ErrorMessage   string `json:"error_message"`
}

// EOFPacket marks the end of a field-count-bounded sequence (column
// definitions, or rows) on servers that have not set CLIENT_DEPRECATE_EOF.
type EOFPacket struct {
	Warnings    uint16 `json:"warnings"`
	StatusFlags uint16 `json:"status_flags"`
}

// QueryPacket is a COM_QUERY request: a raw SQL statement.
type QueryPacket struct {
	Query string `json:"query"`
}

// ColumnDefinition41 describes one column of a resultset.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_com_query_response_text_resultset_column_definition.html
type ColumnDefinition41 struct {
	Catalog      string    `json:"catalog"`
	Schema       string    `json:"schema"`
	Table        string    `json:"table"`
	OrgTable     string    `json:"org_table"`
	Name         string    `json:"name"`
	OrgName      string    `json:"org_name"`
	CharacterSet uint16    `json:"character_set"`
	ColumnLength uint32    `json:"column_length"`
	Type         FieldType `json:"type"`
	Flags        uint16    `json:"flags"`
	Decimals     byte      `json:"decimals"`
}

// TextRow is one data row of a text resultset: one length-encoded string (or
// NULL) per column, in column order.
type TextRow struct {
	Values []ColumnValue `json:"values"`
}

// ColumnValue is a single decoded cell. Value is nil when the column was
// NULL on the wire.
type ColumnValue struct {
	Name  string `json:"name"`
	Value []byte `json:"value,omitempty"`
	Null  bool   `json:"null,omitempty"`
}

// TextResultSet is the full COM_QUERY response: a column-count packet,
// column definitions, an optional EOF, zero or more rows, and a terminal
// OK/EOF/ERR packet. Row accumulation is bounded by Config.MaxBufferedRows
// (SPEC_FULL.md §5); Truncated records that the bound was hit.
type TextResultSet struct {
	ColumnCount uint64                `json:"column_count"`
	Columns     []*ColumnDefinition41 `json:"columns"`
	Rows        []*TextRow            `json:"rows"`
	Truncated   bool                  `json:"truncated,omitempty"`
	Final       *GenericResponse      `json:"final,omitempty"`
}

// GenericResponse wraps whichever of OKPacket/ERRPacket/EOFPacket terminates
// a multi-packet exchange, tagged with its concrete kind.
type GenericResponse struct {
	Kind string      `json:"kind"`
	Body interface{} `json:"body"`
}

// StmtPreparePacket is a COM_STMT_PREPARE request.
type StmtPreparePacket struct {
	Query string `json:"query"`
}

// StmtPrepareOK is the server's response to a successful COM_STMT_PREPARE.
type StmtPrepareOK struct {
	StatementID  uint32 `json:"statement_id"`
	NumColumns   uint16 `json:"num_columns"`
	NumParams    uint16 `json:"num_params"`
	WarningCount uint16 `json:"warning_count"`
}

// Parameter is one bound value of a COM_STMT_EXECUTE call, resolved against
// the NumParams/type list the matching COM_STMT_PREPARE_OK declared.
type Parameter struct {
	Type     FieldType   `json:"type"`
	Unsigned bool        `json:"unsigned,omitempty"`
	Value    interface{} `json:"value"`
}

// StmtExecutePacket is a COM_STMT_EXECUTE request: the statement id plus
// its bound parameter values, decoded against the session's prepared
// statement table.
type StmtExecutePacket struct {
	StatementID    uint32      `json:"statement_id"`
	Flags          byte        `json:"flags"`
	IterationCount uint32      `json:"iteration_count"`
	ParameterCount int         `json:"parameter_count,omitempty"`
	Parameters     []Parameter `json:"parameters,omitempty"`
}

// StmtClosePacket is a COM_STMT_CLOSE request.
type StmtClosePacket struct {
	StatementID uint32 `json:"statement_id"`
}

// StmtResetPacket is a COM_STMT_RESET request.
type StmtResetPacket struct {
	StatementID uint32 `json:"statement_id"`
}

// InitDBPacket is a COM_INIT_DB request (USE <schema>).
type InitDBPacket struct {
	Schema string `json:"schema"`
}

// QuitPacket is a COM_QUIT request.
type QuitPacket struct{}

// PingPacket is a COM_PING request.
type PingPacket struct{}

// PreparedStatement tracks the subset of COM_STMT_PREPARE_OK a session needs
// to label later COM_STMT_EXECUTE/CLOSE/RESET packets by statement id.
type PreparedStatement struct {
	StatementID uint32
	Query       string
	NumParams   uint16
}
