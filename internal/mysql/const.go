package mysql

// Generic response packet header bytes.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_response_packets.html
const (
	headerOK  byte = 0x00
	headerEOF byte = 0xfe
	headerERR byte = 0xff

	localInFileHeader byte = 0xfb
)

// Connection-phase packet markers.
const (
	headerHandshakeV10 byte = 0x0a
	authSwitchRequest  byte = 0xfe
	authMoreData       byte = 0x01
	authNextFactor     byte = 0x02
)

// serverSessionStateChanged is the OK-packet status_flags bit (SERVER_SESSION_STATE_CHANGED)
// that gates whether session-state-info trails the packet.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/group__group__cs__server__status__flags.html
const serverSessionStateChanged uint16 = 0x4000

// CapabilityFlag is a single bit of the 32-bit client/server capability
// negotiation word (CLIENT_* in the MySQL docs).
type CapabilityFlag uint32

// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/group__group__cs__capabilities__flags.html
const (
	ClientLongPassword CapabilityFlag = 1 << iota
	ClientFoundRows
	ClientLongFlag
	ClientConnectWithDB
	ClientNoSchema
	ClientCompress
	ClientODBC
	ClientLocalFiles
	ClientIgnoreSpace
	ClientProtocol41
	ClientInteractive
	ClientSSL
	ClientIgnoreSigpipe
	ClientTransactions
	ClientReserved
	ClientSecureConnection
	ClientMultiStatements
	ClientMultiResults
	ClientPSMultiResults
	ClientPluginAuth
	ClientConnectAttrs
	ClientPluginAuthLenencClientData
	ClientCanHandleExpiredPasswords
	ClientSessionTrack
	ClientDeprecateEOF
	ClientOptionalResultsetMetadata
	ClientZstdCompressionAlgorithm
	ClientQueryAttributes
	MultiFactorAuthentication
	ClientCapabilityExtension
	ClientSSLVerifyServerCert
	ClientRememberOptions
)

// Has reports whether flag is set in caps.
func (c CapabilityFlag) Has(caps uint32) bool {
	return caps&uint32(c) != 0
}

// Command is the first byte of a COM_QUERY-phase client packet.
type Command byte

// refer:
// https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_command_phase_text.html
// https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_command_phase_utility.html
// https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_command_phase_ps.html
const (
	ComQuit             Command = 0x01
	ComInitDB           Command = 0x02
	ComQuery            Command = 0x03
	ComFieldList        Command = 0x04
	ComStatistics       Command = 0x08
	ComDebug            Command = 0x0d
	ComPing             Command = 0x0e
	ComChangeUser       Command = 0x11
	ComStmtPrepare      Command = 0x16
	ComStmtExecute      Command = 0x17
	ComStmtSendLongData Command = 0x18
	ComStmtClose        Command = 0x19
	ComStmtReset        Command = 0x1a
	ComResetConnection  Command = 0x1f
)

var commandNames = map[Command]string{
	ComQuit:             "COM_QUIT",
	ComInitDB:           "COM_INIT_DB",
	ComQuery:            "COM_QUERY",
	ComFieldList:        "COM_FIELD_LIST",
	ComStatistics:       "COM_STATISTICS",
	ComDebug:            "COM_DEBUG",
	ComPing:             "COM_PING",
	ComChangeUser:       "COM_CHANGE_USER",
	ComStmtPrepare:      "COM_STMT_PREPARE",
	ComStmtExecute:      "COM_STMT_EXECUTE",
	ComStmtSendLongData: "COM_STMT_SEND_LONG_DATA",
	ComStmtClose:        "COM_STMT_CLOSE",
	ComStmtReset:        "COM_STMT_RESET",
	ComResetConnection:  "COM_RESET_CONNECTION",
}

// String returns the textual command name, or "UNKNOWN" if unrecognized.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// isKnownCommand reports whether b is a command byte this package
// recognizes, used to decide whether a client packet seen while the
// Decoder is still in PhaseInit plausibly starts a command round-trip
// (a capture that began mid-connection) rather than noise.
func isKnownCommand(b byte) bool {
	_, ok := commandNames[Command(b)]
	return ok
}

// FieldType is the wire type byte of a column in a resultset row.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_basic_other_types.html
type FieldType byte

const (
	FieldTypeDecimal FieldType = iota
	FieldTypeTiny
	FieldTypeShort
	FieldTypeLong
	FieldTypeFloat
	FieldTypeDouble
	FieldTypeNULL
	FieldTypeTimestamp
	FieldTypeLongLong
	FieldTypeInt24
	FieldTypeDate
	FieldTypeTime
	FieldTypeDateTime
	FieldTypeYear
	FieldTypeNewDate
	FieldTypeVarChar
	FieldTypeBit
)

const (
	FieldTypeJSON FieldType = iota + 0xf5
	FieldTypeNewDecimal
	FieldTypeEnum
	FieldTypeSet
	FieldTypeTinyBLOB
	FieldTypeMediumBLOB
	FieldTypeLongBLOB
	FieldTypeBLOB
	FieldTypeVarString
	FieldTypeString
	FieldTypeGeometry
)

// Phase is the connection's position in the handshake/command state machine.
// refer spec.md §6.F.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseServerGreeting
	PhaseClientHandshakeResponse
	PhaseAuthSwitch
	PhaseAuthenticated
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseServerGreeting:
		return "server_greeting"
	case PhaseClientHandshakeResponse:
		return "client_handshake_response"
	case PhaseAuthSwitch:
		return "auth_switch"
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}
