package mysql

import (
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func hexBody(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	require.NoError(t, err)
	return b
}

// TestDecodeHandshakeV10Scenario1 is the S1 worked scenario (spec.md §8):
// a MySQL 5.7 server greeting.
func TestDecodeHandshakeV10Scenario1(t *testing.T) {
	body := hexBody(t, "0a 35 2e 37 2e 34 34 00 ee 08 00 00 65 6d 50 7f "+
		"1f 19 2c 32 00 ff ff 08 02 00 ff c1 15 00 00 00 00 00 00 00 00 00 00 "+
		"25 67 1d 39 40 1b 6c 7a 66 2f 6a 62 00 6d 79 73 71 6c 5f 6e 61 74 69 "+
		"76 65 5f 70 61 73 73 77 6f 72 64 00")

	hs, err := decodeHandshakeV10(body)
	require.NoError(t, err)
	require.EqualValues(t, 10, hs.ProtocolVersion)
	require.Equal(t, "5.7.44", hs.ServerVersion)
	require.EqualValues(t, 2286, hs.ConnectionID)
	require.EqualValues(t, 0xFFFF, hs.CapabilityFlags&0xFFFF)
	require.EqualValues(t, 2, hs.StatusFlags)
	require.EqualValues(t, 0xC1FFFFFF, hs.CapabilityFlags)
	require.Equal(t, "mysql_native_password", hs.AuthPluginName)
}

// TestDecodeCommandScenario3 is the S3 worked scenario: a COM_QUERY packet.
func TestDecodeCommandScenario3(t *testing.T) {
	body := hexBody(t, "03 53 45 54 20 6e 65 74 5f 77 72 69 74 65 5f 74 "+
		"69 6d 65 6f 75 74 3d 36 30")
	cmd, payload, err := decodeCommand(body, nil, 0)
	require.NoError(t, err)
	require.Equal(t, ComQuery, cmd)
	q, ok := payload.(*QueryPacket)
	require.True(t, ok)
	require.Equal(t, "SET net_write_timeout=60", q.Query)
}

// TestDecodeOKScenario4 is the S4 worked scenario.
func TestDecodeOKScenario4(t *testing.T) {
	body := hexBody(t, "00 00 00 02 00 00 00")
	ok, err := decodeOK(body, 0xFFC215)
	require.NoError(t, err)
	require.EqualValues(t, 0, ok.AffectedRows)
	require.EqualValues(t, 0, ok.LastInsertID)
	require.EqualValues(t, 2, ok.StatusFlags)
	require.EqualValues(t, 0, ok.Warnings)
}

// TestDecodeERRScenario5 is the S5 worked scenario.
func TestDecodeERRScenario5(t *testing.T) {
	body := hexBody(t, "ff 16 04 23 33 44 30 30 30 4e 6f 20 64 61 74 61 "+
		"62 61 73 65 20 73 65 6c 65 63 74 65 64")
	e, err := decodeERR(body, uint32(ClientProtocol41))
	require.NoError(t, err)
	require.EqualValues(t, 1046, e.ErrorCode)
	require.Equal(t, "#", e.SQLStateMarker)
	require.Equal(t, "3D000", e.SQLState)
	require.Equal(t, "No database selected", e.ErrorMessage)
}

// TestDecodeEOFScenario6 is the S6 worked scenario.
func TestDecodeEOFScenario6(t *testing.T) {
	body := hexBody(t, "fe 00 00 02 00")
	eof, err := decodeEOF(body)
	require.NoError(t, err)
	require.EqualValues(t, 0, eof.Warnings)
	require.EqualValues(t, 2, eof.StatusFlags)
}

// TestDecoderFullHandshakeAndQuery exercises the Decoder end-to-end across
// greeting, login, a generic OK, and a COM_QUERY producing a text
// resultset (spec.md §6.1-§6.5).
func TestDecoderFullHandshakeAndQuery(t *testing.T) {
	d := NewDecoder("sess-1", 1000)
	now := time.Unix(0, 0)

	greeting := hexBody(t, "0a 35 2e 37 2e 34 34 00 ee 08 00 00 65 6d 50 7f "+
		"1f 19 2c 32 00 ff ff 08 02 00 ff c1 15 00 00 00 00 00 00 00 00 00 00 "+
		"25 67 1d 39 40 1b 6c 7a 66 2f 6a 62 00 6d 79 73 71 6c 5f 6e 61 74 69 "+
		"76 65 5f 70 61 73 73 77 6f 72 64 00")
	events := d.Feed(DirToClient, Frame{SequenceID: 0, Body: greeting}, now)
	require.Len(t, events, 1)
	require.Equal(t, "HandshakeV10", events[0].Kind)
	require.Equal(t, PhaseServerGreeting, d.Phase())

	// Minimal fixed HandshakeResponse41: caps(4)+maxpacket(4)+charset(1)+filler(23)+"root\x00"
	login := make([]byte, 32)
	caps := uint32(ClientProtocol41) | uint32(ClientSecureConnection)
	binary.LittleEndian.PutUint32(login[0:4], caps)
	login = append(login, []byte("root\x00")...)
	login = append(login, 0x00) // zero-length auth response
	events = d.Feed(DirToServer, Frame{SequenceID: 1, Body: login}, now)
	require.Len(t, events, 1)
	require.Equal(t, "HandshakeResponse41", events[0].Kind)
	require.Equal(t, PhaseClientHandshakeResponse, d.Phase())

	okBody := hexBody(t, "00 00 00 02 00 00 00")
	events = d.Feed(DirToClient, Frame{SequenceID: 2, Body: okBody}, now)
	require.Len(t, events, 1)
	require.Equal(t, "OKPacket", events[0].Kind)

	// COM_QUERY "SELECT 1" -> one column, one row, terminal EOF.
	query := append([]byte{byte(ComQuery)}, []byte("SELECT 1")...)
	events = d.Feed(DirToServer, Frame{SequenceID: 0, Body: query}, now)
	require.Len(t, events, 1)
	require.Equal(t, "QueryPacket", events[0].Kind)

	colCount := []byte{0x01}
	events = d.Feed(DirToClient, Frame{SequenceID: 1, Body: colCount}, now)
	require.Empty(t, events)

	colDef := buildColumnDefinition(t, "1")
	events = d.Feed(DirToClient, Frame{SequenceID: 2, Body: colDef}, now)
	require.Empty(t, events)

	eofAfterCols := hexBody(t, "fe 00 00 02 00")
	events = d.Feed(DirToClient, Frame{SequenceID: 3, Body: eofAfterCols}, now)
	require.Empty(t, events)

	row := append([]byte{0x01}, []byte("1")...)
	events = d.Feed(DirToClient, Frame{SequenceID: 4, Body: row}, now)
	require.Empty(t, events)

	finalEOF := hexBody(t, "fe 00 00 02 00")
	events = d.Feed(DirToClient, Frame{SequenceID: 5, Body: finalEOF}, now)
	require.Len(t, events, 1)
	require.Equal(t, "TextResultSet", events[0].Kind)
	rs := events[0].Payload.(*TextResultSet)
	require.Len(t, rs.Rows, 1)
	require.False(t, rs.Truncated)
}

// buildColumnDefinition constructs a minimal valid ColumnDefinition41 wire
// body naming one column.
func buildColumnDefinition(t *testing.T, name string) []byte {
	t.Helper()
	lenStr := func(s string) []byte {
		return append([]byte{byte(len(s))}, []byte(s)...)
	}
	var b []byte
	b = append(b, lenStr("def")...)  // catalog
	b = append(b, lenStr("")...)     // schema
	b = append(b, lenStr("")...)     // table
	b = append(b, lenStr("")...)     // org_table
	b = append(b, lenStr(name)...)   // name
	b = append(b, lenStr(name)...)   // org_name
	b = append(b, 0x0c)              // fixed length marker
	b = append(b, 0x3f, 0x00)        // character set
	b = append(b, 0x01, 0x00, 0x00, 0x00) // column length
	b = append(b, byte(FieldTypeLongLong))
	b = append(b, 0x00, 0x00) // flags
	b = append(b, 0x00)       // decimals
	b = append(b, 0x00, 0x00) // filler
	return b
}

// TestSessionFinIdempotence is Testable Property 5: feeding a frame after
// the decoder has reached PhaseClosed produces no further events.
func TestSessionFinIdempotence(t *testing.T) {
	d := NewDecoder("sess-2", 1000)
	d.phase = PhaseClosed
	events := d.Feed(DirToServer, Frame{SequenceID: 0, Body: []byte{0x01}}, time.Unix(0, 0))
	require.Empty(t, events)
	events = d.Feed(DirToServer, Frame{SequenceID: 1, Body: []byte{0x01}}, time.Unix(0, 0))
	require.Empty(t, events)
}

// TestPhaseInitDiscardsOutOfSequenceServerPacket covers a capture that
// starts mid-connection: a server packet in PhaseInit with a non-zero
// sequence id can never be the greeting, and must be discarded silently
// rather than fed into decodeHandshakeV10.
func TestPhaseInitDiscardsOutOfSequenceServerPacket(t *testing.T) {
	d := NewDecoder("sess-3", 1000)
	events := d.Feed(DirToClient, Frame{SequenceID: 3, Body: []byte{0x00, 0x01, 0x02}}, time.Unix(0, 0))
	require.Empty(t, events)
	require.Equal(t, PhaseInit, d.Phase())
}

// TestPhaseInitDropsClientPacketSilently covers a client-direction packet
// arriving before any greeting has been seen, with a byte that isn't a
// recognized command: it must be dropped silently (no event, no phase
// change), not treated as a decode error.
func TestPhaseInitDropsClientPacketSilently(t *testing.T) {
	d := NewDecoder("sess-4", 1000)
	events := d.Feed(DirToServer, Frame{SequenceID: 0, Body: []byte{0xff, 0x01}}, time.Unix(0, 0))
	require.Empty(t, events)
	require.Equal(t, PhaseInit, d.Phase())
}

// TestPhaseInitOpportunisticTransition covers the mid-capture recovery path:
// a client packet at seq==0 whose first byte is a known command byte moves
// the decoder straight to PhaseAuthenticated and decodes it as that command.
func TestPhaseInitOpportunisticTransition(t *testing.T) {
	d := NewDecoder("sess-5", 1000)
	query := append([]byte{byte(ComQuery)}, []byte("SELECT 1")...)
	events := d.Feed(DirToServer, Frame{SequenceID: 0, Body: query}, time.Unix(0, 0))
	require.Len(t, events, 1)
	require.Equal(t, "QueryPacket", events[0].Kind)
	require.Equal(t, PhaseAuthenticated, d.Phase())
}

// TestMalformedGreetingClosesSession covers spec.md's requirement that a
// malformed greeting moves the session to Closed instead of leaving it
// wedged in PhaseInit forever.
func TestMalformedGreetingClosesSession(t *testing.T) {
	d := NewDecoder("sess-6", 1000)
	events := d.Feed(DirToClient, Frame{SequenceID: 0, Body: []byte{0x0a}}, time.Unix(0, 0))
	require.Len(t, events, 2)
	require.Equal(t, DecodeErrorKind, events[0].Kind)
	require.Equal(t, ClosedKind, events[1].Kind)
	require.Equal(t, "malformed_greeting", events[1].Payload.(ClosedPayload).Reason)
	require.Equal(t, PhaseClosed, d.Phase())

	// Closed is terminal: feeding another frame produces nothing further.
	events = d.Feed(DirToClient, Frame{SequenceID: 1, Body: []byte{0x0a}}, time.Unix(0, 0))
	require.Empty(t, events)
}

// TestMalformedLoginClosesSession covers the same requirement for a
// malformed HandshakeResponse41.
func TestMalformedLoginClosesSession(t *testing.T) {
	d := NewDecoder("sess-7", 1000)
	greeting := hexBody(t, "0a 35 2e 37 2e 34 34 00 ee 08 00 00 65 6d 50 7f "+
		"1f 19 2c 32 00 ff ff 08 02 00 ff c1 15 00 00 00 00 00 00 00 00 00 00 "+
		"25 67 1d 39 40 1b 6c 7a 66 2f 6a 62 00 6d 79 73 71 6c 5f 6e 61 74 69 "+
		"76 65 5f 70 61 73 73 77 6f 72 64 00")
	d.Feed(DirToClient, Frame{SequenceID: 0, Body: greeting}, time.Unix(0, 0))
	require.Equal(t, PhaseServerGreeting, d.Phase())

	events := d.Feed(DirToServer, Frame{SequenceID: 1, Body: []byte{0x01, 0x02}}, time.Unix(0, 0))
	require.Len(t, events, 2)
	require.Equal(t, DecodeErrorKind, events[0].Kind)
	require.Equal(t, ClosedKind, events[1].Kind)
	require.Equal(t, "malformed_login", events[1].Payload.(ClosedPayload).Reason)
	require.Equal(t, PhaseClosed, d.Phase())
}

// TestSSLRequestClosesSession covers a TLS-upgrading client: flowlens can no
// longer observe the session past this point, so it must close.
func TestSSLRequestClosesSession(t *testing.T) {
	d := NewDecoder("sess-8", 1000)
	greeting := hexBody(t, "0a 35 2e 37 2e 34 34 00 ee 08 00 00 65 6d 50 7f "+
		"1f 19 2c 32 00 ff ff 08 02 00 ff c1 15 00 00 00 00 00 00 00 00 00 00 "+
		"25 67 1d 39 40 1b 6c 7a 66 2f 6a 62 00 6d 79 73 71 6c 5f 6e 61 74 69 "+
		"76 65 5f 70 61 73 73 77 6f 72 64 00")
	d.Feed(DirToClient, Frame{SequenceID: 0, Body: greeting}, time.Unix(0, 0))

	ssl := make([]byte, 32)
	binary.LittleEndian.PutUint32(ssl[0:4], uint32(ClientProtocol41)|uint32(ClientSSL))
	events := d.Feed(DirToServer, Frame{SequenceID: 1, Body: ssl}, time.Unix(0, 0))
	require.Len(t, events, 2)
	require.Equal(t, "SSLRequest", events[0].Kind)
	require.Equal(t, ClosedKind, events[1].Kind)
	require.Equal(t, "tls", events[1].Payload.(ClosedPayload).Reason)
	require.Equal(t, PhaseClosed, d.Phase())
}

// TestComQuitClosesSession covers COM_QUIT as a Closed cause.
func TestComQuitClosesSession(t *testing.T) {
	d := NewDecoder("sess-9", 1000)
	d.phase = PhaseAuthenticated

	events := d.Feed(DirToServer, Frame{SequenceID: 0, Body: []byte{byte(ComQuit)}}, time.Unix(0, 0))
	require.Len(t, events, 2)
	require.Equal(t, "QuitPacket", events[0].Kind)
	require.Equal(t, ClosedKind, events[1].Kind)
	require.Equal(t, "quit", events[1].Payload.(ClosedPayload).Reason)
	require.Equal(t, PhaseClosed, d.Phase())
}

// TestDecoderClose covers the externally-triggered Close path (FIN/RST,
// idle sweep) and its idempotence once the session is already Closed.
func TestDecoderClose(t *testing.T) {
	d := NewDecoder("sess-10", 1000)
	d.phase = PhaseAuthenticated

	events := d.Close("fin", time.Unix(0, 0))
	require.Len(t, events, 1)
	require.Equal(t, ClosedKind, events[0].Kind)
	require.Equal(t, "fin", events[0].Payload.(ClosedPayload).Reason)
	require.Equal(t, PhaseClosed, d.Phase())

	require.Empty(t, d.Close("rst", time.Unix(0, 0)))
}

// TestDecodeOKSessionStateInfo covers decodeOK's gating: session-state-info
// is only parsed when CLIENT_SESSION_TRACK is negotiated and
// SERVER_SESSION_STATE_CHANGED is set, and then read as a length-encoded
// string rather than a raw remainder slice.
func TestDecodeOKSessionStateInfo(t *testing.T) {
	caps := uint32(ClientProtocol41) | uint32(ClientSessionTrack)
	statusFlags := make([]byte, 2)
	binary.LittleEndian.PutUint16(statusFlags, serverSessionStateChanged)

	body := append([]byte{headerOK, 0x00, 0x00}, statusFlags...)
	body = append(body, 0x00, 0x00) // warnings
	info := "autocommit"
	body = append(body, byte(len(info)))
	body = append(body, []byte(info)...)

	ok, err := decodeOK(body, caps)
	require.NoError(t, err)
	require.Equal(t, "autocommit", ok.Info)

	// Without CLIENT_SESSION_TRACK, the same trailing bytes must not be
	// parsed as Info even though the status bit is set.
	ok2, err := decodeOK(body, uint32(ClientProtocol41))
	require.NoError(t, err)
	require.Empty(t, ok2.Info)
}

// TestDecodeStmtExecuteBindsParameters covers the full NULL-bitmap plus
// typed-parameter binary decode against a known prepared statement.
func TestDecodeStmtExecuteBindsParameters(t *testing.T) {
	prepared := map[uint32]*PreparedStatement{
		7: {StatementID: 7, Query: "SELECT * FROM t WHERE id = ? AND name = ?", NumParams: 2},
	}

	payload := make([]byte, 0)
	stmtID := make([]byte, 4)
	binary.LittleEndian.PutUint32(stmtID, 7)
	payload = append(payload, stmtID...)      // statement id
	payload = append(payload, 0x00)           // flags
	payload = append(payload, 0, 0, 0, 0)     // iteration count
	payload = append(payload, 0x00)           // null bitmap (1 byte for 2 params), nothing NULL
	payload = append(payload, 0x01)           // new-params-bind-flag

	payload = append(payload, byte(FieldTypeLong), 0x00) // param 0: signed LONG
	idVal := make([]byte, 4)
	binary.LittleEndian.PutUint32(idVal, 42)

	payload = append(payload, byte(FieldTypeVarString), 0x00) // param 1: string
	name := "alice"

	// values follow the headers, in parameter order
	payload = append(payload, idVal...)
	payload = append(payload, byte(len(name)))
	payload = append(payload, []byte(name)...)

	pkt, err := decodeStmtExecute(payload, prepared, 0)
	require.NoError(t, err)
	require.EqualValues(t, 7, pkt.StatementID)
	require.Equal(t, 2, pkt.ParameterCount)
	require.Len(t, pkt.Parameters, 2)
	require.EqualValues(t, int32(42), pkt.Parameters[0].Value)
	require.Equal(t, "alice", pkt.Parameters[1].Value)
}

// TestDecodeStmtExecuteUnknownStatement covers the error path when the
// referenced prepared statement was never observed.
func TestDecodeStmtExecuteUnknownStatement(t *testing.T) {
	payload := make([]byte, 9)
	_, err := decodeStmtExecute(payload, map[uint32]*PreparedStatement{}, 0)
	require.Error(t, err)
}
