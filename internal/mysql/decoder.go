// Package mysql decodes the MySQL client/server wire protocol from
// already-reassembled TCP byte streams. It never writes to the wire: every
// function here is a pure parser from bytes to an Event, reflecting
// flowlens's role as a passive observer (spec.md §1).
package mysql

import "time"

// resultsetState tracks progress through a multi-packet COM_QUERY response.
type resultsetState int

const (
	rsNone resultsetState = iota
	rsAwaitingColumnCount
	rsAwaitingColumnDefs
	rsAwaitingEOFAfterColumns
	rsAwaitingRows
)

// pendingCommand remembers which command-phase request is awaiting a
// response, so the decoder knows how to shape that response.
type pendingCommand int

const (
	pendingNone pendingCommand = iota
	pendingGeneric                // expects a plain OK/ERR
	pendingQueryResultset         // expects OK/ERR/LOCAL_INFILE/resultset
	pendingStmtPrepare
)

// Decoder is a per-session MySQL protocol state machine (component F).
// One Decoder serves both directions of a session; SPEC_FULL.md §6.F keeps
// capability negotiation, resultset reassembly, and prepared-statement
// tracking here because all three need both directions' history.
type Decoder struct {
	sessionID string
	maxRows   int

	phase Phase

	serverCaps     uint32
	clientCaps     uint32
	negotiatedCaps uint32

	pending     pendingCommand
	rs          resultsetState
	rsBuilder   *TextResultSet
	rsRemaining int

	preparedStmts    map[uint32]*PreparedStatement
	lastPrepareQuery string

	clientSeq seqTracker
	serverSeq seqTracker

	eventIndex uint64
}

// seqTracker detects a MySQL per-direction sequence number rollover: any
// packet whose sequence id is not strictly greater than the previous one
// seen in the same direction, which marks the end of the previous command
// round-trip even if that round's terminal packet was never observed
// (spec.md §7 Edge Cases, §8 Testable Property 6).
type seqTracker struct {
	last    int
	hasLast bool
}

func (s *seqTracker) rolledOver(seq uint8) bool {
	cur := int(seq)
	rolled := s.hasLast && cur <= s.last
	s.last = cur
	s.hasLast = true
	return rolled
}

// NewDecoder returns a Decoder ready to see the first server greeting.
// maxBufferedRows bounds how many rows of any single resultset are retained
// before the decoder marks it Truncated; later rows are still decoded but
// then dropped (spec.md §5, "max_buffered_rows").
func NewDecoder(sessionID string, maxBufferedRows int) *Decoder {
	return &Decoder{
		sessionID:     sessionID,
		maxRows:       maxBufferedRows,
		phase:         PhaseInit,
		preparedStmts: make(map[uint32]*PreparedStatement),
	}
}

// Phase returns the decoder's current connection phase.
func (d *Decoder) Phase() Phase { return d.phase }

// closeWith transitions to PhaseClosed and emits the Closed event (spec.md
// §3: Event's tagged values include "Closed"). Idempotent in spirit: callers
// only reach it from a phase transition, never from PhaseClosed itself.
func (d *Decoder) closeWith(reason string, emit func(string, interface{})) {
	d.phase = PhaseClosed
	emit(ClosedKind, ClosedPayload{Reason: reason})
}

// Close tears the decoder down from outside the packet stream (TCP
// FIN/RST, or the Session Table's idle sweep) and returns the resulting
// Closed event. A session already in PhaseClosed produces no further
// event, matching the Session Table's own Close idempotence.
func (d *Decoder) Close(reason string, capturedAt time.Time) []Event {
	if d.phase == PhaseClosed {
		return nil
	}
	var events []Event
	emit := func(kind string, payload interface{}) {
		d.eventIndex++
		events = append(events, Event{
			SessionID:  d.sessionID,
			EventIndex: d.eventIndex,
			CapturedAt: capturedAt,
			Kind:       kind,
			Payload:    payload,
		})
	}
	d.closeWith(reason, emit)
	return events
}

// Feed decodes one reassembled logical frame from the given direction and
// returns the events it produced. Multi-packet exchanges (a resultset's
// column definitions and rows) accumulate silently and surface as a single
// Event once their terminal packet arrives, or once a sequence rollover
// forces an early, Truncated flush.
func (d *Decoder) Feed(dir Direction, frame Frame, capturedAt time.Time) []Event {
	body := frame.Body
	var events []Event

	emit := func(kind string, payload interface{}) {
		d.eventIndex++
		events = append(events, Event{
			SessionID:  d.sessionID,
			EventIndex: d.eventIndex,
			CapturedAt: capturedAt,
			Direction:  dir,
			Kind:       kind,
			Payload:    payload,
		})
	}
	fail := func(reason string) {
		emit(DecodeErrorKind, decodeErrorPayload{Reason: reason, Phase: d.phase.String()})
	}

	if d.phase == PhaseAuthenticated {
		tracker := &d.clientSeq
		if dir == DirToClient {
			tracker = &d.serverSeq
		}
		if tracker.rolledOver(frame.SequenceID) && d.rs != rsNone {
			d.rsBuilder.Truncated = true
			emit("TextResultSet", d.rsBuilder)
			d.rsBuilder = nil
			d.rs = rsNone
			d.pending = pendingNone
		}
	}

	switch d.phase {
	case PhaseInit:
		if dir == DirToClient {
			if frame.SequenceID != 0 {
				// Not the greeting; a mid-connection capture may have
				// started here. Discard silently and keep waiting.
				return events
			}
			hs, err := decodeHandshakeV10(body)
			if err != nil {
				fail(err.Error())
				d.closeWith("malformed_greeting", emit)
				return events
			}
			d.serverCaps = hs.CapabilityFlags
			d.phase = PhaseServerGreeting
			emit("HandshakeV10", hs)
			return events
		}
		// Client-direction packet while still awaiting the greeting: the
		// capture may have started mid-connection. Drop it silently, but
		// transition opportunistically if this looks like the start of a
		// command round-trip, so a mid-flow capture still becomes useful.
		if frame.SequenceID == 0 && len(body) > 0 && isKnownCommand(body[0]) {
			d.phase = PhaseAuthenticated
			d.feedCommand(body, emit, fail)
		}
		return events

	case PhaseServerGreeting:
		if dir != DirToServer {
			fail("expected client handshake response")
			return events
		}
		resp, ssl, err := decodeHandshakeResponse41(body)
		if err != nil {
			fail(err.Error())
			d.closeWith("malformed_login", emit)
			return events
		}
		if ssl != nil {
			d.clientCaps = ssl.CapabilityFlags
			d.negotiatedCaps = d.serverCaps & d.clientCaps
			emit("SSLRequest", ssl)
			d.closeWith("tls", emit)
			return events
		}
		d.clientCaps = resp.CapabilityFlags
		d.negotiatedCaps = d.serverCaps & d.clientCaps
		d.phase = PhaseClientHandshakeResponse
		emit("HandshakeResponse41", resp)
		return events

	case PhaseClientHandshakeResponse, PhaseAuthSwitch:
		d.feedAuthExchange(dir, body, emit, fail)
		return events

	case PhaseAuthenticated:
		if dir == DirToServer {
			d.feedCommand(body, emit, fail)
		} else {
			d.feedServerResponse(body, emit, fail)
		}
		return events

	default: // PhaseClosed
		return events
	}
}

func (d *Decoder) feedAuthExchange(dir Direction, body []byte, emit func(string, interface{}), fail func(string)) []Event {
	if dir == DirToClient {
		switch {
		case isOKPacket(body):
			ok, err := decodeOK(body, d.negotiatedCaps)
			if err != nil {
				fail(err.Error())
				return nil
			}
			d.phase = PhaseAuthenticated
			emit("OKPacket", ok)
		case isERRPacket(body):
			e, err := decodeERR(body, d.negotiatedCaps)
			if err != nil {
				fail(err.Error())
				return nil
			}
			emit("ERRPacket", e)
			d.closeWith("auth_error", emit)
		case len(body) > 0 && body[0] == authSwitchRequest:
			asr, err := decodeAuthSwitchRequest(body)
			if err != nil {
				fail(err.Error())
				return nil
			}
			d.phase = PhaseAuthSwitch
			emit("AuthSwitchRequest", asr)
		case len(body) > 0 && body[0] == authMoreData:
			emit("AuthMoreData", &AuthMoreData{Data: body[1:]})
		default:
			fail("unrecognized packet during authentication")
		}
		return nil
	}

	// client -> server during auth exchange: either the original
	// HandshakeResponse41 auth bytes arriving as a follow-up, or an
	// AuthSwitchResponse reply. Contents are an opaque auth blob either
	// way; record it without interpreting the credential bytes.
	emit("AuthSwitchResponse", &AuthSwitchResponse{Data: body})
	return nil
}

func (d *Decoder) feedCommand(body []byte, emit func(string, interface{}), fail func(string)) []Event {
	cmd, payload, err := decodeCommand(body, d.preparedStmts, d.negotiatedCaps)
	if err != nil {
		fail(err.Error())
		return nil
	}

	switch cmd {
	case ComQuery:
		d.pending = pendingQueryResultset
		d.rs = rsNone
		emit("QueryPacket", payload)
	case ComStmtPrepare:
		d.pending = pendingStmtPrepare
		if p, ok := payload.(*StmtPreparePacket); ok {
			d.lastPrepareQuery = p.Query
		}
		emit("StmtPreparePacket", payload)
	case ComQuit:
		emit("QuitPacket", payload)
		d.closeWith("quit", emit)
	default:
		d.pending = pendingGeneric
		if payload != nil {
			emit(commandEventKind(cmd), payload)
		} else {
			emit(cmd.String(), struct{}{})
		}
	}
	return nil
}

func commandEventKind(cmd Command) string {
	switch cmd {
	case ComStmtExecute:
		return "StmtExecutePacket"
	case ComStmtClose:
		return "StmtClosePacket"
	case ComStmtReset:
		return "StmtResetPacket"
	case ComInitDB:
		return "InitDBPacket"
	case ComPing:
		return "PingPacket"
	default:
		return cmd.String()
	}
}

func (d *Decoder) feedServerResponse(body []byte, emit func(string, interface{}), fail func(string)) []Event {
	switch d.pending {
	case pendingStmtPrepare:
		d.pending = pendingGeneric
		if isERRPacket(body) {
			e, err := decodeERR(body, d.negotiatedCaps)
			if err != nil {
				fail(err.Error())
				return nil
			}
			emit("ERRPacket", e)
			return nil
		}
		ok, err := decodeStmtPrepareOK(body)
		if err != nil {
			fail(err.Error())
			return nil
		}
		d.preparedStmts[ok.StatementID] = &PreparedStatement{
			StatementID: ok.StatementID,
			Query:       d.lastPrepareQuery,
			NumParams:   ok.NumParams,
		}
		emit("StmtPrepareOK", ok)
		return nil

	case pendingQueryResultset:
		return d.feedResultsetPacket(body, emit, fail)

	default: // pendingGeneric, or an unsolicited server packet
		resp, err := decodeGenericResponse(body, d.negotiatedCaps)
		if err != nil {
			fail(err.Error())
			return nil
		}
		emit(resp.Kind+"Packet", resp.Body)
		return nil
	}
}

// feedResultsetPacket advances the column-count -> column-defs -> (EOF) ->
// rows -> terminal state machine for a COM_QUERY response.
// refer: https://dev.mysql.com/doc/dev/mysql-server/latest/page_protocol_com_query_response_text_resultset.html
func (d *Decoder) feedResultsetPacket(body []byte, emit func(string, interface{}), fail func(string)) []Event {
	switch d.rs {
	case rsNone:
		switch {
		case isERRPacket(body):
			e, err := decodeERR(body, d.negotiatedCaps)
			if err != nil {
				fail(err.Error())
				return nil
			}
			d.pending = pendingGeneric
			emit("ERRPacket", e)
			return nil
		case isOKPacket(body):
			ok, err := decodeOK(body, d.negotiatedCaps)
			if err != nil {
				fail(err.Error())
				return nil
			}
			d.pending = pendingGeneric
			emit("OKPacket", ok)
			return nil
		case isLocalInFilePacket(body):
			d.pending = pendingGeneric
			emit("LocalInFileRequest", struct{ Filename string }{Filename: string(body[1:])})
			return nil
		default:
			count, _, _, err := readLengthEncodedInteger(body)
			if err != nil {
				fail(err.Error())
				return nil
			}
			d.rsBuilder = &TextResultSet{ColumnCount: count}
			d.rsRemaining = int(count)
			d.rs = rsAwaitingColumnDefs
			return nil
		}

	case rsAwaitingColumnDefs:
		col, err := decodeColumnDefinition41(body)
		if err != nil {
			fail(err.Error())
			return nil
		}
		d.rsBuilder.Columns = append(d.rsBuilder.Columns, col)
		d.rsRemaining--
		if d.rsRemaining == 0 {
			if ClientDeprecateEOF.Has(d.negotiatedCaps) {
				d.rs = rsAwaitingRows
			} else {
				d.rs = rsAwaitingEOFAfterColumns
			}
		}
		return nil

	case rsAwaitingEOFAfterColumns:
		if !isEOFPacket(body, d.negotiatedCaps) {
			fail("expected EOF after column definitions")
			return nil
		}
		d.rs = rsAwaitingRows
		return nil

	case rsAwaitingRows:
		if isEOFPacket(body, d.negotiatedCaps) || isOKPacket(body) || isERRPacket(body) {
			resp, err := decodeGenericResponse(body, d.negotiatedCaps)
			if err != nil {
				fail(err.Error())
				return nil
			}
			d.rsBuilder.Final = resp
			d.pending = pendingGeneric
			d.rs = rsNone
			emit("TextResultSet", d.rsBuilder)
			d.rsBuilder = nil
			return nil
		}
		row, err := decodeTextRow(body, d.rsBuilder.Columns)
		if err != nil {
			fail(err.Error())
			return nil
		}
		if len(d.rsBuilder.Rows) >= d.maxRows {
			d.rsBuilder.Truncated = true
			return nil
		}
		d.rsBuilder.Rows = append(d.rsBuilder.Rows, row)
		return nil
	}
	return nil
}
