// Package flow classifies a decoded frame into a canonical session key and
// a request/response direction (component C, spec.md §4.C).
package flow

import (
	"fmt"

	"github.com/flowlens/flowlens/internal/frame"
)

// DBType identifies which database protocol a mapped port speaks. Only
// MySQL is decoded; the type exists so the port map and Session Table stay
// extensible to future protocol families (spec.md §1 Non-goals).
type DBType string

// MySQL is the only DBType this observer currently decodes.
const MySQL DBType = "MySQL"

// Key is the canonical 5-tuple identifying one client<->server TCP flow.
// spec.md §3: built so a packet and its mirror always produce an identical
// key, which is what lets the Session Table demultiplex both directions of
// a connection into a single entry.
type Key struct {
	ClientIP   string
	ClientPort uint16
	ServerIP   string
	ServerPort uint16
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%d<->%s:%d", k.ClientIP, k.ClientPort, k.ServerIP, k.ServerPort)
}

// PortMap maps a TCP port to the database protocol spoken on it.
type PortMap map[uint16]DBType

// Classification is the output of classifying one frame.
type Classification struct {
	Key       Key
	DBType    DBType
	IsRequest bool
}

// Classify implements spec.md §4.C steps 1-4. ok is false when neither port
// is in the configured map (step 3: drop).
func Classify(v frame.View, ports PortMap) (Classification, bool) {
	if dbType, isMapped := ports[v.DstPort]; isMapped {
		return Classification{
			Key: Key{
				ClientIP:   v.SrcIP.String(),
				ClientPort: v.SrcPort,
				ServerIP:   v.DstIP.String(),
				ServerPort: v.DstPort,
			},
			DBType:    dbType,
			IsRequest: true,
		}, true
	}
	if dbType, isMapped := ports[v.SrcPort]; isMapped {
		return Classification{
			Key: Key{
				ClientIP:   v.DstIP.String(),
				ClientPort: v.DstPort,
				ServerIP:   v.SrcIP.String(),
				ServerPort: v.SrcPort,
			},
			DBType:    dbType,
			IsRequest: false,
		}, true
	}
	return Classification{}, false
}

// HasPayloadOfInterest implements spec.md §4.C step 5: a packet is worth
// routing to the Session Table only if it carries PSH (application data)
// or FIN/RST (connection teardown signals the coordinator must observe).
func HasPayloadOfInterest(v frame.View) bool {
	return v.PSH || v.FIN || v.RST
}
