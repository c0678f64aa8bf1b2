package flow

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowlens/flowlens/internal/frame"
)

// TestKeyCanonicalization is Testable Property 1 (spec.md §8): a packet and
// its direction-reversed mirror classify to the identical session key.
func TestKeyCanonicalization(t *testing.T) {
	ports := PortMap{3306: MySQL}

	request := frame.View{
		SrcIP:   net.ParseIP("10.0.0.5"),
		SrcPort: 55123,
		DstIP:   net.ParseIP("10.0.0.9"),
		DstPort: 3306,
	}
	response := frame.View{
		SrcIP:   request.DstIP,
		SrcPort: request.DstPort,
		DstIP:   request.SrcIP,
		DstPort: request.SrcPort,
	}

	reqClass, ok := Classify(request, ports)
	require.True(t, ok)
	require.True(t, reqClass.IsRequest)

	respClass, ok := Classify(response, ports)
	require.True(t, ok)
	require.False(t, respClass.IsRequest)

	require.Equal(t, reqClass.Key, respClass.Key)
}

func TestClassifyDropsUnmappedPorts(t *testing.T) {
	ports := PortMap{3306: MySQL}
	v := frame.View{
		SrcIP: net.ParseIP("10.0.0.5"), SrcPort: 1234,
		DstIP: net.ParseIP("10.0.0.9"), DstPort: 5678,
	}
	_, ok := Classify(v, ports)
	require.False(t, ok)
}

func TestHasPayloadOfInterest(t *testing.T) {
	require.True(t, HasPayloadOfInterest(frame.View{PSH: true}))
	require.True(t, HasPayloadOfInterest(frame.View{FIN: true}))
	require.True(t, HasPayloadOfInterest(frame.View{RST: true}))
	require.False(t, HasPayloadOfInterest(frame.View{ACK: true}))
}
