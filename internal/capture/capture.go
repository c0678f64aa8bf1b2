// Package capture opens a live packet capture handle and yields raw
// link-layer frames (component A, spec.md §4.A), grounded in gopacket/pcap
// the way the example MySQL wire sniffers in this codebase's reference
// corpus use it.
package capture

import (
	"context"
	"fmt"
	"io"

	"github.com/google/gopacket/pcap"
	"go.uber.org/zap"

	applog "github.com/flowlens/flowlens/internal/log"
)

const snapLen = 65535

// Config controls how the capture handle is opened.
type Config struct {
	Interface string
	BPF       string
	Promisc   bool
}

// Source wraps a live pcap handle and exposes captured frames as a channel.
// Opening the handle is process-fatal on failure (spec.md §4.A, §7
// Process-fatal): callers should treat a non-nil error from Open as cause
// to exit, not retry.
type Source struct {
	handle *pcap.Handle
	logger *zap.Logger
}

// Open starts a live capture on cfg.Interface with cfg.BPF applied.
func Open(cfg Config, logger *zap.Logger) (*Source, error) {
	handle, err := pcap.OpenLive(cfg.Interface, snapLen, cfg.Promisc, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("capture: open interface %q: %w", cfg.Interface, err)
	}
	if cfg.BPF != "" {
		if err := handle.SetBPFFilter(cfg.BPF); err != nil {
			handle.Close()
			return nil, fmt.Errorf("capture: apply bpf filter %q: %w", cfg.BPF, err)
		}
	}
	return &Source{handle: handle, logger: logger}, nil
}

// Close releases the capture handle.
func (s *Source) Close() {
	s.handle.Close()
}

// Frames starts reading packets and streams their raw bytes into the
// returned channel until ctx is cancelled or the handle is closed. Read
// errors on individual packets are logged and skipped (spec.md §4.A); the
// loop continues.
func (s *Source) Frames(ctx context.Context) <-chan []byte {
	out := make(chan []byte, 1024)
	go func() {
		defer close(out)
		for {
			data, _, err := s.handle.ReadPacketData()
			if err != nil {
				if err == io.EOF {
					// the handle was closed
					return
				}
				if err == pcap.NextErrorTimeoutExpired {
					continue
				}
				applog.LogError(s.logger, err, "capture read error, dropping packet")
				select {
				case <-ctx.Done():
					return
				default:
					continue
				}
			}
			frame := make([]byte, len(data))
			copy(frame, data)
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
