// Package pipeline wires components A through G into the three long-lived
// tasks spec.md §5 describes: capture, coordinator, and sink. It owns the
// Session Table and is the only place that calls into it, preserving the
// single-writer discipline spec.md §4.D and §5 require — no mutexes appear
// anywhere in this module.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/flowlens/flowlens/internal/capture"
	"github.com/flowlens/flowlens/internal/flow"
	"github.com/flowlens/flowlens/internal/frame"
	applog "github.com/flowlens/flowlens/internal/log"
	"github.com/flowlens/flowlens/internal/metrics"
	"github.com/flowlens/flowlens/internal/mysql"
	"github.com/flowlens/flowlens/internal/session"
	"github.com/flowlens/flowlens/internal/sink"
)

// Config configures one Coordinator run.
type Config struct {
	Capture         capture.Config
	PortMap         flow.PortMap
	IdleTimeout     time.Duration
	MaxBufferedRows int
	SweepInterval   time.Duration
}

// Coordinator is the Pipeline Coordinator (component H).
type Coordinator struct {
	cfg     Config
	table   *session.Table
	metrics *metrics.Collector
	sink    sink.Sink
	logger  *zap.Logger
}

// New builds a Coordinator. The Session Table is created here, not passed
// in, because this Coordinator is its one and only writer.
func New(cfg Config, m *metrics.Collector, sk sink.Sink, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		table:   session.NewTable(cfg.MaxBufferedRows, cfg.IdleTimeout, logger),
		metrics: m,
		sink:    sk,
		logger:  logger,
	}
}

// Table exposes the Session Table read-only, for internal/api's /status
// route; the admin server never calls a mutating method on it.
func (c *Coordinator) Table() *session.Table { return c.table }

// Run starts the capture task and drives the coordinator loop until ctx is
// cancelled or the capture source errors (spec.md §5: capture task and
// coordinator task are two of the three long-lived tasks; the third, the
// sink task, lives in whatever consumes sink.Sink downstream of Deliver).
func (c *Coordinator) Run(ctx context.Context) error {
	src, err := capture.Open(c.cfg.Capture, c.logger)
	if err != nil {
		return err
	}
	defer src.Close()

	g, ctx := errgroup.WithContext(ctx)

	rawFrames := src.Frames(ctx)

	g.Go(func() error {
		return c.consumeFrames(ctx, rawFrames)
	})

	if c.cfg.SweepInterval > 0 {
		g.Go(func() error {
			return c.runSweeper(ctx)
		})
	}

	return g.Wait()
}

func (c *Coordinator) consumeFrames(ctx context.Context, rawFrames <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-rawFrames:
			if !ok {
				return nil
			}
			c.metrics.PacketCaptured()
			c.handleFrame(ctx, raw)
		}
	}
}

func (c *Coordinator) handleFrame(ctx context.Context, raw []byte) {
	view, ok := frame.Decode(raw)
	if !ok {
		c.metrics.PacketDropped("parse_error")
		return
	}

	class, ok := flow.Classify(view, c.cfg.PortMap)
	if !ok {
		c.metrics.PacketDropped("unmapped_port")
		return
	}
	if !flow.HasPayloadOfInterest(view) {
		c.metrics.PacketDropped("no_payload")
		return
	}

	now := time.Now()
	_, existed := c.table.Lookup(class.Key)
	if !existed && (view.FIN || view.RST) {
		// Teardown for a flow with no live session: nothing to close.
		return
	}
	sessionCtx := c.table.FindOrCreate(class.Key, now)
	if !existed {
		c.metrics.SessionOpened()
	}

	if view.FIN || view.RST {
		sessionCtx.ReqFramer.Reset()
		sessionCtx.RespFramer.Reset()
		reason := "fin"
		if view.RST {
			reason = "rst"
		}
		for _, event := range sessionCtx.Decoder.Close(reason, now) {
			c.deliver(ctx, event)
		}
		c.table.Close(class.Key)
		c.metrics.SessionClosed(reason)
		return
	}

	if len(view.Payload) == 0 {
		return
	}

	dir := mysql.DirToServer
	framer := sessionCtx.ReqFramer
	if !class.IsRequest {
		dir = mysql.DirToClient
		framer = sessionCtx.RespFramer
	}

	frames, err := framer.Push(view.Payload)
	if err != nil {
		c.metrics.DecodeError(sessionCtx.Decoder.Phase().String())
		return
	}
	for _, f := range frames {
		for _, event := range sessionCtx.Decoder.Feed(dir, f, now) {
			c.deliver(ctx, event)
		}
	}
}

func (c *Coordinator) deliver(ctx context.Context, event mysql.Event) {
	if event.Kind == mysql.DecodeErrorKind {
		c.metrics.DecodeError("unknown")
	}
	c.metrics.EventEmitted(event.Kind)
	if err := c.sink.Deliver(ctx, event); err != nil {
		applog.LogError(c.logger, err, "sink delivery failed")
	}
}

func (c *Coordinator) runSweeper(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			expired := c.table.Sweep(now)
			for _, sessionCtx := range expired {
				for _, event := range sessionCtx.Decoder.Close("idle_timeout", now) {
					c.deliver(ctx, event)
				}
				c.metrics.SessionClosed("idle_timeout")
			}
		}
	}
}
