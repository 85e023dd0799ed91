package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v4"

	"github.com/mqttcore/dispatch/internal/packet"
)

// ResponsePackage pairs a connection id with the packet destined for it
// (spec §6 "Egress queue"), the broker-side counterpart to the channel
// the teacher's writeLoop drains.
type ResponsePackage struct {
	ConnectionID uint64
	Packet       packet.Packet
}

// ErrEgressClosed is returned by Egress.Send when the sink for a
// protocol version has been closed, i.e. the listener teardown
// completed. It is terminal: the caller must cancel any in-flight QoS
// handshake rather than retry (spec §4.J "Egress write policy").
var ErrEgressClosed = errors.New("egress: queue closed")

// Sink is a single protocol version's outbound channel (v3/v4 vs v5 per
// spec §6). It is intentionally a thin wrapper over a channel rather than
// an interface: the egress queue is an external collaborator and this is
// only the shape the dispatch core needs to hand packets to it.
type Sink struct {
	ch     chan ResponsePackage
	closed chan struct{}
}

// NewSink returns a Sink with the given channel buffer size.
func NewSink(buffer int) *Sink {
	return &Sink{
		ch:     make(chan ResponsePackage, buffer),
		closed: make(chan struct{}),
	}
}

// Close marks the sink closed; further sends fail with ErrEgressClosed.
func (s *Sink) Close() {
	close(s.closed)
}

// Receive returns the channel a listener drains to write packets to the
// wire.
func (s *Sink) Receive() <-chan ResponsePackage {
	return s.ch
}

func (s *Sink) tryEnqueue(pkg ResponsePackage) (bool, error) {
	select {
	case <-s.closed:
		return false, ErrEgressClosed
	default:
	}

	select {
	case s.ch <- pkg:
		return true, nil
	case <-s.closed:
		return false, ErrEgressClosed
	default:
		return false, nil
	}
}

// Egress holds the v3/v4 and v5 sinks and applies the send-retry budget
// from ClusterPolicy (spec §4.J "Egress write policy").
type Egress struct {
	V3 *Sink
	V5 *Sink
}

// NewEgress returns an Egress with reasonably sized sinks for each
// protocol version.
func NewEgress() *Egress {
	return &Egress{
		V3: NewSink(256),
		V5: NewSink(256),
	}
}

func (e *Egress) sinkFor(protocolVersion uint8) *Sink {
	if protocolVersion >= 5 {
		return e.V5
	}
	return e.V3
}

// Send enqueues pkg onto the sink for protocolVersion, retrying up to
// policy.SendMaxTryTimes times with policy.SendTrySleep between attempts
// when the sink is momentarily full (TransientIO). A closed sink is
// terminal and returned immediately as ErrEgressClosed.
func (e *Egress) Send(ctx context.Context, policy ClusterPolicy, protocolVersion uint8, pkg ResponsePackage, logger *slog.Logger) error {
	sink := e.sinkFor(protocolVersion)

	b := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(policy.SendTrySleep),
		uint64(max(policy.SendMaxTryTimes-1, 0)),
	)
	bctx := backoff.WithContext(b, ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		ok, err := sink.tryEnqueue(pkg)
		if err != nil {
			return backoff.Permanent(err)
		}
		if ok {
			return nil
		}
		return &DispatchError{Kind: TransientIO, Detail: "egress queue full"}
	}, bctx)

	if err != nil {
		if errors.Is(err, ErrEgressClosed) {
			return err
		}
		if logger != nil {
			logger.Warn("egress send exhausted retry budget",
				"connection_id", pkg.ConnectionID, "attempts", attempt)
		}
		return &DispatchError{Kind: Exhausted, Detail: fmt.Sprintf("exhausted after %d attempts", attempt), Parent: err}
	}
	return nil
}
