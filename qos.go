package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/mqttcore/dispatch/internal/packet"
)

// QoS represents the MQTT Quality of Service level.
//
// These constants provide readable names for the three QoS levels defined
// in the MQTT specification. Using named constants improves code readability
// compared to numeric literals.
type QoS uint8

const (
	// AtMostOnce (QoS 0) - fire and forget. No pkid, no waiter, no retry.
	AtMostOnce QoS = 0

	// AtLeastOnce (QoS 1) - acknowledged delivery via PUBACK.
	AtLeastOnce QoS = 1

	// ExactlyOnce (QoS 2) - assured delivery via the PUBREC/PUBREL/PUBCOMP
	// handshake.
	ExactlyOnce QoS = 2
)

// EffectiveQoS computes the QoS actually used for a delivery, per spec §3
// invariant: min(producer_qos, subscriber_qos, cluster.max_qos).
func EffectiveQoS(producer, subscriber, clusterMax QoS) QoS {
	q := producer
	if subscriber < q {
		q = subscriber
	}
	if clusterMax < q {
		q = clusterMax
	}
	return q
}

// qos2Phase names the states of a QoS 2 handshake, per spec §4.J.
// DeliverQoS2 does not store a qos2Phase value; it follows these states
// through the AckWaiter's RecDone and Done channels:
//
//	Start → AwaitingRec --PubRec--> AwaitingComp --PubComp--> Done
//	   │                │                │
//	   ├──Timeout──→ Failed             └──Timeout──→ Failed
//	   └──Cancel ──→ Failed
type qos2Phase uint8

const (
	qos2Start qos2Phase = iota
	qos2AwaitingRec
	qos2AwaitingComp
	qos2Done
	qos2Failed
)

func (p qos2Phase) String() string {
	switch p {
	case qos2Start:
		return "Start"
	case qos2AwaitingRec:
		return "AwaitingRec"
	case qos2AwaitingComp:
		return "AwaitingComp"
	case qos2Done:
		return "Done"
	case qos2Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Delivery is the per-message context the QoS delivery engine needs:
// who is getting the message, over which connection and protocol
// version, and what it's carrying (spec §4.J).
type Delivery struct {
	ClientID        string
	ConnectionID    uint64
	ProtocolVersion uint8
	Publish         *packet.PublishPacket
}

// DeliverQoS0 enqueues pub onto the client's egress sink. No pkid, no
// waiter, no retry beyond the egress send-retry budget itself (spec
// §4.J "QoS 0").
func DeliverQoS0(ctx context.Context, egress *Egress, policy ClusterPolicy, d Delivery, logger *slog.Logger) error {
	pkg := ResponsePackage{ConnectionID: d.ConnectionID, Packet: d.Publish}
	if err := egress.Send(ctx, policy, d.ProtocolVersion, pkg, logger); err != nil {
		if logger != nil {
			logger.Warn("qos0 delivery dropped", "client_id", d.ClientID, "error", err)
		}
		return err
	}
	return nil
}

// DeliverQoS1 runs the full QoS 1 handshake: acquire pkid, register a
// waiter expecting PUBACK, enqueue, await, then release the pkid
// regardless of outcome (spec §4.J "QoS 1").
func DeliverQoS1(ctx context.Context, meta *MetadataCache, acks *AckManager, egress *Egress, policy ClusterPolicy, d Delivery, ackTimeout time.Duration, logger *slog.Logger) error {
	pkid, err := meta.NextPkid(d.ClientID)
	if err != nil {
		return &DispatchError{Kind: Exhausted, Parent: err}
	}

	waiter, err := acks.Register(d.ClientID, pkid, ExpectPubAck)
	if err != nil {
		meta.ForgetPkid(d.ClientID, pkid)
		return &DispatchError{Kind: Fatal, Parent: err}
	}

	d.Publish.PacketID = pkid
	pkg := ResponsePackage{ConnectionID: d.ConnectionID, Packet: d.Publish}
	if err := egress.Send(ctx, policy, d.ProtocolVersion, pkg, logger); err != nil {
		acks.Cancel(d.ClientID, pkid)
		meta.ForgetPkid(d.ClientID, pkid)
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, ackTimeout)
	defer cancel()
	outcome, waitErr := waiter.Wait(waitCtx)
	acks.Cancel(d.ClientID, pkid) // no-op if already resolved/removed
	meta.ForgetPkid(d.ClientID, pkid)

	if waitErr != nil {
		if logger != nil {
			logger.Warn("qos1 ack timed out", "client_id", d.ClientID, "packet_id", pkid)
		}
		return &DispatchError{Kind: AckTimeout, Parent: waitErr}
	}
	switch outcome {
	case Acked:
		return nil
	case Nacked:
		return &DispatchError{Kind: ClientGone, Detail: "puback reason code indicates failure"}
	default:
		if logger != nil {
			logger.Warn("qos1 delivery did not complete", "client_id", d.ClientID, "packet_id", pkid, "outcome", outcome.String())
		}
		return &DispatchError{Kind: AckTimeout, Detail: outcome.String()}
	}
}

// DeliverQoS2 runs the QoS 2 handshake: PUBLISH, await PUBREC, send
// PUBREL, await PUBCOMP (spec §4.J "QoS 2"). rel builds the PUBREL
// packet for pkid; it is supplied by the caller so this function stays
// independent of the internal/packet constructors for every packet type.
func DeliverQoS2(ctx context.Context, meta *MetadataCache, acks *AckManager, egress *Egress, policy ClusterPolicy, d Delivery, rel func(pkid uint16) packet.Packet, ackTimeout time.Duration, logger *slog.Logger) error {
	pkid, err := meta.NextPkid(d.ClientID)
	if err != nil {
		return &DispatchError{Kind: Exhausted, Parent: err}
	}

	waiter, err := acks.Register(d.ClientID, pkid, ExpectPubComp)
	if err != nil {
		meta.ForgetPkid(d.ClientID, pkid)
		return &DispatchError{Kind: Fatal, Parent: err}
	}

	d.Publish.PacketID = pkid
	pkg := ResponsePackage{ConnectionID: d.ConnectionID, Packet: d.Publish}
	if err := egress.Send(ctx, policy, d.ProtocolVersion, pkg, logger); err != nil {
		acks.Cancel(d.ClientID, pkid)
		meta.ForgetPkid(d.ClientID, pkid)
		return err
	}

	recCtx, cancelRec := context.WithTimeout(ctx, ackTimeout)
	defer cancelRec()
	select {
	case <-waiter.RecDone():
	case <-waiter.Done():
		// Resolved without a PUBREC: cancellation or sweep.
		acks.Cancel(d.ClientID, pkid)
		meta.ForgetPkid(d.ClientID, pkid)
		return &DispatchError{Kind: AckTimeout, Detail: "qos2 resolved before pubrec"}
	case <-recCtx.Done():
		acks.Cancel(d.ClientID, pkid)
		meta.ForgetPkid(d.ClientID, pkid)
		return &DispatchError{Kind: AckTimeout, Detail: "pubrec timed out"}
	}

	relPkg := ResponsePackage{ConnectionID: d.ConnectionID, Packet: rel(pkid)}
	if err := egress.Send(ctx, policy, d.ProtocolVersion, relPkg, logger); err != nil {
		acks.Cancel(d.ClientID, pkid)
		meta.ForgetPkid(d.ClientID, pkid)
		return err
	}

	compCtx, cancelComp := context.WithTimeout(ctx, ackTimeout)
	defer cancelComp()
	outcome, waitErr := waiter.Wait(compCtx)
	acks.Cancel(d.ClientID, pkid)
	meta.ForgetPkid(d.ClientID, pkid)

	if waitErr != nil {
		if logger != nil {
			logger.Warn("qos2 pubcomp timed out", "client_id", d.ClientID, "packet_id", pkid)
		}
		return &DispatchError{Kind: AckTimeout, Parent: waitErr}
	}
	if outcome != Acked {
		if logger != nil {
			logger.Warn("qos2 delivery did not complete", "client_id", d.ClientID, "packet_id", pkid, "outcome", outcome.String())
		}
		return &DispatchError{Kind: AckTimeout, Detail: outcome.String()}
	}
	return nil
}
