package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mqttcore/dispatch/internal/packet"
)

func TestEffectiveQoS(t *testing.T) {
	cases := []struct {
		producer, subscriber, clusterMax, want QoS
	}{
		{AtMostOnce, ExactlyOnce, ExactlyOnce, AtMostOnce},
		{ExactlyOnce, AtLeastOnce, ExactlyOnce, AtLeastOnce},
		{ExactlyOnce, ExactlyOnce, AtLeastOnce, AtLeastOnce},
		{ExactlyOnce, ExactlyOnce, ExactlyOnce, ExactlyOnce},
	}
	for _, c := range cases {
		got := EffectiveQoS(c.producer, c.subscriber, c.clusterMax)
		if got != c.want {
			t.Errorf("EffectiveQoS(%v,%v,%v) = %v, want %v", c.producer, c.subscriber, c.clusterMax, got, c.want)
		}
	}
}

func TestDeliverQoS0Enqueues(t *testing.T) {
	egress := NewEgress()
	policy := DefaultClusterPolicy()
	d := Delivery{ClientID: "a", ConnectionID: 9, ProtocolVersion: 5, Publish: &packet.PublishPacket{Topic: "t"}}

	if err := DeliverQoS0(context.Background(), egress, policy, d, nil); err != nil {
		t.Fatalf("DeliverQoS0: %v", err)
	}

	select {
	case got := <-egress.V5.Receive():
		if got.ConnectionID != 9 {
			t.Fatalf("ConnectionID = %d, want 9", got.ConnectionID)
		}
	default:
		t.Fatalf("nothing enqueued")
	}
}

func TestDeliverQoS1SucceedsOnAck(t *testing.T) {
	meta := NewMetadataCache()
	acks := NewAckManager()
	egress := NewEgress()
	policy := DefaultClusterPolicy()
	d := Delivery{ClientID: "a", ConnectionID: 1, ProtocolVersion: 5, Publish: &packet.PublishPacket{Topic: "t"}}

	go func() {
		// Wait for the PUBLISH to land, then simulate the client's PUBACK.
		pkg := <-egress.V5.Receive()
		pub := pkg.Packet.(*packet.PublishPacket)
		acks.Complete("a", pub.PacketID, Acked, 0)
	}()

	err := DeliverQoS1(context.Background(), meta, acks, egress, policy, d, time.Second, nil)
	if err != nil {
		t.Fatalf("DeliverQoS1: %v", err)
	}
	if acks.Len() != 0 {
		t.Fatalf("waiter not cleaned up, Len() = %d", acks.Len())
	}
}

func TestDeliverQoS1TimesOut(t *testing.T) {
	meta := NewMetadataCache()
	acks := NewAckManager()
	egress := NewEgress()
	policy := DefaultClusterPolicy()
	d := Delivery{ClientID: "a", ConnectionID: 1, ProtocolVersion: 5, Publish: &packet.PublishPacket{Topic: "t"}}

	// Never ack: drain so egress.Send doesn't stall, but no Complete call.
	go func() { <-egress.V5.Receive() }()

	err := DeliverQoS1(context.Background(), meta, acks, egress, policy, d, 10*time.Millisecond, nil)
	if err == nil {
		t.Fatalf("DeliverQoS1 = nil, want timeout error")
	}
	var de *DispatchError
	if !errors.As(err, &de) || de.Kind != AckTimeout {
		t.Fatalf("err = %v, want AckTimeout DispatchError", err)
	}
}

func TestDeliverQoS2FullHandshake(t *testing.T) {
	meta := NewMetadataCache()
	acks := NewAckManager()
	egress := NewEgress()
	policy := DefaultClusterPolicy()
	d := Delivery{ClientID: "a", ConnectionID: 1, ProtocolVersion: 5, Publish: &packet.PublishPacket{Topic: "t"}}

	rel := func(pkid uint16) packet.Packet { return &packet.PubrelPacket{PacketID: pkid} }

	go func() {
		pkg := <-egress.V5.Receive()
		pub := pkg.Packet.(*packet.PublishPacket)
		acks.NotifyPubRec("a", pub.PacketID)

		relPkg := <-egress.V5.Receive()
		if _, ok := relPkg.Packet.(*packet.PubrelPacket); !ok {
			t.Errorf("expected PUBREL, got %T", relPkg.Packet)
		}
		acks.Complete("a", pub.PacketID, Acked, 0)
	}()

	err := DeliverQoS2(context.Background(), meta, acks, egress, policy, d, rel, time.Second, nil)
	if err != nil {
		t.Fatalf("DeliverQoS2: %v", err)
	}
}

func TestDeliverQoS2TimesOutAwaitingRec(t *testing.T) {
	meta := NewMetadataCache()
	acks := NewAckManager()
	egress := NewEgress()
	policy := DefaultClusterPolicy()
	d := Delivery{ClientID: "a", ConnectionID: 1, ProtocolVersion: 5, Publish: &packet.PublishPacket{Topic: "t"}}
	rel := func(pkid uint16) packet.Packet { return &packet.PubrelPacket{PacketID: pkid} }

	go func() { <-egress.V5.Receive() }() // drain PUBLISH, never PUBREC

	err := DeliverQoS2(context.Background(), meta, acks, egress, policy, d, rel, 10*time.Millisecond, nil)
	if err == nil {
		t.Fatalf("DeliverQoS2 = nil, want timeout error")
	}
	var de *DispatchError
	if !errors.As(err, &de) || de.Kind != AckTimeout {
		t.Fatalf("err = %v, want AckTimeout DispatchError", err)
	}
}
