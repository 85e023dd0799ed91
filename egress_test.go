package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mqttcore/dispatch/internal/packet"
)

func testPolicyFastRetry() ClusterPolicy {
	p := DefaultClusterPolicy()
	p.SendMaxTryTimes = 3
	p.SendTrySleep = time.Millisecond
	return p
}

func TestEgressSendDeliversToCorrectSink(t *testing.T) {
	e := NewEgress()
	policy := testPolicyFastRetry()
	pkg := ResponsePackage{ConnectionID: 1, Packet: &packet.PubackPacket{PacketID: 7}}

	if err := e.Send(context.Background(), policy, 5, pkg, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-e.V5.Receive():
		if got.ConnectionID != 1 {
			t.Fatalf("got ConnectionID %d, want 1", got.ConnectionID)
		}
	default:
		t.Fatalf("nothing delivered to V5 sink")
	}

	select {
	case <-e.V3.Receive():
		t.Fatalf("unexpected delivery to V3 sink")
	default:
	}
}

func TestEgressSendRetriesOnFullQueueThenSucceeds(t *testing.T) {
	e := &Egress{V5: NewSink(1)}
	policy := testPolicyFastRetry()
	// Space the 3 attempts 20ms apart so the budget outlasts the 5ms
	// drain below.
	policy.SendTrySleep = 20 * time.Millisecond

	// Fill the sink so the first Send attempt finds it full.
	e.V5.ch <- ResponsePackage{}

	done := make(chan error, 1)
	go func() {
		done <- e.Send(context.Background(), policy, 5, ResponsePackage{ConnectionID: 2}, nil)
	}()

	// Drain the blocking entry shortly after, freeing a slot for the retry.
	time.Sleep(5 * time.Millisecond)
	<-e.V5.Receive()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Send did not return after queue drained")
	}
}

func TestEgressSendOnClosedSinkIsTerminal(t *testing.T) {
	e := NewEgress()
	e.V5.Close()
	policy := testPolicyFastRetry()

	err := e.Send(context.Background(), policy, 5, ResponsePackage{}, nil)
	if !errors.Is(err, ErrEgressClosed) {
		t.Fatalf("Send on closed sink = %v, want ErrEgressClosed", err)
	}
}

func TestEgressSendExhaustsRetryBudget(t *testing.T) {
	e := &Egress{V5: NewSink(0)} // unbuffered, nothing ever drains it
	policy := testPolicyFastRetry()

	err := e.Send(context.Background(), policy, 5, ResponsePackage{}, nil)
	if err == nil {
		t.Fatalf("Send on permanently full sink returned nil error")
	}
	if errors.Is(err, ErrEgressClosed) {
		t.Fatalf("exhausted retry should not be ErrEgressClosed")
	}
	var de *DispatchError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DispatchError", err)
	}
	if de.Kind != Exhausted {
		t.Fatalf("Kind = %v, want Exhausted", de.Kind)
	}
}
