package dispatch

import (
	"context"
	"testing"
	"time"
)

func TestSupervisorSpawnsPusherForNewGroup(t *testing.T) {
	subs := NewSubscriptionManager()
	meta := NewMetadataCache()
	acks := NewAckManager()
	logs := NewMemoryLogReader()
	egress := NewEgress()

	key := GroupKey{Group: "g1", TopicID: "t1"}
	subs.AddSubscriber(key, "t", SubscriberEntry{ClientID: "a", ProtocolVersion: 5})
	meta.SetConnection("a", 1)

	sup := NewSupervisor(SupervisorConfig{
		Policy: DefaultClusterPolicy(), Subs: subs, Metadata: meta, Acks: acks, Logs: logs, Egress: egress,
		ReconcileInterval: 20 * time.Millisecond, AckSweepInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go sup.Run(ctx)
	defer cancel()

	deadline := time.After(2 * time.Second)
	for sup.Len() != 1 {
		select {
		case <-deadline:
			t.Fatalf("supervisor never spawned a pusher for the new group")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSupervisorTearsDownEmptyGroup(t *testing.T) {
	subs := NewSubscriptionManager()
	meta := NewMetadataCache()
	acks := NewAckManager()
	logs := NewMemoryLogReader()
	egress := NewEgress()

	key := GroupKey{Group: "g1", TopicID: "t1"}
	subs.AddSubscriber(key, "t", SubscriberEntry{ClientID: "a", ProtocolVersion: 5})
	meta.SetConnection("a", 1)

	sup := NewSupervisor(SupervisorConfig{
		Policy: DefaultClusterPolicy(), Subs: subs, Metadata: meta, Acks: acks, Logs: logs, Egress: egress,
		ReconcileInterval: 20 * time.Millisecond, AckSweepInterval: time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	deadline := time.After(2 * time.Second)
	for sup.Len() != 1 {
		select {
		case <-deadline:
			t.Fatalf("supervisor never spawned pusher")
		case <-time.After(5 * time.Millisecond):
		}
	}

	subs.RemoveSubscriber(key, "a")

	deadline = time.After(2 * time.Second)
	for sup.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("supervisor never tore down pusher for emptied group")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, ok := subs.Snapshot(key); ok {
		t.Fatalf("emptied group should be removed from subscription manager after teardown")
	}
}

func TestSupervisorSweepsStaleAckWaiters(t *testing.T) {
	subs := NewSubscriptionManager()
	meta := NewMetadataCache()
	acks := NewAckManager()
	logs := NewMemoryLogReader()
	egress := NewEgress()

	waiter, err := acks.Register("a", 1, ExpectPubAck)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	sup := NewSupervisor(SupervisorConfig{
		Policy: DefaultClusterPolicy(), Subs: subs, Metadata: meta, Acks: acks, Logs: logs, Egress: egress,
		ReconcileInterval: time.Hour, AckSweepInterval: 10 * time.Millisecond, AckTimeout: 5 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)

	select {
	case <-waiter.Done():
		if waiter.Outcome() != TimedOut {
			t.Fatalf("Outcome = %v, want TimedOut", waiter.Outcome())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("ack waiter was never swept")
	}
}
