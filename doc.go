// Package dispatch implements the shared-subscription dispatch core of an
// MQTT 5 broker: the subsystem that turns stored messages on a topic into
// correctly-delivered PUBLISH packets for a dynamic set of subscribing
// clients, with QoS 0/1/2 semantics and MQTT 5 shared-subscription
// fan-out.
//
// # Scope
//
// This package owns:
//
//   - the shared-subscription leader/pusher lifecycle (Supervisor, Pusher)
//   - the QoS 0/1/2 delivery state machines (DeliverQoS0/1/2)
//   - the acknowledgement manager rendezvousing delivery with inbound
//     PUBACK/PUBREC/PUBCOMP (AckManager)
//   - the subscription manager observed by pushers (SubscriptionManager)
//   - the per-client packet-identifier allocator (PacketIDAllocator)
//   - the cluster-policy view that clamps QoS and feature availability
//     (ClusterPolicy)
//
// Deliberately out of scope, treated as external collaborators with
// named interfaces: the wire codec for MQTT packets, TCP/TLS/WebSocket
// listeners, the CONNECT/authentication handshake, the persistent
// topic-log storage engine (only the LogReader interface and an
// in-memory fake live here; see badgerlog for a durable implementation),
// and the exclusive (non-shared) subscription path.
//
// # Quick start
//
// Wire the components together and run a supervisor:
//
//	policy := dispatch.DefaultClusterPolicy()
//	subs := dispatch.NewSubscriptionManager()
//	meta := dispatch.NewMetadataCache()
//	acks := dispatch.NewAckManager()
//	logs := dispatch.NewMemoryLogReader()
//	egress := dispatch.NewEgress()
//
//	sup := dispatch.NewSupervisor(dispatch.SupervisorConfig{
//	    Policy:       policy,
//	    Subs:         subs,
//	    Metadata:     meta,
//	    Acks:         acks,
//	    Logs:         logs,
//	    Egress:       egress,
//	    StrategyName: "round_robin",
//	})
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	go sup.Run(ctx)
//
// # Error handling
//
// Errors surfaced by this package are either one of the sentinel errors
// in errors.go (ErrDuplicateWaiter, ErrExhausted, ErrGroupVanished) or a
// *DispatchError carrying a Kind that tells the caller how to react
// (§7 of the design notes carried in SPEC_FULL.md): back off and retry,
// drop and advance, skip without escalating, or terminate the pusher.
// Use errors.Is(err, dispatch.Fatal) (or any other Kind) to classify.
//
// # Configuration
//
// LoadConfig reads a broker.yaml into a ClusterPolicy and a
// DispatchConfig using github.com/goccy/go-yaml.
package dispatch
