package dispatch

import (
	"errors"
	"fmt"

	"github.com/mqttcore/dispatch/internal/packet"
)

// Sentinel outcomes for the ack rendezvous (spec §4.C, §7).
var (
	// ErrDuplicateWaiter is returned by AckManager.Register when a waiter
	// already exists for the (client, pkid) pair.
	ErrDuplicateWaiter = errors.New("ack manager: duplicate waiter")

	// ErrExhausted is returned by the packet-ID allocator when every id in
	// 1..=65535 is currently live for a client.
	ErrExhausted = errors.New("packet-id allocator: exhausted")

	// ErrGroupVanished names a pusher's ShareGroup disappearing from the
	// subscription manager between ticks. Pusher.Run exits on that
	// condition and only logs it; no function in this package returns
	// this error.
	ErrGroupVanished = errors.New("share group vanished")
)

// Kind classifies a DispatchError per spec §7.
type Kind uint8

const (
	// TransientIO covers log-read failures and a full egress queue; back
	// off and retry up to the configured budget.
	TransientIO Kind = iota
	// DecodeError covers a record that failed to decode to a Message; the
	// record is dropped and the cursor advances.
	DecodeError
	// ClientGone covers a metadata-cache miss or a closed egress queue;
	// never escalated, handled per dispatch strategy.
	ClientGone
	// AckTimeout covers a waiter that expired before its ack arrived.
	AckTimeout
	// Exhausted covers pkid-pool exhaustion and an egress send that used
	// up its retry budget. The pusher logs it and moves on to the next
	// record; it does not wait for a packet id to free.
	Exhausted
	// Fatal covers a vanished subscription or an asserted stop signal,
	// on which the pusher exits. DeliverQoS1/DeliverQoS2 also return it
	// when a waiter is already registered for the packet id; the pusher
	// logs that case and moves on to the next record.
	Fatal
)

func (k Kind) String() string {
	switch k {
	case TransientIO:
		return "TransientIO"
	case DecodeError:
		return "DecodeError"
	case ClientGone:
		return "ClientGone"
	case AckTimeout:
		return "AckTimeout"
	case Exhausted:
		return "Exhausted"
	case Fatal:
		return "Fatal"
	default:
		return "Unknown"
	}
}

// Error makes Kind usable as an errors.Is target.
func (k Kind) Error() string {
	return k.String()
}

// DispatchError is an error surfaced by the dispatch core, tagged with the
// Kind that determines how a pusher should react to it (spec §7). It mirrors
// the teacher's MqttError: a typed wrapper around an optional parent error,
// exposing Unwrap/Is for errors.Is/errors.As use.
type DispatchError struct {
	Kind   Kind
	Detail string
	Parent error
}

func (e *DispatchError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("dispatch: %s: %s", e.Kind, e.Detail)
	}
	if e.Parent != nil {
		return fmt.Sprintf("dispatch: %s: %s", e.Kind, e.Parent.Error())
	}
	return fmt.Sprintf("dispatch: %s", e.Kind)
}

func (e *DispatchError) Unwrap() error {
	return e.Parent
}

// Is allows errors.Is(err, dispatch.Fatal) (or any other Kind value) to
// match a DispatchError carrying that Kind.
func (e *DispatchError) Is(target error) bool {
	if k, ok := target.(Kind); ok {
		return e.Kind == k
	}
	return false
}

// UnauthorizedReject builds the DISCONNECT contract for a caller rejecting
// an unauthenticated operation other than CONNECT, per spec §6 and
// original_source's Mqtt5Service.un_login_err: reason code NotAuthorized
// (0x87). The CONNECT/auth handshake itself remains out of scope; this
// helper only shapes the packet a caller outside this package would send.
func UnauthorizedReject() *packet.DisconnectPacket {
	return &packet.DisconnectPacket{ReasonCode: ReasonCodeNotAuthorized}
}
