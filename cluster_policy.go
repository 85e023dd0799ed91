package dispatch

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// AvailableFlag is a two-valued tag with stable ordinals, {Disable=0,
// Enable=1}, preserved on the wire because the MQTT 5 CONNACK properties
// transmit them as bytes (spec §3, §6, P5).
type AvailableFlag uint8

const (
	Disable AvailableFlag = 0
	Enable  AvailableFlag = 1
)

func (f AvailableFlag) String() string {
	if f == Enable {
		return "Enable"
	}
	return "Disable"
}

// SharedSubscriptionStrategy names a dispatch strategy selectable via the
// config surface (spec §6).
type SharedSubscriptionStrategy string

const (
	StrategyRoundRobin SharedSubscriptionStrategy = "round_robin"
	StrategyRandom     SharedSubscriptionStrategy = "random"
	StrategySticky     SharedSubscriptionStrategy = "sticky"
	StrategyHash       SharedSubscriptionStrategy = "hash"
	StrategyLocal      SharedSubscriptionStrategy = "local"
)

// ClusterPolicy is an immutable snapshot of broker-wide limits (spec
// §3.A). A ClusterPolicy value is never mutated after construction;
// callers may cache a returned snapshot for the duration of a single
// dispatch.
type ClusterPolicy struct {
	SessionExpiryInterval time.Duration
	TopicAliasMax         uint16
	MaxQoS                QoS
	RetainAvailable       AvailableFlag
	WildcardSub           AvailableFlag
	MaxPacketSize         uint32
	SubIDsAvailable       AvailableFlag
	SharedSub             AvailableFlag
	MaxServerKeepAlive    time.Duration
	DefaultServerKeepAlive time.Duration
	ReceiveMax            uint16
	SecretFreeLogin       bool
	MaxMessageExpiry      time.Duration
	ClientPkidPersistent  bool
	SelfProtection        bool

	// Per-listener connection caps.
	MaxConnectionsTCP  uint32
	MaxConnectionsTCPS uint32
	MaxConnectionsWS   uint32
	MaxConnectionsWSS  uint32

	// Egress send-retry budget (spec §4.J, §6).
	SendMaxTryTimes    int
	SendTrySleep       time.Duration
}

// DefaultClusterPolicy returns the defaults listed in spec §3.A.
func DefaultClusterPolicy() ClusterPolicy {
	return ClusterPolicy{
		SessionExpiryInterval:  1800 * time.Second,
		TopicAliasMax:          65535,
		MaxQoS:                 ExactlyOnce,
		RetainAvailable:        Enable,
		WildcardSub:            Enable,
		MaxPacketSize:          10 * 1024 * 1024,
		SubIDsAvailable:        Enable,
		SharedSub:              Enable,
		MaxServerKeepAlive:     3600 * time.Second,
		DefaultServerKeepAlive: 60 * time.Second,
		ReceiveMax:             65535,
		SecretFreeLogin:        false,
		MaxMessageExpiry:       315360000 * time.Second,
		ClientPkidPersistent:   false,
		SelfProtection:         false,
		MaxConnectionsTCP:      1000,
		MaxConnectionsTCPS:     1000,
		MaxConnectionsWS:       1000,
		MaxConnectionsWSS:      1000,
		SendMaxTryTimes:        128,
		SendTrySleep:           100 * time.Millisecond,
	}
}

// clusterPolicyWire is the self-describing on-the-wire representation of
// a ClusterPolicy, keeping field names unchanged per spec §6. It exists
// separately from ClusterPolicy so msgpack field tags don't leak into the
// in-memory type, and so durations round-trip as plain integers rather
// than msgpack's opaque time.Duration encoding.
type clusterPolicyWire struct {
	SessionExpiryInterval  uint32        `msgpack:"session_expiry_interval"`
	TopicAliasMax          uint16        `msgpack:"topic_alias_max"`
	MaxQoS                 uint8         `msgpack:"max_qos"`
	RetainAvailable        AvailableFlag `msgpack:"retain_available"`
	WildcardSub            AvailableFlag `msgpack:"wildcard_sub"`
	MaxPacketSize          uint32        `msgpack:"max_packet_size"`
	SubIDsAvailable        AvailableFlag `msgpack:"sub_ids_available"`
	SharedSub              AvailableFlag `msgpack:"shared_sub"`
	MaxServerKeepAlive     uint32        `msgpack:"max_server_keep_alive"`
	DefaultServerKeepAlive uint32        `msgpack:"default_server_keep_alive"`
	ReceiveMax             uint16        `msgpack:"receive_max"`
	SecretFreeLogin        bool          `msgpack:"secret_free_login"`
	MaxMessageExpiry       uint32        `msgpack:"max_message_expiry"`
	ClientPkidPersistent   bool          `msgpack:"client_pkid_persistent"`
	SelfProtection         bool          `msgpack:"self_protection"`
	MaxConnectionsTCP      uint32        `msgpack:"max_connections_tcp"`
	MaxConnectionsTCPS     uint32        `msgpack:"max_connections_tcps"`
	MaxConnectionsWS       uint32        `msgpack:"max_connections_ws"`
	MaxConnectionsWSS      uint32        `msgpack:"max_connections_wss"`
	SendMaxTryTimes        int           `msgpack:"send_max_try_mut_times"`
	SendTrySleepMs         uint32        `msgpack:"send_try_mut_sleep_time_ms"`
}

// Encode serializes the policy to a stable self-describing byte stream
// (spec §4.A, §6), preserving AvailableFlag ordinals.
func (p ClusterPolicy) Encode() ([]byte, error) {
	w := clusterPolicyWire{
		SessionExpiryInterval:  uint32(p.SessionExpiryInterval / time.Second),
		TopicAliasMax:          p.TopicAliasMax,
		MaxQoS:                 uint8(p.MaxQoS),
		RetainAvailable:        p.RetainAvailable,
		WildcardSub:            p.WildcardSub,
		MaxPacketSize:          p.MaxPacketSize,
		SubIDsAvailable:        p.SubIDsAvailable,
		SharedSub:              p.SharedSub,
		MaxServerKeepAlive:     uint32(p.MaxServerKeepAlive / time.Second),
		DefaultServerKeepAlive: uint32(p.DefaultServerKeepAlive / time.Second),
		ReceiveMax:             p.ReceiveMax,
		SecretFreeLogin:        p.SecretFreeLogin,
		MaxMessageExpiry:       uint32(p.MaxMessageExpiry / time.Second),
		ClientPkidPersistent:   p.ClientPkidPersistent,
		SelfProtection:         p.SelfProtection,
		MaxConnectionsTCP:      p.MaxConnectionsTCP,
		MaxConnectionsTCPS:     p.MaxConnectionsTCPS,
		MaxConnectionsWS:       p.MaxConnectionsWS,
		MaxConnectionsWSS:      p.MaxConnectionsWSS,
		SendMaxTryTimes:        p.SendMaxTryTimes,
		SendTrySleepMs:         uint32(p.SendTrySleep / time.Millisecond),
	}
	data, err := msgpack.Marshal(&w)
	if err != nil {
		return nil, fmt.Errorf("cluster policy: encode: %w", err)
	}
	return data, nil
}

// DecodeClusterPolicy is the inverse of Encode.
func DecodeClusterPolicy(data []byte) (ClusterPolicy, error) {
	var w clusterPolicyWire
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return ClusterPolicy{}, fmt.Errorf("cluster policy: decode: %w", err)
	}
	return ClusterPolicy{
		SessionExpiryInterval:  time.Duration(w.SessionExpiryInterval) * time.Second,
		TopicAliasMax:          w.TopicAliasMax,
		MaxQoS:                 QoS(w.MaxQoS),
		RetainAvailable:        w.RetainAvailable,
		WildcardSub:            w.WildcardSub,
		MaxPacketSize:          w.MaxPacketSize,
		SubIDsAvailable:        w.SubIDsAvailable,
		SharedSub:              w.SharedSub,
		MaxServerKeepAlive:     time.Duration(w.MaxServerKeepAlive) * time.Second,
		DefaultServerKeepAlive: time.Duration(w.DefaultServerKeepAlive) * time.Second,
		ReceiveMax:             w.ReceiveMax,
		SecretFreeLogin:        w.SecretFreeLogin,
		MaxMessageExpiry:       time.Duration(w.MaxMessageExpiry) * time.Second,
		ClientPkidPersistent:   w.ClientPkidPersistent,
		SelfProtection:         w.SelfProtection,
		MaxConnectionsTCP:      w.MaxConnectionsTCP,
		MaxConnectionsTCPS:     w.MaxConnectionsTCPS,
		MaxConnectionsWS:       w.MaxConnectionsWS,
		MaxConnectionsWSS:      w.MaxConnectionsWSS,
		SendMaxTryTimes:        w.SendMaxTryTimes,
		SendTrySleep:           time.Duration(w.SendTrySleepMs) * time.Millisecond,
	}, nil
}
