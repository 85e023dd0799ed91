package dispatch

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// DispatchConfig carries the dispatch-specific config surface (spec §6
// "Config surface recognized options"), separate from ClusterPolicy
// because it governs this package's own behavior rather than broker-wide
// limits advertised to clients.
type DispatchConfig struct {
	SharedSubscriptionStrategy SharedSubscriptionStrategy
	AckSweepInterval           time.Duration
	AckTimeout                 time.Duration
	ReconcileInterval          time.Duration
}

// DefaultDispatchConfig returns the defaults used when broker.yaml omits
// a field.
func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		SharedSubscriptionStrategy: StrategyRoundRobin,
		AckSweepInterval:           1 * time.Second,
		AckTimeout:                 30 * time.Second,
		ReconcileInterval:          1 * time.Second,
	}
}

// brokerYAML mirrors the on-disk shape of broker.yaml. Field names follow
// the dotted config keys named in spec §6, flattened into a nested
// struct the way goccy/go-yaml expects.
type brokerYAML struct {
	Subscribe struct {
		SharedSubscriptionStrategy string `yaml:"shared_subscription_strategy"`
	} `yaml:"subscribe"`
	Cluster struct {
		SessionExpiryInterval  uint32 `yaml:"session_expiry_interval"`
		TopicAliasMax          uint16 `yaml:"topic_alias_max"`
		MaxQoS                 uint8  `yaml:"max_qos"`
		RetainAvailable        uint8  `yaml:"retain_available"`
		WildcardSub            uint8  `yaml:"wildcard_sub"`
		MaxPacketSize          uint32 `yaml:"max_packet_size"`
		SubIDsAvailable        uint8  `yaml:"sub_ids_available"`
		SharedSub              uint8  `yaml:"shared_sub"`
		MaxServerKeepAlive     uint32 `yaml:"max_server_keep_alive"`
		DefaultServerKeepAlive uint32 `yaml:"default_server_keep_alive"`
		ReceiveMax             uint16 `yaml:"receive_max"`
		SecretFreeLogin        bool   `yaml:"secret_free_login"`
		MaxMessageExpiry       uint32 `yaml:"max_message_expiry"`
		ClientPkidPersistent   bool   `yaml:"client_pkid_persistent"`
		SelfProtection         bool   `yaml:"self_protection"`
		SendMaxTryTimes        int    `yaml:"send_max_try_mut_times"`
		SendTrySleepMs         uint32 `yaml:"send_try_mut_sleep_time_ms"`
	} `yaml:"cluster"`
}

// LoadConfig reads path as YAML and returns the ClusterPolicy and
// DispatchConfig it describes, defaulting any field the file omits.
// Unset numeric cluster fields and an unset strategy fall back to
// DefaultClusterPolicy/DefaultDispatchConfig, matching the teacher's
// functional-options convention of "explicit override, otherwise
// sensible default" applied to a file instead of Option values. A
// numeric field written as 0 counts as unset, so the file cannot set
// max_qos to 0 or an AvailableFlag field to Disable. The boolean fields
// are always taken from the file (false when omitted).
func LoadConfig(path string) (ClusterPolicy, DispatchConfig, error) {
	policy := DefaultClusterPolicy()
	cfg := DefaultDispatchConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return ClusterPolicy{}, DispatchConfig{}, fmt.Errorf("load config: %w", err)
	}

	var raw brokerYAML
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return ClusterPolicy{}, DispatchConfig{}, fmt.Errorf("load config: parse %s: %w", path, err)
	}

	if s := raw.Subscribe.SharedSubscriptionStrategy; s != "" {
		strategy := SharedSubscriptionStrategy(s)
		switch strategy {
		case StrategyRoundRobin, StrategyRandom, StrategySticky, StrategyHash, StrategyLocal:
			cfg.SharedSubscriptionStrategy = strategy
		default:
			return ClusterPolicy{}, DispatchConfig{}, fmt.Errorf("load config: unknown shared_subscription_strategy %q", s)
		}
	}

	c := raw.Cluster
	if c.SessionExpiryInterval != 0 {
		policy.SessionExpiryInterval = time.Duration(c.SessionExpiryInterval) * time.Second
	}
	if c.TopicAliasMax != 0 {
		policy.TopicAliasMax = c.TopicAliasMax
	}
	if c.MaxQoS != 0 {
		policy.MaxQoS = QoS(c.MaxQoS)
	}
	if c.RetainAvailable != 0 {
		policy.RetainAvailable = AvailableFlag(c.RetainAvailable)
	}
	if c.WildcardSub != 0 {
		policy.WildcardSub = AvailableFlag(c.WildcardSub)
	}
	if c.MaxPacketSize != 0 {
		policy.MaxPacketSize = c.MaxPacketSize
	}
	if c.SubIDsAvailable != 0 {
		policy.SubIDsAvailable = AvailableFlag(c.SubIDsAvailable)
	}
	if c.SharedSub != 0 {
		policy.SharedSub = AvailableFlag(c.SharedSub)
	}
	if c.MaxServerKeepAlive != 0 {
		policy.MaxServerKeepAlive = time.Duration(c.MaxServerKeepAlive) * time.Second
	}
	if c.DefaultServerKeepAlive != 0 {
		policy.DefaultServerKeepAlive = time.Duration(c.DefaultServerKeepAlive) * time.Second
	}
	if c.ReceiveMax != 0 {
		policy.ReceiveMax = c.ReceiveMax
	}
	policy.SecretFreeLogin = c.SecretFreeLogin
	if c.MaxMessageExpiry != 0 {
		policy.MaxMessageExpiry = time.Duration(c.MaxMessageExpiry) * time.Second
	}
	policy.ClientPkidPersistent = c.ClientPkidPersistent
	policy.SelfProtection = c.SelfProtection
	if c.SendMaxTryTimes != 0 {
		policy.SendMaxTryTimes = c.SendMaxTryTimes
	}
	if c.SendTrySleepMs != 0 {
		policy.SendTrySleep = time.Duration(c.SendTrySleepMs) * time.Millisecond
	}

	return policy, cfg, nil
}
