package dispatch

import "sync"

// SubscriberEntry is one member of a ShareGroup (spec §3).
type SubscriberEntry struct {
	ClientID               string
	QoSRequest             QoS
	SubscriptionIdentifier *int
	ProtocolVersion        uint8
	IsContainRewriteFlag   bool
}

// GroupKey identifies a ShareGroup by (group_name, topic_id).
type GroupKey struct {
	Group   string
	TopicID string
}

// ShareGroup is a group of shared subscribers for one (group, topic)
// pair (spec §3). sub_list order is stable under add/remove except for
// explicit compaction; Epoch increments on any mutation so a pusher can
// detect a reconfiguration event (used by the sticky strategy to unstick
// a binding).
type ShareGroup struct {
	TopicName string
	SubList   []SubscriberEntry
	Epoch     uint64
}

// Empty reports whether the group has no subscribers and is therefore
// eligible for teardown.
func (g *ShareGroup) Empty() bool {
	return len(g.SubList) == 0
}

// SubscriptionManager exposes a concurrent mapping from (group, topic) to
// ShareGroup (spec §4.E). Updates are serialized per key by taking the
// manager lock for the whole read-modify-write; readers see a consistent
// snapshot of SubList per call.
type SubscriptionManager struct {
	mu     sync.RWMutex
	groups map[GroupKey]*ShareGroup
}

// NewSubscriptionManager returns an empty SubscriptionManager.
func NewSubscriptionManager() *SubscriptionManager {
	return &SubscriptionManager{
		groups: make(map[GroupKey]*ShareGroup),
	}
}

// Snapshot returns a copy of the ShareGroup for key, and whether it
// exists. The returned SubList is a fresh slice safe to hold across
// suspension points (spec §9 "Dynamic subscription updates").
func (m *SubscriptionManager) Snapshot(key GroupKey) (ShareGroup, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.groups[key]
	if !ok {
		return ShareGroup{}, false
	}
	out := ShareGroup{TopicName: g.TopicName, Epoch: g.Epoch}
	out.SubList = append(out.SubList, g.SubList...)
	return out, true
}

// Keys returns every (group, topic) key currently tracked, for the
// supervisor's reconciliation scan (spec §4.G).
func (m *SubscriptionManager) Keys() []GroupKey {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]GroupKey, 0, len(m.groups))
	for k := range m.groups {
		keys = append(keys, k)
	}
	return keys
}

// AddSubscriber adds entry to the group at key, creating the group if
// absent. If the client is already a member, its entry is replaced in
// place (keeping its position) and Epoch is bumped.
func (m *SubscriptionManager) AddSubscriber(key GroupKey, topicName string, entry SubscriberEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[key]
	if !ok {
		g = &ShareGroup{TopicName: topicName}
		m.groups[key] = g
	}
	for i, existing := range g.SubList {
		if existing.ClientID == entry.ClientID {
			g.SubList[i] = entry
			g.Epoch++
			return
		}
	}
	g.SubList = append(g.SubList, entry)
	g.Epoch++
}

// RemoveSubscriber removes clientID from the group at key. If the group
// becomes empty it is left in place (with an empty SubList) for the
// supervisor to observe and tear down the next tick; a fully vanished
// key (RemoveGroup) is reserved for explicit group deletion.
func (m *SubscriptionManager) RemoveSubscriber(key GroupKey, clientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[key]
	if !ok {
		return
	}
	for i, existing := range g.SubList {
		if existing.ClientID == clientID {
			g.SubList = append(g.SubList[:i], g.SubList[i+1:]...)
			g.Epoch++
			return
		}
	}
}

// RemoveGroup deletes the group at key entirely, used once the
// supervisor has torn down its pusher.
func (m *SubscriptionManager) RemoveGroup(key GroupKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, key)
}
