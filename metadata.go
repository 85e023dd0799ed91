package dispatch

import "sync"

// MetadataCache provides an observably up-to-date mapping from client-id
// to live connection id, plus the per-client packet-id allocator (spec
// §4.D). It must be safe for concurrent readers with occasional writers;
// staleness is tolerated for ConnectID — a stale miss causes the pusher
// to skip a message for that subscriber (spec §4.G).
type MetadataCache struct {
	mu          sync.RWMutex
	connections map[string]uint64
	pkids       map[string]*PacketIDAllocator
}

// NewMetadataCache returns an empty MetadataCache.
func NewMetadataCache() *MetadataCache {
	return &MetadataCache{
		connections: make(map[string]uint64),
		pkids:       make(map[string]*PacketIDAllocator),
	}
}

// SetConnection records clientID as connected with connectionID. Called
// by the (out-of-scope) CONNECT handshake handler.
func (m *MetadataCache) SetConnection(clientID string, connectionID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[clientID] = connectionID
}

// ClearConnection removes clientID's live connection, and optionally its
// packet-id state per ClusterPolicy.ClientPkidPersistent.
func (m *MetadataCache) ClearConnection(clientID string, persistPkids bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, clientID)
	if !persistPkids {
		delete(m.pkids, clientID)
	}
}

// ConnectID returns the live connection id for clientID, and whether the
// client is currently connected.
func (m *MetadataCache) ConnectID(clientID string) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.connections[clientID]
	return id, ok
}

// allocator returns (creating if absent) the PacketIDAllocator for
// clientID.
func (m *MetadataCache) allocator(clientID string) *PacketIDAllocator {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.pkids[clientID]
	if !ok {
		a = NewPacketIDAllocator()
		m.pkids[clientID] = a
	}
	return a
}

// NextPkid is a thin wrapper over the packet-ID allocator (spec §4.D).
func (m *MetadataCache) NextPkid(clientID string) (uint16, error) {
	return m.allocator(clientID).Acquire()
}

// ForgetPkid releases pkid from clientID's live set.
func (m *MetadataCache) ForgetPkid(clientID string, pkid uint16) {
	m.allocator(clientID).Release(pkid)
}
