package dispatch

import "sync"

// PacketIDAllocator issues and retires 16-bit packet identifiers for a
// single client, wrapping 1..=65535 (spec §4.B). Zero is never returned:
// MQTT reserves packet identifier 0.
//
// The strategy mirrors the teacher's nextID: a linear probe starting at
// last+1 with wraparound, skipping any id currently live. The teacher
// scoped this state per *Client; here it is scoped per client_id and held
// by the MetadataCache, since a dispatch core serves many clients at once.
type PacketIDAllocator struct {
	mu   sync.Mutex
	last uint16
	live map[uint16]struct{}
}

// NewPacketIDAllocator returns an allocator with no ids live.
func NewPacketIDAllocator() *PacketIDAllocator {
	return &PacketIDAllocator{
		live: make(map[uint16]struct{}),
	}
}

// Acquire returns a packet id in 1..=65535 not currently live, marking it
// live. It returns ErrExhausted if all 65535 ids are already live.
func (a *PacketIDAllocator) Acquire() (uint16, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for range 65535 {
		a.last++
		if a.last == 0 {
			a.last = 1
		}
		if _, used := a.live[a.last]; !used {
			a.live[a.last] = struct{}{}
			return a.last, nil
		}
	}
	return 0, ErrExhausted
}

// Release removes pkid from the live set. It is idempotent: releasing an
// id that isn't live is a no-op.
func (a *PacketIDAllocator) Release(pkid uint16) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.live, pkid)
}

// Reset discards all live state, per spec §4.B's client_pkid_persistent=false
// default: state is dropped on session termination unless the cluster
// policy opts into persisting it across resumption.
func (a *PacketIDAllocator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.last = 0
	a.live = make(map[uint16]struct{})
}

// Live reports whether pkid is currently allocated, for tests and
// diagnostics.
func (a *PacketIDAllocator) Live(pkid uint16) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.live[pkid]
	return ok
}
