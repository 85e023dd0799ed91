package dispatch

import (
	"encoding/binary"
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const hashStrategyVirtualNodes = 64

// hashRing is a consistent-hash ring over client ids, rebuilt whenever
// the SubscriptionManager's epoch for this group changes. The ring
// itself is hand-rolled (the pack carries no consistent-hash package)
// over github.com/cespare/xxhash/v2, a fast hash already vetted
// elsewhere in the dependency graph.
type hashRing struct {
	sortedHashes []uint64
	owners       map[uint64]string
}

func buildHashRing(subList []SubscriberEntry) *hashRing {
	r := &hashRing{owners: make(map[uint64]string, len(subList)*hashStrategyVirtualNodes)}
	for _, entry := range subList {
		for v := 0; v < hashStrategyVirtualNodes; v++ {
			h := xxhash.Sum64String(entry.ClientID + "#" + strconv.Itoa(v))
			r.owners[h] = entry.ClientID
			r.sortedHashes = append(r.sortedHashes, h)
		}
	}
	sort.Slice(r.sortedHashes, func(i, j int) bool { return r.sortedHashes[i] < r.sortedHashes[j] })
	return r
}

func (r *hashRing) owner(key uint64) (string, bool) {
	if len(r.sortedHashes) == 0 {
		return "", false
	}
	idx := sort.Search(len(r.sortedHashes), func(i int) bool { return r.sortedHashes[i] >= key })
	if idx == len(r.sortedHashes) {
		idx = 0
	}
	return r.owners[r.sortedHashes[idx]], true
}

// hashStrategy picks a subscriber via consistent hash of a stable message
// key, here topic-independent and derived from the message offset (the
// spec leaves the key choice implementation-defined: "topic+pkid or a
// header field"; offset is used since it is already strictly increasing
// and available before a pkid is allocated).
type hashStrategy struct {
	mu    sync.Mutex
	ring  *hashRing
	epoch uint64
	built bool
}

func newHashStrategy() *hashStrategy {
	return &hashStrategy{}
}

func (s *hashStrategy) Name() SharedSubscriptionStrategy { return StrategyHash }

func (s *hashStrategy) Choose(subList []SubscriberEntry, epoch uint64, message Message) (SubscriberEntry, bool) {
	if len(subList) == 0 {
		return SubscriberEntry{}, false
	}

	s.mu.Lock()
	if !s.built || epoch != s.epoch {
		s.ring = buildHashRing(subList)
		s.epoch = epoch
		s.built = true
	}
	ring := s.ring
	s.mu.Unlock()

	var key [8]byte
	binary.BigEndian.PutUint64(key[:], message.Offset)
	clientID, ok := ring.owner(xxhash.Sum64(key[:]))
	if !ok {
		return SubscriberEntry{}, false
	}

	for _, entry := range subList {
		if entry.ClientID == clientID {
			return entry, true
		}
	}
	return SubscriberEntry{}, false
}
