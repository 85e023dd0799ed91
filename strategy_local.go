package dispatch

// nodeIDShift is the bit offset at which a connection id encodes its
// owning node id, matching the convention used elsewhere in the cluster
// (the top 16 bits identify the node, the rest identify the local
// connection slot). localStrategy is the only component that inspects
// this encoding.
const nodeIDShift = 48

func nodeOf(connectionID uint64) uint64 {
	return connectionID >> nodeIDShift
}

// localStrategy prefers a subscriber whose connection lives on this
// node, falling back to round-robin when none qualify (spec §4.I).
type localStrategy struct {
	meta       *MetadataCache
	selfNodeID uint64
	fallback   *roundRobinStrategy
}

func newLocalStrategy(meta *MetadataCache, selfNodeID uint64) *localStrategy {
	return &localStrategy{
		meta:       meta,
		selfNodeID: selfNodeID,
		fallback:   newRoundRobinStrategy(),
	}
}

func (s *localStrategy) Name() SharedSubscriptionStrategy { return StrategyLocal }

func (s *localStrategy) Choose(subList []SubscriberEntry, epoch uint64, message Message) (SubscriberEntry, bool) {
	if len(subList) == 0 {
		return SubscriberEntry{}, false
	}

	for _, entry := range subList {
		connID, ok := s.meta.ConnectID(entry.ClientID)
		if ok && nodeOf(connID) == s.selfNodeID {
			return entry, true
		}
	}
	return s.fallback.Choose(subList, epoch, message)
}
