package dispatch

import "sync"

// stickyStrategy binds a subscriber on first use and keeps delivering to
// it until it disappears from sub_list or a reconfiguration event (any
// epoch change) unsticks it, then rebinds to the first available
// subscriber (spec §4.I).
type stickyStrategy struct {
	mu        sync.Mutex
	bound     string
	boundSeen bool
	epoch     uint64
	epochSeen bool
}

func newStickyStrategy() *stickyStrategy {
	return &stickyStrategy{}
}

func (s *stickyStrategy) Name() SharedSubscriptionStrategy { return StrategySticky }

func (s *stickyStrategy) Choose(subList []SubscriberEntry, epoch uint64, _ Message) (SubscriberEntry, bool) {
	if len(subList) == 0 {
		return SubscriberEntry{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reconfigured := s.epochSeen && epoch != s.epoch
	s.epoch = epoch
	s.epochSeen = true

	if s.boundSeen && !reconfigured {
		for _, entry := range subList {
			if entry.ClientID == s.bound {
				return entry, true
			}
		}
	}

	chosen := subList[0]
	s.bound = chosen.ClientID
	s.boundSeen = true
	return chosen, true
}
