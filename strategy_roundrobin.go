package dispatch

import "sync"

// roundRobinStrategy holds a monotonic cursor that persists across
// record batches for the lifetime of its PusherHandle, resolving the
// spec's Open Question in favor of per-pusher persistence (see
// SPEC_FULL.md §4): original_source declares cursor_point inside the
// spawned task, before its loop, not inside the per-batch read.
type roundRobinStrategy struct {
	mu     sync.Mutex
	cursor int
}

func newRoundRobinStrategy() *roundRobinStrategy {
	return &roundRobinStrategy{}
}

func (s *roundRobinStrategy) Name() SharedSubscriptionStrategy { return StrategyRoundRobin }

func (s *roundRobinStrategy) Choose(subList []SubscriberEntry, _ uint64, _ Message) (SubscriberEntry, bool) {
	if len(subList) == 0 {
		return SubscriberEntry{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.cursor % len(subList)
	s.cursor++
	return subList[idx], true
}
