package dispatch

import "math/rand/v2"

// randomStrategy chooses uniformly over the current sub_list (spec
// §4.I). It carries no persistent state; each choice is independent.
type randomStrategy struct{}

func newRandomStrategy() *randomStrategy {
	return &randomStrategy{}
}

func (s *randomStrategy) Name() SharedSubscriptionStrategy { return StrategyRandom }

func (s *randomStrategy) Choose(subList []SubscriberEntry, _ uint64, _ Message) (SubscriberEntry, bool) {
	if len(subList) == 0 {
		return SubscriberEntry{}, false
	}
	return subList[rand.IntN(len(subList))], true
}
