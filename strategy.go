package dispatch

// Strategy selects one subscriber per message for a shared subscription
// (spec §4.I). Implementations hold their own per-(group,topic) state;
// the pusher calls Choose once per record.
type Strategy interface {
	// Choose returns the subscriber to deliver message to given the
	// current sub_list and its epoch (bumped by the SubscriptionManager
	// on any membership change, used by sticky/hash to detect a
	// reconfiguration event), or ok=false if sub_list is empty.
	Choose(subList []SubscriberEntry, epoch uint64, message Message) (SubscriberEntry, bool)

	// Name identifies the strategy for logging and config matching.
	Name() SharedSubscriptionStrategy
}

// NewStrategy constructs the named strategy with fresh state, for use by
// the supervisor when it spawns a PusherHandle (spec §4.G step 1).
func NewStrategy(name SharedSubscriptionStrategy, meta *MetadataCache, selfNodeID uint64) Strategy {
	switch name {
	case StrategyRandom:
		return newRandomStrategy()
	case StrategySticky:
		return newStickyStrategy()
	case StrategyHash:
		return newHashStrategy()
	case StrategyLocal:
		return newLocalStrategy(meta, selfNodeID)
	default:
		return newRoundRobinStrategy()
	}
}
