package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SupervisorConfig bundles the collaborators the supervisor hands to
// every pusher it spawns (spec §4.G).
type SupervisorConfig struct {
	Policy            ClusterPolicy
	Subs              *SubscriptionManager
	Metadata          *MetadataCache
	Acks              *AckManager
	Logs              LogReader
	Egress            *Egress
	StrategyName      SharedSubscriptionStrategy
	SelfNodeID        uint64
	ReconcileInterval time.Duration
	AckSweepInterval  time.Duration
	AckTimeout        time.Duration
	Logger            *slog.Logger
}

type supervisedPusher struct {
	pusher *Pusher
	cancel context.CancelFunc
}

// Supervisor runs the single reconciliation loop of spec §4.G: one
// pusher task per (group, topic), started and stopped as
// SubscriptionManager's membership changes.
type Supervisor struct {
	cfg      SupervisorConfig
	mu       sync.Mutex
	handles  map[GroupKey]*supervisedPusher
	topicIDs map[GroupKey]string
	logger   *slog.Logger
}

// NewSupervisor constructs a Supervisor; it must be started with Run.
func NewSupervisor(cfg SupervisorConfig) *Supervisor {
	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = 1 * time.Second
	}
	if cfg.AckSweepInterval == 0 {
		cfg.AckSweepInterval = 1 * time.Second
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = 30 * time.Second
	}
	if cfg.StrategyName == "" {
		cfg.StrategyName = StrategyRoundRobin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{
		cfg:      cfg,
		handles:  make(map[GroupKey]*supervisedPusher),
		topicIDs: make(map[GroupKey]string),
		logger:   logger,
	}
}

// RegisterTopic records the human-readable topic name for a (group,
// topicID) pair so a spawned pusher knows what to put in PUBLISH
// packets. The subscription manager only tracks topic names per
// ShareGroup, but group keys are looked up by topicID.
func (s *Supervisor) RegisterTopic(key GroupKey, topicName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topicIDs[key] = topicName
}

// Run executes the reconciliation loop at the configured interval until
// ctx is cancelled (spec §4.G runs at 1 Hz by default).
func (s *Supervisor) Run(ctx context.Context) {
	reconcile := time.NewTicker(s.cfg.ReconcileInterval)
	defer reconcile.Stop()
	sweep := time.NewTicker(s.cfg.AckSweepInterval)
	defer sweep.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			return
		case <-reconcile.C:
			s.reconcile(ctx)
		case <-sweep.C:
			s.cfg.Acks.Sweep(time.Now(), s.cfg.AckTimeout)
		}
	}
}

func (s *Supervisor) reconcile(ctx context.Context) {
	live := s.cfg.Subs.Keys()
	liveSet := make(map[GroupKey]struct{}, len(live))
	for _, key := range live {
		liveSet[key] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Step 2: drop handles whose key is no longer tracked at all.
	for key, h := range s.handles {
		if _, ok := liveSet[key]; !ok {
			s.teardown(key, h)
		}
	}

	// Step 1: tear down empty groups, spawn missing ones.
	for _, key := range live {
		group, ok := s.cfg.Subs.Snapshot(key)
		if !ok {
			continue
		}

		h, hasHandle := s.handles[key]
		switch {
		case group.Empty() && hasHandle:
			s.teardown(key, h)
		case !group.Empty() && !hasHandle:
			s.spawn(ctx, key, group.TopicName)
		}
	}
}

func (s *Supervisor) teardown(key GroupKey, h *supervisedPusher) {
	h.pusher.Stop()
	h.cancel()
	select {
	case <-h.pusher.Done():
	default:
		s.logger.Warn("pusher did not exit by reconciliation tick, retrying next tick",
			"group", key.Group, "topic_id", key.TopicID)
		return
	}
	delete(s.handles, key)
	s.cfg.Subs.RemoveGroup(key)
}

func (s *Supervisor) spawn(ctx context.Context, key GroupKey, topicName string) {
	if tn, ok := s.topicIDs[key]; ok {
		topicName = tn
	}

	pusherCtx, cancel := context.WithCancel(ctx)
	strategy := NewStrategy(s.cfg.StrategyName, s.cfg.Metadata, s.cfg.SelfNodeID)
	p := NewPusher(PusherConfig{
		Group:      key.Group,
		TopicID:    key.TopicID,
		Topic:      topicName,
		Subs:       s.cfg.Subs,
		Meta:       s.cfg.Metadata,
		Acks:       s.cfg.Acks,
		Logs:       s.cfg.Logs,
		Egress:     s.cfg.Egress,
		Policy:     s.cfg.Policy,
		Strategy:   strategy,
		Logger:     s.logger,
		AckTimeout: s.cfg.AckTimeout,
	})
	s.handles[key] = &supervisedPusher{pusher: p, cancel: cancel}
	go p.Run(pusherCtx)
}

func (s *Supervisor) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, h := range s.handles {
		h.pusher.Stop()
		h.cancel()
	}
}

// Len reports the number of live pusher handles, for tests and metrics.
func (s *Supervisor) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
