package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mqttcore/dispatch/internal/packet"
)

// PusherConfig bundles the collaborators a pusher task needs to run
// (spec §4.H).
type PusherConfig struct {
	Group    string
	TopicID  string
	Topic    string
	Subs     *SubscriptionManager
	Meta     *MetadataCache
	Acks     *AckManager
	Logs     LogReader
	Egress   *Egress
	Policy   ClusterPolicy
	Strategy Strategy
	Logger   *slog.Logger

	AckTimeout time.Duration
}

// Pusher is the per-(group,topic) task described by spec §4.H: one
// logical pusher that reads from the topic log and dispatches to one
// member of the group per record, according to a selectable strategy.
type Pusher struct {
	cfg    PusherConfig
	stop   chan struct{}
	done   chan struct{}
	taskID string
}

// NewPusher constructs a Pusher; it must be started with Run.
func NewPusher(cfg PusherConfig) *Pusher {
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = 30 * time.Second
	}
	return &Pusher{
		cfg:    cfg,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		taskID: uuid.NewString(),
	}
}

// Stop signals the pusher to exit. It is one-shot; calling it more than
// once is safe but only the first call has effect.
func (p *Pusher) Stop() {
	select {
	case <-p.stop:
	default:
		close(p.stop)
	}
}

// Done closes once the pusher's Run loop has returned, letting the
// supervisor confirm a stopped pusher actually exited (spec §4.G).
func (p *Pusher) Done() <-chan struct{} {
	return p.done
}

// Run executes the pusher loop body described in spec §4.H until Stop is
// called, the group vanishes, or ctx is cancelled.
func (p *Pusher) Run(ctx context.Context) {
	defer close(p.done)

	key := GroupKey{Group: p.cfg.Group, TopicID: p.cfg.TopicID}
	consumerGroup := ConsumerGroupName(p.cfg.Group, p.cfg.TopicID)
	log := p.cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("group", p.cfg.Group, "topic_id", p.cfg.TopicID, "task_id", p.taskID)

	for {
		select {
		case <-p.stop:
			log.Debug("pusher stopped")
			return
		case <-ctx.Done():
			log.Debug("pusher context cancelled")
			return
		default:
		}

		group, ok := p.cfg.Subs.Snapshot(key)
		if !ok {
			log.Debug("share group vanished, exiting")
			return
		}
		if group.Empty() {
			p.sleep(ctx, 500*time.Millisecond)
			continue
		}

		max := 2 * len(group.SubList)
		records, err := p.cfg.Logs.ReadTopicMessage(ctx, p.cfg.TopicID, consumerGroup, max)
		if err != nil {
			log.Warn("log read failed", "error", err)
			p.sleep(ctx, 500*time.Millisecond)
			continue
		}
		if len(records) == 0 {
			p.sleep(ctx, 500*time.Millisecond)
			continue
		}

		for _, record := range records {
			select {
			case <-p.stop:
				return
			case <-ctx.Done():
				return
			default:
			}
			p.dispatchRecord(ctx, group, record, log)
		}
	}
}

func (p *Pusher) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

func (p *Pusher) dispatchRecord(ctx context.Context, group ShareGroup, record Record, log *slog.Logger) {
	message, err := DecodeMessage(record)
	if err != nil {
		log.Warn("record decode failed, dropping", "offset", record.Offset, "error", err)
		return
	}

	subscriber, ok := p.cfg.Strategy.Choose(group.SubList, group.Epoch, message)
	if !ok {
		log.Debug("strategy chose no subscriber", "offset", record.Offset)
		return
	}

	connID, ok := p.cfg.Meta.ConnectID(subscriber.ClientID)
	if !ok {
		log.Debug("subscriber not connected, skipping message",
			"client_id", subscriber.ClientID, "offset", record.Offset)
		return
	}

	effectiveQoS := EffectiveQoS(message.QoS, subscriber.QoSRequest, p.cfg.Policy.MaxQoS)

	props := &packet.Properties{}
	if subscriber.SubscriptionIdentifier != nil {
		props.SubscriptionIdentifier = []int{*subscriber.SubscriptionIdentifier}
	}
	if subscriber.IsContainRewriteFlag {
		props.UserProperties = append(props.UserProperties, packet.ShareSubRewriteFlag())
	}
	for _, up := range message.UserProperties {
		props.UserProperties = append(props.UserProperties, packet.UserProperty{Key: up.Key, Value: up.Value})
	}

	pub := &packet.PublishPacket{
		Dup:        false,
		QoS:        uint8(effectiveQoS),
		Retain:     false,
		Topic:      p.cfg.Topic,
		Payload:    message.Payload,
		Properties: props,
	}

	d := Delivery{
		ClientID:        subscriber.ClientID,
		ConnectionID:    connID,
		ProtocolVersion: subscriber.ProtocolVersion,
		Publish:         pub,
	}

	var err2 error
	switch effectiveQoS {
	case AtMostOnce:
		err2 = DeliverQoS0(ctx, p.cfg.Egress, p.cfg.Policy, d, log)
	case AtLeastOnce:
		err2 = DeliverQoS1(ctx, p.cfg.Meta, p.cfg.Acks, p.cfg.Egress, p.cfg.Policy, d, p.cfg.AckTimeout, log)
	case ExactlyOnce:
		err2 = DeliverQoS2(ctx, p.cfg.Meta, p.cfg.Acks, p.cfg.Egress, p.cfg.Policy, d,
			func(pkid uint16) packet.Packet { return &packet.PubrelPacket{PacketID: pkid} },
			p.cfg.AckTimeout, log)
	}
	if err2 != nil {
		log.Debug("delivery did not complete", "client_id", subscriber.ClientID, "offset", record.Offset, "error", err2)
	}
}
