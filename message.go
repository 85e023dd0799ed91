package dispatch

import (
	"context"
	"errors"
	"time"
)

// UserProperty mirrors the wire-level key/value user property carried on
// a log Record, independent of the packet contract type so the log
// reader has no dependency on internal/packet.
type UserProperty struct {
	Key   string
	Value string
}

// Record is a single entry read from the durable topic log (spec §3
// "Message (log record)"). A Message is decoded from a Record by the
// pusher before dispatch.
type Record struct {
	Offset         uint64
	QoS            QoS
	Payload        []byte
	UserProperties []UserProperty
	Timestamp      time.Time
	Retained       bool
}

// Message is the decoded form of a Record handed to a dispatch strategy
// and the QoS delivery engine.
type Message struct {
	Offset         uint64
	QoS            QoS
	Payload        []byte
	UserProperties []UserProperty
	Timestamp      time.Time
	Retained       bool
}

// DecodeMessage converts a Record into a Message. It is the hook the
// pusher calls per spec §4.H step 5a; a real topic-log codec might
// instead decode from raw bytes, but Record is already structured here
// since the wire format of the log itself is out of scope (spec §1).
func DecodeMessage(r Record) (Message, error) {
	return Message{
		Offset:         r.Offset,
		QoS:            r.QoS,
		Payload:        r.Payload,
		UserProperties: r.UserProperties,
		Timestamp:      r.Timestamp,
		Retained:       r.Retained,
	}, nil
}

// ErrLogUnavailable is returned by a LogReader when the underlying store
// cannot currently be reached; callers treat it as TransientIO (spec §7).
var ErrLogUnavailable = errors.New("message log: unavailable")

// LogReader is a pull interface over a durable topic log keyed by
// (topic, consumer-group), returning batches with advancing cursors
// (spec §4.F). Implementations choose a cursor-advance policy and must
// document it; this module's ReadTopicMessage implementations advance
// the cursor implicitly on return (acknowledge-on-read), matching
// original_source's share_sub_leader.rs, which never issues a separate
// ack call after a successful read.
type LogReader interface {
	// ReadTopicMessage returns up to max records for (topicID,
	// consumerGroup). An empty, non-error result means the cursor is
	// caught up. The cursor advances past the returned records before
	// this call returns.
	ReadTopicMessage(ctx context.Context, topicID, consumerGroup string, max int) ([]Record, error)
}

// MemoryLogReader is an in-memory LogReader fake, grounded on the
// teacher's SessionStore pattern of a simple map-backed implementation
// usable directly in tests without any external service.
type MemoryLogReader struct {
	mu      chan struct{}
	logs    map[string][]Record
	cursors map[string]int
}

// NewMemoryLogReader returns an empty MemoryLogReader.
func NewMemoryLogReader() *MemoryLogReader {
	return &MemoryLogReader{
		mu:      make(chan struct{}, 1),
		logs:    make(map[string][]Record),
		cursors: make(map[string]int),
	}
}

func (m *MemoryLogReader) lock() {
	m.mu <- struct{}{}
}

func (m *MemoryLogReader) unlock() {
	<-m.mu
}

// Append adds records to the named topic's log, for test setup.
func (m *MemoryLogReader) Append(topicID string, records ...Record) {
	m.lock()
	defer m.unlock()
	m.logs[topicID] = append(m.logs[topicID], records...)
}

// ReadTopicMessage implements LogReader.
func (m *MemoryLogReader) ReadTopicMessage(ctx context.Context, topicID, consumerGroup string, max int) ([]Record, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.lock()
	defer m.unlock()

	key := consumerGroupKey(topicID, consumerGroup)
	records := m.logs[topicID]
	start := m.cursors[key]
	if start >= len(records) {
		return nil, nil
	}

	end := start + max
	if end > len(records) {
		end = len(records)
	}

	batch := records[start:end]
	m.cursors[key] = end
	out := make([]Record, len(batch))
	copy(out, batch)
	return out, nil
}

func consumerGroupKey(topicID, consumerGroup string) string {
	return topicID + "\x00" + consumerGroup
}

// ConsumerGroupName builds the durable cursor name a shared-subscription
// pusher reads under, matching original_source's
// "system_sub_{group}_{topic_id}" naming verbatim (spec §4.H step 3).
func ConsumerGroupName(group, topicID string) string {
	return "system_sub_" + group + "_" + topicID
}
