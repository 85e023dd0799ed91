package dispatch

import (
	"context"
	"testing"
)

func TestMemoryLogReaderReadAdvancesCursor(t *testing.T) {
	r := NewMemoryLogReader()
	r.Append("t1",
		Record{Offset: 0, Payload: []byte("m0")},
		Record{Offset: 1, Payload: []byte("m1")},
		Record{Offset: 2, Payload: []byte("m2")},
	)

	ctx := context.Background()
	batch, err := r.ReadTopicMessage(ctx, "t1", "g1", 2)
	if err != nil {
		t.Fatalf("ReadTopicMessage: %v", err)
	}
	if len(batch) != 2 || batch[0].Offset != 0 || batch[1].Offset != 1 {
		t.Fatalf("first batch = %+v, want offsets 0,1", batch)
	}

	batch, err = r.ReadTopicMessage(ctx, "t1", "g1", 2)
	if err != nil {
		t.Fatalf("ReadTopicMessage: %v", err)
	}
	if len(batch) != 1 || batch[0].Offset != 2 {
		t.Fatalf("second batch = %+v, want offset 2", batch)
	}

	batch, err = r.ReadTopicMessage(ctx, "t1", "g1", 2)
	if err != nil {
		t.Fatalf("ReadTopicMessage: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("third batch = %+v, want empty (caught up)", batch)
	}
}

func TestMemoryLogReaderCursorsAreIndependentPerGroup(t *testing.T) {
	r := NewMemoryLogReader()
	r.Append("t1", Record{Offset: 0}, Record{Offset: 1})

	ctx := context.Background()
	if _, err := r.ReadTopicMessage(ctx, "t1", "group-a", 10); err != nil {
		t.Fatalf("ReadTopicMessage: %v", err)
	}

	batch, err := r.ReadTopicMessage(ctx, "t1", "group-b", 10)
	if err != nil {
		t.Fatalf("ReadTopicMessage: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("group-b should read from offset 0 independently of group-a, got %d records", len(batch))
	}
}

func TestConsumerGroupName(t *testing.T) {
	got := ConsumerGroupName("g1", "t1")
	want := "system_sub_g1_t1"
	if got != want {
		t.Fatalf("ConsumerGroupName = %q, want %q", got, want)
	}
}
