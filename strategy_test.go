package dispatch

import "testing"

func subs(ids ...string) []SubscriberEntry {
	out := make([]SubscriberEntry, len(ids))
	for i, id := range ids {
		out[i] = SubscriberEntry{ClientID: id}
	}
	return out
}

func TestRoundRobinFanOut(t *testing.T) {
	s := newRoundRobinStrategy()
	list := subs("A", "B", "C")

	var got []string
	for i := 0; i < 6; i++ {
		entry, ok := s.Choose(list, 0, Message{Offset: uint64(i)})
		if !ok {
			t.Fatalf("Choose returned ok=false")
		}
		got = append(got, entry.ClientID)
	}

	want := []string{"A", "B", "C", "A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch %d = %s, want %s (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestRoundRobinFairnessP4(t *testing.T) {
	s := newRoundRobinStrategy()
	list := subs("A", "B", "C", "D", "E")

	counts := make(map[string]int)
	const n = 10 * 5
	for i := 0; i < n; i++ {
		entry, _ := s.Choose(list, 0, Message{Offset: uint64(i)})
		counts[entry.ClientID]++
	}

	min, max := n, 0
	for _, c := range counts {
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	if max-min > 1 {
		t.Fatalf("counts not balanced: %v (max-min = %d)", counts, max-min)
	}
}

func TestRoundRobinEmptyList(t *testing.T) {
	s := newRoundRobinStrategy()
	if _, ok := s.Choose(nil, 0, Message{}); ok {
		t.Fatalf("Choose on empty list returned ok=true")
	}
}

func TestStickyStrategyStaysBoundUntilGone(t *testing.T) {
	s := newStickyStrategy()
	list := subs("A", "B", "C")

	first, _ := s.Choose(list, 1, Message{})
	for i := 0; i < 5; i++ {
		next, ok := s.Choose(list, 1, Message{})
		if !ok || next.ClientID != first.ClientID {
			t.Fatalf("sticky rebound without epoch change: %+v", next)
		}
	}

	// Remove the bound subscriber: must rebind.
	reduced := make([]SubscriberEntry, 0)
	for _, e := range list {
		if e.ClientID != first.ClientID {
			reduced = append(reduced, e)
		}
	}
	rebound, ok := s.Choose(reduced, 1, Message{})
	if !ok {
		t.Fatalf("Choose after removal returned ok=false")
	}
	if rebound.ClientID == first.ClientID {
		t.Fatalf("sticky strategy stayed bound to a subscriber no longer in sub_list")
	}
}

func TestStickyStrategyUnsticksOnEpochChange(t *testing.T) {
	s := newStickyStrategy()
	list := subs("A", "B", "C")

	first, _ := s.Choose(list, 1, Message{})
	_ = first

	// A reconfiguration event (epoch bump) must allow rebinding even
	// though the originally bound subscriber is still present.
	_, ok := s.Choose(list, 2, Message{})
	if !ok {
		t.Fatalf("Choose after epoch change returned ok=false")
	}
}

func TestHashStrategyStableForSameKey(t *testing.T) {
	s := newHashStrategy()
	list := subs("A", "B", "C", "D")
	msg := Message{Offset: 42}

	first, ok := s.Choose(list, 1, msg)
	if !ok {
		t.Fatalf("Choose returned ok=false")
	}
	for i := 0; i < 10; i++ {
		next, _ := s.Choose(list, 1, msg)
		if next.ClientID != first.ClientID {
			t.Fatalf("hash strategy not stable for same key+membership: got %s, want %s", next.ClientID, first.ClientID)
		}
	}
}

func TestHashStrategyRebuildsOnEpochChange(t *testing.T) {
	s := newHashStrategy()
	list := subs("A", "B", "C", "D")
	msg := Message{Offset: 42}

	first, _ := s.Choose(list, 1, msg)
	if _, ok := s.Choose(list, 2, msg); !ok {
		t.Fatalf("Choose after epoch change returned ok=false")
	}
	_ = first
}

func TestRandomStrategyChoosesFromList(t *testing.T) {
	s := newRandomStrategy()
	list := subs("A", "B")
	valid := map[string]bool{"A": true, "B": true}
	for i := 0; i < 20; i++ {
		entry, ok := s.Choose(list, 0, Message{})
		if !ok || !valid[entry.ClientID] {
			t.Fatalf("random Choose returned %+v, ok=%v", entry, ok)
		}
	}
}

func TestLocalStrategyPrefersLocalNode(t *testing.T) {
	meta := NewMetadataCache()
	meta.SetConnection("local-1", 1<<nodeIDShift|5) // node 1
	meta.SetConnection("remote-1", 2<<nodeIDShift|7) // node 2

	s := newLocalStrategy(meta, 1)
	list := subs("remote-1", "local-1")

	entry, ok := s.Choose(list, 0, Message{})
	if !ok {
		t.Fatalf("Choose returned ok=false")
	}
	if entry.ClientID != "local-1" {
		t.Fatalf("Choose = %s, want local-1", entry.ClientID)
	}
}

func TestLocalStrategyFallsBackToRoundRobin(t *testing.T) {
	meta := NewMetadataCache()
	meta.SetConnection("remote-1", 2<<nodeIDShift)
	meta.SetConnection("remote-2", 2<<nodeIDShift)

	s := newLocalStrategy(meta, 1)
	list := subs("remote-1", "remote-2")

	entry, ok := s.Choose(list, 0, Message{})
	if !ok {
		t.Fatalf("Choose returned ok=false")
	}
	if entry.ClientID != "remote-1" {
		t.Fatalf("fallback Choose = %s, want remote-1 (round-robin start)", entry.ClientID)
	}
}
