package history

import "testing"

func TestAppendFIFOEviction(t *testing.T) {
	s := NewStore(50)
	for i := 1; i <= 60; i++ {
		s.Append("btc", float64(i))
	}
	ser := s.Series("btc")
	if len(ser) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(ser))
	}
	if ser[0] != 11 || ser[49] != 60 {
		t.Fatalf("expected [11..60], got first=%v last=%v", ser[0], ser[49])
	}
}

func TestNeverExceedsCapacity(t *testing.T) {
	s := NewStore(5)
	for i := 0; i < 1000; i++ {
		s.Append("x", float64(i))
		if s.Len("x") > 5 {
			t.Fatalf("capacity exceeded at i=%d: %d", i, s.Len("x"))
		}
	}
}

func TestSeriesIsACopy(t *testing.T) {
	s := NewStore(10)
	s.Append("a", 1)
	s.Append("a", 2)
	ser := s.Series("a")
	ser[0] = 99
	if got := s.Series("a"); got[0] != 1 {
		t.Fatalf("store mutated through returned slice")
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := NewStore(50)
	s.Append("a", 1)
	s.Append("a", 2)
	s.Append("b", 3)

	state := s.Snapshot()
	r := NewStore(50)
	r.Restore(state)
	if got := r.Series("a"); len(got) != 2 || got[1] != 2 {
		t.Fatalf("unexpected restored series: %v", got)
	}
	if r.Len("b") != 1 {
		t.Fatalf("missing asset b")
	}
}

func TestRestoreTruncatesOversizedSeries(t *testing.T) {
	long := make([]float64, 80)
	for i := range long {
		long[i] = float64(i)
	}
	s := NewStore(50)
	s.Restore(map[string][]float64{"a": long})
	ser := s.Series("a")
	if len(ser) != 50 || ser[0] != 30 || ser[49] != 79 {
		t.Fatalf("expected newest 50 kept, got len=%d first=%v", len(ser), ser[0])
	}
}
