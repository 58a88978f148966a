package observ

import "testing"

func TestCounterIncrementsPerLabelSet(t *testing.T) {
	IncCounter("test_counter_total", map[string]string{"op": "a"})
	IncCounter("test_counter_total", map[string]string{"op": "a"})
	IncCounter("test_counter_total", map[string]string{"op": "b"})

	if got := CounterValue("test_counter_total", map[string]string{"op": "a"}); got != 2 {
		t.Fatalf("op=a: got %d want 2", got)
	}
	if got := CounterValue("test_counter_total", map[string]string{"op": "b"}); got != 1 {
		t.Fatalf("op=b: got %d want 1", got)
	}
	if got := CounterValue("test_counter_total", map[string]string{"op": "c"}); got != 0 {
		t.Fatalf("unseen label set: got %d want 0", got)
	}
}

func TestGaugeSetAndReadBack(t *testing.T) {
	SetGauge("test_gauge", 42.5, map[string]string{"track": "net"})
	SetGauge("test_gauge", 41.0, map[string]string{"track": "net"})
	SetGauge("test_gauge", 7.0, map[string]string{"track": "est"})

	if got := GaugeValue("test_gauge", map[string]string{"track": "net"}); got != 41.0 {
		t.Fatalf("track=net: got %v want 41 (last write wins)", got)
	}
	if got := GaugeValue("test_gauge", map[string]string{"track": "est"}); got != 7.0 {
		t.Fatalf("track=est: got %v want 7", got)
	}
	if got := GaugeValue("test_gauge_missing", nil); got != 0 {
		t.Fatalf("unset gauge: got %v want 0", got)
	}
}

func TestCanonLabelsOrderIndependent(t *testing.T) {
	a := canonLabels(map[string]string{"x": "1", "y": "2"})
	b := canonLabels(map[string]string{"y": "2", "x": "1"})
	if a != b {
		t.Fatalf("label order leaked into key: %q vs %q", a, b)
	}
	if canonLabels(nil) != "" {
		t.Fatalf("nil labels should canonicalize to empty key")
	}
}
