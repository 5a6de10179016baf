package variance

import "testing"

func TestEvaluate_ExactMatch(t *testing.T) {
	th := Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}
	res := Evaluate(100, 100, th)
	if res.Variance != 0 {
		t.Fatalf("expected variance 0, got %v", res.Variance)
	}
	if res.Status != StatusMatched {
		t.Fatalf("expected matched, got %s", res.Status)
	}
}

func TestEvaluate_WithinFloor(t *testing.T) {
	th := Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}
	// variance 30, tolerance max(100, 20) = 100
	res := Evaluate(1000, 970, th)
	if res.Variance != 30 {
		t.Fatalf("expected variance 30, got %v", res.Variance)
	}
	if res.Status != StatusMatched {
		t.Fatalf("expected matched, got %s", res.Status)
	}
}

func TestEvaluate_BeyondTolerance(t *testing.T) {
	th := Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}
	// variance 150, tolerance max(100, 20) = 100
	res := Evaluate(1000, 850, th)
	if res.Variance != 150 {
		t.Fatalf("expected variance 150, got %v", res.Variance)
	}
	if res.Status != StatusDisputed {
		t.Fatalf("expected disputed, got %s", res.Status)
	}
}

func TestEvaluate_PercentDominates(t *testing.T) {
	th := Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}
	// tolerance max(100, 2000) = 2000
	res := Evaluate(100000, 98500, th)
	if res.Status != StatusMatched {
		t.Fatalf("expected matched, got %s", res.Status)
	}
	res = Evaluate(100000, 97500, th)
	if res.Status != StatusDisputed {
		t.Fatalf("expected disputed, got %s", res.Status)
	}
}

func TestEvaluate_ZeroExpected(t *testing.T) {
	th := Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}
	// percent term is zero, only the floor applies
	res := Evaluate(0, 50, th)
	if res.Variance != -50 {
		t.Fatalf("expected variance -50, got %v", res.Variance)
	}
	if res.Status != StatusMatched {
		t.Fatalf("expected matched, got %s", res.Status)
	}
	res = Evaluate(0, 150, th)
	if res.Status != StatusDisputed {
		t.Fatalf("expected disputed, got %s", res.Status)
	}
}

func TestEvaluate_OverageSign(t *testing.T) {
	th := Thresholds{AbsoluteFloor: 10, PercentOfExpected: 0}
	res := Evaluate(500, 600, th)
	if res.Variance != -100 {
		t.Fatalf("expected variance -100, got %v", res.Variance)
	}
	if res.Status != StatusDisputed {
		t.Fatalf("expected disputed, got %s", res.Status)
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	th := Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02}
	first := Evaluate(1234.56, 1200, th)
	for i := 0; i < 10; i++ {
		if got := Evaluate(1234.56, 1200, th); got != first {
			t.Fatalf("evaluation not deterministic: %+v vs %+v", got, first)
		}
	}
}

func TestPolicy_ForStationOverride(t *testing.T) {
	policy := Policy{
		Defaults: Thresholds{AbsoluteFloor: 100, PercentOfExpected: 0.02},
		Stations: map[string]Thresholds{
			"station-strict": {AbsoluteFloor: 10},
		},
	}
	th := policy.ForStation("station-strict")
	if th.AbsoluteFloor != 10 {
		t.Fatalf("expected overridden floor 10, got %v", th.AbsoluteFloor)
	}
	if th.PercentOfExpected != 0.02 {
		t.Fatalf("expected inherited percent 0.02, got %v", th.PercentOfExpected)
	}
	if got := policy.ForStation("station-other"); got != policy.Defaults {
		t.Fatalf("expected defaults for unknown station, got %+v", got)
	}
}
