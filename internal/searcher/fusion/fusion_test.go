package fusion

import "testing"

func TestRRFMatchesSpecScenarioS3(t *testing.T) {
	streamA := Ranked{DocKeys: []string{"d1", "d2", "d3"}}
	streamB := Ranked{DocKeys: []string{"d3", "d1", "d4"}}

	results := RRF([]Ranked{streamA, streamB}, 60, 0)

	want := []string{"d1", "d3", "d2", "d4"}
	if len(results) != len(want) {
		t.Fatalf("RRF() len = %d, want %d (%v)", len(results), len(want), results)
	}
	for i, k := range want {
		if results[i].DocKey != k {
			t.Errorf("rank %d = %s, want %s (full: %v)", i, results[i].DocKey, k, results)
		}
	}
}

func TestLinearMatchesSpecScenarioS4(t *testing.T) {
	streamA := Ranked{DocKeys: []string{"d1"}, Scores: map[string]float64{"d1": 0.9}}
	streamB := Ranked{DocKeys: []string{"d2"}, Scores: map[string]float64{"d2": 0.8}}

	results := Linear([]Ranked{streamA, streamB}, []float64{0.5, 0.5})

	byKey := make(map[string]float64, len(results))
	for _, r := range results {
		byKey[r.DocKey] = r.Score
	}
	if got := byKey["d1"]; got != 0.45 {
		t.Errorf("d1 score = %v, want 0.45", got)
	}
	if got := byKey["d2"]; got != 0.40 {
		t.Errorf("d2 score = %v, want 0.40", got)
	}
	if results[0].DocKey != "d1" {
		t.Errorf("top result = %s, want d1", results[0].DocKey)
	}
}

func TestRRFDefaultsWhenUnset(t *testing.T) {
	streamA := Ranked{DocKeys: []string{"d1"}}
	results := RRF([]Ranked{streamA}, 0, 0)
	if len(results) != 1 {
		t.Fatalf("RRF() = %v, want one result", results)
	}
	want := 1.0 / float64(DefaultRRFConstant+1)
	if results[0].Score != want {
		t.Errorf("score = %v, want %v", results[0].Score, want)
	}
}

func TestRRFWindowCapsDepth(t *testing.T) {
	streamA := Ranked{DocKeys: []string{"d1", "d2", "d3"}}
	results := RRF([]Ranked{streamA}, 60, 1)
	if len(results) != 1 || results[0].DocKey != "d1" {
		t.Fatalf("RRF with window=1 = %v, want only d1", results)
	}
}
