package index

import "testing"

func TestDocIDSetAndEstimateIntersectionSize(t *testing.T) {
	a := DocIDSet(postingsOf(1, 2, 3, 4))
	b := DocIDSet(postingsOf(3, 4, 5))
	if got, want := EstimateIntersectionSize(a, b), uint64(2); got != want {
		t.Errorf("EstimateIntersectionSize = %d, want %d", got, want)
	}
}

func TestFilterCandidates(t *testing.T) {
	allowed := DocIDSet(postingsOf(2, 4))
	postings := postingsOf(1, 2, 3, 4, 5)
	filtered := FilterCandidates(postings, allowed)
	if len(filtered) != 2 || filtered[0].DocID != 2 || filtered[1].DocID != 4 {
		t.Fatalf("FilterCandidates = %+v, want docs [2 4]", filtered)
	}
}

func TestFilterCandidatesNilAllowedIsNoOp(t *testing.T) {
	postings := postingsOf(1, 2, 3)
	if got := FilterCandidates(postings, nil); len(got) != 3 {
		t.Fatalf("FilterCandidates(nil) = %+v, want unchanged", got)
	}
}
