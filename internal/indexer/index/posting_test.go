package index

import (
	"reflect"
	"testing"
)

func TestEncodeDecodeBlockRoundTrip(t *testing.T) {
	postings := PostingList{
		{DocID: 3, Frequency: 2, Positions: []int{1, 5}},
		{DocID: 7, Frequency: 1, Positions: []int{0}},
		{DocID: 8, Frequency: 3, Positions: []int{2, 4, 9}},
	}

	block := EncodeBlock(postings)
	if block.FirstDocID != 3 {
		t.Fatalf("FirstDocID = %d, want 3", block.FirstDocID)
	}

	decoded := DecodeBlock(block)
	if !reflect.DeepEqual(decoded, postings) {
		t.Fatalf("round trip mismatch:\ngot  %+v\nwant %+v", decoded, postings)
	}
}

func TestEncodeDecodeBlockSingleDocNoPositions(t *testing.T) {
	postings := PostingList{{DocID: 42, Frequency: 1, Positions: nil}}
	decoded := DecodeBlock(EncodeBlock(postings))
	if len(decoded) != 1 || decoded[0].DocID != 42 || decoded[0].Frequency != 1 {
		t.Fatalf("decoded = %+v, want a single posting for doc 42", decoded)
	}
	if len(decoded[0].Positions) != 0 {
		t.Fatalf("decoded positions = %v, want none", decoded[0].Positions)
	}
}

func TestEncodeBlockEmptyPostingList(t *testing.T) {
	block := EncodeBlock(nil)
	if block.FirstDocID != 0 || block.Data != nil {
		t.Fatalf("EncodeBlock(nil) = %+v, want zero Block", block)
	}
	if decoded := DecodeBlock(block); decoded != nil {
		t.Fatalf("DecodeBlock(empty) = %+v, want nil", decoded)
	}
}

func TestEncodeDecodeBlockLargeDocIDGaps(t *testing.T) {
	postings := PostingList{
		{DocID: 0, Frequency: 1, Positions: []int{0}},
		{DocID: 1_000_000, Frequency: 5, Positions: []int{100, 250, 999}},
		{DocID: 4_000_000_000, Frequency: 2, Positions: []int{1, 2}},
	}
	decoded := DecodeBlock(EncodeBlock(postings))
	if !reflect.DeepEqual(decoded, postings) {
		t.Fatalf("round trip mismatch across large gaps:\ngot  %+v\nwant %+v", decoded, postings)
	}
}
