package index

import "github.com/RoaringBitmap/roaring/v2"

// DocIDSet builds a compressed roaring bitmap over a PostingList's doc-ids,
// the same "compressed bitmap ahead of exact iteration" prefilter Erigon
// runs in front of its trie scans: cheap set membership and intersection
// size estimates let the planner skip candidates before paying for a full
// delta-decode walk through IntersectionIterator.
func DocIDSet(postings PostingList) *roaring.Bitmap {
	bm := roaring.New()
	for _, p := range postings {
		bm.Add(p.DocID)
	}
	bm.RunOptimize()
	return bm
}

// EstimateIntersectionSize returns the number of doc-ids shared by every
// given bitmap, computed by intersecting a clone of the first bitmap with
// the others (the inputs are left unchanged), used to reorder
// IntersectionIterator's children by selectivity before an exact merge.
func EstimateIntersectionSize(sets ...*roaring.Bitmap) uint64 {
	if len(sets) == 0 {
		return 0
	}
	acc := sets[0].Clone()
	for _, s := range sets[1:] {
		acc.And(s)
	}
	return acc.GetCardinality()
}

// FilterCandidates removes any Posting whose DocID is absent from allowed,
// used to apply a pre-built roaring-bitmap filter (e.g. from a tag or
// numeric-range scan) ahead of full posting-list intersection.
func FilterCandidates(postings PostingList, allowed *roaring.Bitmap) PostingList {
	if allowed == nil {
		return postings
	}
	out := make(PostingList, 0, len(postings))
	for _, p := range postings {
		if allowed.Contains(p.DocID) {
			out = append(out, p)
		}
	}
	return out
}
