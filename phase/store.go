package phase

import (
	"sort"

	"github.com/biogo/store/llrb"
)

// storeKey orders fragments by first covered site for use in llrb.
type storeKey struct {
	first int
	index int
	frag  *Fragment
}

// Compare compares two storeKey objects for use in llrb.
func (k storeKey) Compare(c llrb.Comparable) int {
	k2 := c.(storeKey)
	if diff := k.first - k2.first; diff != 0 {
		return diff
	}
	return k.index - k2.index
}

// Store is the shared, read-only fragment arena. It owns every
// fragment for one run, assigns each its stable Index, and answers the
// window-overlap and length-statistic queries the rest of the engine
// is built on. A Store is safe for concurrent use once built.
type Store struct {
	frags []*Fragment // sorted by (First, Last, Name)
	// byStart indexes fragments by first covered site so that
	// window-overlap queries only visit a bounded key range.
	byStart      llrb.Tree
	maxSpan      int
	genomeLength int
}

// NewStore takes ownership of frags, sorts them by first position, and
// builds the start-position index. Fragment Index fields are
// (re)assigned to match the sorted order.
func NewStore(frags []*Fragment) *Store {
	sorted := append([]*Fragment(nil), frags...)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.First != b.First {
			return a.First < b.First
		}
		if a.Last != b.Last {
			return a.Last < b.Last
		}
		return a.Name < b.Name
	})
	s := &Store{frags: sorted}
	for i, f := range sorted {
		f.Index = i
		if span := f.Span(); span > s.maxSpan {
			s.maxSpan = span
		}
		if f.Last > s.genomeLength {
			s.genomeLength = f.Last
		}
		s.byStart.Insert(storeKey{first: f.First, index: i, frag: f})
	}
	return s
}

// Len returns the number of fragments in the store.
func (s *Store) Len() int { return len(s.frags) }

// Fragments returns the arena, sorted by first position. Callers must
// not modify the returned slice or the fragments.
func (s *Store) Fragments() []*Fragment { return s.frags }

// GenomeLength returns the largest 1-based variant-site index covered
// by any fragment.
func (s *Store) GenomeLength() int { return s.genomeLength }

// Overlapping returns the fragments with at least one call inside w,
// in Index order. Only fragments whose first position lies within
// maxSpan of the window are visited.
func (s *Store) Overlapping(w Window) []*Fragment {
	if len(s.frags) == 0 || w.Len() <= 0 {
		return nil
	}
	lo := storeKey{first: w.Start - s.maxSpan + 1, index: -1}
	hi := storeKey{first: w.End, index: -1}
	var out []*Fragment
	s.byStart.DoRange(func(c llrb.Comparable) (done bool) {
		f := c.(storeKey).frag
		if f.Last >= w.Start && f.Overlaps(w) {
			out = append(out, f)
		}
		return
	}, lo, hi)
	return out
}

// AvgFragmentLength returns the given quantile of the fragment span
// distribution (0.5 = median). Spans count all sites between a
// fragment's first and last call, inclusive.
func (s *Store) AvgFragmentLength(quantile float64) int {
	if len(s.frags) == 0 {
		return 0
	}
	spans := make([]int, len(s.frags))
	for i, f := range s.frags {
		spans[i] = f.Span()
	}
	sort.Ints(spans)
	idx := int(quantile * float64(len(spans)))
	if idx >= len(spans) {
		idx = len(spans) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return spans[idx]
}
