package phase

import "math"

// Allele is a small integer encoding of an observed allele at a variant
// site: 0 for the reference allele, 1..n for alternate alleles.
type Allele uint8

// Fragment records the variant-site observations of one sequencing read.
// Calls is sparse; a read covers only the sites between First and Last,
// and may skip sites inside that span (deletions, low quality).
//
// Fragments are immutable after Store construction and are shared
// read-only across all parallel window computations.
type Fragment struct {
	// Name is the read name, unique within one run's input.
	Name string
	// Index is the position of this fragment in its Store's arena. It
	// is assigned by NewStore and is the stable identity used by
	// partitions and by deterministic tie-breaking.
	Index int
	// First and Last are the smallest and largest 1-based variant-site
	// indices with a call, inclusive.
	First, Last int
	// Calls maps a 1-based variant-site index to the observed allele.
	Calls map[int]Allele
	// Quals maps a site index to the phred-scaled confidence of the
	// call. Sites missing from Quals default to weight 1.
	Quals map[int]byte
}

// NumSites returns the number of sites with a call.
func (f *Fragment) NumSites() int { return len(f.Calls) }

// Span returns the number of sites spanned by the fragment, inclusive
// of gaps.
func (f *Fragment) Span() int {
	if f.First == 0 && f.Last == 0 {
		return 0
	}
	return f.Last - f.First + 1
}

// Overlaps reports whether the fragment covers at least one site with a
// call in w.
func (f *Fragment) Overlaps(w Window) bool {
	if f.Last < w.Start || f.First >= w.End {
		return false
	}
	for site := range f.Calls {
		if w.Contains(site) {
			return true
		}
	}
	return false
}

// callsIn returns the number of called sites inside w.
func (f *Fragment) callsIn(w Window) int {
	n := 0
	for site := range f.Calls {
		if w.Contains(site) {
			n++
		}
	}
	return n
}

// weightAt returns the confidence weight of the call at the given site.
// Calls without an explicit quality weigh 1. Phred values are
// translated to 1-p(error); a Q20 call weighs 0.99.
func (f *Fragment) weightAt(site int) float64 {
	q, ok := f.Quals[site]
	if !ok {
		return 1.0
	}
	return 1.0 - phredToProb(q)
}

// disagreement counts the sites inside w called by both fragments, and
// how many of those calls differ.
func disagreement(a, b *Fragment, w Window) (shared, diff int) {
	// Iterate over the smaller call set.
	if len(b.Calls) < len(a.Calls) {
		a, b = b, a
	}
	for site, call := range a.Calls {
		if !w.Contains(site) {
			continue
		}
		other, ok := b.Calls[site]
		if !ok {
			continue
		}
		shared++
		if call != other {
			diff++
		}
	}
	return shared, diff
}

var phredTable = func() [256]float64 {
	var t [256]float64
	for i := range t {
		t[i] = math.Pow(10, -float64(i)/10)
	}
	return t
}()

func phredToProb(q byte) float64 { return phredTable[q] }
