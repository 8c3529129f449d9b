package phase

import "sort"

// testFragIndex hands out distinct arena indices to fixture fragments
// built outside a Store, keeping FragSet.sorted() deterministic.
var testFragIndex int

// newTestFrag builds a fragment calling consecutive sites starting at
// first, one allele digit per site; '-' leaves a gap.
func newTestFrag(name string, first int, calls string) *Fragment {
	testFragIndex++
	f := &Fragment{Name: name, Index: testFragIndex, Calls: make(map[int]Allele), Quals: make(map[int]byte)}
	for i := 0; i < len(calls); i++ {
		if calls[i] == '-' {
			continue
		}
		site := first + i
		f.Calls[site] = Allele(calls[i] - '0')
		if f.First == 0 || site < f.First {
			f.First = site
		}
		if site > f.Last {
			f.Last = site
		}
	}
	return f
}

// clusterNames returns the fragment names of cluster k in name order.
func clusterNames(p *Partition, k int) []string {
	var names []string
	for f := range p.Clusters[k] {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// assignedOnce checks that every fragment of p is in exactly one
// cluster and returns the total number of assigned fragments.
func assignedOnce(p *Partition) (int, bool) {
	seen := make(map[*Fragment]int)
	for _, c := range p.Clusters {
		for f := range c {
			seen[f]++
		}
	}
	for _, n := range seen {
		if n != 1 {
			return len(seen), false
		}
	}
	return len(seen), true
}
