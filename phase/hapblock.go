package phase

import "sort"

// AlleleCounts is the per-site vote tally of one cluster: for each
// allele, the number of assigned fragments calling it.
type AlleleCounts map[Allele]int

// Consensus returns the majority allele. Ties break toward the lowest
// allele value so consensus extraction is deterministic. ok is false
// when no fragment covers the site.
func (c AlleleCounts) Consensus() (best Allele, ok bool) {
	bestN := 0
	for allele, n := range c {
		if n > bestN || (n == bestN && ok && allele < best) {
			best, bestN, ok = allele, n, true
		}
	}
	return best, ok
}

// clone returns a copy of the tally.
func (c AlleleCounts) clone() AlleleCounts {
	out := make(AlleleCounts, len(c))
	for a, n := range c {
		out[a] = n
	}
	return out
}

// FragSet is a set of fragments, one cluster of a partition.
type FragSet map[*Fragment]struct{}

// sorted returns the members in Index order.
func (s FragSet) sorted() []*Fragment {
	out := make([]*Fragment, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

func (s FragSet) clone() FragSet {
	out := make(FragSet, len(s))
	for f := range s {
		out[f] = struct{}{}
	}
	return out
}

// Partition assigns the fragments overlapping one window to ploidy
// disjoint clusters. Clusters are identified by position only; cluster
// k of one window has no inherent relation to cluster k of another
// until the linker chooses a correspondence.
type Partition struct {
	Window   Window
	Clusters []FragSet
}

func newPartition(w Window, ploidy int) *Partition {
	clusters := make([]FragSet, ploidy)
	for i := range clusters {
		clusters[i] = make(FragSet)
	}
	return &Partition{Window: w, Clusters: clusters}
}

// Ploidy returns the number of clusters.
func (p *Partition) Ploidy() int { return len(p.Clusters) }

// NumFragments returns the total number of assigned fragments.
func (p *Partition) NumFragments() int {
	n := 0
	for _, c := range p.Clusters {
		n += len(c)
	}
	return n
}

// assignment returns the cluster index of f, or -1.
func (p *Partition) assignment(f *Fragment) int {
	for k, c := range p.Clusters {
		if _, ok := c[f]; ok {
			return k
		}
	}
	return -1
}

// fragments returns all assigned fragments in Index order.
func (p *Partition) fragments() []*Fragment {
	all := make(FragSet, p.NumFragments())
	for _, c := range p.Clusters {
		for f := range c {
			all[f] = struct{}{}
		}
	}
	return all.sorted()
}

func (p *Partition) clone() *Partition {
	out := &Partition{Window: p.Window, Clusters: make([]FragSet, len(p.Clusters))}
	for i, c := range p.Clusters {
		out.Clusters[i] = c.clone()
	}
	return out
}

// restrictTo returns a copy of p keeping only fragments that overlap w.
func (p *Partition) restrictTo(w Window) *Partition {
	out := newPartition(w, p.Ploidy())
	for k, c := range p.Clusters {
		for f := range c {
			if f.Overlaps(w) {
				out.Clusters[k][f] = struct{}{}
			}
		}
	}
	return out
}

// HapBlock is the per-cluster consensus of a partition: for every
// cluster, the allele vote tally at each covered site. It is always
// derived from a partition and never independently mutated, except by
// the genotype polisher which produces a corrected copy.
type HapBlock struct {
	Seqs []map[int]AlleleCounts
}

// NewHapBlock returns an empty block with the given ploidy.
func NewHapBlock(ploidy int) *HapBlock {
	seqs := make([]map[int]AlleleCounts, ploidy)
	for i := range seqs {
		seqs[i] = make(map[int]AlleleCounts)
	}
	return &HapBlock{Seqs: seqs}
}

// Ploidy returns the number of haplotypes in the block.
func (b *HapBlock) Ploidy() int { return len(b.Seqs) }

// ConsensusAt returns the consensus allele of cluster k at the given
// site. ok is false when the cluster has no votes there.
func (b *HapBlock) ConsensusAt(k, site int) (Allele, bool) {
	counts, ok := b.Seqs[k][site]
	if !ok {
		return 0, false
	}
	return counts.Consensus()
}

// addFragment adds f's calls inside w to cluster k's tallies.
func (b *HapBlock) addFragment(k int, f *Fragment, w Window) {
	for site, call := range f.Calls {
		if !w.Contains(site) {
			continue
		}
		counts, ok := b.Seqs[k][site]
		if !ok {
			counts = make(AlleleCounts)
			b.Seqs[k][site] = counts
		}
		counts[call]++
	}
}

func (b *HapBlock) clone() *HapBlock {
	out := NewHapBlock(b.Ploidy())
	for k, seq := range b.Seqs {
		for site, counts := range seq {
			out.Seqs[k][site] = counts.clone()
		}
	}
	return out
}

// HapBlockFromPartition derives the consensus block of p by majority
// vote per site per cluster.
func HapBlockFromPartition(p *Partition) *HapBlock {
	b := NewHapBlock(p.Ploidy())
	for k, c := range p.Clusters {
		for f := range c {
			b.addFragment(k, f, p.Window)
		}
	}
	return b
}
