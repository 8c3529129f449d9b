package phase

// Genotypes holds externally supplied genotype evidence: for each
// 1-based variant-site index, the multiset of alleles the genotyper
// called across all ploidy copies. Read-only.
type Genotypes map[int]AlleleCounts

// PolishUsingGenotypes corrects the consensus of block so that, at
// every site in sites with genotype evidence, the multiset of
// per-haplotype consensus alleles matches the evidence. It changes the
// minimum number of calls needed, preferring the haplotypes whose
// current call has the weakest fragment support. Sites without
// evidence, and sites whose multiset already matches, are untouched.
//
// The input block is not mutated; the corrected copy and the number of
// changed calls are returned.
func PolishUsingGenotypes(gt Genotypes, block *HapBlock, sites []int) (*HapBlock, int) {
	out := block.clone()
	changed := 0
	for _, site := range sites {
		evidence, ok := gt[site]
		if !ok {
			continue
		}
		changed += polishSite(out, site, evidence)
	}
	return out, changed
}

func polishSite(b *HapBlock, site int, evidence AlleleCounts) int {
	ploidy := b.Ploidy()
	calls := make([]Allele, ploidy)
	has := make([]bool, ploidy)
	cur := make(AlleleCounts)
	for k := 0; k < ploidy; k++ {
		if cons, ok := b.ConsensusAt(k, site); ok {
			calls[k], has[k] = cons, true
			cur[cons]++
		}
	}
	if multisetEqual(cur, evidence) {
		return 0
	}

	changed := 0
	for {
		// Cheapest single correction: flip a surplus-allele call on the
		// haplotype with the smallest vote margin toward some deficit
		// allele. Ties break toward the lowest haplotype index, then
		// the lowest target allele.
		found := false
		var bestMargin, bestK int
		var bestFrom, bestTo Allele
		for k := 0; k < ploidy; k++ {
			if !has[k] {
				continue
			}
			from := calls[k]
			if cur[from] <= evidence[from] {
				continue
			}
			counts := b.Seqs[k][site]
			for to, want := range evidence {
				if cur[to] >= want {
					continue
				}
				margin := counts[from] - counts[to]
				better := !found || margin < bestMargin ||
					(margin == bestMargin && (k < bestK || (k == bestK && to < bestTo)))
				if better {
					found = true
					bestMargin, bestK, bestFrom, bestTo = margin, k, from, to
				}
			}
		}
		if !found {
			return changed
		}
		counts := b.Seqs[bestK][site]
		counts[bestTo], counts[bestFrom] = counts[bestFrom], counts[bestTo]
		if counts[bestFrom] == 0 {
			delete(counts, bestFrom)
		}
		if cons, ok := counts.Consensus(); !ok || cons != bestTo {
			// Tied votes would leave the old call winning the
			// lowest-allele tie-break; give the corrected call a strict
			// majority so the consensus actually flips.
			max := 0
			for a, n := range counts {
				if a != bestTo && n > max {
					max = n
				}
			}
			counts[bestTo] = max + 1
		}
		cur[bestFrom]--
		if cur[bestFrom] == 0 {
			delete(cur, bestFrom)
		}
		cur[bestTo]++
		calls[bestK] = bestTo
		changed++
	}
}

func multisetEqual(a, b AlleleCounts) bool {
	for allele, n := range a {
		if n != b[allele] {
			return false
		}
	}
	for allele, n := range b {
		if n != a[allele] {
			return false
		}
	}
	return true
}
