package phase

import (
	"math"
	"sort"
)

// The scoring model treats every observed-allele mismatch between a
// fragment and its cluster's consensus as an independent error event
// with probability eps. A fragment covering n sites contributes
//
//	sum over covered sites of w*log(1-eps) or w*log(eps)
//
// (w = call confidence weight), scaled by B/(B+n) where B is the
// length-correction factor, so that very long fragments do not drown
// out short ones. Higher scores are better; the score of a partition
// is the sum over its assigned fragments.

// fragmentLogLik returns f's log-likelihood against cluster k's
// consensus within w, and the number of sites where both f and the
// consensus have data.
func fragmentLogLik(f *Fragment, b *HapBlock, k int, w Window, eps float64) (ll float64, covered int) {
	logMatch := math.Log1p(-eps)
	logMismatch := math.Log(eps)
	for site, call := range f.Calls {
		if !w.Contains(site) {
			continue
		}
		cons, ok := b.ConsensusAt(k, site)
		if !ok {
			continue
		}
		wgt := f.weightAt(site)
		if call == cons {
			ll += wgt * logMatch
		} else {
			ll += wgt * logMismatch
		}
		covered++
	}
	return ll, covered
}

// genotypePenalty charges one extra mismatch for every site of f where
// cluster k's consensus contradicts the known genotype multiset.
func genotypePenalty(f *Fragment, b *HapBlock, k int, w Window, gt Genotypes, eps float64) float64 {
	if len(gt) == 0 {
		return 0
	}
	penalty := 0.0
	logMismatch := math.Log(eps)
	for site := range f.Calls {
		if !w.Contains(site) {
			continue
		}
		evidence, ok := gt[site]
		if !ok {
			continue
		}
		cons, ok := b.ConsensusAt(k, site)
		if !ok {
			continue
		}
		if evidence[cons] == 0 {
			penalty += f.weightAt(site) * logMismatch
		}
	}
	return penalty
}

// scorePartition scores p against its own consensus block. Empty
// clusters contribute nothing; a partition with no fragments scores
// negative infinity.
func scorePartition(p *Partition, b *HapBlock, eps, lengthCorrection float64) float64 {
	if p.NumFragments() == 0 {
		return math.Inf(-1)
	}
	eps = clampEpsilon(eps)
	total := 0.0
	for k, c := range p.Clusters {
		for _, f := range c.sorted() {
			ll, n := fragmentLogLik(f, b, k, p.Window, eps)
			if n == 0 {
				continue
			}
			if lengthCorrection > 0 {
				ll *= lengthCorrection / (lengthCorrection + float64(n))
			}
			total += ll
		}
	}
	return total
}

func clampEpsilon(eps float64) float64 {
	const floor = 1e-6
	if eps < floor {
		return floor
	}
	if eps > 1-floor {
		return 1 - floor
	}
	return eps
}

// GenerateHapBlock partitions the fragments overlapping w into ploidy
// clusters. Seeding is greedy: the most informative fragment seeds the
// first cluster, and each further cluster is seeded by the fragment
// most dissimilar (by pairwise allele disagreement rate) to every seed
// chosen so far. The remaining fragments then join the cluster whose
// running consensus they disagree with least.
//
// Windows with fewer informative fragments than ploidy yield degenerate
// partitions with empty clusters; windows with no fragments yield an
// all-empty partition.
func GenerateHapBlock(w Window, ploidy int, store *Store, eps float64) *Partition {
	p := newPartition(w, ploidy)
	frags := store.Overlapping(w)
	if len(frags) == 0 {
		return p
	}
	eps = clampEpsilon(eps)

	// Most informative (most in-window calls) first.
	cands := append([]*Fragment(nil), frags...)
	sort.Slice(cands, func(i, j int) bool {
		ni, nj := cands[i].callsIn(w), cands[j].callsIn(w)
		if ni != nj {
			return ni > nj
		}
		return cands[i].Index < cands[j].Index
	})

	seeds := []*Fragment{cands[0]}
	seeded := map[*Fragment]bool{cands[0]: true}
	for len(seeds) < ploidy {
		var best *Fragment
		bestRate := -1.0
		for _, f := range cands {
			if seeded[f] {
				continue
			}
			// Worst-case similarity to the chosen seeds: a good new
			// seed is far from all of them.
			minRate := math.Inf(1)
			for _, s := range seeds {
				shared, diff := disagreement(f, s, w)
				rate := (float64(diff) + eps) / (float64(shared) + 1)
				if rate < minRate {
					minRate = rate
				}
			}
			if minRate > bestRate {
				bestRate = minRate
				best = f
			}
		}
		if best == nil {
			break // fewer fragments than ploidy
		}
		seeds = append(seeds, best)
		seeded[best] = true
	}

	b := NewHapBlock(ploidy)
	for k, s := range seeds {
		p.Clusters[k][s] = struct{}{}
		b.addFragment(k, s, w)
	}
	for _, f := range cands {
		if seeded[f] {
			continue
		}
		bestK, bestLL := 0, math.Inf(-1)
		for k := range p.Clusters {
			ll, n := fragmentLogLik(f, b, k, w, eps)
			if n == 0 {
				// No shared sites yet; weakly prefer small clusters so
				// coverage gaps do not pile everything into cluster 0.
				ll = float64(-len(p.Clusters[k]))
			}
			if ll > bestLL {
				bestK, bestLL = k, ll
			}
		}
		p.Clusters[bestK][f] = struct{}{}
		b.addFragment(bestK, f, w)
	}
	return p
}

// OptimizeClustering iteratively refines p: each round every fragment
// moves to the cluster whose current consensus it disagrees with least
// (ties keep the current assignment), then the consensus is rebuilt.
// The loop stops after maxIters rounds or at a fixed point. Because
// each round is locally greedy the score is not monotone, so the
// best-scoring state seen anywhere in the run is returned, not the
// last one.
//
// When usePolish is set, reassignment additionally penalizes clusters
// whose consensus contradicts the genotype evidence in gt.
func OptimizeClustering(p *Partition, eps float64, gt Genotypes, usePolish bool, maxIters int, lengthCorrection float64) (float64, *Partition, *HapBlock) {
	if p.NumFragments() == 0 {
		return math.Inf(-1), p, HapBlockFromPartition(p)
	}
	eps = clampEpsilon(eps)

	cur := p.clone()
	bestScore := math.Inf(-1)
	var bestPart *Partition
	var bestBlock *HapBlock
	record := func(b *HapBlock) {
		if s := scorePartition(cur, b, eps, lengthCorrection); s > bestScore {
			bestScore = s
			bestPart = cur.clone()
			bestBlock = b
		}
	}

	for iter := 0; iter < maxIters; iter++ {
		b := HapBlockFromPartition(cur)
		record(b)
		changed := false
		for _, f := range cur.fragments() {
			curK := cur.assignment(f)
			bestK := curK
			bestLL, n := fragmentLogLik(f, b, curK, cur.Window, eps)
			if usePolish {
				bestLL += genotypePenalty(f, b, curK, cur.Window, gt, eps)
			}
			if n == 0 {
				bestLL = math.Inf(-1)
			}
			for k := range cur.Clusters {
				if k == curK {
					continue
				}
				ll, n := fragmentLogLik(f, b, k, cur.Window, eps)
				if n == 0 {
					continue
				}
				if usePolish {
					ll += genotypePenalty(f, b, k, cur.Window, gt, eps)
				}
				if ll > bestLL {
					bestK, bestLL = k, ll
				}
			}
			if bestK != curK {
				delete(cur.Clusters[curK], f)
				cur.Clusters[bestK][f] = struct{}{}
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	record(HapBlockFromPartition(cur))
	return bestScore, bestPart, bestBlock
}
