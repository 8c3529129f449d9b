package phase

import "sort"

// LinkBlocksGreedy folds the index-ordered window partitions into one
// genome-spanning partition. Cluster labels carry no identity across
// windows, so for every transition the linker scores each (running
// global cluster, next-window cluster) pair by the number of shared
// fragments and commits pairs greedily in decreasing score order, each
// side used at most once. Ties break toward the lowest (global, local)
// index pair so runs are reproducible.
//
// A window sharing no fragments with the running clusters (boundary
// gap) is linked by consensus-sequence agreement over the sites both
// sides cover; when there is no such evidence either, labels map by
// index. A fragment already committed to a global cluster keeps that
// assignment, so the output clusters stay disjoint.
func LinkBlocksGreedy(parts []*Partition) *Partition {
	var global *Partition
	var tally []map[int]AlleleCounts
	end := 0

	for _, p := range parts {
		if p == nil {
			continue
		}
		if p.Window.End > end {
			end = p.Window.End
		}
		if p.NumFragments() == 0 {
			continue
		}
		if global == nil {
			global = p.clone()
			tally = HapBlockFromPartition(p).Seqs
			continue
		}
		perm := matchClusters(global, tally, p)
		local := HapBlockFromPartition(p)
		for c, g := range perm {
			for _, f := range p.Clusters[c].sorted() {
				if global.assignment(f) >= 0 {
					continue
				}
				global.Clusters[g][f] = struct{}{}
			}
			mergeTally(tally[g], local.Seqs[c])
		}
	}
	if global == nil {
		return newPartition(Window{Start: 1, End: end}, 0)
	}
	global.Window = Window{Start: 1, End: end}
	return global
}

// matchClusters returns perm, mapping each cluster index of next to a
// cluster index of global.
func matchClusters(global *Partition, tally []map[int]AlleleCounts, next *Partition) []int {
	ploidy := len(global.Clusters)
	type pairScore struct {
		score int
		g, c  int
	}
	pairs := make([]pairScore, 0, ploidy*len(next.Clusters))

	total := 0
	for g := 0; g < ploidy; g++ {
		for c := range next.Clusters {
			n := 0
			for f := range next.Clusters[c] {
				if _, ok := global.Clusters[g][f]; ok {
					n++
				}
			}
			total += n
			pairs = append(pairs, pairScore{score: n, g: g, c: c})
		}
	}
	if total == 0 {
		// Boundary gap: no fragment spans the transition. Fall back to
		// consensus agreement on the sites both sides cover.
		nextBlock := HapBlockFromPartition(next)
		pairs = pairs[:0]
		for g := 0; g < ploidy; g++ {
			for c := range next.Clusters {
				pairs = append(pairs, pairScore{score: consensusAgreement(tally[g], nextBlock.Seqs[c]), g: g, c: c})
			}
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.g != b.g {
			return a.g < b.g
		}
		return a.c < b.c
	})

	perm := make([]int, len(next.Clusters))
	for i := range perm {
		perm[i] = -1
	}
	usedG := make([]bool, ploidy)
	assigned := 0
	for _, pr := range pairs {
		if usedG[pr.g] || perm[pr.c] >= 0 {
			continue
		}
		perm[pr.c] = pr.g
		usedG[pr.g] = true
		assigned++
		if assigned == len(perm) {
			break
		}
	}
	// Left-over labels (ploidy mismatch between sides) map in index
	// order to the free global clusters.
	for c := range perm {
		if perm[c] >= 0 {
			continue
		}
		for g := 0; g < ploidy; g++ {
			if !usedG[g] {
				perm[c] = g
				usedG[g] = true
				break
			}
		}
		if perm[c] < 0 {
			perm[c] = c % ploidy
		}
	}
	return perm
}

// consensusAgreement counts the sites where both tallies have data and
// their consensus alleles agree, minus the sites where they disagree.
func consensusAgreement(a, b map[int]AlleleCounts) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	score := 0
	for site, counts := range a {
		other, ok := b[site]
		if !ok {
			continue
		}
		ca, okA := counts.Consensus()
		cb, okB := other.Consensus()
		if !okA || !okB {
			continue
		}
		if ca == cb {
			score++
		} else {
			score--
		}
	}
	return score
}

func mergeTally(dst, src map[int]AlleleCounts) {
	for site, counts := range src {
		d, ok := dst[site]
		if !ok {
			d = make(AlleleCounts)
			dst[site] = d
		}
		for a, n := range counts {
			d[a] += n
		}
	}
}
