package phase

import (
	"math"
	"sort"

	"github.com/grailbio/base/log"
)

// ReplaceWithFilledBlocks detects windows whose score is an extreme
// outlier and recomputes them. A window is flagged when its score
// falls below Q1 - outlierFactor*IQR of the finite window scores.
// Flagged windows are re-clustered over a widened window with a
// tripled iteration budget; the recomputed partition, restricted back
// to the original window, replaces the old one only when it strictly
// improves the score. Windows that cannot be improved keep their
// original partition, so this step never makes any window worse.
//
// Returns the updated scores and partitions plus the number of windows
// actually replaced.
func ReplaceWithFilledBlocks(scores []float64, parts []*Partition, outlierFactor float64, windowLength int, store *Store, eps float64, maxIters int, lengthCorrection float64) ([]float64, []*Partition, int) {
	finite := make([]float64, 0, len(scores))
	for _, s := range scores {
		if !math.IsInf(s, 0) && !math.IsNaN(s) {
			finite = append(finite, s)
		}
	}
	if len(finite) < 4 {
		return scores, parts, 0
	}
	sort.Float64s(finite)
	q1 := quantileOf(finite, 0.25)
	q3 := quantileOf(finite, 0.75)
	threshold := q1 - outlierFactor*(q3-q1)

	outScores := append([]float64(nil), scores...)
	outParts := append([]*Partition(nil), parts...)
	repaired := 0
	for i, s := range scores {
		if math.IsInf(s, -1) || s >= threshold {
			// -Inf marks an empty window: nothing to repair there.
			continue
		}
		orig := parts[i]
		wide := orig.Window.widen(windowLength / 2)
		cand := GenerateHapBlock(wide, orig.Ploidy(), store, eps)
		_, candPart, _ := OptimizeClustering(cand, eps, nil, false, 3*maxIters, lengthCorrection)
		if candPart == nil {
			continue
		}
		restricted := candPart.restrictTo(orig.Window)
		candScore := scorePartition(restricted, HapBlockFromPartition(restricted), eps, lengthCorrection)
		if candScore > s {
			log.Debug.Printf("filled window %d [%d,%d): score %f -> %f",
				i, orig.Window.Start, orig.Window.End, s, candScore)
			outScores[i] = candScore
			outParts[i] = restricted
			repaired++
		}
	}
	return outScores, outParts, repaired
}

// quantileOf returns the q-quantile of sorted xs by linear
// interpolation.
func quantileOf(xs []float64, q float64) float64 {
	if len(xs) == 1 {
		return xs[0]
	}
	pos := q * float64(len(xs)-1)
	lo := int(pos)
	if lo >= len(xs)-1 {
		return xs[len(xs)-1]
	}
	frac := pos - float64(lo)
	return xs[lo]*(1-frac) + xs[lo+1]*frac
}
