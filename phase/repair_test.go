package phase

import (
	"testing"

	"github.com/grailbio/testutil/expect"
)

// buildWindows clusters every window of the store and returns the
// scores and partitions in window order.
func buildWindows(s *Store, windows []Window, ploidy int, eps float64) ([]float64, []*Partition) {
	scores := make([]float64, len(windows))
	parts := make([]*Partition, len(windows))
	for i, w := range windows {
		p := GenerateHapBlock(w, ploidy, s, eps)
		scores[i], parts[i], _ = OptimizeClustering(p, eps, nil, false, 10, 0)
	}
	return scores, parts
}

func TestRepairNeverDecreasesScores(t *testing.T) {
	const eps = 0.03
	var frags []*Fragment
	// Clean diploid data over sites 1-40, fragments of 10 sites every
	// 2 sites.
	for start := 1; start+9 <= 40; start += 2 {
		frags = append(frags, newTestFrag("a", start, "0000000000"))
		frags = append(frags, newTestFrag("b", start, "1111111111"))
	}
	s := NewStore(frags)
	windows := layoutWindows(40, 10, 0)
	scores, parts := buildWindows(s, windows, 2, eps)

	// Corrupt one window: move half of one cluster into the other and
	// rescore, making it a low outlier.
	bad := 1
	corrupted := parts[bad].clone()
	moved := 0
	for _, f := range corrupted.Clusters[0].sorted() {
		if moved == len(corrupted.Clusters[0])/2 {
			break
		}
		delete(corrupted.Clusters[0], f)
		corrupted.Clusters[1][f] = struct{}{}
		moved++
	}
	parts[bad] = corrupted
	scores[bad] = scorePartition(corrupted, HapBlockFromPartition(corrupted), eps, 0)

	newScores, newParts, repaired := ReplaceWithFilledBlocks(scores, parts, 0.5, 10, s, eps, 10, 0)
	for i := range scores {
		expect.GE(t, newScores[i], scores[i])
	}
	expect.GE(t, repaired, 1)
	expect.GT(t, newScores[bad], scores[bad])
	n, disjoint := assignedOnce(newParts[bad])
	expect.True(t, disjoint)
	expect.EQ(t, n, parts[bad].NumFragments())
}

func TestRepairKeepsUnflaggedWindows(t *testing.T) {
	const eps = 0.03
	var frags []*Fragment
	for start := 1; start+9 <= 40; start += 2 {
		frags = append(frags, newTestFrag("a", start, "0000000000"))
		frags = append(frags, newTestFrag("b", start, "1111111111"))
	}
	s := NewStore(frags)
	windows := layoutWindows(40, 10, 0)
	scores, parts := buildWindows(s, windows, 2, eps)

	newScores, newParts, repaired := ReplaceWithFilledBlocks(scores, parts, 3.0, 10, s, eps, 10, 0)
	expect.EQ(t, repaired, 0)
	for i := range parts {
		expect.EQ(t, newScores[i], scores[i])
		expect.True(t, newParts[i] == parts[i])
	}
}

func TestQuantileOf(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	expect.EQ(t, quantileOf(xs, 0), 1.0)
	expect.EQ(t, quantileOf(xs, 0.5), 3.0)
	expect.EQ(t, quantileOf(xs, 1), 5.0)
	expect.EQ(t, quantileOf(xs, 0.25), 2.0)
	expect.EQ(t, quantileOf([]float64{7}, 0.75), 7.0)
}
