package phase

import (
	"math"
	"testing"

	"github.com/grailbio/testutil/expect"
)

func TestTrivialSingleCluster(t *testing.T) {
	// Three identical fragments over sites 1-3, ploidy 1: one cluster
	// holding everything, consensus equal to the common sequence.
	frags := []*Fragment{
		newTestFrag("r1", 1, "010"),
		newTestFrag("r2", 1, "010"),
		newTestFrag("r3", 1, "010"),
	}
	s := NewStore(frags)
	w := Window{1, 4}
	const eps = 0.03
	p := GenerateHapBlock(w, 1, s, eps)
	score, best, block := OptimizeClustering(p, eps, nil, false, 10, 0)

	expect.EQ(t, len(best.Clusters), 1)
	expect.EQ(t, len(best.Clusters[0]), 3)
	want := []Allele{0, 1, 0}
	for site := 1; site <= 3; site++ {
		cons, ok := block.ConsensusAt(0, site)
		expect.True(t, ok)
		expect.EQ(t, cons, want[site-1])
	}
	// All nine calls match the consensus: the score is maximal for
	// this fragment set.
	expect.True(t, math.Abs(score-9*math.Log(1-eps)) < 1e-9)
}

func TestSeparatesTwoHaplotypes(t *testing.T) {
	var frags []*Fragment
	for i := 0; i < 3; i++ {
		frags = append(frags, newTestFrag("a", 1, "0000"))
		frags = append(frags, newTestFrag("b", 1, "1111"))
	}
	s := NewStore(frags)
	w := Window{1, 5}
	p := GenerateHapBlock(w, 2, s, 0.03)
	_, best, block := OptimizeClustering(p, 0.03, nil, false, 10, 0)

	n, disjoint := assignedOnce(best)
	expect.EQ(t, n, 6)
	expect.True(t, disjoint)
	expect.EQ(t, len(best.Clusters[0]), 3)
	expect.EQ(t, len(best.Clusters[1]), 3)
	// The two consensus sequences are the two haplotypes.
	for site := 1; site <= 4; site++ {
		c0, ok0 := block.ConsensusAt(0, site)
		c1, ok1 := block.ConsensusAt(1, site)
		expect.True(t, ok0 && ok1)
		expect.NEQ(t, c0, c1)
	}
}

func TestToleratesNoise(t *testing.T) {
	frags := []*Fragment{
		newTestFrag("a1", 1, "000000"),
		newTestFrag("a2", 1, "000100"), // one error
		newTestFrag("a3", 1, "000000"),
		newTestFrag("b1", 1, "111111"),
		newTestFrag("b2", 1, "111111"),
		newTestFrag("b3", 1, "110111"), // one error
	}
	s := NewStore(frags)
	p := GenerateHapBlock(Window{1, 7}, 2, s, 0.03)
	_, best, block := OptimizeClustering(p, 0.03, nil, false, 10, 0)

	// The noisy fragments cluster with their haplotype of origin.
	byName := make(map[string]int)
	for k := range best.Clusters {
		for f := range best.Clusters[k] {
			byName[f.Name] = k
		}
	}
	expect.EQ(t, byName["a1"], byName["a2"])
	expect.EQ(t, byName["a2"], byName["a3"])
	expect.EQ(t, byName["b1"], byName["b2"])
	expect.EQ(t, byName["b2"], byName["b3"])
	expect.NEQ(t, byName["a1"], byName["b1"])
	// Majority vote erases the single errors.
	for site := 1; site <= 6; site++ {
		cons, ok := block.ConsensusAt(byName["a1"], site)
		expect.True(t, ok)
		expect.EQ(t, cons, Allele(0))
	}
}

func TestEmptyWindow(t *testing.T) {
	s := NewStore([]*Fragment{newTestFrag("a", 1, "01")})
	p := GenerateHapBlock(Window{100, 110}, 2, s, 0.03)
	expect.EQ(t, p.NumFragments(), 0)
	score, best, block := OptimizeClustering(p, 0.03, nil, false, 10, 0)
	expect.True(t, math.IsInf(score, -1))
	expect.EQ(t, best.NumFragments(), 0)
	expect.EQ(t, block.Ploidy(), 2)
}

func TestDegeneratePartition(t *testing.T) {
	// One fragment, ploidy 3: two clusters stay empty, scoring must
	// not blow up.
	s := NewStore([]*Fragment{newTestFrag("only", 1, "0101")})
	p := GenerateHapBlock(Window{1, 5}, 3, s, 0.03)
	score, best, _ := OptimizeClustering(p, 0.03, nil, false, 10, 0)
	expect.EQ(t, best.NumFragments(), 1)
	expect.False(t, math.IsInf(score, 0))
	empty := 0
	for _, c := range best.Clusters {
		if len(c) == 0 {
			empty++
		}
	}
	expect.EQ(t, empty, 2)
}

func TestOptimizeNonRegressionFromFixedPoint(t *testing.T) {
	frags := []*Fragment{
		newTestFrag("a1", 1, "000100"),
		newTestFrag("a2", 1, "000000"),
		newTestFrag("a3", 2, "00000"),
		newTestFrag("b1", 1, "111111"),
		newTestFrag("b2", 1, "101111"),
		newTestFrag("b3", 3, "1111"),
	}
	s := NewStore(frags)
	p := GenerateHapBlock(Window{1, 7}, 2, s, 0.03)
	score1, best1, _ := OptimizeClustering(p, 0.03, nil, false, 10, 2.0)
	score2, _, _ := OptimizeClustering(best1, 0.03, nil, false, 10, 2.0)
	expect.GE(t, score2, score1)
}
