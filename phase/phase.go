// Package phase reconstructs the haplotype sequences of a polyploid
// organism from noisy long-read fragments. The genome is tiled into
// windows of variant sites; each window's fragments are partitioned
// into ploidy clusters under a sequencing-error likelihood model, the
// windows run independently in parallel, low-confidence windows are
// recomputed, and the per-window partitions are stitched into one
// genome-spanning partition whose consensus can optionally be polished
// against known genotypes.
package phase

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
)

// Result is the terminal output of one run.
type Result struct {
	// Block is the final per-haplotype consensus over the whole genome,
	// polished when genotype evidence was supplied.
	Block *HapBlock
	// Partition is the genome-spanning fragment partition.
	Partition *Partition
	// Scores are the per-window partition scores, in window order,
	// after repair.
	Scores []float64
	Stats  Stats
}

// Phase runs the full engine over the fragments in store. gt may be
// nil when no genotype evidence is available; opts.UsePolish is then
// ignored.
func Phase(store *Store, gt Genotypes, opts Opts) (*Result, error) {
	if opts.Ploidy < 1 {
		return nil, errors.E("phase: ploidy must be a positive integer")
	}
	if store == nil || store.Len() == 0 {
		return nil, errors.E("phase: fragment store is empty")
	}

	stats := Stats{Fragments: store.Len()}
	windowLength := opts.WindowLength
	if windowLength <= 0 {
		windowLength = store.AvgFragmentLength(opts.BlockLengthQuantile)
	}
	if windowLength <= 0 {
		windowLength = 1
	}
	genomeLength := store.GenomeLength()
	windows := layoutWindows(genomeLength, windowLength, opts.WindowOverlap)
	if len(windows) == 0 {
		return nil, errors.E("phase: no usable variant sites in input")
	}
	lengthCorrection := 0.0
	if opts.LengthCorrectionDivisor > 0 {
		lengthCorrection = float64(store.AvgFragmentLength(0.5)) / opts.LengthCorrectionDivisor
	}
	log.Printf("phase: %d fragments, genome length %d, %d windows of %d sites",
		store.Len(), genomeLength, len(windows), windowLength)

	eps := opts.ErrorRate
	if eps <= 0 {
		start := time.Now()
		var err error
		if eps, err = EstimateEpsilon(len(windows), opts.EpsilonAttempts, opts.Ploidy, store, windowLength, opts.InitialEpsilon); err != nil {
			return nil, err
		}
		log.Printf("phase: estimated epsilon %.4f (%s)", eps, time.Since(start))
	}
	stats.Epsilon = eps
	stats.WindowLength = windowLength
	stats.Windows = len(windows)
	usePolish := opts.UsePolish && len(gt) > 0

	// One independent task per window; results are appended under the
	// lock and restored to window order afterwards, since completion
	// order depends on scheduling.
	type windowResult struct {
		index int
		score float64
		part  *Partition
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	if parallelism > len(windows) {
		parallelism = len(windows)
	}
	var (
		mu      sync.Mutex
		results []windowResult
	)
	start := time.Now()
	err := traverse.Each(parallelism, func(jobIdx int) error {
		startIdx := (jobIdx * len(windows)) / parallelism
		endIdx := ((jobIdx + 1) * len(windows)) / parallelism
		for i := startIdx; i < endIdx; i++ {
			part := GenerateHapBlock(windows[i], opts.Ploidy, store, eps)
			score, best, _ := OptimizeClustering(part, eps, gt, usePolish, opts.MaxIters, lengthCorrection)
			mu.Lock()
			results = append(results, windowResult{index: i, score: score, part: best})
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })
	log.Printf("phase: local clustering done (%s)", time.Since(start))

	scores := make([]float64, len(results))
	parts := make([]*Partition, len(results))
	for i, r := range results {
		scores[i] = r.score
		parts[i] = r.part
		switch n := r.part.NumFragments(); {
		case n == 0:
			stats.EmptyWindows++
		case n < opts.Ploidy:
			stats.DegenerateWindows++
		}
	}

	if opts.Fill {
		start = time.Now()
		var repaired int
		scores, parts, repaired = ReplaceWithFilledBlocks(
			scores, parts, opts.OutlierFactor, windowLength, store, eps, opts.MaxIters, lengthCorrection)
		stats.RepairedWindows = repaired
		log.Printf("phase: block repair replaced %d windows (%s)", repaired, time.Since(start))
	}

	start = time.Now()
	global := LinkBlocksGreedy(parts)
	block := HapBlockFromPartition(global)
	if usePolish {
		sites := make([]int, genomeLength)
		for i := range sites {
			sites[i] = i + 1
		}
		block, stats.PolishedCalls = PolishUsingGenotypes(gt, block, sites)
	}
	log.Printf("phase: linking and polishing done (%s)", time.Since(start))

	return &Result{Block: block, Partition: global, Scores: scores, Stats: stats}, nil
}
