package phase

import (
	"sync"

	"github.com/grailbio/base/traverse"
)

// minEpsilon is the floor for the estimated error rate. A degenerate
// sample can produce a raw estimate of exactly zero, which would make
// the likelihood model blow up downstream.
const minEpsilon = 0.01

// calibrationIters bounds the optimization rounds spent per trial
// window during calibration.
const calibrationIters = 10

// EstimateEpsilon estimates the per-call error rate by clustering
// numAttempts trial windows, evenly spaced across the numWindows
// windows of the genome, with the provisional rate initialGuess, and
// pooling the realized mismatch rate of fragments against their
// assigned cluster's consensus. The trial windows run in parallel.
//
// The returned estimate is always strictly positive.
func EstimateEpsilon(numWindows, numAttempts, ploidy int, store *Store, windowLength int, initialGuess float64) (float64, error) {
	if numWindows <= 0 || windowLength <= 0 || store.Len() == 0 {
		return minEpsilon, nil
	}
	if numAttempts > numWindows {
		numAttempts = numWindows
	}
	if numAttempts <= 0 {
		numAttempts = 1
	}
	stride := numWindows / numAttempts

	var (
		mu         sync.Mutex
		mismatches float64
		calls      float64
	)
	err := traverse.Each(numAttempts, func(i int) error {
		start := i * stride * windowLength
		w := Window{Start: start + 1, End: start + windowLength + 1}
		part := GenerateHapBlock(w, ploidy, store, initialGuess)
		_, best, block := OptimizeClustering(part, initialGuess, nil, false, calibrationIters, 0)
		if best == nil {
			return nil
		}
		m, c := residualMismatches(best, block)
		mu.Lock()
		mismatches += float64(m)
		calls += float64(c)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return 0, err
	}

	if calls == 0 {
		return minEpsilon, nil
	}
	eps := mismatches / calls
	if eps < minEpsilon {
		eps = minEpsilon
	}
	return eps, nil
}

// residualMismatches counts, over all assigned fragments, the calls
// that disagree with the assigned cluster's consensus, and the total
// calls compared.
func residualMismatches(p *Partition, b *HapBlock) (mismatches, calls int) {
	for k, c := range p.Clusters {
		for f := range c {
			for site, call := range f.Calls {
				if !p.Window.Contains(site) {
					continue
				}
				cons, ok := b.ConsensusAt(k, site)
				if !ok {
					continue
				}
				calls++
				if call != cons {
					mismatches++
				}
			}
		}
	}
	return mismatches, calls
}
