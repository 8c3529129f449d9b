package phase

import (
	"bufio"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// simulateDiploid generates staggered length-l fragments from two
// complementary haplotypes over sites 1..n, flipping each call with
// probability errRate.
func simulateDiploid(n, l int, errRate float64, seed int64) []*Fragment {
	rnd := rand.New(rand.NewSource(seed))
	hap := make([]Allele, n)
	for i := range hap {
		hap[i] = Allele(i % 2)
	}
	var frags []*Fragment
	id := 0
	for start := 1; start+l-1 <= n; start += 2 {
		for copyNum := 0; copyNum < 2; copyNum++ {
			f := &Fragment{
				Name:  "sim" + strconv.Itoa(id),
				First: start,
				Last:  start + l - 1,
				Calls: make(map[int]Allele, l),
				Quals: make(map[int]byte, l),
			}
			for s := start; s <= start+l-1; s++ {
				call := hap[s-1]
				if copyNum == 1 {
					call = 1 - call
				}
				if rnd.Float64() < errRate {
					call = 1 - call
				}
				f.Calls[s] = call
				f.Quals[s] = 30
			}
			frags = append(frags, f)
			id++
		}
	}
	return frags
}

func TestPhaseDiploidEndToEnd(t *testing.T) {
	store := NewStore(simulateDiploid(30, 10, 0.02, 1))
	opts := DefaultOpts
	opts.Ploidy = 2
	opts.ErrorRate = 0.02
	opts.Parallelism = 2

	res, err := Phase(store, nil, opts)
	assert.NoError(t, err)
	expect.EQ(t, res.Block.Ploidy(), 2)
	expect.EQ(t, res.Stats.Fragments, store.Len())
	expect.GT(t, res.Stats.Windows, 0)
	expect.EQ(t, len(res.Scores), res.Stats.Windows)

	n, disjoint := assignedOnce(res.Partition)
	expect.True(t, disjoint)
	expect.EQ(t, n, store.Len())

	// Every site must carry both alleles across the two haplotypes.
	het := 0
	for site := 1; site <= 30; site++ {
		a0, ok0 := res.Block.ConsensusAt(0, site)
		a1, ok1 := res.Block.ConsensusAt(1, site)
		if !ok0 || !ok1 {
			continue
		}
		if a0 != a1 {
			het++
		}
	}
	expect.GE(t, het, 28)
}

func TestPhaseEstimatesEpsilon(t *testing.T) {
	store := NewStore(simulateDiploid(30, 10, 0.03, 2))
	opts := DefaultOpts
	opts.Ploidy = 2
	opts.ErrorRate = 0 // force estimation
	opts.Parallelism = 1

	res, err := Phase(store, nil, opts)
	assert.NoError(t, err)
	expect.GT(t, res.Stats.Epsilon, 0.0)
	expect.LT(t, res.Stats.Epsilon, 0.5)
}

func TestPhaseWithGenotypePolish(t *testing.T) {
	store := NewStore(simulateDiploid(30, 10, 0.02, 3))
	gt := make(Genotypes)
	for site := 1; site <= 30; site++ {
		gt[site] = AlleleCounts{0: 1, 1: 1}
	}
	opts := DefaultOpts
	opts.Ploidy = 2
	opts.ErrorRate = 0.02
	opts.UsePolish = true
	opts.Parallelism = 1

	res, err := Phase(store, gt, opts)
	assert.NoError(t, err)
	for site := 1; site <= 30; site++ {
		a0, ok0 := res.Block.ConsensusAt(0, site)
		a1, ok1 := res.Block.ConsensusAt(1, site)
		if !ok0 || !ok1 {
			continue
		}
		expect.NEQ(t, a0, a1)
	}
}

func TestPhaseInvalidArgs(t *testing.T) {
	store := NewStore(simulateDiploid(30, 10, 0.02, 4))
	opts := DefaultOpts
	_, err := Phase(store, nil, opts) // ploidy unset
	expect.NotNil(t, err)

	opts.Ploidy = 2
	_, err = Phase(NewStore(nil), nil, opts)
	expect.NotNil(t, err)
}

func TestWriteBlocks(t *testing.T) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	store := NewStore(simulateDiploid(20, 8, 0, 5))
	opts := DefaultOpts
	opts.Ploidy = 2
	opts.ErrorRate = 0.02
	opts.Parallelism = 1
	res, err := Phase(store, nil, opts)
	assert.NoError(t, err)

	ctx := vcontext.Background()
	path := filepath.Join(tempDir, "blocks.tsv")
	snpPos := make([]int, 20)
	for i := range snpPos {
		snpPos[i] = 100 + 10*i
	}
	assert.NoError(t, WriteBlocks(ctx, path, res, snpPos, false, 1))

	in, err := os.Open(path)
	assert.NoError(t, err)
	defer in.Close() // nolint: errcheck
	scanner := bufio.NewScanner(in)
	assert.True(t, scanner.Scan())
	expect.EQ(t, scanner.Text(), "#SITE\tPOS\tHAP0\tHAP1\tSUPPORT0\tSUPPORT1")
	rows := 0
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), "\t")
		assert.EQ(t, len(fields), 6)
		rows++
	}
	assert.NoError(t, scanner.Err())
	expect.GT(t, rows, 0)
}
