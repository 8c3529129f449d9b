// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

/*
bio-phase reconstructs the haplotype sequences of a polyploid organism
from long-read fragments.

Example usage:

	bio-phase -b aln.bam -v calls.vcf -p 4 -o phased.tsv   (BAM and VCF)
	bio-phase -f reads.frags -p 3 -o phased.tsv            (fragment file)
	bio-phase -f reads.frags -v calls.vcf -p 3 -o phased.tsv  (polished)
*/

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/phasing/encoding/bamfrag"
	"github.com/grailbio/phasing/encoding/frag"
	"github.com/grailbio/phasing/encoding/vcfgt"
	"github.com/grailbio/phasing/phase"
)

var (
	fragPath     = flag.String("f", "", "Input fragment file; this xor -b required")
	bamPath      = flag.String("b", "", "Input BAM file; requires -v")
	vcfPath      = flag.String("v", "", "Input VCF; mandatory with -b, enables genotype polishing with -f")
	ploidy       = flag.Int("p", 0, "Ploidy of the organism (required)")
	threads      = flag.Int("t", 10, "Number of threads to use")
	outPath      = flag.String("o", "bio-phase.tsv", "Output path")
	epsilon      = flag.Float64("e", 0, "Per-call error rate; 0 estimates it from the data")
	windowLength = flag.Int("window-length", 0, "Variant sites per window; 0 derives it from the fragment length distribution")
	maxIters     = flag.Int("iters", phase.DefaultOpts.MaxIters, "Optimization iterations per window")
	outlier      = flag.Float64("outlier-factor", phase.DefaultOpts.OutlierFactor, "IQR factor for flagging low-score windows")
	noFill       = flag.Bool("no-fill", false, "Disable recomputation of low-score windows")
	bgz          = flag.Bool("bgz", false, "Block-gzip the output")
)

func bioPhaseUsage() {
	fmt.Printf("Usage: %s [OPTIONS] -p ploidy {-f fragfile | -b bamfile -v vcffile}\n", os.Args[0])
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioPhaseUsage
	shutdown := grail.Init()
	defer shutdown()
	ctx := vcontext.Background()

	if *ploidy < 1 {
		log.Fatalf("-p: ploidy must be a positive integer, have %d", *ploidy)
	}
	if *fragPath != "" && *bamPath != "" {
		log.Fatalf("-f and -b are mutually exclusive")
	}
	if *fragPath == "" && *bamPath == "" {
		log.Fatalf("one of -f or -b is required")
	}
	if *bamPath != "" && *vcfPath == "" {
		log.Fatalf("-b requires a VCF (-v)")
	}

	start := time.Now()
	var vcfData *vcfgt.Data
	if *vcfPath != "" {
		in, closeIn := openInput(ctx, *vcfPath)
		var err error
		if vcfData, err = vcfgt.Read(in); err != nil {
			log.Fatalf("reading %s: %v", *vcfPath, err)
		}
		closeIn()
		if vcfData.Ploidy != 0 && vcfData.Ploidy != *ploidy {
			log.Fatalf("VCF ploidy %d doesn't match -p %d", vcfData.Ploidy, *ploidy)
		}
	}

	var frags []*phase.Fragment
	var err error
	if *fragPath != "" {
		in, closeIn := openInput(ctx, *fragPath)
		frags, err = frag.ReadAll(in)
		closeIn()
		if err != nil {
			log.Fatalf("reading %s: %v", *fragPath, err)
		}
	} else {
		in, closeIn := openInput(ctx, *bamPath)
		frags, err = bamfrag.Read(in, vcfData.Sites, bamfrag.DefaultOpts)
		closeIn()
		if err != nil {
			log.Fatalf("reading %s: %v", *bamPath, err)
		}
	}
	log.Printf("read %d fragments in %s", len(frags), time.Since(start))
	store := phase.NewStore(frags)

	opts := phase.DefaultOpts
	opts.Ploidy = *ploidy
	opts.ErrorRate = *epsilon
	opts.WindowLength = *windowLength
	opts.MaxIters = *maxIters
	opts.OutlierFactor = *outlier
	opts.Fill = !*noFill
	opts.Parallelism = *threads
	var gt phase.Genotypes
	var snpPositions []int
	if vcfData != nil {
		gt = vcfData.Genotypes
		snpPositions = vcfData.SNPPositions
		opts.UsePolish = len(gt) > 0
	}

	res, err := phase.Phase(store, gt, opts)
	if err != nil {
		log.Fatalf("phasing failed: %v", err)
	}
	if err := phase.WriteBlocks(ctx, *outPath, res, snpPositions, *bgz, *threads); err != nil {
		log.Fatalf("writing %s: %v", *outPath, err)
	}
	log.Printf("wrote %s; %d windows (%d empty, %d repaired), epsilon %.4f, %d polished calls, total %s",
		*outPath, res.Stats.Windows, res.Stats.EmptyWindows, res.Stats.RepairedWindows,
		res.Stats.Epsilon, res.Stats.PolishedCalls, time.Since(start))
}

// openInput opens path via the file package and transparently
// decompresses it based on the path extension.
func openInput(ctx context.Context, path string) (io.Reader, func()) {
	in, err := file.Open(ctx, path)
	if err != nil {
		log.Fatalf("open %v: %v", path, err)
	}
	var r io.Reader = in.Reader(ctx)
	if u := compress.NewReaderPath(r, in.Name()); u != nil {
		r = u
	}
	return r, func() {
		if err := in.Close(ctx); err != nil {
			log.Error.Printf("close %v: %v", path, err)
		}
	}
}
