package phase

import (
	"context"
	"strconv"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/tsv"
	"github.com/grailbio/hts/bgzf"
)

// WriteBlocks writes the final consensus haplotypes as TSV. Each row is
// one covered variant site: the 1-based site index, its genome
// coordinate (0 when no site-to-coordinate mapping was supplied), one
// allele column per haplotype ('-' where a haplotype has no coverage),
// and one supporting-vote-count column per haplotype.
//
// When bgzip is set the output is block-gzipped with the given
// compression parallelism.
func WriteBlocks(ctx context.Context, path string, res *Result, snpToGenomePos []int, bgzip bool, parallelism int) (err error) {
	var dst file.File
	if dst, err = file.Create(ctx, path); err != nil {
		return err
	}
	defer file.CloseAndReport(ctx, dst, &err)

	var w *tsv.Writer
	if bgzip {
		bgzfWriter := bgzf.NewWriter(dst.Writer(ctx), parallelism)
		defer func() {
			if e := bgzfWriter.Close(); e != nil && err == nil {
				err = e
			}
		}()
		w = tsv.NewWriter(bgzfWriter)
	} else {
		w = tsv.NewWriter(dst.Writer(ctx))
	}

	ploidy := res.Block.Ploidy()
	w.WriteString("#SITE")
	w.WriteString("POS")
	for k := 0; k < ploidy; k++ {
		w.WriteString("HAP" + strconv.Itoa(k))
	}
	for k := 0; k < ploidy; k++ {
		w.WriteString("SUPPORT" + strconv.Itoa(k))
	}
	if err = w.EndLine(); err != nil {
		return err
	}

	genomeLength := res.Partition.Window.End - 1
	for site := 1; site <= genomeLength; site++ {
		covered := false
		for k := 0; k < ploidy; k++ {
			if _, ok := res.Block.ConsensusAt(k, site); ok {
				covered = true
				break
			}
		}
		if !covered {
			continue
		}
		w.WriteUint32(uint32(site))
		pos := 0
		if site-1 < len(snpToGenomePos) {
			pos = snpToGenomePos[site-1]
		}
		w.WriteUint32(uint32(pos))
		for k := 0; k < ploidy; k++ {
			if cons, ok := res.Block.ConsensusAt(k, site); ok {
				w.WriteString(strconv.Itoa(int(cons)))
			} else {
				w.WriteString("-")
			}
		}
		for k := 0; k < ploidy; k++ {
			support := 0
			if cons, ok := res.Block.ConsensusAt(k, site); ok {
				support = res.Block.Seqs[k][site][cons]
			}
			w.WriteUint32(uint32(support))
		}
		if err = w.EndLine(); err != nil {
			return err
		}
	}
	return w.Flush()
}
