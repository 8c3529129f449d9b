// Package bamfrag builds phasing fragments from aligned reads: given a
// BAM and the variant sites of a VCF, it reports, per read (or read
// pair), the allele observed at every SNP site the alignment covers.
package bamfrag

import (
	"io"
	"sort"
	"strings"

	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/phasing/encoding/vcfgt"
	"github.com/grailbio/phasing/phase"
	"github.com/pkg/errors"
)

// Opts controls read filtering.
type Opts struct {
	// MinMapQ drops reads below this mapping quality.
	MinMapQ byte
	// MinBaseQual drops individual allele observations below this base
	// quality.
	MinBaseQual byte
}

// DefaultOpts sets the default values to Opts.
var DefaultOpts = Opts{
	MinMapQ:     15,
	MinBaseQual: 10,
}

// excludeFlags marks reads that never contribute observations.
const excludeFlags = sam.Unmapped | sam.Secondary | sam.Supplementary | sam.Duplicate | sam.QCFail

// Read decodes the BAM in r and returns one fragment per read name
// with at least two SNP-site observations. Paired-end mates share a
// name and are merged into a single fragment; on a conflicting double
// observation the higher-quality call wins. Non-SNP sites are ignored.
func Read(r io.Reader, sites []vcfgt.Site, opts Opts) ([]*phase.Fragment, error) {
	snps := make([]vcfgt.Site, 0, len(sites))
	for _, s := range sites {
		if s.IsSNP() {
			snps = append(snps, s)
		}
	}
	sort.Slice(snps, func(i, j int) bool { return snps[i].Pos < snps[j].Pos })

	br, err := bam.NewReader(r, 1)
	if err != nil {
		return nil, errors.Wrap(err, "opening bam")
	}
	defer br.Close()

	byName := make(map[string]*phase.Fragment)
	for {
		rec, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading bam")
		}
		if rec.Flags&excludeFlags != 0 || rec.MapQ < opts.MinMapQ || rec.Ref == nil {
			continue
		}
		if len(snps) > 0 && rec.Ref.Name() != snps[0].Chrom {
			continue
		}
		f := byName[rec.Name]
		if f == nil {
			f = &phase.Fragment{
				Name:  rec.Name,
				Calls: make(map[int]phase.Allele),
				Quals: make(map[int]byte),
			}
			byName[rec.Name] = f
		}
		observeRecord(f, rec, snps, opts.MinBaseQual)
	}

	frags := make([]*phase.Fragment, 0, len(byName))
	for _, f := range byName {
		// A fragment observing fewer than two sites cannot connect
		// anything and only adds noise to the consensus.
		if len(f.Calls) < 2 {
			continue
		}
		for site := range f.Calls {
			if f.First == 0 || site < f.First {
				f.First = site
			}
			if site > f.Last {
				f.Last = site
			}
		}
		frags = append(frags, f)
	}
	sort.Slice(frags, func(i, j int) bool { return frags[i].Name < frags[j].Name })
	return frags, nil
}

// observeRecord walks rec's CIGAR and adds an allele call for every
// SNP site aligned to a read base.
func observeRecord(f *phase.Fragment, rec *sam.Record, snps []vcfgt.Site, minBaseQual byte) {
	start := rec.Pos // 0-based
	si := sort.Search(len(snps), func(i int) bool { return snps[i].Pos-1 >= start })
	if si == len(snps) {
		return
	}
	seq := rec.Seq.Expand()

	refPos, readPos := rec.Pos, 0
	for _, co := range rec.Cigar {
		if si == len(snps) {
			break
		}
		consumes := co.Type().Consumes()
		segLen := co.Len()
		if consumes.Reference != 0 {
			segEnd := refPos + segLen
			for si < len(snps) && snps[si].Pos-1 < segEnd {
				if consumes.Query != 0 {
					// Aligned segment: the site maps to a read base.
					off := readPos + (snps[si].Pos - 1 - refPos)
					q := byte(0)
					if off < len(rec.Qual) {
						q = rec.Qual[off]
					}
					if off < len(seq) && (len(rec.Qual) == 0 || q >= minBaseQual) {
						observeBase(f, snps[si], seq[off], q)
					}
				}
				// Deletions and reference skips pass sites with no
				// observation.
				si++
			}
		}
		refPos += consumes.Reference * segLen
		readPos += consumes.Query * segLen
	}
}

// observeBase records the allele encoding of base at site, keeping the
// higher-quality call when the site was already observed by the mate.
func observeBase(f *phase.Fragment, site vcfgt.Site, base, qual byte) {
	b := strings.ToUpper(string(base))
	var allele phase.Allele
	switch {
	case b == strings.ToUpper(site.Ref):
		allele = 0
	default:
		matched := false
		for i, alt := range site.Alts {
			if b == strings.ToUpper(alt) {
				allele = phase.Allele(i + 1)
				matched = true
				break
			}
		}
		if !matched {
			return // base matches neither ref nor any alt
		}
	}
	if _, ok := f.Calls[site.Index]; ok && f.Quals[site.Index] >= qual {
		return
	}
	f.Calls[site.Index] = allele
	f.Quals[site.Index] = qual
}
