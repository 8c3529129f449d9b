// Package vcfgt extracts the genotype evidence the phasing engine
// consumes from a VCF: the ordered variant sites of one contig, the
// mapping from variant-site index to genome coordinate, the per-site
// allele multisets of the first sample's GT field, and the ploidy the
// genotyper asserted.
//
// Only the fields the engine needs are parsed; records are otherwise
// passed over without validation.
package vcfgt

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/phasing/phase"
	"github.com/pkg/errors"
)

// Site describes one VCF record.
type Site struct {
	// Index is the 1-based variant-site index, assigned in file order.
	Index int
	Chrom string
	// Pos is the 1-based genome coordinate.
	Pos  int
	Ref  string
	Alts []string
}

// IsSNP reports whether every allele of the site is a single base.
func (s Site) IsSNP() bool {
	if len(s.Ref) != 1 {
		return false
	}
	for _, alt := range s.Alts {
		if len(alt) != 1 {
			return false
		}
	}
	return true
}

// Data is the parsed genotype input of one run.
type Data struct {
	Sites []Site
	// SNPPositions maps variant-site index - 1 to genome coordinate.
	SNPPositions []int
	Genotypes    phase.Genotypes
	// Ploidy is the number of alleles per GT call. 0 when no record
	// carried a parseable GT.
	Ploidy int
}

// Read parses VCF text. The VCF must contain a single contig and a
// consistent GT ploidy across records; either violation is an error,
// since the engine cannot interpret such input.
func Read(r io.Reader) (*Data, error) {
	data := &Data{Genotypes: make(phase.Genotypes)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	sawHeader := false
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		if strings.HasPrefix(text, "##") || text == "" {
			continue
		}
		if strings.HasPrefix(text, "#") {
			sawHeader = true
			continue
		}
		if !sawHeader {
			return nil, errors.Errorf("vcf line %d: record before #CHROM header", line)
		}
		cols := strings.Split(text, "\t")
		if len(cols) < 8 {
			return nil, errors.Errorf("vcf line %d: %d columns", line, len(cols))
		}
		pos, err := strconv.Atoi(cols[1])
		if err != nil {
			return nil, errors.Wrapf(err, "vcf line %d: bad POS %q", line, cols[1])
		}
		site := Site{
			Index: len(data.Sites) + 1,
			Chrom: cols[0],
			Pos:   pos,
			Ref:   cols[3],
		}
		if cols[4] != "." {
			site.Alts = strings.Split(cols[4], ",")
		}
		if len(data.Sites) > 0 && site.Chrom != data.Sites[0].Chrom {
			return nil, errors.Errorf("vcf line %d: multiple contigs (%s, %s); phase one contig at a time",
				line, data.Sites[0].Chrom, site.Chrom)
		}
		data.Sites = append(data.Sites, site)
		data.SNPPositions = append(data.SNPPositions, pos)

		if len(cols) < 10 {
			continue // sites-only VCF, no genotype evidence
		}
		counts, ploidy, err := parseGT(cols[8], cols[9])
		if err != nil {
			return nil, errors.Wrapf(err, "vcf line %d", line)
		}
		if counts == nil {
			continue // missing call
		}
		if data.Ploidy == 0 {
			data.Ploidy = ploidy
		} else if ploidy != data.Ploidy {
			return nil, errors.Errorf("vcf line %d: GT ploidy %d, want %d", line, ploidy, data.Ploidy)
		}
		data.Genotypes[site.Index] = counts
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "reading vcf")
	}
	return data, nil
}

// parseGT extracts the first sample's GT field as an allele multiset.
// A missing call ("./." etc) returns nil counts and no error.
func parseGT(format, sample string) (phase.AlleleCounts, int, error) {
	gtIdx := -1
	for i, key := range strings.Split(format, ":") {
		if key == "GT" {
			gtIdx = i
			break
		}
	}
	if gtIdx < 0 {
		return nil, 0, nil
	}
	fields := strings.Split(sample, ":")
	if gtIdx >= len(fields) {
		return nil, 0, errors.Errorf("sample %q missing GT field", sample)
	}
	gt := strings.ReplaceAll(fields[gtIdx], "|", "/")
	parts := strings.Split(gt, "/")
	counts := make(phase.AlleleCounts, len(parts))
	for _, p := range parts {
		if p == "." {
			return nil, 0, nil
		}
		allele, err := strconv.Atoi(p)
		if err != nil || allele < 0 || allele > 255 {
			return nil, 0, errors.Errorf("bad GT allele %q", p)
		}
		counts[phase.Allele(allele)]++
	}
	return counts, len(parts), nil
}
