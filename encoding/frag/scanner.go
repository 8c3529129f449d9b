// Package frag reads and writes fragment files: one line per read,
// whitespace-separated, in the layout used by H-PoP style phasers:
//
//	<#blocks> <name> <start_1> <calls_1> ... <start_n> <calls_n> <quals>
//
// Each block is a run of consecutive 1-based variant-site indices
// starting at start_i, with one allele digit per site in calls_i. The
// final field holds one phred+33 quality character per allele call,
// concatenated over all blocks in order.
//
// Example (read covering sites 2-4 and 7-8):
//
//	2 read1 2 010 7 11 IIIII
package frag

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/phasing/phase"
	"github.com/pkg/errors"
)

// ErrInvalid is returned when a malformed fragment line is encountered.
var ErrInvalid = errors.New("invalid fragment file")

// Scanner reads fragments one line at a time. Scanners are not
// threadsafe.
type Scanner struct {
	b    *bufio.Scanner
	frag *phase.Fragment
	err  error
	line int
}

// NewScanner constructs a Scanner reading raw fragment-file data from
// the provided reader.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{b: bufio.NewScanner(r)}
}

// Scan advances to the next fragment. It returns false at end of input
// or on the first malformed line; Err distinguishes the two.
func (s *Scanner) Scan() bool {
	if s.err != nil {
		return false
	}
	for s.b.Scan() {
		s.line++
		text := strings.TrimSpace(s.b.Text())
		if text == "" {
			continue
		}
		frag, err := parseLine(text)
		if err != nil {
			s.err = errors.Wrapf(err, "line %d", s.line)
			return false
		}
		s.frag = frag
		return true
	}
	s.err = s.b.Err()
	return false
}

// Fragment returns the fragment parsed by the last successful Scan.
func (s *Scanner) Fragment() *phase.Fragment { return s.frag }

// Err returns the first error encountered, or nil at a clean EOF.
func (s *Scanner) Err() error { return s.err }

func parseLine(text string) (*phase.Fragment, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil, errors.Wrap(ErrInvalid, "too few fields")
	}
	nBlocks, err := strconv.Atoi(fields[0])
	if err != nil || nBlocks < 1 {
		return nil, errors.Wrapf(ErrInvalid, "bad block count %q", fields[0])
	}
	if len(fields) != 2+2*nBlocks+1 {
		return nil, errors.Wrapf(ErrInvalid, "want %d fields for %d blocks, have %d",
			2+2*nBlocks+1, nBlocks, len(fields))
	}
	f := &phase.Fragment{
		Name:  fields[1],
		Calls: make(map[int]phase.Allele),
		Quals: make(map[int]byte),
	}
	var sites []int
	for i := 0; i < nBlocks; i++ {
		start, err := strconv.Atoi(fields[2+2*i])
		if err != nil || start < 1 {
			return nil, errors.Wrapf(ErrInvalid, "bad block start %q", fields[2+2*i])
		}
		calls := fields[3+2*i]
		for j := 0; j < len(calls); j++ {
			ch := calls[j]
			if ch < '0' || ch > '9' {
				return nil, errors.Wrapf(ErrInvalid, "bad allele %q", string(ch))
			}
			site := start + j
			if _, ok := f.Calls[site]; ok {
				return nil, errors.Wrapf(ErrInvalid, "duplicate call at site %d", site)
			}
			f.Calls[site] = phase.Allele(ch - '0')
			sites = append(sites, site)
		}
	}
	quals := fields[len(fields)-1]
	if len(quals) != len(sites) {
		return nil, errors.Wrapf(ErrInvalid, "%d quality chars for %d calls", len(quals), len(sites))
	}
	for i, site := range sites {
		if quals[i] < '!' {
			return nil, errors.Wrapf(ErrInvalid, "bad quality char %q", string(quals[i]))
		}
		f.Quals[site] = quals[i] - '!'
	}
	f.First, f.Last = sites[0], sites[0]
	for _, site := range sites {
		if site < f.First {
			f.First = site
		}
		if site > f.Last {
			f.Last = site
		}
	}
	return f, nil
}

// ReadAll scans r to completion and returns every fragment.
func ReadAll(r io.Reader) ([]*phase.Fragment, error) {
	sc := NewScanner(r)
	var frags []*phase.Fragment
	for sc.Scan() {
		frags = append(frags, sc.Fragment())
	}
	return frags, sc.Err()
}
