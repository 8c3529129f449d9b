package frag

import (
	"bufio"
	"io"
	"sort"
	"strconv"

	"github.com/grailbio/phasing/phase"
)

// defaultQual is written for calls without a recorded quality.
const defaultQual = 30

// Writer emits fragments in the format read by Scanner.
type Writer struct {
	w *bufio.Writer
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits one fragment line. Consecutive called sites are merged
// into blocks; calls without a quality are written as phred 30.
func (w *Writer) Write(f *phase.Fragment) error {
	sites := make([]int, 0, len(f.Calls))
	for site := range f.Calls {
		sites = append(sites, site)
	}
	sort.Ints(sites)
	if len(sites) == 0 {
		return nil
	}

	type block struct {
		start int
		calls []byte
	}
	var blocks []block
	quals := make([]byte, 0, len(sites))
	for _, site := range sites {
		call := byte('0') + byte(f.Calls[site])
		if n := len(blocks); n > 0 && blocks[n-1].start+len(blocks[n-1].calls) == site {
			blocks[n-1].calls = append(blocks[n-1].calls, call)
		} else {
			blocks = append(blocks, block{start: site, calls: []byte{call}})
		}
		q, ok := f.Quals[site]
		if !ok {
			q = defaultQual
		}
		quals = append(quals, '!'+q)
	}

	b := w.w
	if _, err := b.WriteString(strconv.Itoa(len(blocks))); err != nil {
		return err
	}
	b.WriteByte(' ')
	b.WriteString(f.Name)
	for _, blk := range blocks {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(blk.start))
		b.WriteByte(' ')
		b.Write(blk.calls)
	}
	b.WriteByte(' ')
	b.Write(quals)
	return b.WriteByte('\n')
}

// Flush writes any buffered data to the underlying writer.
func (w *Writer) Flush() error { return w.w.Flush() }
