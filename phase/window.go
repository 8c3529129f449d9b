package phase

// Window is a half-open range [Start, End) of 1-based variant-site
// indices processed as one local clustering unit.
type Window struct {
	Start, End int
}

// Contains reports whether the site index lies inside the window.
func (w Window) Contains(site int) bool { return site >= w.Start && site < w.End }

// Len returns the number of sites in the window.
func (w Window) Len() int { return w.End - w.Start }

// widen grows the window by pad sites on each side, clamping the start
// at site 1.
func (w Window) widen(pad int) Window {
	start := w.Start - pad
	if start < 1 {
		start = 1
	}
	return Window{Start: start, End: w.End + pad}
}

// layoutWindows tiles sites [1, genomeLength] into windows of
// windowLength sites. Consecutive windows share overlap sites at each
// boundary. The last window always extends at least to genomeLength+1
// so no trailing sites are dropped.
func layoutWindows(genomeLength, windowLength, overlap int) []Window {
	if genomeLength <= 0 || windowLength <= 0 {
		return nil
	}
	n := genomeLength / windowLength
	if n == 0 || genomeLength%windowLength != 0 {
		n++
	}
	windows := make([]Window, 0, n)
	for i := 0; i < n; i++ {
		start := i*windowLength + 1
		end := start + windowLength + overlap
		if i == n-1 && end < genomeLength+1 {
			end = genomeLength + 1
		}
		windows = append(windows, Window{Start: start, End: end})
	}
	return windows
}
