package phase

// Stats represents high-level statistics of one phasing run.
type Stats struct {
	// Fragments is the number of fragments in the store.
	Fragments int
	// Windows is the number of windows the genome was tiled into.
	Windows int
	// EmptyWindows counts windows with no overlapping fragments.
	EmptyWindows int
	// DegenerateWindows counts windows with fewer fragments than
	// ploidy, which leave clusters empty.
	DegenerateWindows int
	// RepairedWindows counts windows replaced by block repair.
	RepairedWindows int
	// PolishedCalls counts consensus calls changed by the genotype
	// polisher.
	PolishedCalls int
	// Epsilon is the error rate actually used, whether configured or
	// estimated.
	Epsilon float64
	// WindowLength is the window length actually used.
	WindowLength int
}
