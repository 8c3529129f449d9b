package phase

// Opts collects the tunables of the phasing engine. Zero values for
// ErrorRate, WindowLength, and Parallelism mean "derive at run time".
type Opts struct {
	// Ploidy is the number of haplotype copies to reconstruct.
	Ploidy int

	// ErrorRate is the per-call sequencing error rate used by the
	// likelihood model. 0 means estimate it from the data.
	ErrorRate float64

	// MaxIters is the number of refinement rounds the local clustering
	// engine runs per window.
	MaxIters int

	// EpsilonAttempts is the number of trial windows clustered while
	// estimating the error rate.
	EpsilonAttempts int

	// InitialEpsilon seeds the error-rate estimation loop.
	InitialEpsilon float64

	// OutlierFactor scales the interquartile range when flagging
	// low-score windows for repair. 3.0 detects extreme outliers.
	OutlierFactor float64

	// Fill enables block repair of outlier windows.
	Fill bool

	// WindowLength is the number of variant sites per window. 0 means
	// derive it from the fragment length distribution.
	WindowLength int

	// WindowOverlap is the number of sites shared by consecutive
	// windows.
	WindowOverlap int

	// BlockLengthQuantile is the fragment-span quantile used to derive
	// WindowLength.
	BlockLengthQuantile float64

	// LengthCorrectionDivisor sets the length-correction factor of the
	// scoring model to the median fragment span divided by this value.
	LengthCorrectionDivisor float64

	// UsePolish enables pulling the per-window optimization toward
	// genotype consistency. It requires genotype evidence.
	UsePolish bool

	// Parallelism caps the number of simultaneous window jobs.
	// 0 means runtime.NumCPU().
	Parallelism int
}

// DefaultOpts sets the default values to Opts. Ploidy has no default
// and must be set by the caller.
var DefaultOpts = Opts{
	ErrorRate:               0,    // estimate from the data
	MaxIters:                10,   // iterative refinement rounds per window
	EpsilonAttempts:         20,   // calibration windows
	InitialEpsilon:          0.03, // seed for the calibration loop
	OutlierFactor:           3.0,  // standard cutoff for extreme outliers
	Fill:                    true,
	WindowLength:            0,    // derive from fragment lengths
	WindowOverlap:           0,
	BlockLengthQuantile:     0.33, // window length = this span quantile
	LengthCorrectionDivisor: 25.0,
	UsePolish:               false,
	Parallelism:             0,
}
