package detector

// Detector is a strategy that decides whether the supervised worker is
// running. Implementations must be safe for concurrent use.
type Detector interface {
	// Alive returns true if the worker is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
