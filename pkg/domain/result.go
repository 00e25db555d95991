package domain

// Severity classifies a diagnostic emitted by an operation.
type Severity string

const (
	// SeverityWarn flags a condition the caller should know about; the operation still completed.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Diagnostic is a human-readable message attached to an operation result.
type Diagnostic struct {
	Operation string   `json:"operation"`
	Severity  Severity `json:"severity"`
	Message   string   `json:"message"`
}

// Result describes the outcome of a dataset operation. Every fact reported in
// Diagnostics is also derivable from the counters or the returned dataset.
type Result struct {
	FeaturesBefore int          `json:"features_before"`
	FeaturesAfter  int          `json:"features_after"`
	SamplesBefore  int          `json:"samples_before"`
	SamplesAfter   int          `json:"samples_after"`
	Diagnostics    []Diagnostic `json:"diagnostics,omitempty"`
}

// FeaturesRemoved returns how many features the operation dropped.
func (r Result) FeaturesRemoved() int { return r.FeaturesBefore - r.FeaturesAfter }

// SamplesRemoved returns how many samples the operation dropped.
func (r Result) SamplesRemoved() int { return r.SamplesBefore - r.SamplesAfter }

// Merge appends diagnostics from another result.
func (r *Result) Merge(other Result) {
	if len(other.Diagnostics) == 0 {
		return
	}
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
}

// Add appends a single diagnostic.
func (r *Result) Add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)
}

// Warnings returns the diagnostics with SeverityWarn.
func (r Result) Warnings() []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarn {
			out = append(out, d)
		}
	}
	return out
}

// HasWarnings returns true if any diagnostic is a warning.
func (r Result) HasWarnings() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityWarn {
			return true
		}
	}
	return false
}
