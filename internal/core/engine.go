package core

import (
	"fmt"

	"ampcore/pkg/domain"
)

// Operation names used in diagnostics, metrics and audit entries.
const (
	OpSubsetTaxa    = "subset_taxa"
	OpSubsetSamples = "subset_samples"
	OpNormalize     = "normalize"
	OpImport        = "import_dataset"
	OpDelete        = "delete_dataset"
)

// Engine applies subset and normalization operations to datasets. It holds no
// per-dataset state: every call validates its input, works on a private copy
// and returns a new Dataset, so the caller's value is never modified.
type Engine struct {
	logger Logger
}

// NewEngine constructs an engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: noopLogger{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) warn(res *Result, op, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	res.Add(Diagnostic{Operation: op, Severity: domain.SeverityWarn, Message: msg})
	e.logger.Warn(msg, "operation", op)
}

func (e *Engine) note(res *Result, op, msg string, args ...any) {
	res.Add(Diagnostic{Operation: op, Severity: domain.SeverityLog, Message: msg})
	e.logger.Info(msg, append([]any{"operation", op}, args...)...)
}

// reportFeatures records the feature filtering outcome. A zero removal is
// worded differently so it cannot be mistaken for a silent no-op.
func (e *Engine) reportFeatures(res *Result, op string) {
	removed := res.FeaturesRemoved()
	if removed == 0 {
		e.note(res, op, fmt.Sprintf("0 features have been filtered, all %d features kept", res.FeaturesAfter),
			"removed", 0, "before", res.FeaturesBefore, "after", res.FeaturesAfter)
		return
	}
	e.note(res, op, fmt.Sprintf("%d features have been filtered (before: %d, after: %d)", removed, res.FeaturesBefore, res.FeaturesAfter),
		"removed", removed, "before", res.FeaturesBefore, "after", res.FeaturesAfter)
}

// rekeySequences restricts ds.Sequences to the taxonomy feature IDs in
// taxonomy order, warning about retained features without a sequence.
func (e *Engine) rekeySequences(ds *Dataset, res *Result, op string) {
	if !ds.HasSequences() {
		ds.Sequences = nil
		return
	}
	ids := ds.Taxonomy.FeatureIDs()
	ds.Sequences = ds.Sequences.Subset(ids)
	if missing := len(ids) - ds.Sequences.Len(); missing > 0 {
		e.warn(res, op, "%d retained features have no reference sequence", missing)
	}
}
