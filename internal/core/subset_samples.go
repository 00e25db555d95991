package core

import (
	"fmt"

	"ampcore/pkg/domain"
)

// SampleFilter selects samples by a metadata variable and read depth.
type SampleFilter struct {
	// Variable names the metadata column to match. Empty selects every sample.
	Variable string
	// Values lists the accepted values of Variable.
	Values []string
	// Invert keeps the samples whose value is not in Values.
	Invert bool
	// MinReads drops samples whose raw total is below the threshold.
	MinReads float64
	// KeepAbsentTaxa retains features with zero counts in every kept sample.
	KeepAbsentTaxa bool
	// NormalizeFirst converts counts to percentages before dropping samples.
	NormalizeFirst bool
}

// SubsetSamples returns a copy of ds restricted to the samples selected by
// filter. Metadata and, unless KeepAbsentTaxa is set, features are pruned to
// stay consistent with the remaining columns. ReadStats is recomputed from the
// returned matrix.
func (e *Engine) SubsetSamples(ds Dataset, filter SampleFilter) (Dataset, Result, error) {
	if err := domain.ValidateDataset(ds); err != nil {
		return Dataset{}, Result{}, err
	}
	if filter.Variable != "" && !ds.Metadata.HasVariable(filter.Variable) {
		return Dataset{}, Result{}, domain.NewInvalidInputError("filter", "unknown metadata variable %q", filter.Variable)
	}
	if filter.MinReads < 0 {
		return Dataset{}, Result{}, domain.NewInvalidInputError("filter", "min reads must not be negative, got %v", filter.MinReads)
	}

	out := ds.Clone()
	res := Result{
		FeaturesBefore: out.Abundance.Rows(),
		SamplesBefore:  out.Abundance.Cols(),
	}
	rawTotals := out.Abundance.ColumnTotals()
	if filter.NormalizeFirst {
		e.normalize(&out, &res, OpSubsetSamples)
	}

	accepted := make(map[string]struct{}, len(filter.Values))
	for _, v := range filter.Values {
		accepted[v] = struct{}{}
	}
	cols := make([]int, 0, out.Abundance.Cols())
	for j, sampleID := range out.Abundance.SampleIDs {
		if rawTotals[j] < filter.MinReads {
			continue
		}
		if filter.Variable != "" {
			rec, _ := out.Metadata.Lookup(sampleID)
			_, hit := accepted[rec.Values[filter.Variable]]
			if hit == filter.Invert {
				continue
			}
		}
		cols = append(cols, j)
	}
	out.Abundance = out.Abundance.SelectColumns(cols)
	out.Metadata = out.Metadata.Select(out.Abundance.SampleIDs)
	res.SamplesAfter = out.Abundance.Cols()

	if !filter.KeepAbsentTaxa {
		e.dropAbsentFeatures(&out)
	}
	e.rekeySequences(&out, &res, OpSubsetSamples)
	out.ReadStats = domain.ComputeReadStats(out.Abundance.ColumnTotals())

	res.FeaturesAfter = out.Abundance.Rows()
	removed := res.SamplesRemoved()
	e.note(&res, OpSubsetSamples,
		fmt.Sprintf("%d samples have been filtered (before: %d, after: %d)", removed, res.SamplesBefore, res.SamplesAfter),
		"removed", removed, "before", res.SamplesBefore, "after", res.SamplesAfter)
	e.reportFeatures(&res, OpSubsetSamples)
	return out, res, nil
}

// dropAbsentFeatures removes features with no reads in any remaining sample
// from both the matrix and the taxonomy.
func (e *Engine) dropAbsentFeatures(ds *Dataset) {
	keep := make([]int, 0, ds.Abundance.Rows())
	present := make(map[string]struct{}, ds.Abundance.Rows())
	for i, id := range ds.Abundance.FeatureIDs {
		if ds.Abundance.RowTotal(i) > 0 {
			keep = append(keep, i)
			present[id] = struct{}{}
		}
	}
	if len(keep) == ds.Abundance.Rows() {
		return
	}
	ds.Abundance = ds.Abundance.SelectRows(keep)
	rows := make([]TaxonomyRow, 0, len(keep))
	for _, row := range ds.Taxonomy.Rows {
		if _, ok := present[row.FeatureID]; ok {
			rows = append(rows, row)
		}
	}
	ds.Taxonomy = TaxonomyTable{Rows: rows}
}
