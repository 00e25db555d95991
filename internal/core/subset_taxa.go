package core

import "ampcore/pkg/domain"

// TaxaFilter selects features by taxonomic identity.
type TaxaFilter struct {
	// Taxa are matched literally against every rank and the feature ID.
	// Names must carry the same rank prefixes as the taxonomy ("p__Chloroflexi").
	Taxa []string
	// NormalizeFirst converts counts to per-sample percentages before filtering.
	NormalizeFirst bool
	// Invert keeps the features that do not match.
	Invert bool
}

// SubsetTaxa returns a copy of ds restricted to (or, with Invert, excluding)
// the features whose taxonomy matches one of filter.Taxa.
//
// When NormalizeFirst is set the percentages are computed over all features
// before filtering, and ReadStats is recomputed from that normalized matrix
// restricted to the retained rows: the statistics then describe which share of
// each sample's original total the subset represents. Without normalization
// ReadStats is carried over unchanged.
func (e *Engine) SubsetTaxa(ds Dataset, filter TaxaFilter) (Dataset, Result, error) {
	if err := domain.ValidateDataset(ds); err != nil {
		return Dataset{}, Result{}, err
	}
	out := ds.Clone()
	res := Result{
		FeaturesBefore: out.Abundance.Rows(),
		SamplesBefore:  out.Abundance.Cols(),
		SamplesAfter:   out.Abundance.Cols(),
	}
	if filter.NormalizeFirst {
		e.normalize(&out, &res, OpSubsetTaxa)
	}

	wanted := make(map[string]struct{}, len(filter.Taxa))
	for _, name := range filter.Taxa {
		// unclassified ranks are stored empty and never name a taxon
		if name != "" {
			wanted[name] = struct{}{}
		}
	}
	retained := make(map[string]struct{}, out.Taxonomy.Len())
	rows := make([]TaxonomyRow, 0, out.Taxonomy.Len())
	for _, row := range out.Taxonomy.Rows {
		if matchesTaxa(row, wanted) == filter.Invert {
			continue
		}
		retained[row.FeatureID] = struct{}{}
		rows = append(rows, row)
	}

	keep := make([]int, 0, len(retained))
	for i, id := range out.Abundance.FeatureIDs {
		if _, ok := retained[id]; ok {
			keep = append(keep, i)
		}
	}

	full := out.Abundance
	out.Taxonomy = TaxonomyTable{Rows: rows}
	out.Abundance = full.SelectRows(keep)
	if filter.NormalizeFirst {
		out.ReadStats = domain.ComputeReadStats(full.ColumnTotalsFor(keep))
	}
	e.rekeySequences(&out, &res, OpSubsetTaxa)

	res.FeaturesAfter = out.Abundance.Rows()
	e.reportFeatures(&res, OpSubsetTaxa)
	return out, res, nil
}

// matchesTaxa reports whether any of the eight matchable fields is in wanted.
func matchesTaxa(row TaxonomyRow, wanted map[string]struct{}) bool {
	if len(wanted) == 0 {
		return false
	}
	for _, value := range row.Fields() {
		if _, ok := wanted[value]; ok {
			return true
		}
	}
	return false
}
