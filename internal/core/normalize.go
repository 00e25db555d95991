package core

import "ampcore/pkg/domain"

// percentScale is the column sum of a normalized sample.
const percentScale = 100.0

// normalizeCounts converts m to per-sample percentages in place. Columns with
// a zero total are left as they are. A single-row matrix is filled with
// exactly 100 in every nonzero column rather than computed by division.
func normalizeCounts(m *AbundanceMatrix) {
	totals := m.ColumnTotals()
	if len(m.Counts) == 1 {
		row := m.Counts[0]
		for j, total := range totals {
			if total != 0 {
				row[j] = percentScale
			}
		}
		return
	}
	for _, row := range m.Counts {
		for j, total := range totals {
			if total == 0 {
				continue
			}
			row[j] = row[j] / total * percentScale
		}
	}
}

// normalize converts ds to relative abundance and flags it. Normalizing an
// already normalized dataset proceeds but warns, since the totals the
// percentages were derived from cannot be recovered.
func (e *Engine) normalize(ds *Dataset, res *Result, op string) {
	if ds.Normalized {
		e.warn(res, op, "dataset is already normalized to relative abundance; normalizing again loses the previous per-sample totals")
	}
	normalizeCounts(&ds.Abundance)
	ds.Normalized = true
}

// Normalize returns a copy of ds with every sample converted to percentages
// and read statistics recomputed from the normalized counts.
func (e *Engine) Normalize(ds Dataset) (Dataset, Result, error) {
	if err := domain.ValidateDataset(ds); err != nil {
		return Dataset{}, Result{}, err
	}
	out := ds.Clone()
	res := Result{
		FeaturesBefore: out.Abundance.Rows(),
		FeaturesAfter:  out.Abundance.Rows(),
		SamplesBefore:  out.Abundance.Cols(),
		SamplesAfter:   out.Abundance.Cols(),
	}
	e.normalize(&out, &res, OpNormalize)
	out.ReadStats = domain.ComputeReadStats(out.Abundance.ColumnTotals())
	return out, res, nil
}
