package domain

import "math"

// ValidateDataset checks the structural invariants every operation relies on:
// a rectangular non-negative abundance matrix, a taxonomy table with exactly
// the same feature set, metadata keyed by the sample columns (when present)
// and a recognized sequence collection (when present).
func ValidateDataset(d Dataset) error {
	m := d.Abundance
	if len(m.Counts) != len(m.FeatureIDs) {
		return invalidInput("abundance", "%d feature ids but %d count rows", len(m.FeatureIDs), len(m.Counts))
	}
	features, err := uniqueIDs("abundance", "feature", m.FeatureIDs)
	if err != nil {
		return err
	}
	samples, err := uniqueIDs("abundance", "sample", m.SampleIDs)
	if err != nil {
		return err
	}
	for i, row := range m.Counts {
		if len(row) != len(m.SampleIDs) {
			return invalidInput("abundance", "row %q has %d values, want %d", m.FeatureIDs[i], len(row), len(m.SampleIDs))
		}
		for j, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return invalidInput("abundance", "row %q sample %q has invalid count %v", m.FeatureIDs[i], m.SampleIDs[j], v)
			}
		}
	}

	if d.Taxonomy.Len() != len(features) {
		return invalidInput("taxonomy", "%d rows but abundance has %d features", d.Taxonomy.Len(), len(features))
	}
	seen := make(map[string]struct{}, d.Taxonomy.Len())
	for _, row := range d.Taxonomy.Rows {
		if _, ok := features[row.FeatureID]; !ok {
			return invalidInput("taxonomy", "feature %q is not in the abundance matrix", row.FeatureID)
		}
		if _, dup := seen[row.FeatureID]; dup {
			return invalidInput("taxonomy", "duplicate feature %q", row.FeatureID)
		}
		seen[row.FeatureID] = struct{}{}
	}

	if d.Metadata.Len() > 0 {
		if d.Metadata.Len() != len(samples) {
			return invalidInput("metadata", "%d records but abundance has %d samples", d.Metadata.Len(), len(samples))
		}
		seenSamples := make(map[string]struct{}, d.Metadata.Len())
		for _, rec := range d.Metadata.Records {
			if _, ok := samples[rec.SampleID]; !ok {
				return invalidInput("metadata", "sample %q is not an abundance column", rec.SampleID)
			}
			if _, dup := seenSamples[rec.SampleID]; dup {
				return invalidInput("metadata", "duplicate sample %q", rec.SampleID)
			}
			seenSamples[rec.SampleID] = struct{}{}
		}
	}

	return ValidateSequences(d.Sequences)
}

func uniqueIDs(field, kind string, ids []string) (map[string]struct{}, error) {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, invalidInput(field, "empty %s id", kind)
		}
		if _, dup := set[id]; dup {
			return nil, invalidInput(field, "duplicate %s id %q", kind, id)
		}
		set[id] = struct{}{}
	}
	return set, nil
}
