package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
)

type proteinSequences struct{ *ReferenceSequences }

func (proteinSequences) Kind() SequenceKind { return SequenceKindProtein }

func TestValidateDataset(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Dataset)
		field  string
		reason string
	}{
		{"row count mismatch", func(d *Dataset) { d.Abundance.Counts = d.Abundance.Counts[:2] }, "abundance", "count rows"},
		{"empty feature id", func(d *Dataset) { d.Abundance.FeatureIDs[0] = "" }, "abundance", "empty feature id"},
		{"duplicate sample", func(d *Dataset) { d.Abundance.SampleIDs[1] = "S1" }, "abundance", "duplicate sample id"},
		{"ragged row", func(d *Dataset) { d.Abundance.Counts[1] = []float64{1} }, "abundance", "has 1 values"},
		{"negative count", func(d *Dataset) { d.Abundance.Counts[0][1] = -1 }, "abundance", "invalid count"},
		{"nan count", func(d *Dataset) { d.Abundance.Counts[0][1] = math.NaN() }, "abundance", "invalid count"},
		{"taxonomy short", func(d *Dataset) { d.Taxonomy.Rows = d.Taxonomy.Rows[:2] }, "taxonomy", "2 rows"},
		{"taxonomy unknown", func(d *Dataset) { d.Taxonomy.Rows[2].FeatureID = "F9" }, "taxonomy", "not in the abundance"},
		{"taxonomy duplicate", func(d *Dataset) {
			d.Abundance.FeatureIDs[2] = "F4"
			d.Taxonomy.Rows[2].FeatureID = "F1"
		}, "taxonomy", "duplicate feature"},
		{"metadata short", func(d *Dataset) { d.Metadata.Records = d.Metadata.Records[:1] }, "metadata", "1 records"},
		{"metadata unknown", func(d *Dataset) { d.Metadata.Records[1].SampleID = "S9" }, "metadata", "not an abundance column"},
		{"metadata duplicate", func(d *Dataset) { d.Metadata.Records[1].SampleID = "S1" }, "metadata", "duplicate sample"},
		{"protein sequences", func(d *Dataset) {
			d.Sequences = proteinSequences{d.Sequences.(*ReferenceSequences)}
		}, "sequences", "unsupported sequence representation"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ds := fixture(t)
			tc.mutate(&ds)
			err := ValidateDataset(ds)
			var invalid *InvalidInputError
			if !errors.As(err, &invalid) {
				t.Fatalf("expected InvalidInputError, got %v", err)
			}
			if invalid.Field != tc.field || !strings.Contains(invalid.Reason, tc.reason) {
				t.Fatalf("got %s: %s, want %s containing %q", invalid.Field, invalid.Reason, tc.field, tc.reason)
			}
		})
	}
}

func TestValidateDatasetAcceptsReorderedTaxonomyAndEmptyMetadata(t *testing.T) {
	ds := fixture(t)
	ds.Taxonomy.Rows[0], ds.Taxonomy.Rows[2] = ds.Taxonomy.Rows[2], ds.Taxonomy.Rows[0]
	ds.Metadata = SampleMetadata{}
	if err := ValidateDataset(ds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
