package domain

import "testing"

// fixture builds a three-feature, two-sample dataset:
//
//	F1 [10 0]  Chloroflexi
//	F2 [ 5 5]  Proteobacteria
//	F3 [ 0 5]  Chloroflexi / Anaerolineae
func fixture(t *testing.T) Dataset {
	t.Helper()
	seqs, err := NewReferenceSequences([]SequenceRecord{
		{ID: "F1", Residues: "ACGT"},
		{ID: "F2", Residues: "GGCC"},
		{ID: "F3", Residues: "TTAA"},
	})
	if err != nil {
		t.Fatalf("sequences: %v", err)
	}
	ds, err := NewDataset(
		AbundanceMatrix{
			FeatureIDs: []string{"F1", "F2", "F3"},
			SampleIDs:  []string{"S1", "S2"},
			Counts:     [][]float64{{10, 0}, {5, 5}, {0, 5}},
		},
		TaxonomyTable{Rows: []TaxonomyRow{
			{FeatureID: "F1", Kingdom: "k__Bacteria", Phylum: "p__Chloroflexi"},
			{FeatureID: "F2", Kingdom: "k__Bacteria", Phylum: "p__Proteobacteria"},
			{FeatureID: "F3", Kingdom: "k__Bacteria", Phylum: "p__Chloroflexi", Class: "c__Anaerolineae"},
		}},
		SampleMetadata{
			Variables: []string{"site"},
			Records: []SampleRecord{
				{SampleID: "S1", Values: map[string]string{"site": "inlet"}},
				{SampleID: "S2", Values: map[string]string{"site": "outlet"}},
			},
		},
		seqs,
	)
	if err != nil {
		t.Fatalf("new dataset: %v", err)
	}
	return ds
}
