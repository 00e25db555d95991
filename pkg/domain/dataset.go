// Package domain defines the amplicon dataset model shared by the subset
// engine, persistence backends and export adapters. Types here carry no
// infrastructure dependencies so that every layer can import them.
package domain

import "slices"

// Rank names a taxonomic classification level.
type Rank string

// Classification levels in hierarchical order. RankFeature addresses the
// feature identifier itself, which is matchable like any rank.
const (
	RankKingdom Rank = "Kingdom"
	RankPhylum  Rank = "Phylum"
	RankClass   Rank = "Class"
	RankOrder   Rank = "Order"
	RankFamily  Rank = "Family"
	RankGenus   Rank = "Genus"
	RankSpecies Rank = "Species"
	RankFeature Rank = "OTU"
)

// Ranks lists the seven classification levels from Kingdom to Species.
var Ranks = []Rank{RankKingdom, RankPhylum, RankClass, RankOrder, RankFamily, RankGenus, RankSpecies}

// TaxonomyRow holds the classification of one feature (OTU/ASV).
type TaxonomyRow struct {
	FeatureID string `json:"feature_id"`
	Kingdom   string `json:"kingdom,omitempty"`
	Phylum    string `json:"phylum,omitempty"`
	Class     string `json:"class,omitempty"`
	Order     string `json:"order,omitempty"`
	Family    string `json:"family,omitempty"`
	Genus     string `json:"genus,omitempty"`
	Species   string `json:"species,omitempty"`
}

// Value returns the entry stored for rank. RankFeature yields the feature ID.
func (r TaxonomyRow) Value(rank Rank) string {
	switch rank {
	case RankKingdom:
		return r.Kingdom
	case RankPhylum:
		return r.Phylum
	case RankClass:
		return r.Class
	case RankOrder:
		return r.Order
	case RankFamily:
		return r.Family
	case RankGenus:
		return r.Genus
	case RankSpecies:
		return r.Species
	case RankFeature:
		return r.FeatureID
	default:
		return ""
	}
}

// Fields returns the eight matchable values: the seven ranks followed by the feature ID.
func (r TaxonomyRow) Fields() [8]string {
	return [8]string{r.Kingdom, r.Phylum, r.Class, r.Order, r.Family, r.Genus, r.Species, r.FeatureID}
}

// TaxonomyTable is an ordered collection of taxonomy rows keyed by feature ID.
type TaxonomyTable struct {
	Rows []TaxonomyRow `json:"rows"`
}

// Len returns the number of features.
func (t TaxonomyTable) Len() int { return len(t.Rows) }

// FeatureIDs returns the feature IDs in table order.
func (t TaxonomyTable) FeatureIDs() []string {
	ids := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		ids[i] = row.FeatureID
	}
	return ids
}

// Clone returns a copy that shares no backing storage with t.
func (t TaxonomyTable) Clone() TaxonomyTable {
	return TaxonomyTable{Rows: slices.Clone(t.Rows)}
}

// AbundanceMatrix stores read counts with features as rows and samples as columns.
type AbundanceMatrix struct {
	FeatureIDs []string    `json:"feature_ids"`
	SampleIDs  []string    `json:"sample_ids"`
	Counts     [][]float64 `json:"counts"`
}

// Rows returns the number of features.
func (m AbundanceMatrix) Rows() int { return len(m.FeatureIDs) }

// Cols returns the number of samples.
func (m AbundanceMatrix) Cols() int { return len(m.SampleIDs) }

// ColumnTotals returns the per-sample sum of counts.
func (m AbundanceMatrix) ColumnTotals() []float64 {
	totals := make([]float64, len(m.SampleIDs))
	for _, row := range m.Counts {
		for j, v := range row {
			totals[j] += v
		}
	}
	return totals
}

// ColumnTotalsFor returns per-sample sums restricted to the given row indexes.
func (m AbundanceMatrix) ColumnTotalsFor(rows []int) []float64 {
	totals := make([]float64, len(m.SampleIDs))
	for _, i := range rows {
		for j, v := range m.Counts[i] {
			totals[j] += v
		}
	}
	return totals
}

// RowTotal returns the sum of counts for row i.
func (m AbundanceMatrix) RowTotal(i int) float64 {
	var total float64
	for _, v := range m.Counts[i] {
		total += v
	}
	return total
}

// SelectRows returns a matrix holding only the given rows, in the given order.
func (m AbundanceMatrix) SelectRows(rows []int) AbundanceMatrix {
	out := AbundanceMatrix{
		FeatureIDs: make([]string, len(rows)),
		SampleIDs:  slices.Clone(m.SampleIDs),
		Counts:     make([][]float64, len(rows)),
	}
	for k, i := range rows {
		out.FeatureIDs[k] = m.FeatureIDs[i]
		out.Counts[k] = slices.Clone(m.Counts[i])
	}
	return out
}

// SelectColumns returns a matrix holding only the given sample columns, in the given order.
func (m AbundanceMatrix) SelectColumns(cols []int) AbundanceMatrix {
	out := AbundanceMatrix{
		FeatureIDs: slices.Clone(m.FeatureIDs),
		SampleIDs:  make([]string, len(cols)),
		Counts:     make([][]float64, len(m.Counts)),
	}
	for k, j := range cols {
		out.SampleIDs[k] = m.SampleIDs[j]
	}
	for i, row := range m.Counts {
		selected := make([]float64, len(cols))
		for k, j := range cols {
			selected[k] = row[j]
		}
		out.Counts[i] = selected
	}
	return out
}

// Clone returns a deep copy of the matrix.
func (m AbundanceMatrix) Clone() AbundanceMatrix {
	out := AbundanceMatrix{
		FeatureIDs: slices.Clone(m.FeatureIDs),
		SampleIDs:  slices.Clone(m.SampleIDs),
		Counts:     make([][]float64, len(m.Counts)),
	}
	for i, row := range m.Counts {
		out.Counts[i] = slices.Clone(row)
	}
	return out
}

// SampleRecord carries the metadata attributes of one sample.
type SampleRecord struct {
	SampleID string            `json:"sample_id"`
	Values   map[string]string `json:"values,omitempty"`
}

// SampleMetadata holds per-sample attributes keyed by sample ID.
type SampleMetadata struct {
	Variables []string       `json:"variables,omitempty"`
	Records   []SampleRecord `json:"records,omitempty"`
}

// Len returns the number of sample records.
func (m SampleMetadata) Len() int { return len(m.Records) }

// Lookup finds the record for sampleID.
func (m SampleMetadata) Lookup(sampleID string) (SampleRecord, bool) {
	for _, rec := range m.Records {
		if rec.SampleID == sampleID {
			return rec, true
		}
	}
	return SampleRecord{}, false
}

// HasVariable reports whether name is a declared metadata variable.
func (m SampleMetadata) HasVariable(name string) bool {
	return slices.Contains(m.Variables, name)
}

// Select returns the records for sampleIDs in the given order. Unknown IDs are skipped.
func (m SampleMetadata) Select(sampleIDs []string) SampleMetadata {
	if len(m.Records) == 0 {
		return SampleMetadata{Variables: slices.Clone(m.Variables)}
	}
	index := make(map[string]int, len(m.Records))
	for i, rec := range m.Records {
		index[rec.SampleID] = i
	}
	out := SampleMetadata{Variables: slices.Clone(m.Variables), Records: make([]SampleRecord, 0, len(sampleIDs))}
	for _, id := range sampleIDs {
		if i, ok := index[id]; ok {
			out.Records = append(out.Records, cloneRecord(m.Records[i]))
		}
	}
	return out
}

// Clone returns a deep copy of the metadata.
func (m SampleMetadata) Clone() SampleMetadata {
	out := SampleMetadata{Variables: slices.Clone(m.Variables)}
	if m.Records != nil {
		out.Records = make([]SampleRecord, len(m.Records))
		for i, rec := range m.Records {
			out.Records[i] = cloneRecord(rec)
		}
	}
	return out
}

func cloneRecord(rec SampleRecord) SampleRecord {
	out := SampleRecord{SampleID: rec.SampleID}
	if rec.Values != nil {
		out.Values = make(map[string]string, len(rec.Values))
		for k, v := range rec.Values {
			out.Values[k] = v
		}
	}
	return out
}

// Dataset is the composite amplicon object: abundance, taxonomy, sample
// metadata and an optional reference sequence collection. Normalized and
// ReadStats are owned by the operations that transform the dataset.
type Dataset struct {
	Abundance  AbundanceMatrix
	Taxonomy   TaxonomyTable
	Metadata   SampleMetadata
	Sequences  SequenceCollection
	Normalized bool
	ReadStats  ReadStats
}

// NewDataset validates the supplied tables and computes the initial read
// statistics. seqs may be nil.
func NewDataset(abundance AbundanceMatrix, taxonomy TaxonomyTable, metadata SampleMetadata, seqs SequenceCollection) (Dataset, error) {
	ds := Dataset{
		Abundance: abundance.Clone(),
		Taxonomy:  taxonomy.Clone(),
		Metadata:  metadata.Clone(),
		Sequences: seqs,
	}
	if err := ValidateDataset(ds); err != nil {
		return Dataset{}, err
	}
	ds.ReadStats = ComputeReadStats(ds.Abundance.ColumnTotals())
	return ds, nil
}

// HasSequences reports whether a reference sequence collection is attached.
func (d Dataset) HasSequences() bool {
	return !isNilCollection(d.Sequences)
}

// FeatureIDs returns the abundance row IDs.
func (d Dataset) FeatureIDs() []string {
	return slices.Clone(d.Abundance.FeatureIDs)
}

// Clone returns a deep copy. The sequence collection is shared because
// collections are immutable once constructed.
func (d Dataset) Clone() Dataset {
	return Dataset{
		Abundance:  d.Abundance.Clone(),
		Taxonomy:   d.Taxonomy.Clone(),
		Metadata:   d.Metadata.Clone(),
		Sequences:  d.Sequences,
		Normalized: d.Normalized,
		ReadStats:  d.ReadStats,
	}
}
