package domain

import (
	"encoding/json"
	"fmt"
)

// datasetJSON is the wire form used by persistence and export. Sequences are
// flattened to records because the collection is an interface.
type datasetJSON struct {
	Abundance    AbundanceMatrix  `json:"abundance"`
	Taxonomy     TaxonomyTable    `json:"taxonomy"`
	Metadata     SampleMetadata   `json:"metadata"`
	SequenceKind SequenceKind     `json:"sequence_kind,omitempty"`
	Sequences    []SequenceRecord `json:"sequences,omitempty"`
	Normalized   bool             `json:"normalized"`
	ReadStats    ReadStats        `json:"read_stats"`
}

// MarshalJSON implements json.Marshaler.
func (d Dataset) MarshalJSON() ([]byte, error) {
	wire := datasetJSON{
		Abundance:  d.Abundance,
		Taxonomy:   d.Taxonomy,
		Metadata:   d.Metadata,
		Normalized: d.Normalized,
		ReadStats:  d.ReadStats,
	}
	if d.HasSequences() {
		wire.SequenceKind = d.Sequences.Kind()
		wire.Sequences = SequenceRecords(d.Sequences)
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler. Only DNA collections can be decoded.
func (d *Dataset) UnmarshalJSON(b []byte) error {
	var wire datasetJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	var seqs SequenceCollection
	if wire.SequenceKind != "" {
		if wire.SequenceKind != SequenceKindDNA {
			return fmt.Errorf("decode dataset: unsupported sequence kind %q", wire.SequenceKind)
		}
		rs, err := NewReferenceSequences(wire.Sequences)
		if err != nil {
			return fmt.Errorf("decode dataset: %w", err)
		}
		seqs = rs
	}
	*d = Dataset{
		Abundance:  wire.Abundance,
		Taxonomy:   wire.Taxonomy,
		Metadata:   wire.Metadata,
		Sequences:  seqs,
		Normalized: wire.Normalized,
		ReadStats:  wire.ReadStats,
	}
	return nil
}

// SequenceRecords flattens any collection into records in key order.
func SequenceRecords(c SequenceCollection) []SequenceRecord {
	if isNilCollection(c) {
		return nil
	}
	if rs, ok := c.(*ReferenceSequences); ok {
		return rs.Records()
	}
	keys := c.Keys()
	out := make([]SequenceRecord, 0, len(keys))
	for _, key := range keys {
		residues, _ := c.Get(key)
		out = append(out, SequenceRecord{ID: key, Residues: residues})
	}
	return out
}
