package domain

import (
	"reflect"
	"slices"
	"strings"
)

// SequenceKind identifies the representation of a sequence collection.
type SequenceKind string

const (
	// SequenceKindDNA marks nucleotide reference sequences, the only
	// representation accepted by the subset operations.
	SequenceKindDNA SequenceKind = "dna"
	// SequenceKindProtein marks amino-acid sequences.
	SequenceKindProtein SequenceKind = "protein"
)

// SequenceCollection is a keyed set of reference sequences. Implementations
// must be immutable: Subset returns a new collection.
type SequenceCollection interface {
	Kind() SequenceKind
	Keys() []string
	Len() int
	Get(id string) (string, bool)
	// Subset returns the entries for ids in the given order. IDs without an
	// entry are skipped.
	Subset(ids []string) SequenceCollection
}

// SequenceRecord is one reference sequence.
type SequenceRecord struct {
	ID       string `json:"id"`
	Residues string `json:"residues"`
}

// ReferenceSequences is the DNA sequence collection produced by loaders.
type ReferenceSequences struct {
	records []SequenceRecord
	index   map[string]int
}

var _ SequenceCollection = (*ReferenceSequences)(nil)

// NewReferenceSequences builds a collection from records, rejecting empty or duplicate IDs.
func NewReferenceSequences(records []SequenceRecord) (*ReferenceSequences, error) {
	rs := &ReferenceSequences{
		records: slices.Clone(records),
		index:   make(map[string]int, len(records)),
	}
	for i, rec := range rs.records {
		if rec.ID == "" {
			return nil, invalidInput("sequences", "record %d has an empty id", i)
		}
		if _, dup := rs.index[rec.ID]; dup {
			return nil, invalidInput("sequences", "duplicate sequence id %q", rec.ID)
		}
		rs.index[rec.ID] = i
	}
	return rs, nil
}

// Kind implements SequenceCollection.
func (s *ReferenceSequences) Kind() SequenceKind { return SequenceKindDNA }

// Len implements SequenceCollection.
func (s *ReferenceSequences) Len() int { return len(s.records) }

// Keys implements SequenceCollection.
func (s *ReferenceSequences) Keys() []string {
	keys := make([]string, len(s.records))
	for i, rec := range s.records {
		keys[i] = rec.ID
	}
	return keys
}

// Get implements SequenceCollection.
func (s *ReferenceSequences) Get(id string) (string, bool) {
	i, ok := s.index[id]
	if !ok {
		return "", false
	}
	return s.records[i].Residues, true
}

// Subset implements SequenceCollection.
func (s *ReferenceSequences) Subset(ids []string) SequenceCollection {
	out := &ReferenceSequences{
		records: make([]SequenceRecord, 0, len(ids)),
		index:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		i, ok := s.index[id]
		if !ok {
			continue
		}
		if _, dup := out.index[id]; dup {
			continue
		}
		out.index[id] = len(out.records)
		out.records = append(out.records, s.records[i])
	}
	return out
}

// Records returns a copy of the underlying records in collection order.
func (s *ReferenceSequences) Records() []SequenceRecord {
	return slices.Clone(s.records)
}

// iupacNucleotides lists the accepted nucleotide codes including gaps.
const iupacNucleotides = "ACGTURYSWKMBDHVN-.acgturyswkmbdhvn"

// ValidateSequences checks that c is a DNA collection with unique keys and
// IUPAC nucleotide residues.
func ValidateSequences(c SequenceCollection) error {
	if isNilCollection(c) {
		return nil
	}
	if c.Kind() != SequenceKindDNA {
		return invalidInput("sequences", "unsupported sequence representation %q, want %q", c.Kind(), SequenceKindDNA)
	}
	keys := c.Keys()
	if len(keys) != c.Len() {
		return invalidInput("sequences", "collection reports %d entries but %d keys", c.Len(), len(keys))
	}
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			return invalidInput("sequences", "duplicate sequence id %q", key)
		}
		seen[key] = struct{}{}
		residues, ok := c.Get(key)
		if !ok {
			return invalidInput("sequences", "key %q has no sequence", key)
		}
		if i := strings.IndexFunc(residues, func(r rune) bool { return !strings.ContainsRune(iupacNucleotides, r) }); i >= 0 {
			return invalidInput("sequences", "sequence %q has non-nucleotide residue at position %d", key, i)
		}
	}
	return nil
}

// isNilCollection treats typed nil pointers stored in the interface as absent.
func isNilCollection(c SequenceCollection) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
