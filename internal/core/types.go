package core

import "ampcore/pkg/domain"

type (
	Dataset            = domain.Dataset
	AbundanceMatrix    = domain.AbundanceMatrix
	TaxonomyTable      = domain.TaxonomyTable
	TaxonomyRow        = domain.TaxonomyRow
	SampleMetadata     = domain.SampleMetadata
	SequenceCollection = domain.SequenceCollection
	ReadStats          = domain.ReadStats
	Result             = domain.Result
	Diagnostic         = domain.Diagnostic
	Severity           = domain.Severity
	DatasetStore       = domain.DatasetStore
	EntityType         = domain.EntityType
	ErrNotFound        = domain.ErrNotFound
)

const (
	SeverityWarn = domain.SeverityWarn
	SeverityLog  = domain.SeverityLog
)

const (
	EntityDataset = domain.EntityDataset
	EntityExport  = domain.EntityExport
)
