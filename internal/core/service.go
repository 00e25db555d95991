package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ampcore/internal/infra/persistence/memory"
	"ampcore/pkg/domain"
)

// Service runs engine operations against named datasets held in a
// DatasetStore, wrapping each call with tracing, metrics, audit and logging.
type Service struct {
	store   DatasetStore
	engine  *Engine
	logger  Logger
	clock   Clock
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
}

// NewService constructs a service backed by the supplied store.
func NewService(store DatasetStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		logger:  noopLogger{},
		clock:   systemClock{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		audit:   noopAudit{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.engine == nil {
		s.engine = NewEngine(WithEngineLogger(s.logger))
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store.
func NewInMemoryService(opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(), opts...)
}

// Store returns the underlying dataset store.
func (s *Service) Store() DatasetStore { return s.store }

// Engine returns the engine used by the service.
func (s *Service) Engine() *Engine { return s.engine }

// Import validates ds and stores it under name.
func (s *Service) Import(ctx context.Context, name string, ds Dataset) (Result, error) {
	call := operationCall{op: OpImport, target: name}
	return s.run(ctx, call, func(ctx context.Context) (Result, error) {
		if err := validateName(name); err != nil {
			return Result{}, err
		}
		if err := domain.ValidateDataset(ds); err != nil {
			return Result{}, err
		}
		res := Result{
			FeaturesBefore: ds.Abundance.Rows(),
			FeaturesAfter:  ds.Abundance.Rows(),
			SamplesBefore:  ds.Abundance.Cols(),
			SamplesAfter:   ds.Abundance.Cols(),
		}
		if err := s.store.Save(ctx, name, ds); err != nil {
			return res, fmt.Errorf("save dataset %s: %w", name, err)
		}
		return res, nil
	})
}

// Dataset loads the dataset stored under name.
func (s *Service) Dataset(ctx context.Context, name string) (Dataset, error) {
	return s.store.Load(ctx, name)
}

// Datasets lists stored dataset names.
func (s *Service) Datasets(ctx context.Context) ([]string, error) {
	return s.store.List(ctx)
}

// DeleteDataset removes a stored dataset.
func (s *Service) DeleteDataset(ctx context.Context, name string) error {
	_, err := s.run(ctx, operationCall{op: OpDelete, source: name}, func(ctx context.Context) (Result, error) {
		ok, err := s.store.Delete(ctx, name)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{}, ErrNotFound{Entity: EntityDataset, ID: name}
		}
		return Result{}, nil
	})
	return err
}

// SubsetTaxa loads source, applies Engine.SubsetTaxa and stores the outcome
// under target. An empty target overwrites source.
func (s *Service) SubsetTaxa(ctx context.Context, source, target string, filter TaxaFilter) (Dataset, Result, error) {
	return s.transform(ctx, OpSubsetTaxa, source, target, func(ds Dataset) (Dataset, Result, error) {
		return s.engine.SubsetTaxa(ds, filter)
	})
}

// SubsetSamples loads source, applies Engine.SubsetSamples and stores the
// outcome under target. An empty target overwrites source.
func (s *Service) SubsetSamples(ctx context.Context, source, target string, filter SampleFilter) (Dataset, Result, error) {
	return s.transform(ctx, OpSubsetSamples, source, target, func(ds Dataset) (Dataset, Result, error) {
		return s.engine.SubsetSamples(ds, filter)
	})
}

// Normalize loads source, converts it to relative abundance and stores the
// outcome under target. An empty target overwrites source.
func (s *Service) Normalize(ctx context.Context, source, target string) (Dataset, Result, error) {
	return s.transform(ctx, OpNormalize, source, target, s.engine.Normalize)
}

func (s *Service) transform(ctx context.Context, op, source, target string, fn func(Dataset) (Dataset, Result, error)) (Dataset, Result, error) {
	if target == "" {
		target = source
	}
	var out Dataset
	res, err := s.run(ctx, operationCall{op: op, source: source, target: target}, func(ctx context.Context) (Result, error) {
		if err := validateName(target); err != nil {
			return Result{}, err
		}
		ds, err := s.store.Load(ctx, source)
		if err != nil {
			return Result{}, err
		}
		transformed, res, err := fn(ds)
		if err != nil {
			return res, err
		}
		if err := s.store.Save(ctx, target, transformed); err != nil {
			return res, fmt.Errorf("save dataset %s: %w", target, err)
		}
		out = transformed
		return res, nil
	})
	if err != nil {
		return Dataset{}, res, err
	}
	return out, res, nil
}

type operationCall struct {
	op     string
	source string
	target string
}

func (s *Service) run(ctx context.Context, call operationCall, fn func(context.Context) (Result, error)) (Result, error) {
	ctx, span := s.tracer.Start(ctx, call.op)
	started := s.clock.Now()
	res, err := fn(ctx)
	duration := s.clock.Now().Sub(started)
	span.End(err)
	s.metrics.Observe(ctx, call.op, err == nil, duration)

	entry := AuditEntry{
		Operation:      call.op,
		Source:         call.source,
		Target:         call.target,
		Status:         AuditStatusSuccess,
		FeaturesBefore: res.FeaturesBefore,
		FeaturesAfter:  res.FeaturesAfter,
		Warnings:       len(res.Warnings()),
		Duration:       duration,
		OccurredAt:     started,
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
		s.logger.Error("dataset operation failed", "operation", call.op, "source", call.source, "target", call.target, "error", err)
	} else {
		s.logger.Debug("dataset operation completed", "operation", call.op, "source", call.source, "target", call.target,
			"features_before", res.FeaturesBefore, "features_after", res.FeaturesAfter, "duration", duration)
	}
	s.audit.Record(ctx, entry)
	return res, err
}

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.NewInvalidInputError("name", "dataset name required")
	}
	return nil
}

// durationMS converts d to fractional milliseconds for metric sinks.
func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
