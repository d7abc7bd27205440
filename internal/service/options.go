package service

import (
	"time"

	"pumpcore/internal/audit"
	"pumpcore/internal/observability"
	"pumpcore/internal/schema"
)

// Option customises service construction.
type Option func(*Service)

// WithLogger sets the logger used by the service and its change recorder.
func WithLogger(logger observability.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
			s.recorderOpts = append(s.recorderOpts, audit.WithLogger(logger))
		}
	}
}

// WithMetrics sets the operation metrics recorder.
func WithMetrics(metrics observability.Metrics) Option {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithClock substitutes the time source used for audit timestamps.
func WithClock(clock observability.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
			s.recorderOpts = append(s.recorderOpts, audit.WithClock(clock))
		}
	}
}

// WithTimezone sets the civil timezone audit timestamps are recorded in.
func WithTimezone(loc *time.Location) Option {
	return func(s *Service) {
		s.recorderOpts = append(s.recorderOpts, audit.WithLocation(loc))
	}
}

// WithAuditTables replaces the change recorder's table allow-list.
func WithAuditTables(tables ...string) Option {
	return func(s *Service) {
		s.recorderOpts = append(s.recorderOpts, audit.WithTables(tables...))
	}
}

// WithAuditIDGenerator substitutes change entry ID generation, used by tests.
func WithAuditIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.recorderOpts = append(s.recorderOpts, audit.WithIDGenerator(gen))
	}
}

// WithPolicies replaces the normalization policy table.
func WithPolicies(policies schema.PolicyTable) Option {
	return func(s *Service) {
		if policies != nil {
			s.normalizer = schema.NewNormalizer(policies)
		}
	}
}
