// Package analysis wires the pipeline stages into one run and exposes the
// read operations computed from a completed run.
package analysis

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Vork-21/payplan/pkg/analyzer"
	"github.com/Vork-21/payplan/pkg/calculator"
	"github.com/Vork-21/payplan/pkg/clock"
	"github.com/Vork-21/payplan/pkg/ingest"
	"github.com/Vork-21/payplan/pkg/models"
	"github.com/Vork-21/payplan/pkg/parser"
)

// RunStore receives completed runs for later retrieval.
type RunStore interface {
	Save(result *Result) error
}

// Service runs the full pipeline: validate, parse, analyze, calculate.
type Service struct {
	clock      clock.Clock
	store      RunStore
	paymentDay int
	log        zerolog.Logger
}

// New creates a Service. The store may be nil when results are consumed
// directly, as the CLI does.
func New(clk clock.Clock, store RunStore, paymentDay int, log zerolog.Logger) *Service {
	return &Service{clock: clk, store: store, paymentDay: paymentDay, log: log}
}

// Run analyzes one loaded table. The wall clock is read exactly once per
// run so elapsed-time math and future-date checks can never disagree.
func (s *Service) Run(table *models.Table) (*Result, error) {
	if err := ingest.Validate(table); err != nil {
		return nil, err
	}
	asOf := s.clock.Now().UTC()

	parsed := parser.New(asOf, s.log).Parse(table)
	analyzed := analyzer.New(asOf, s.log).Analyze(parsed.Customers)

	calc := calculator.New(asOf, s.paymentDay, s.log)
	var metrics []*models.PaymentMetrics
	for _, cust := range parsed.Customers {
		metrics = append(metrics, calc.CustomerMetrics(cust)...)
	}

	result := &Result{
		ID:          uuid.New(),
		AsOf:        asOf,
		Source:      table.Source,
		Customers:   parsed.Customers,
		Clean:       analyzed.Clean,
		Problematic: analyzed.Problematic,
		Issues:      analyzed.Issues,
		Metrics:     metrics,
		Stats:       parsed.Stats,
		calc:        calc,
		log:         s.log,
	}
	if s.store != nil {
		if err := s.store.Save(result); err != nil {
			return nil, fmt.Errorf("failed to store run: %w", err)
		}
	}

	s.log.Info().
		Str("run_id", result.ID.String()).
		Str("source", table.Source).
		Int("customers", len(parsed.Customers)).
		Int("plans_tracked", len(metrics)).
		Int("issues", len(analyzed.Issues)).
		Msg("Analysis run complete")
	return result, nil
}
