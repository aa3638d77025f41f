package application

import (
	"context"
	"errors"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	masterdata "solar-billing/internal/masterdata/domain"
)

const defaultConcurrency = 4

// FleetReport is the per-pair result of one fleet run.
type FleetReport struct {
	DayOffset int             `json:"day_offset"`
	Results   []RunResult     `json:"results"`
	Counts    map[Outcome]int `json:"counts"`
}

// Failed returns the results whose day is not billed.
func (r FleetReport) Failed() []RunResult {
	var failed []RunResult
	for _, res := range r.Results {
		if !res.Outcome.Succeeded() {
			failed = append(failed, res)
		}
	}
	return failed
}

// Runner executes one pipeline run.
type Runner interface {
	RunDailyAccrual(ctx context.Context, stationCode, tariffType string, dayOffset int) (RunResult, error)
}

// Orchestrator runs every billable (station, tariff) pair independently.
type Orchestrator struct {
	assignments AssignmentReader
	runner      Runner
	concurrency int
	logger      *log.Logger
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithConcurrency bounds the number of concurrent pipeline runs.
func WithConcurrency(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *log.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator constructs an orchestrator.
func NewOrchestrator(assignments AssignmentReader, runner Runner, opts ...OrchestratorOption) (*Orchestrator, error) {
	if assignments == nil {
		return nil, errors.New("accrual orchestrator: nil assignment reader")
	}
	if runner == nil {
		return nil, errors.New("accrual orchestrator: nil runner")
	}
	o := &Orchestrator{
		assignments: assignments,
		runner:      runner,
		concurrency: defaultConcurrency,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// RunAll bills every assigned pair for the given offset. A failing pair never
// stops the others; only a failure to list assignments is returned as an error.
func (o *Orchestrator) RunAll(ctx context.Context, dayOffset int) (FleetReport, error) {
	report := FleetReport{DayOffset: dayOffset, Counts: make(map[Outcome]int)}
	assignments, err := o.assignments.ListBillingAssignments(ctx)
	if err != nil {
		return report, err
	}
	pairs := masterdata.Dedupe(assignments)
	report.Results = make([]RunResult, len(pairs))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			result, err := o.runner.RunDailyAccrual(ctx, pair.StationCode, pair.TariffType, dayOffset)
			if err != nil && result.Outcome == "" {
				result = RunResult{StationCode: pair.StationCode, TariffType: pair.TariffType, Outcome: OutcomeFailed, Error: err.Error()}
			}
			report.Results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range report.Results {
		report.Counts[res.Outcome]++
	}
	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].StationCode < report.Results[j].StationCode
	})
	o.logger.Printf("accrual fleet run: day_offset=%d pairs=%d inserted=%d already_billed=%d failed=%d",
		dayOffset, len(pairs), report.Counts[OutcomeInserted], report.Counts[OutcomeAlreadyBilled], len(report.Failed()))
	return report, nil
}

// RunStation bills one station using its stored assignment.
func (o *Orchestrator) RunStation(ctx context.Context, stationCode string, dayOffset int) (RunResult, error) {
	assignment, err := o.assignments.AssignmentFor(ctx, stationCode)
	if err != nil {
		return RunResult{StationCode: stationCode, Outcome: OutcomeFailed, Error: err.Error()}, err
	}
	tariffType := ""
	if assignment != nil {
		tariffType = assignment.TariffType
	}
	return o.runner.RunDailyAccrual(ctx, stationCode, tariffType, dayOffset)
}
