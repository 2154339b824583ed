// Package engine orchestrates anomaly evaluation for fuel transactions.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/rules"
)

// Engine evaluates transactions against the fixed rule battery plus any
// operator-defined custom rules. It holds no mutable state of its own;
// evaluations for distinct transactions are safe to run in parallel.
type Engine struct {
	battery   []rules.Rule
	custom    *rules.CustomSet
	directory domain.EntityDirectory
	history   domain.HistoryProvider
	cfg       domain.RulesConfig
	logger    *slog.Logger
}

// New creates an evaluation engine. history and custom may be nil:
// without a history provider the history-dependent rules are skipped,
// and without a custom set only the fixed battery runs.
func New(cfg domain.RulesConfig, directory domain.EntityDirectory, history domain.HistoryProvider, custom *rules.CustomSet, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		battery:   rules.NewBattery(cfg),
		custom:    custom,
		directory: directory,
		history:   history,
		cfg:       cfg,
		logger:    logger,
	}
}

// Evaluate scores a single transaction. Missing context entities
// degrade the dependent rules; a history provider I/O failure is
// returned to the caller unmodified, with no retry.
func (e *Engine) Evaluate(ctx context.Context, tx *domain.FuelTransaction) (*domain.AnomalyResult, error) {
	in := rules.Input{Tx: tx}

	vehicle, err := e.directory.VehicleByID(ctx, tx.VehicleID)
	if err != nil {
		return nil, err
	}
	in.Vehicle = vehicle

	if vehicle != nil && vehicle.AssignedProjectID != "" {
		project, err := e.directory.ProjectByID(ctx, vehicle.AssignedProjectID)
		if err != nil {
			return nil, err
		}
		in.Project = project
	}

	if tx.DriverID != "" {
		worker, err := e.directory.WorkerByID(ctx, tx.DriverID)
		if err != nil {
			return nil, err
		}
		in.Worker = worker
	}

	if e.history != nil {
		recent, daily, err := e.fetchHistory(ctx, tx)
		if err != nil {
			return nil, err
		}
		in.RecentPoints = recent
		in.DailyPoints = daily
		if len(recent) > 0 {
			in.Previous = &recent[0]
		}
	}

	score := 0
	var reasons []string

	for _, rule := range e.battery {
		if rule.NeedsHistory() && e.history == nil {
			continue
		}
		verdict := rule.Evaluate(in)
		if verdict.Triggered {
			reasons = append(reasons, verdict.Reason)
			score += verdict.Score
		}
	}

	if e.custom != nil {
		for _, verdict := range e.custom.Evaluate(ctx, tx) {
			if verdict.Triggered {
				reasons = append(reasons, verdict.Reason)
				score += verdict.Score
			}
		}
	}

	severity := calculateSeverity(score)

	if score > 20 {
		e.logger.Warn("anomaly detected",
			"transactionId", tx.ID,
			"vehicleId", tx.VehicleID,
			"riskScore", score,
			"severity", severity,
			"reasons", reasons,
		)
	}

	reported := score
	if reported > 100 {
		reported = 100
	}

	return &domain.AnomalyResult{
		TransactionID: tx.ID,
		IsAnomalous:   score > 20,
		Severity:      severity,
		RiskScore:     reported,
		Reasons:       reasons,
		DetectedAt:    time.Now().UTC(),
	}, nil
}

// fetchHistory issues the lookback-window and midnight-of-day fetches
// concurrently. Both complete before any history rule is scored.
func (e *Engine) fetchHistory(ctx context.Context, tx *domain.FuelTransaction) (recent, daily []domain.TransactionPoint, err error) {
	lookback := tx.Timestamp.Add(-e.cfg.DoubleDipWindow())
	y, m, d := tx.Timestamp.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, tx.Timestamp.Location())

	var wg sync.WaitGroup
	var recentErr, dailyErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		recent, recentErr = e.history.RecentSince(ctx, tx.VehicleID, lookback, tx.ID)
	}()
	go func() {
		defer wg.Done()
		daily, dailyErr = e.history.RecentSince(ctx, tx.VehicleID, dayStart, tx.ID)
	}()
	wg.Wait()

	if recentErr != nil {
		return nil, nil, recentErr
	}
	if dailyErr != nil {
		return nil, nil, dailyErr
	}
	return recent, daily, nil
}

func calculateSeverity(score int) domain.Severity {
	switch {
	case score >= 71:
		return domain.SeverityCritical
	case score >= 41:
		return domain.SeverityHigh
	case score >= 21:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}
