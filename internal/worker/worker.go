// Package worker provides async transaction processing for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// Evaluator scores a single transaction. Satisfied by engine.Engine.
type Evaluator interface {
	Evaluate(ctx context.Context, tx *domain.FuelTransaction) (*domain.AnomalyResult, error)
}

// EvaluatorFactory builds a company-scoped evaluator. Evaluators carry
// company-scoped history and entity lookups, so one is kept per company.
type EvaluatorFactory func(companyID string) Evaluator

// Worker consumes ingested transactions from the EventBus, persists
// them, runs anomaly evaluation and publishes the outcome.
type Worker struct {
	bus     domain.EventBus
	repo    domain.Repository
	factory EvaluatorFactory

	mu         sync.Mutex
	evaluators map[string]Evaluator

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// CompanyIDs is the list of companies to process
	CompanyIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, factory EvaluatorFactory) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:        bus,
		repo:       repo,
		factory:    factory,
		evaluators: make(map[string]Evaluator),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins processing messages for the given companies.
func (w *Worker) Start(cfg Config) error {
	for _, companyID := range cfg.CompanyIDs {
		if err := w.startCompanyWorker(companyID); err != nil {
			slog.Error("failed to start worker for company",
				"company_id", companyID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"company_count", len(cfg.CompanyIDs),
	)

	return nil
}

// startCompanyWorker subscribes to the ingestion topic for one company.
func (w *Worker) startCompanyWorker(companyID string) error {
	sub, err := w.bus.Subscribe(w.ctx, companyID, domain.TopicTransactionIngested, func(ctx context.Context, msg *domain.Message) error {
		return w.processTransaction(ctx, companyID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("company worker started",
		"company_id", companyID,
		"topic", domain.TopicTransactionIngested,
	)

	return nil
}

// processTransaction runs one transaction through the pipeline:
// persist, evaluate, record the anomaly, publish the outcome.
func (w *Worker) processTransaction(ctx context.Context, companyID string, msg *domain.Message) error {
	start := time.Now()

	var tx domain.FuelTransaction
	if err := json.Unmarshal(msg.Payload, &tx); err != nil {
		slog.Error("failed to parse transaction message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	slog.Debug("processing transaction",
		"tx_id", tx.ID,
		"company_id", companyID,
		"vehicle_id", tx.VehicleID,
	)

	if err := w.repo.SaveTransaction(ctx, companyID, &tx); err != nil {
		slog.Error("failed to save transaction",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	result, err := w.evaluator(companyID).Evaluate(ctx, &tx)
	if err != nil {
		slog.Error("evaluation failed",
			"tx_id", tx.ID,
			"error", err,
		)
		return err
	}

	if result.IsAnomalous {
		rec := &domain.AnomalyRecord{
			ID:            uuid.New().String(),
			TransactionID: result.TransactionID,
			IsAnomalous:   result.IsAnomalous,
			Severity:      result.Severity,
			RiskScore:     result.RiskScore,
			Reasons:       result.Reasons,
			DetectedAt:    result.DetectedAt,
			Status:        domain.StatusPending,
		}
		if err := w.repo.SaveAnomaly(ctx, companyID, rec); err != nil {
			slog.Error("failed to save anomaly",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	resultPayload, _ := json.Marshal(result)
	if err := w.bus.Publish(ctx, companyID, domain.TopicDecision, resultPayload); err != nil {
		slog.Error("failed to publish decision",
			"tx_id", tx.ID,
			"error", err,
		)
	}

	if result.IsAnomalous {
		if err := w.bus.Publish(ctx, companyID, domain.TopicAnomalyDetected, resultPayload); err != nil {
			slog.Error("failed to publish anomaly",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	slog.Info("transaction processed",
		"tx_id", tx.ID,
		"company_id", companyID,
		"risk_score", result.RiskScore,
		"severity", result.Severity,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// evaluator returns the company-scoped evaluator, creating it on first use.
func (w *Worker) evaluator(companyID string) Evaluator {
	w.mu.Lock()
	defer w.mu.Unlock()

	if e, ok := w.evaluators[companyID]; ok {
		return e
	}
	e := w.factory(companyID)
	w.evaluators[companyID] = e
	return e
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
