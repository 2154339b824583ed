package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/repository"
)

// defaultSyncWindow is how far back a sync reaches when no start time
// is given.
const defaultSyncWindow = 7 * 24 * time.Hour

// Syncer pulls transactions from provider APIs and feeds them into the
// ingestion pipeline. Transactions already present in the repository
// are skipped, so re-syncing an overlapping window is safe.
type Syncer struct {
	repo domain.Repository
	bus  domain.EventBus
}

// NewSyncer creates a provider sync service.
func NewSyncer(repo domain.Repository, bus domain.EventBus) *Syncer {
	return &Syncer{repo: repo, bus: bus}
}

// SyncResult summarizes one sync run.
type SyncResult struct {
	Provider  string    `json:"provider"`
	Fetched   int       `json:"fetched"`
	Published int       `json:"published"`
	Skipped   int       `json:"skipped"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

// Sync fetches the client's transactions in [start, end] and publishes
// the new ones to the ingestion topic. A zero end means now; a zero
// start means end minus seven days.
func (s *Syncer) Sync(ctx context.Context, companyID string, client Client, start, end time.Time) (*SyncResult, error) {
	if companyID == "" {
		return nil, errors.New("companyID is required")
	}
	if end.IsZero() {
		end = time.Now().UTC()
	}
	if start.IsZero() {
		start = end.Add(-defaultSyncWindow)
	}

	txs, err := client.FetchTransactions(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetching from %s: %w", client.Name(), err)
	}

	result := &SyncResult{
		Provider: client.Name(),
		Fetched:  len(txs),
		Start:    start,
		End:      end,
	}

	for _, tx := range txs {
		tx.CompanyID = companyID

		_, err := s.repo.GetTransaction(ctx, companyID, tx.ID)
		switch {
		case err == nil:
			result.Skipped++
			continue
		case !errors.Is(err, repository.ErrNotFound):
			return result, fmt.Errorf("checking transaction %s: %w", tx.ID, err)
		}

		payload, err := json.Marshal(tx)
		if err != nil {
			return result, fmt.Errorf("encoding transaction %s: %w", tx.ID, err)
		}
		if err := s.bus.Publish(ctx, companyID, domain.TopicTransactionIngested, payload); err != nil {
			return result, fmt.Errorf("publishing transaction %s: %w", tx.ID, err)
		}
		result.Published++
	}

	slog.Info("provider sync completed",
		"provider", client.Name(),
		"company_id", companyID,
		"fetched", result.Fetched,
		"published", result.Published,
		"skipped", result.Skipped,
	)

	return result, nil
}
