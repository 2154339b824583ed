// Package history adapts stored transactions to the evaluation
// engine's lookback queries.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

// Service answers vehicle history lookups from the repository, scoped
// to one company. It implements domain.HistoryProvider.
type Service struct {
	repo      domain.Repository
	companyID string
}

// NewService creates a history service backed by the repository.
func NewService(repo domain.Repository, companyID string) *Service {
	return &Service{
		repo:      repo,
		companyID: companyID,
	}
}

// RecentSince returns the vehicle's transactions since the given time,
// excluding excludeID, ordered by descending timestamp. Repository
// failures are returned to the caller as-is.
func (s *Service) RecentSince(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]domain.TransactionPoint, error) {
	if vehicleID == "" {
		return nil, fmt.Errorf("vehicleID is required")
	}

	txs, err := s.repo.RecentTransactions(ctx, s.companyID, vehicleID, since, excludeID)
	if err != nil {
		return nil, err
	}

	points := make([]domain.TransactionPoint, 0, len(txs))
	for _, tx := range txs {
		points = append(points, domain.TransactionPoint{
			Timestamp:  tx.Timestamp,
			StationLat: tx.StationLat,
			StationLon: tx.StationLon,
		})
	}
	return points, nil
}
