package repository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "fuelguard-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	return repo
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	companyID := "company-001"

	baseTime := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("SaveAndGetTransaction", func(t *testing.T) {
		tx := &domain.FuelTransaction{
			ID:            "tx-001",
			Provider:      domain.ProviderOKQ8,
			CardID:        "card-001",
			VehicleID:     "veh-001",
			DriverID:      "drv-001",
			Timestamp:     baseTime,
			Liters:        45.5,
			PricePerLiter: 18.25,
			TotalAmount:   830.38,
			FuelType:      "Diesel",
			StationID:     "st-17",
			StationLat:    59.3293,
			StationLon:    18.0686,
			CreatedAt:     baseTime,
		}

		if err := repo.SaveTransaction(ctx, companyID, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}

		retrieved, err := repo.GetTransaction(ctx, companyID, tx.ID)
		if err != nil {
			t.Fatalf("GetTransaction failed: %v", err)
		}

		if retrieved.ID != tx.ID {
			t.Errorf("expected ID %s, got %s", tx.ID, retrieved.ID)
		}
		if retrieved.Liters != tx.Liters {
			t.Errorf("expected Liters %.1f, got %.1f", tx.Liters, retrieved.Liters)
		}
		if retrieved.CompanyID != companyID {
			t.Errorf("expected CompanyID %s, got %s", companyID, retrieved.CompanyID)
		}
		if retrieved.StationLat != tx.StationLat {
			t.Errorf("expected StationLat %v, got %v", tx.StationLat, retrieved.StationLat)
		}
	})

	t.Run("CompanyIsolation", func(t *testing.T) {
		_, err := repo.GetTransaction(ctx, "company-002", "tx-001")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound for other company, got %v", err)
		}
	})

	t.Run("RecentTransactions", func(t *testing.T) {
		for i, offset := range []time.Duration{-10 * time.Minute, -20 * time.Minute, -2 * time.Hour} {
			tx := &domain.FuelTransaction{
				ID:            "recent-" + string(rune('a'+i)),
				Provider:      domain.ProviderPreem,
				CardID:        "card-002",
				VehicleID:     "veh-002",
				Timestamp:     baseTime.Add(offset),
				Liters:        40,
				PricePerLiter: 18,
				TotalAmount:   720,
				StationLat:    59.3,
				StationLon:    18.0,
				CreatedAt:     baseTime,
			}
			if err := repo.SaveTransaction(ctx, companyID, tx); err != nil {
				t.Fatalf("SaveTransaction failed: %v", err)
			}
		}

		since := baseTime.Add(-30 * time.Minute)
		txs, err := repo.RecentTransactions(ctx, companyID, "veh-002", since, "recent-a")
		if err != nil {
			t.Fatalf("RecentTransactions failed: %v", err)
		}
		if len(txs) != 1 {
			t.Fatalf("expected 1 transaction, got %d", len(txs))
		}
		if txs[0].ID != "recent-b" {
			t.Errorf("expected recent-b, got %s", txs[0].ID)
		}
	})

	t.Run("RecentTransactionsOrdering", func(t *testing.T) {
		txs, err := repo.RecentTransactions(ctx, companyID, "veh-002", baseTime.Add(-24*time.Hour), "")
		if err != nil {
			t.Fatalf("RecentTransactions failed: %v", err)
		}
		for i := 1; i < len(txs); i++ {
			if txs[i].Timestamp.After(txs[i-1].Timestamp) {
				t.Errorf("transactions not in descending order at index %d", i)
			}
		}
	})

	t.Run("ListTransactionsFilter", func(t *testing.T) {
		txs, err := repo.ListTransactions(ctx, companyID, domain.TransactionFilter{
			VehicleID: "veh-002",
			Provider:  domain.ProviderPreem,
			Limit:     2,
		})
		if err != nil {
			t.Fatalf("ListTransactions failed: %v", err)
		}
		if len(txs) != 2 {
			t.Errorf("expected 2 transactions with limit, got %d", len(txs))
		}
	})

	t.Run("VehicleCRUD", func(t *testing.T) {
		v := &domain.Vehicle{
			ID:                 "veh-100",
			Type:               "excavator",
			TankCapacityLiters: 200,
			RegNumber:          "ABC123",
			AssignedProjectID:  "proj-100",
			Status:             domain.VehicleActive,
		}
		if err := repo.SaveVehicle(ctx, companyID, v); err != nil {
			t.Fatalf("SaveVehicle failed: %v", err)
		}

		got, err := repo.GetVehicle(ctx, companyID, "veh-100")
		if err != nil {
			t.Fatalf("GetVehicle failed: %v", err)
		}
		if got.TankCapacityLiters != 200 || got.Status != domain.VehicleActive {
			t.Errorf("unexpected vehicle: %+v", got)
		}

		// Upsert updates in place
		v.Status = domain.VehicleInactive
		if err := repo.SaveVehicle(ctx, companyID, v); err != nil {
			t.Fatalf("SaveVehicle upsert failed: %v", err)
		}
		got, err = repo.GetVehicle(ctx, companyID, "veh-100")
		if err != nil {
			t.Fatalf("GetVehicle failed: %v", err)
		}
		if got.Status != domain.VehicleInactive {
			t.Errorf("expected inactive after upsert, got %s", got.Status)
		}

		vehicles, err := repo.ListVehicles(ctx, companyID)
		if err != nil {
			t.Fatalf("ListVehicles failed: %v", err)
		}
		if len(vehicles) != 1 {
			t.Errorf("expected 1 vehicle, got %d", len(vehicles))
		}

		if err := repo.DeleteVehicle(ctx, companyID, "veh-100"); err != nil {
			t.Fatalf("DeleteVehicle failed: %v", err)
		}
		if _, err := repo.GetVehicle(ctx, companyID, "veh-100"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := repo.DeleteVehicle(ctx, companyID, "veh-100"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound deleting twice, got %v", err)
		}
	})

	t.Run("ProjectCRUD", func(t *testing.T) {
		p := &domain.Project{
			ID:               "proj-100",
			Name:             "Harbor Expansion",
			GeofenceLat:      59.32,
			GeofenceLon:      18.07,
			GeofenceRadiusKm: 5,
			Active:           true,
		}
		if err := repo.SaveProject(ctx, companyID, p); err != nil {
			t.Fatalf("SaveProject failed: %v", err)
		}

		got, err := repo.GetProject(ctx, companyID, "proj-100")
		if err != nil {
			t.Fatalf("GetProject failed: %v", err)
		}
		if !got.Active || got.GeofenceRadiusKm != 5 {
			t.Errorf("unexpected project: %+v", got)
		}

		projects, err := repo.ListProjects(ctx, companyID)
		if err != nil {
			t.Fatalf("ListProjects failed: %v", err)
		}
		if len(projects) != 1 {
			t.Errorf("expected 1 project, got %d", len(projects))
		}

		if err := repo.DeleteProject(ctx, companyID, "proj-100"); err != nil {
			t.Fatalf("DeleteProject failed: %v", err)
		}
	})

	t.Run("WorkerCRUD", func(t *testing.T) {
		w := &domain.Worker{
			ID:            "drv-100",
			Name:          "Erik Svensson",
			ScheduleStart: "07:00",
			ScheduleEnd:   "16:00",
			IsActive:      true,
		}
		if err := repo.SaveWorker(ctx, companyID, w); err != nil {
			t.Fatalf("SaveWorker failed: %v", err)
		}

		got, err := repo.GetWorker(ctx, companyID, "drv-100")
		if err != nil {
			t.Fatalf("GetWorker failed: %v", err)
		}
		if got.ScheduleStart != "07:00" || !got.IsActive {
			t.Errorf("unexpected worker: %+v", got)
		}

		workers, err := repo.ListWorkers(ctx, companyID)
		if err != nil {
			t.Fatalf("ListWorkers failed: %v", err)
		}
		if len(workers) != 1 {
			t.Errorf("expected 1 worker, got %d", len(workers))
		}

		if err := repo.DeleteWorker(ctx, companyID, "drv-100"); err != nil {
			t.Fatalf("DeleteWorker failed: %v", err)
		}
	})
}

func TestAnomalyPersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	companyID := "company-001"

	detected := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	rec := &domain.AnomalyRecord{
		ID:            "anom-001",
		TransactionID: "tx-001",
		IsAnomalous:   true,
		Severity:      domain.SeverityHigh,
		RiskScore:     65,
		Reasons:       []string{"Vehicle is marked as inactive", "Fueling on weekend (Saturday)"},
		DetectedAt:    detected,
		Status:        domain.StatusPending,
	}

	if err := repo.SaveAnomaly(ctx, companyID, rec); err != nil {
		t.Fatalf("SaveAnomaly failed: %v", err)
	}

	t.Run("Get", func(t *testing.T) {
		got, err := repo.GetAnomaly(ctx, companyID, "anom-001")
		if err != nil {
			t.Fatalf("GetAnomaly failed: %v", err)
		}
		if got.RiskScore != 65 || got.Severity != domain.SeverityHigh {
			t.Errorf("unexpected record: %+v", got)
		}
		if len(got.Reasons) != 2 {
			t.Errorf("expected 2 reasons, got %v", got.Reasons)
		}
		if got.Reviewed || got.ReviewedAt != nil {
			t.Errorf("new record should be unreviewed: %+v", got)
		}
	})

	t.Run("ListBySeverity", func(t *testing.T) {
		low := &domain.AnomalyRecord{
			ID:            "anom-002",
			TransactionID: "tx-002",
			IsAnomalous:   true,
			Severity:      domain.SeverityMedium,
			RiskScore:     25,
			Reasons:       []string{"Fueling on weekend (Sunday)"},
			DetectedAt:    detected.Add(time.Hour),
			Status:        domain.StatusPending,
		}
		if err := repo.SaveAnomaly(ctx, companyID, low); err != nil {
			t.Fatalf("SaveAnomaly failed: %v", err)
		}

		records, err := repo.ListAnomalies(ctx, companyID, domain.AnomalyFilter{Severity: domain.SeverityHigh})
		if err != nil {
			t.Fatalf("ListAnomalies failed: %v", err)
		}
		if len(records) != 1 || records[0].ID != "anom-001" {
			t.Errorf("unexpected records: %+v", records)
		}
	})

	t.Run("Review", func(t *testing.T) {
		got, err := repo.ReviewAnomaly(ctx, companyID, "anom-001", domain.AnomalyReview{
			Reviewed:    true,
			ReviewNotes: "checked with site manager",
			Status:      domain.StatusFalsePositive,
		})
		if err != nil {
			t.Fatalf("ReviewAnomaly failed: %v", err)
		}
		if !got.Reviewed || got.Status != domain.StatusFalsePositive {
			t.Errorf("unexpected record after review: %+v", got)
		}
		if got.ReviewedAt == nil {
			t.Error("ReviewedAt not set")
		}
	})

	t.Run("ReviewMissing", func(t *testing.T) {
		_, err := repo.ReviewAnomaly(ctx, companyID, "anom-999", domain.AnomalyReview{Reviewed: true, Status: domain.StatusConfirmed})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestCustomRulePersistence(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	companyID := "company-001"

	rule := &domain.CustomRuleConfig{
		ID:         "rule-001",
		Name:       "Bulk Diesel",
		Expression: `liters > 200.0 && fuel_type == "Diesel"`,
		Reason:     "Unusually large diesel purchase",
		Score:      15,
		Enabled:    true,
	}

	if err := repo.SaveCustomRule(ctx, companyID, rule); err != nil {
		t.Fatalf("SaveCustomRule failed: %v", err)
	}

	got, err := repo.GetCustomRule(ctx, companyID, "rule-001")
	if err != nil {
		t.Fatalf("GetCustomRule failed: %v", err)
	}
	if got.Expression != rule.Expression || got.Score != 15 || !got.Enabled {
		t.Errorf("unexpected rule: %+v", got)
	}

	// Upsert disables it
	rule.Enabled = false
	if err := repo.SaveCustomRule(ctx, companyID, rule); err != nil {
		t.Fatalf("SaveCustomRule upsert failed: %v", err)
	}
	got, err = repo.GetCustomRule(ctx, companyID, "rule-001")
	if err != nil {
		t.Fatalf("GetCustomRule failed: %v", err)
	}
	if got.Enabled {
		t.Error("expected rule disabled after upsert")
	}

	rules, err := repo.ListCustomRules(ctx, companyID)
	if err != nil {
		t.Fatalf("ListCustomRules failed: %v", err)
	}
	if len(rules) != 1 {
		t.Errorf("expected 1 rule, got %d", len(rules))
	}
}

func TestStats(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	companyID := "company-001"

	ts := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		tx := &domain.FuelTransaction{
			ID:            "tx-00" + string(rune('1'+i)),
			Provider:      domain.ProviderOKQ8,
			CardID:        "card-001",
			VehicleID:     "veh-001",
			Timestamp:     ts.Add(time.Duration(i) * time.Hour),
			Liters:        40,
			PricePerLiter: 18,
			TotalAmount:   720,
			StationLat:    59.3,
			StationLon:    18.0,
			CreatedAt:     ts,
		}
		if err := repo.SaveTransaction(ctx, companyID, tx); err != nil {
			t.Fatalf("SaveTransaction failed: %v", err)
		}
	}

	records := []*domain.AnomalyRecord{
		{ID: "a1", TransactionID: "tx-001", IsAnomalous: true, Severity: domain.SeverityCritical, RiskScore: 100, Reasons: []string{"x"}, DetectedAt: ts, Status: domain.StatusPending},
		{ID: "a2", TransactionID: "tx-002", IsAnomalous: true, Severity: domain.SeverityMedium, RiskScore: 30, Reasons: []string{"y"}, DetectedAt: ts, Status: domain.StatusPending},
	}
	for _, rec := range records {
		if err := repo.SaveAnomaly(ctx, companyID, rec); err != nil {
			t.Fatalf("SaveAnomaly failed: %v", err)
		}
	}

	stats, err := repo.Stats(ctx, companyID)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalTransactions != 3 {
		t.Errorf("TotalTransactions = %d, want 3", stats.TotalTransactions)
	}
	if stats.TotalAnomalies != 2 {
		t.Errorf("TotalAnomalies = %d, want 2", stats.TotalAnomalies)
	}
	if stats.AverageRiskScore != 65 {
		t.Errorf("AverageRiskScore = %v, want 65", stats.AverageRiskScore)
	}
	if stats.CriticalAnomalies != 1 || stats.MediumAnomalies != 1 {
		t.Errorf("severity breakdown wrong: %+v", stats)
	}
}
