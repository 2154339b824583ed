package engine

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

type historyFunc func(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]domain.TransactionPoint, error)

func (f historyFunc) RecentSince(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]domain.TransactionPoint, error) {
	return f(ctx, vehicleID, since, excludeID)
}

func emptyHistory() domain.HistoryProvider {
	return historyFunc(func(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]domain.TransactionPoint, error) {
		return nil, nil
	})
}

func emptyDirectory() *domain.StaticDirectory {
	return &domain.StaticDirectory{}
}

// 2025-06-11 is a Wednesday, 2025-06-15 a Sunday.
var (
	weekdayNoon = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	sundayNight = time.Date(2025, 6, 15, 3, 0, 0, 0, time.UTC)
)

func cleanTx() *domain.FuelTransaction {
	return &domain.FuelTransaction{
		ID:            "tx-1",
		VehicleID:     "veh-1",
		Timestamp:     weekdayNoon,
		Liters:        50,
		PricePerLiter: 18.0,
		TotalAmount:   900,
		StationLat:    59.3293,
		StationLon:    18.0686,
	}
}

func TestEvaluateCleanTransaction(t *testing.T) {
	eng := New(domain.DefaultRulesConfig(), emptyDirectory(), emptyHistory(), nil, nil)

	result, err := eng.Evaluate(context.Background(), cleanTx())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if result.RiskScore != 0 {
		t.Errorf("RiskScore = %d, want 0", result.RiskScore)
	}
	if result.Severity != domain.SeverityLow {
		t.Errorf("Severity = %s, want Low", result.Severity)
	}
	if result.IsAnomalous {
		t.Error("clean transaction flagged anomalous")
	}
	if len(result.Reasons) != 0 {
		t.Errorf("Reasons = %v, want none", result.Reasons)
	}
}

func TestEvaluateTankCapacity(t *testing.T) {
	dir := &domain.StaticDirectory{
		Vehicles: map[string]*domain.Vehicle{
			"veh-1": {ID: "veh-1", Status: domain.VehicleActive, TankCapacityLiters: 200},
		},
	}
	eng := New(domain.DefaultRulesConfig(), dir, emptyHistory(), nil, nil)

	tx := cleanTx()
	tx.Liters = 250

	result, err := eng.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.RiskScore != 40 {
		t.Errorf("RiskScore = %d, want 40", result.RiskScore)
	}
	if len(result.Reasons) != 1 || !strings.Contains(result.Reasons[0], "exceeds tank capacity") {
		t.Errorf("Reasons = %v", result.Reasons)
	}
}

func TestEvaluateGeofence(t *testing.T) {
	dir := &domain.StaticDirectory{
		Vehicles: map[string]*domain.Vehicle{
			"veh-1": {ID: "veh-1", Status: domain.VehicleActive, AssignedProjectID: "proj-1"},
		},
		Projects: map[string]*domain.Project{
			// ~131km from the station in cleanTx
			"proj-1": {ID: "proj-1", Name: "North Yard", GeofenceLat: 60.5, GeofenceLon: 17.9, GeofenceRadiusKm: 5},
		},
	}
	eng := New(domain.DefaultRulesConfig(), dir, emptyHistory(), nil, nil)

	result, err := eng.Evaluate(context.Background(), cleanTx())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.RiskScore != 40 {
		t.Errorf("RiskScore = %d, want 40", result.RiskScore)
	}
	if len(result.Reasons) != 1 {
		t.Fatalf("Reasons = %v", result.Reasons)
	}
	if !strings.Contains(result.Reasons[0], "km away from project North Yard") || !strings.Contains(result.Reasons[0], "max: 20.0km") {
		t.Errorf("reason missing distance or allowance: %q", result.Reasons[0])
	}
}

func TestEvaluateDoubleDip(t *testing.T) {
	prior := domain.TransactionPoint{
		Timestamp:  weekdayNoon.Add(-15 * time.Minute),
		StationLat: 59.3293,
		StationLon: 18.0686,
	}
	history := historyFunc(func(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]domain.TransactionPoint, error) {
		return []domain.TransactionPoint{prior}, nil
	})
	eng := New(domain.DefaultRulesConfig(), emptyDirectory(), history, nil, nil)

	result, err := eng.Evaluate(context.Background(), cleanTx())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	found := false
	for _, r := range result.Reasons {
		if strings.Contains(r, "double-dipping") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected double-dipping reason, got %v", result.Reasons)
	}
	if result.RiskScore < 35 {
		t.Errorf("RiskScore = %d, want >= 35", result.RiskScore)
	}
	if !result.IsAnomalous {
		t.Error("expected anomalous result")
	}
}

func TestEvaluateCriticalPileUp(t *testing.T) {
	dir := &domain.StaticDirectory{
		Vehicles: map[string]*domain.Vehicle{
			"veh-1": {ID: "veh-1", Status: domain.VehicleActive, TankCapacityLiters: 60, AssignedProjectID: "proj-1"},
		},
		Projects: map[string]*domain.Project{
			"proj-1": {ID: "proj-1", Name: "South Site", GeofenceLat: 57.7, GeofenceLon: 11.97, GeofenceRadiusKm: 5},
		},
	}
	eng := New(domain.DefaultRulesConfig(), dir, emptyHistory(), nil, nil)

	tx := cleanTx()
	tx.Timestamp = sundayNight // 03:00 Sunday
	tx.Liters = 90             // over 60L tank
	tx.PricePerLiter = 25.0    // ~39% above default average

	result, err := eng.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// out-of-hours 25 + geofence 40 + tank 40 + price 20 + weekend 20
	if result.RiskScore != 100 {
		t.Errorf("RiskScore = %d, want clamped 100", result.RiskScore)
	}
	if result.Severity != domain.SeverityCritical {
		t.Errorf("Severity = %s, want Critical", result.Severity)
	}
	if !result.IsAnomalous {
		t.Error("expected anomalous result")
	}
	if len(result.Reasons) < 4 {
		t.Errorf("Reasons = %v, want at least 4", result.Reasons)
	}
}

func TestEvaluateReasonsFollowBatteryOrder(t *testing.T) {
	dir := &domain.StaticDirectory{
		Vehicles: map[string]*domain.Vehicle{
			"veh-1": {ID: "veh-1", Status: domain.VehicleInactive},
		},
	}
	history := historyFunc(func(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]domain.TransactionPoint, error) {
		return []domain.TransactionPoint{{Timestamp: sundayNight.Add(-10 * time.Minute), StationLat: 59.3293, StationLon: 18.0686}}, nil
	})
	eng := New(domain.DefaultRulesConfig(), dir, history, nil, nil)

	tx := cleanTx()
	tx.Timestamp = sundayNight

	result, err := eng.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	wantOrder := []string{
		"outside standard working hours",
		"marked as inactive",
		"double-dipping",
		"Fueling on weekend",
	}
	if len(result.Reasons) != len(wantOrder) {
		t.Fatalf("Reasons = %v, want %d entries", result.Reasons, len(wantOrder))
	}
	for i, fragment := range wantOrder {
		if !strings.Contains(result.Reasons[i], fragment) {
			t.Errorf("Reasons[%d] = %q, want it to contain %q", i, result.Reasons[i], fragment)
		}
	}
}

func TestEvaluateWithoutHistorySkipsHistoryRules(t *testing.T) {
	eng := New(domain.DefaultRulesConfig(), emptyDirectory(), nil, nil, nil)

	tx := cleanTx()
	tx.Timestamp = sundayNight // weekend AND out of hours
	tx.PricePerLiter = 10.0    // far below average

	result, err := eng.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// Only out-of-hours can fire: weekend and price checks need history wiring
	if result.RiskScore != 25 {
		t.Errorf("RiskScore = %d, want 25", result.RiskScore)
	}
	if len(result.Reasons) != 1 {
		t.Errorf("Reasons = %v, want 1", result.Reasons)
	}
}

func TestEvaluatePropagatesHistoryError(t *testing.T) {
	wantErr := errors.New("connection refused")
	history := historyFunc(func(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]domain.TransactionPoint, error) {
		return nil, wantErr
	})
	eng := New(domain.DefaultRulesConfig(), emptyDirectory(), history, nil, nil)

	_, err := eng.Evaluate(context.Background(), cleanTx())
	if !errors.Is(err, wantErr) {
		t.Errorf("err = %v, want %v unmodified", err, wantErr)
	}
}

func TestEvaluateHistoryWindows(t *testing.T) {
	tx := cleanTx()

	var sinces []time.Time
	history := historyFunc(func(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]domain.TransactionPoint, error) {
		if vehicleID != tx.VehicleID {
			t.Errorf("vehicleID = %s, want %s", vehicleID, tx.VehicleID)
		}
		if excludeID != tx.ID {
			t.Errorf("excludeID = %s, want %s", excludeID, tx.ID)
		}
		sinces = append(sinces, since)
		return nil, nil
	})
	eng := New(domain.DefaultRulesConfig(), emptyDirectory(), history, nil, nil)

	if _, err := eng.Evaluate(context.Background(), tx); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if len(sinces) != 2 {
		t.Fatalf("history queried %d times, want 2", len(sinces))
	}

	lookback := tx.Timestamp.Add(-30 * time.Minute)
	midnight := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	seen := map[time.Time]bool{sinces[0]: true, sinces[1]: true}
	if !seen[lookback] || !seen[midnight] {
		t.Errorf("history windows = %v, want %v and %v", sinces, lookback, midnight)
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	dir := &domain.StaticDirectory{
		Vehicles: map[string]*domain.Vehicle{
			"veh-1": {ID: "veh-1", Status: domain.VehicleInactive, TankCapacityLiters: 40},
		},
	}
	eng := New(domain.DefaultRulesConfig(), dir, emptyHistory(), nil, nil)

	tx := cleanTx()
	tx.Liters = 80

	first, err := eng.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	second, err := eng.Evaluate(context.Background(), tx)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	first.DetectedAt = time.Time{}
	second.DetectedAt = time.Time{}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("results differ:\n%+v\n%+v", first, second)
	}
}

func TestCalculateSeverityBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  domain.Severity
	}{
		{0, domain.SeverityLow},
		{1, domain.SeverityLow},
		{20, domain.SeverityLow},
		{21, domain.SeverityMedium},
		{40, domain.SeverityMedium},
		{41, domain.SeverityHigh},
		{70, domain.SeverityHigh},
		{71, domain.SeverityCritical},
		{145, domain.SeverityCritical},
	}

	for _, tt := range tests {
		if got := calculateSeverity(tt.score); got != tt.want {
			t.Errorf("calculateSeverity(%d) = %s, want %s", tt.score, got, tt.want)
		}
	}
}
