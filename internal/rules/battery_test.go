package rules

import (
	"strings"
	"testing"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

func txAt(ts time.Time) *domain.FuelTransaction {
	return &domain.FuelTransaction{
		ID:            "tx-1",
		VehicleID:     "veh-1",
		Timestamp:     ts,
		Liters:        50,
		PricePerLiter: 18.0,
		StationLat:    59.3293,
		StationLon:    18.0686,
	}
}

// 2025-06-11 is a Wednesday.
var weekdayNoon = time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)

func TestOutOfHoursRule(t *testing.T) {
	rule := &OutOfHoursRule{}

	t.Run("no schedule inside default hours", func(t *testing.T) {
		v := rule.Evaluate(Input{Tx: txAt(weekdayNoon)})
		if v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("no schedule before 6am", func(t *testing.T) {
		v := rule.Evaluate(Input{Tx: txAt(time.Date(2025, 6, 11, 3, 0, 0, 0, time.UTC))})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 25 {
			t.Errorf("score = %d, want 25", v.Score)
		}
		if v.Reason != "Fueling outside standard working hours (06:00-19:00)" {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("no schedule at 7pm boundary", func(t *testing.T) {
		v := rule.Evaluate(Input{Tx: txAt(time.Date(2025, 6, 11, 19, 0, 0, 0, time.UTC))})
		if !v.Triggered {
			t.Error("expected violation at 19:00")
		}
	})

	t.Run("within schedule", func(t *testing.T) {
		w := &domain.Worker{ScheduleStart: "07:00", ScheduleEnd: "16:00"}
		v := rule.Evaluate(Input{Tx: txAt(weekdayNoon), Worker: w})
		if v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("outside schedule", func(t *testing.T) {
		w := &domain.Worker{ScheduleStart: "07:00", ScheduleEnd: "16:00"}
		v := rule.Evaluate(Input{Tx: txAt(time.Date(2025, 6, 11, 17, 30, 0, 0, time.UTC)), Worker: w})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 30 {
			t.Errorf("score = %d, want 30", v.Score)
		}
		if v.Reason != "Fueling outside worker schedule (07:00-16:00)" {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("schedule boundaries are inclusive", func(t *testing.T) {
		w := &domain.Worker{ScheduleStart: "07:00", ScheduleEnd: "16:00"}
		for _, ts := range []time.Time{
			time.Date(2025, 6, 11, 7, 0, 0, 0, time.UTC),
			time.Date(2025, 6, 11, 16, 0, 0, 0, time.UTC),
		} {
			if v := rule.Evaluate(Input{Tx: txAt(ts), Worker: w}); v.Triggered {
				t.Errorf("unexpected violation at %v", ts)
			}
		}
	})

	t.Run("malformed schedule is skipped", func(t *testing.T) {
		w := &domain.Worker{ScheduleStart: "seven", ScheduleEnd: "16:00"}
		v := rule.Evaluate(Input{Tx: txAt(time.Date(2025, 6, 11, 23, 0, 0, 0, time.UTC)), Worker: w})
		if v.Triggered {
			t.Errorf("malformed schedule should report no violation, got %v", v)
		}
	})
}

func TestGeofenceRule(t *testing.T) {
	rule := &GeofenceRule{BufferKm: 15.0}

	t.Run("no project", func(t *testing.T) {
		if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon)}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("inside geofence", func(t *testing.T) {
		p := &domain.Project{Name: "Slussen", GeofenceLat: 59.32, GeofenceLon: 18.07, GeofenceRadiusKm: 5}
		if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon), Project: p}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("far outside geofence", func(t *testing.T) {
		// Station in Stockholm, project near Uppsala-north, well past 20km
		p := &domain.Project{Name: "Norrland Site", GeofenceLat: 60.5, GeofenceLon: 17.6, GeofenceRadiusKm: 5}
		v := rule.Evaluate(Input{Tx: txAt(weekdayNoon), Project: p})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 40 {
			t.Errorf("score = %d, want 40", v.Score)
		}
		if !strings.Contains(v.Reason, "away from project Norrland Site") {
			t.Errorf("reason missing project name: %q", v.Reason)
		}
		if !strings.Contains(v.Reason, "(max: 20.0km)") {
			t.Errorf("reason missing max allowed: %q", v.Reason)
		}
	})
}

func TestTankCapacityRule(t *testing.T) {
	rule := &TankCapacityRule{}

	t.Run("unknown capacity", func(t *testing.T) {
		if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon)}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("within tolerance", func(t *testing.T) {
		veh := &domain.Vehicle{TankCapacityLiters: 50}
		tx := txAt(weekdayNoon)
		tx.Liters = 52 // under 50 * 1.05 = 52.5
		if v := rule.Evaluate(Input{Tx: tx, Vehicle: veh}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("exceeds capacity", func(t *testing.T) {
		veh := &domain.Vehicle{TankCapacityLiters: 200}
		tx := txAt(weekdayNoon)
		tx.Liters = 250
		v := rule.Evaluate(Input{Tx: tx, Vehicle: veh})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 40 {
			t.Errorf("score = %d, want 40", v.Score)
		}
		if v.Reason != "Volume 250.0L exceeds tank capacity 200.0L" {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})
}

func TestVehicleInactiveRule(t *testing.T) {
	rule := &VehicleInactiveRule{}

	if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon), Vehicle: &domain.Vehicle{Status: domain.VehicleActive}}); v.Triggered {
		t.Errorf("active vehicle should pass, got %v", v)
	}
	if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon)}); v.Triggered {
		t.Errorf("missing vehicle should pass, got %v", v)
	}

	v := rule.Evaluate(Input{Tx: txAt(weekdayNoon), Vehicle: &domain.Vehicle{Status: domain.VehicleInactive}})
	if !v.Triggered || v.Score != 25 {
		t.Errorf("inactive vehicle: got %+v, want triggered with score 25", v)
	}
}

func TestDoubleDippingRule(t *testing.T) {
	rule := &DoubleDippingRule{ThresholdMinutes: 30}

	t.Run("no history", func(t *testing.T) {
		if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon)}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("prior fueling 15 minutes earlier", func(t *testing.T) {
		in := Input{
			Tx:           txAt(weekdayNoon),
			RecentPoints: []domain.TransactionPoint{{Timestamp: weekdayNoon.Add(-15 * time.Minute)}},
		}
		v := rule.Evaluate(in)
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 35 {
			t.Errorf("score = %d, want 35", v.Score)
		}
		if v.Reason != "Multiple transactions within 30 minutes (possible double-dipping)" {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("prior fueling outside window", func(t *testing.T) {
		in := Input{
			Tx:           txAt(weekdayNoon),
			RecentPoints: []domain.TransactionPoint{{Timestamp: weekdayNoon.Add(-45 * time.Minute)}},
		}
		if v := rule.Evaluate(in); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("fires once for multiple hits", func(t *testing.T) {
		in := Input{
			Tx: txAt(weekdayNoon),
			RecentPoints: []domain.TransactionPoint{
				{Timestamp: weekdayNoon.Add(-5 * time.Minute)},
				{Timestamp: weekdayNoon.Add(-10 * time.Minute)},
			},
		}
		v := rule.Evaluate(in)
		if !v.Triggered || v.Score != 35 {
			t.Errorf("got %+v, want single violation scored 35", v)
		}
	})
}

func TestPriceAnomalyRule(t *testing.T) {
	rule := &PriceAnomalyRule{DefaultMarketPrice: 18.0, ThresholdPercent: 20.0}

	t.Run("normal price", func(t *testing.T) {
		tx := txAt(weekdayNoon)
		tx.PricePerLiter = 19.0
		if v := rule.Evaluate(Input{Tx: tx}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("above market", func(t *testing.T) {
		tx := txAt(weekdayNoon)
		tx.PricePerLiter = 25.0 // ~38.9% above 18.0
		v := rule.Evaluate(Input{Tx: tx})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 20 {
			t.Errorf("score = %d, want 20", v.Score)
		}
		if v.Reason != "Price 25.00 SEK/L is 38.9% above market average" {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("below market scores higher", func(t *testing.T) {
		tx := txAt(weekdayNoon)
		tx.PricePerLiter = 10.0
		v := rule.Evaluate(Input{Tx: tx})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 30 {
			t.Errorf("score = %d, want 30", v.Score)
		}
		if !strings.Contains(v.Reason, "below market average (possible theft)") {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("live average overrides default", func(t *testing.T) {
		live := &PriceAnomalyRule{DefaultMarketPrice: 18.0, ThresholdPercent: 20.0, MarketAverage: 25.0}
		tx := txAt(weekdayNoon)
		tx.PricePerLiter = 25.0
		if v := live.Evaluate(Input{Tx: tx}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})
}

func TestFrequencyRule(t *testing.T) {
	rule := &FrequencyRule{MaxPerDay: 3}

	t.Run("under limit", func(t *testing.T) {
		in := Input{
			Tx: txAt(weekdayNoon),
			DailyPoints: []domain.TransactionPoint{
				{Timestamp: weekdayNoon.Add(-2 * time.Hour)},
				{Timestamp: weekdayNoon.Add(-4 * time.Hour)},
			},
		}
		if v := rule.Evaluate(in); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("at limit", func(t *testing.T) {
		in := Input{
			Tx: txAt(weekdayNoon),
			DailyPoints: []domain.TransactionPoint{
				{Timestamp: weekdayNoon.Add(-2 * time.Hour)},
				{Timestamp: weekdayNoon.Add(-4 * time.Hour)},
				{Timestamp: weekdayNoon.Add(-6 * time.Hour)},
			},
		}
		v := rule.Evaluate(in)
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 30 {
			t.Errorf("score = %d, want 30", v.Score)
		}
		if v.Reason != "Excessive fueling: 4 transactions today (max: 3)" {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("previous day does not count", func(t *testing.T) {
		in := Input{
			Tx: txAt(weekdayNoon),
			DailyPoints: []domain.TransactionPoint{
				{Timestamp: weekdayNoon.AddDate(0, 0, -1)},
				{Timestamp: weekdayNoon.AddDate(0, 0, -1).Add(time.Hour)},
				{Timestamp: weekdayNoon.AddDate(0, 0, -1).Add(2 * time.Hour)},
			},
		}
		if v := rule.Evaluate(in); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})
}

func TestWeekendHolidayRule(t *testing.T) {
	rule := &WeekendHolidayRule{}

	t.Run("weekday", func(t *testing.T) {
		if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon)}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("saturday", func(t *testing.T) {
		v := rule.Evaluate(Input{Tx: txAt(time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC))})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 20 {
			t.Errorf("score = %d, want 20", v.Score)
		}
		if v.Reason != "Fueling on weekend (Saturday)" {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("holiday", func(t *testing.T) {
		midsummer := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC) // a Friday
		hr := &WeekendHolidayRule{Holidays: []time.Time{midsummer}}
		v := hr.Evaluate(Input{Tx: txAt(time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC))})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 25 {
			t.Errorf("score = %d, want 25", v.Score)
		}
		if v.Reason != "Fueling on holiday (2025-06-20)" {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("holiday on weekend reports weekend", func(t *testing.T) {
		saturday := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
		hr := &WeekendHolidayRule{Holidays: []time.Time{saturday}}
		v := hr.Evaluate(Input{Tx: txAt(time.Date(2025, 6, 14, 10, 0, 0, 0, time.UTC))})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 20 {
			t.Errorf("weekend should win over holiday, score = %d", v.Score)
		}
	})
}

func TestImpossibleTravelRule(t *testing.T) {
	rule := &ImpossibleTravelRule{MaxSpeedKmh: 120.0}

	t.Run("no previous transaction", func(t *testing.T) {
		if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon)}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("plausible travel", func(t *testing.T) {
		// ~70km in 1h
		prev := &domain.TransactionPoint{
			Timestamp:  weekdayNoon.Add(-time.Hour),
			StationLat: 59.86,
			StationLon: 17.64,
		}
		if v := rule.Evaluate(Input{Tx: txAt(weekdayNoon), Previous: prev}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})

	t.Run("impossible speed", func(t *testing.T) {
		// Stockholm to Gothenburg (~400km) in 1h
		tx := txAt(weekdayNoon)
		prev := &domain.TransactionPoint{
			Timestamp:  weekdayNoon.Add(-time.Hour),
			StationLat: 57.7089,
			StationLon: 11.9746,
		}
		v := rule.Evaluate(Input{Tx: tx, Previous: prev})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 35 {
			t.Errorf("score = %d, want 35", v.Score)
		}
		if !strings.Contains(v.Reason, "Impossible travel:") {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("simultaneous at different stations", func(t *testing.T) {
		tx := txAt(weekdayNoon)
		prev := &domain.TransactionPoint{
			Timestamp:  weekdayNoon,
			StationLat: 57.7089,
			StationLon: 11.9746,
		}
		v := rule.Evaluate(Input{Tx: tx, Previous: prev})
		if !v.Triggered {
			t.Fatal("expected violation")
		}
		if v.Score != 45 {
			t.Errorf("score = %d, want 45", v.Score)
		}
		if !strings.Contains(v.Reason, "apart (impossible)") {
			t.Errorf("unexpected reason: %q", v.Reason)
		}
	})

	t.Run("simultaneous at same station", func(t *testing.T) {
		tx := txAt(weekdayNoon)
		prev := &domain.TransactionPoint{
			Timestamp:  weekdayNoon,
			StationLat: tx.StationLat,
			StationLon: tx.StationLon,
		}
		if v := rule.Evaluate(Input{Tx: tx, Previous: prev}); v.Triggered {
			t.Errorf("unexpected violation: %v", v)
		}
	})
}

func TestNewBatteryOrder(t *testing.T) {
	battery := NewBattery(domain.DefaultRulesConfig())

	wantOrder := []string{
		"out_of_hours",
		"geofence",
		"tank_capacity",
		"vehicle_inactive",
		"double_dipping",
		"price_anomaly",
		"daily_frequency",
		"weekend_holiday",
		"impossible_travel",
	}

	if len(battery) != len(wantOrder) {
		t.Fatalf("battery size = %d, want %d", len(battery), len(wantOrder))
	}
	for i, rule := range battery {
		if rule.ID() != wantOrder[i] {
			t.Errorf("battery[%d] = %s, want %s", i, rule.ID(), wantOrder[i])
		}
	}

	// History gating splits the battery in two halves
	for i, rule := range battery {
		wantHistory := i >= 4
		if rule.NeedsHistory() != wantHistory {
			t.Errorf("rule %s NeedsHistory = %v, want %v", rule.ID(), rule.NeedsHistory(), wantHistory)
		}
	}
}
