// Package rules implements the fraud detection rule battery.
// Each rule is a standalone, stateless check for one anomaly pattern.
package rules

import (
	"fmt"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/geo"
)

// Input carries a transaction plus its resolved context into a rule.
// Nil context fields mean the entity could not be resolved; rules that
// depend on them report no violation rather than erroring.
type Input struct {
	Tx      *domain.FuelTransaction
	Vehicle *domain.Vehicle
	Project *domain.Project
	Worker  *domain.Worker

	// RecentPoints are same-vehicle transactions within the double-dip
	// lookback window, descending by timestamp, excluding the current
	// transaction.
	RecentPoints []domain.TransactionPoint

	// DailyPoints are same-vehicle transactions since midnight of the
	// transaction day, descending by timestamp, excluding the current
	// transaction.
	DailyPoints []domain.TransactionPoint

	// Previous is the most recent entry of RecentPoints, or nil.
	Previous *domain.TransactionPoint
}

// Verdict is the outcome of one rule check.
type Verdict struct {
	Triggered bool
	Reason    string
	Score     int
}

// Rule is a single fraud detection check. Implementations must be
// stateless and safe for concurrent use.
type Rule interface {
	ID() string
	Name() string

	// NeedsHistory reports whether the rule consumes prior-transaction
	// data. History-dependent rules are skipped entirely when no history
	// provider is configured.
	NeedsHistory() bool

	Evaluate(in Input) Verdict
}

// NewBattery returns the full rule battery in its fixed evaluation
// order. Reasons in an evaluation result always follow this order.
func NewBattery(cfg domain.RulesConfig) []Rule {
	return []Rule{
		&OutOfHoursRule{},
		&GeofenceRule{BufferKm: cfg.GeofenceBufferKm},
		&TankCapacityRule{},
		&VehicleInactiveRule{},
		&DoubleDippingRule{ThresholdMinutes: cfg.DoubleDipWindowMinutes},
		&PriceAnomalyRule{DefaultMarketPrice: cfg.DefaultMarketPrice, ThresholdPercent: cfg.PriceAnomalyThresholdPercent},
		&FrequencyRule{MaxPerDay: cfg.MaxTransactionsPerDay},
		&WeekendHolidayRule{Holidays: cfg.Holidays},
		&ImpossibleTravelRule{MaxSpeedKmh: cfg.MaxSpeedKmh},
	}
}

var pass = Verdict{}

// OutOfHoursRule flags fueling outside the driver's scheduled hours.
// Without a schedule it falls back to broad construction hours
// (06:00-19:00). A schedule that fails to parse is ignored.
type OutOfHoursRule struct{}

func (r *OutOfHoursRule) ID() string         { return "out_of_hours" }
func (r *OutOfHoursRule) Name() string       { return "Out-of-Hours Fueling" }
func (r *OutOfHoursRule) NeedsHistory() bool { return false }

func (r *OutOfHoursRule) Evaluate(in Input) Verdict {
	var start, end string
	if in.Worker != nil {
		start = in.Worker.ScheduleStart
		end = in.Worker.ScheduleEnd
	}

	if start == "" || end == "" {
		hour := in.Tx.Timestamp.Hour()
		if hour < 6 || hour >= 19 {
			return Verdict{
				Triggered: true,
				Reason:    "Fueling outside standard working hours (06:00-19:00)",
				Score:     25,
			}
		}
		return pass
	}

	startTime, err := time.Parse("15:04", start)
	if err != nil {
		return pass
	}
	endTime, err := time.Parse("15:04", end)
	if err != nil {
		return pass
	}

	current := minutesOfDay(in.Tx.Timestamp)
	if current < minutesOfDay(startTime) || current > minutesOfDay(endTime) {
		return Verdict{
			Triggered: true,
			Reason:    fmt.Sprintf("Fueling outside worker schedule (%s-%s)", start, end),
			Score:     30,
		}
	}
	return pass
}

func minutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// GeofenceRule flags fueling stations outside the assigned project's
// geofence plus a buffer allowance.
type GeofenceRule struct {
	BufferKm float64
}

func (r *GeofenceRule) ID() string         { return "geofence" }
func (r *GeofenceRule) Name() string       { return "Outside Project Geofence" }
func (r *GeofenceRule) NeedsHistory() bool { return false }

func (r *GeofenceRule) Evaluate(in Input) Verdict {
	p := in.Project
	if p == nil || p.GeofenceRadiusKm <= 0 {
		return pass
	}

	distance := geo.DistanceKm(in.Tx.StationLon, in.Tx.StationLat, p.GeofenceLon, p.GeofenceLat)
	maxAllowed := p.GeofenceRadiusKm + r.BufferKm

	if distance > maxAllowed {
		name := p.Name
		if name == "" {
			name = "site"
		}
		return Verdict{
			Triggered: true,
			Reason:    fmt.Sprintf("Fueling %.1fkm away from project %s (max: %.1fkm)", distance, name, maxAllowed),
			Score:     40,
		}
	}
	return pass
}

// TankCapacityRule flags purchases exceeding the vehicle's tank
// capacity with a 5% tolerance for measurement variance.
type TankCapacityRule struct{}

func (r *TankCapacityRule) ID() string         { return "tank_capacity" }
func (r *TankCapacityRule) Name() string       { return "Impossible Fuel Volume" }
func (r *TankCapacityRule) NeedsHistory() bool { return false }

func (r *TankCapacityRule) Evaluate(in Input) Verdict {
	if in.Vehicle == nil || in.Vehicle.TankCapacityLiters <= 0 {
		return pass
	}

	capacity := in.Vehicle.TankCapacityLiters
	if in.Tx.Liters > capacity*1.05 {
		return Verdict{
			Triggered: true,
			Reason:    fmt.Sprintf("Volume %.1fL exceeds tank capacity %.1fL", in.Tx.Liters, capacity),
			Score:     40,
		}
	}
	return pass
}

// VehicleInactiveRule flags fueling on a vehicle marked inactive.
type VehicleInactiveRule struct{}

func (r *VehicleInactiveRule) ID() string         { return "vehicle_inactive" }
func (r *VehicleInactiveRule) Name() string       { return "Vehicle Inactive Status" }
func (r *VehicleInactiveRule) NeedsHistory() bool { return false }

func (r *VehicleInactiveRule) Evaluate(in Input) Verdict {
	if in.Vehicle != nil && in.Vehicle.Status == domain.VehicleInactive {
		return Verdict{
			Triggered: true,
			Reason:    "Vehicle is marked as inactive",
			Score:     25,
		}
	}
	return pass
}

// DoubleDippingRule flags repeat fueling of the same vehicle within a
// short window. Fires at most once regardless of how many prior
// transactions qualify.
type DoubleDippingRule struct {
	ThresholdMinutes int
}

func (r *DoubleDippingRule) ID() string         { return "double_dipping" }
func (r *DoubleDippingRule) Name() string       { return "Double-Dipping" }
func (r *DoubleDippingRule) NeedsHistory() bool { return true }

func (r *DoubleDippingRule) Evaluate(in Input) Verdict {
	for _, pt := range in.RecentPoints {
		diff := in.Tx.Timestamp.Sub(pt.Timestamp)
		if diff < 0 {
			diff = -diff
		}
		if diff.Minutes() < float64(r.ThresholdMinutes) {
			return Verdict{
				Triggered: true,
				Reason:    fmt.Sprintf("Multiple transactions within %d minutes (possible double-dipping)", r.ThresholdMinutes),
				Score:     35,
			}
		}
	}
	return pass
}

// PriceAnomalyRule flags prices deviating from the market average.
// Below-average prices score higher than above-average ones since
// they can indicate fuel theft with a falsified receipt.
type PriceAnomalyRule struct {
	DefaultMarketPrice float64
	ThresholdPercent   float64

	// MarketAverage overrides the default estimate when a live average
	// is available. Zero means unavailable.
	MarketAverage float64
}

func (r *PriceAnomalyRule) ID() string         { return "price_anomaly" }
func (r *PriceAnomalyRule) Name() string       { return "Price Anomaly" }
func (r *PriceAnomalyRule) NeedsHistory() bool { return true }

func (r *PriceAnomalyRule) Evaluate(in Input) Verdict {
	avg := r.MarketAverage
	if avg == 0 {
		avg = r.DefaultMarketPrice
	}

	price := in.Tx.PricePerLiter
	deviation := (price - avg) / avg * 100
	if deviation < 0 {
		deviation = -deviation
	}

	if deviation > r.ThresholdPercent {
		if price > avg {
			return Verdict{
				Triggered: true,
				Reason:    fmt.Sprintf("Price %.2f SEK/L is %.1f%% above market average", price, deviation),
				Score:     20,
			}
		}
		return Verdict{
			Triggered: true,
			Reason:    fmt.Sprintf("Price %.2f SEK/L is %.1f%% below market average (possible theft)", price, deviation),
			Score:     30,
		}
	}
	return pass
}

// FrequencyRule flags vehicles fueling too many times in one calendar
// day.
type FrequencyRule struct {
	MaxPerDay int
}

func (r *FrequencyRule) ID() string         { return "daily_frequency" }
func (r *FrequencyRule) Name() string       { return "Transaction Frequency" }
func (r *FrequencyRule) NeedsHistory() bool { return true }

func (r *FrequencyRule) Evaluate(in Input) Verdict {
	txYear, txMonth, txDay := in.Tx.Timestamp.Date()

	sameDay := 0
	for _, pt := range in.DailyPoints {
		y, m, d := pt.Timestamp.Date()
		if y == txYear && m == txMonth && d == txDay {
			sameDay++
		}
	}

	if sameDay >= r.MaxPerDay {
		return Verdict{
			Triggered: true,
			Reason:    fmt.Sprintf("Excessive fueling: %d transactions today (max: %d)", sameDay+1, r.MaxPerDay),
			Score:     30,
		}
	}
	return pass
}

// WeekendHolidayRule flags fueling on weekends or configured holidays.
// The weekend check runs first; a holiday falling on a weekend is
// reported as a weekend.
type WeekendHolidayRule struct {
	Holidays []time.Time
}

func (r *WeekendHolidayRule) ID() string         { return "weekend_holiday" }
func (r *WeekendHolidayRule) Name() string       { return "Weekend/Holiday Fueling" }
func (r *WeekendHolidayRule) NeedsHistory() bool { return true }

func (r *WeekendHolidayRule) Evaluate(in Input) Verdict {
	wd := in.Tx.Timestamp.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return Verdict{
			Triggered: true,
			Reason:    fmt.Sprintf("Fueling on weekend (%s)", wd),
			Score:     20,
		}
	}

	txYear, txMonth, txDay := in.Tx.Timestamp.Date()
	for _, holiday := range r.Holidays {
		y, m, d := holiday.Date()
		if y == txYear && m == txMonth && d == txDay {
			return Verdict{
				Triggered: true,
				Reason:    fmt.Sprintf("Fueling on holiday (%s)", in.Tx.Timestamp.Format("2006-01-02")),
				Score:     25,
			}
		}
	}
	return pass
}

// ImpossibleTravelRule flags vehicles that could not have reached the
// current station from the previous one in the elapsed time.
type ImpossibleTravelRule struct {
	MaxSpeedKmh float64
}

func (r *ImpossibleTravelRule) ID() string         { return "impossible_travel" }
func (r *ImpossibleTravelRule) Name() string       { return "Consecutive Locations" }
func (r *ImpossibleTravelRule) NeedsHistory() bool { return true }

func (r *ImpossibleTravelRule) Evaluate(in Input) Verdict {
	prev := in.Previous
	if prev == nil {
		return pass
	}

	distanceKm := geo.DistanceKm(prev.StationLon, prev.StationLat, in.Tx.StationLon, in.Tx.StationLat)

	elapsed := in.Tx.Timestamp.Sub(prev.Timestamp)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	hours := elapsed.Hours()

	if hours == 0 {
		if distanceKm > 1 {
			return Verdict{
				Triggered: true,
				Reason:    fmt.Sprintf("Simultaneous transactions %.1fkm apart (impossible)", distanceKm),
				Score:     45,
			}
		}
		return pass
	}

	requiredSpeed := distanceKm / hours
	if requiredSpeed > r.MaxSpeedKmh {
		return Verdict{
			Triggered: true,
			Reason:    fmt.Sprintf("Impossible travel: %.1fkm in %.1fh (requires %.0fkm/h)", distanceKm, hours, requiredSpeed),
			Score:     35,
		}
	}
	return pass
}
