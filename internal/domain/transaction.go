package domain

import (
	"time"
)

// Known fuel card providers.
const (
	ProviderOKQ8    = "okq8"
	ProviderPreem   = "preem"
	ProviderShell   = "shell"
	ProviderCircleK = "circlek"
)

// KnownProvider reports whether name is a supported fuel card provider.
func KnownProvider(name string) bool {
	switch name {
	case ProviderOKQ8, ProviderPreem, ProviderShell, ProviderCircleK:
		return true
	}
	return false
}

// FuelTransaction represents a single fuel purchase to be evaluated.
// Transactions are created once at ingestion and never mutated.
type FuelTransaction struct {
	// Core identifiers
	ID        string `json:"id"`
	CompanyID string `json:"companyId,omitempty"`

	// Source fuel card provider ("okq8", "preem", "shell", "circlek")
	Provider string `json:"provider"`

	// Card, vehicle and (optional) driver
	CardID    string `json:"cardId"`
	VehicleID string `json:"vehicleId"`
	DriverID  string `json:"driverId,omitempty"`

	// Purchase details
	Timestamp     time.Time `json:"timestamp"`
	Liters        float64   `json:"liters"`
	PricePerLiter float64   `json:"pricePerLiter"`
	TotalAmount   float64   `json:"totalAmount"`
	FuelType      string    `json:"fuelType"`

	// Station
	StationID  string  `json:"stationId"`
	StationLat float64 `json:"stationLat"`
	StationLon float64 `json:"stationLon"`

	CreatedAt time.Time `json:"createdAt"`
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	VehicleID string
	DriverID  string
	Provider  string
	StartDate time.Time
	EndDate   time.Time
	Offset    int
	Limit     int
}

// TransactionPoint is the slice of a prior transaction the temporal and
// spatial rules consume: when and where a vehicle last fueled.
type TransactionPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	StationLat float64   `json:"stationLat"`
	StationLon float64   `json:"stationLon"`
}
