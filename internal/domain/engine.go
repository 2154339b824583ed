// Package domain defines the core interfaces and types for FuelGuard.
package domain

import (
	"context"
	"time"
)

// HistoryProvider supplies prior transactions for a vehicle within a
// time window, ordered by descending timestamp, excluding a given
// transaction id. I/O errors are propagated to the caller verbatim;
// the provider is responsible for bounding its own latency.
type HistoryProvider interface {
	RecentSince(ctx context.Context, vehicleID string, since time.Time, excludeID string) ([]TransactionPoint, error)
}

// EntityDirectory resolves the contextual entities a rule evaluation
// needs. Absence of an entity is not an error: implementations return
// (nil, nil) and the dependent rules degrade to "not applicable".
type EntityDirectory interface {
	VehicleByID(ctx context.Context, id string) (*Vehicle, error)
	ProjectByID(ctx context.Context, id string) (*Project, error)
	WorkerByID(ctx context.Context, id string) (*Worker, error)
}

// StaticDirectory is an EntityDirectory over in-memory maps, used by
// tests and by callers that already hold an entity snapshot.
type StaticDirectory struct {
	Vehicles map[string]*Vehicle
	Projects map[string]*Project
	Workers  map[string]*Worker
}

func (d *StaticDirectory) VehicleByID(ctx context.Context, id string) (*Vehicle, error) {
	return d.Vehicles[id], nil
}

func (d *StaticDirectory) ProjectByID(ctx context.Context, id string) (*Project, error) {
	return d.Projects[id], nil
}

func (d *StaticDirectory) WorkerByID(ctx context.Context, id string) (*Worker, error) {
	return d.Workers[id], nil
}
