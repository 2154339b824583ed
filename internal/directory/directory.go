// Package directory resolves fleet entities with read-through caching.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/repository"
)

// Directory looks up vehicles, projects and workers for rule
// evaluation, scoped to one company. Lookups go through the cache
// first; a missing entity is reported as (nil, nil), never as an
// error. It implements domain.EntityDirectory.
type Directory struct {
	repo      domain.Repository
	cache     domain.Cache
	companyID string
	ttl       time.Duration
}

// New creates a directory. cache may be nil to disable caching.
func New(repo domain.Repository, cache domain.Cache, companyID string, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Directory{
		repo:      repo,
		cache:     cache,
		companyID: companyID,
		ttl:       ttl,
	}
}

// VehicleByID resolves a vehicle, or (nil, nil) when unknown.
func (d *Directory) VehicleByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	var v domain.Vehicle
	found, err := d.lookup(ctx, "vehicle:"+id, &v, func() (any, error) {
		return d.repo.GetVehicle(ctx, d.companyID, id)
	})
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}

// ProjectByID resolves a project, or (nil, nil) when unknown.
func (d *Directory) ProjectByID(ctx context.Context, id string) (*domain.Project, error) {
	var p domain.Project
	found, err := d.lookup(ctx, "project:"+id, &p, func() (any, error) {
		return d.repo.GetProject(ctx, d.companyID, id)
	})
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

// WorkerByID resolves a worker, or (nil, nil) when unknown.
func (d *Directory) WorkerByID(ctx context.Context, id string) (*domain.Worker, error) {
	var w domain.Worker
	found, err := d.lookup(ctx, "worker:"+id, &w, func() (any, error) {
		return d.repo.GetWorker(ctx, d.companyID, id)
	})
	if err != nil || !found {
		return nil, err
	}
	return &w, nil
}

// Invalidate drops a cached entity after a mutation.
func (d *Directory) Invalidate(ctx context.Context, kind, id string) {
	if d.cache == nil {
		return
	}
	d.cache.Delete(ctx, d.companyID, kind+":"+id)
}

// lookup checks the cache, falls back to the fetch function and
// populates the cache on a hit. Cache failures are treated as misses.
func (d *Directory) lookup(ctx context.Context, key string, dst any, fetch func() (any, error)) (bool, error) {
	if d.cache != nil {
		if data, err := d.cache.Get(ctx, d.companyID, key); err == nil && data != nil {
			if err := json.Unmarshal(data, dst); err == nil {
				return true, nil
			}
		}
	}

	entity, err := fetch()
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}

	if d.cache != nil {
		d.cache.Set(ctx, d.companyID, key, data, d.ttl)
	}
	return true, nil
}
