// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTransaction stores a fuel transaction with company isolation.
func (r *SQLRepository) SaveTransaction(ctx context.Context, companyID string, tx *domain.FuelTransaction) error {
	if companyID == "" {
		return fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transactions (
			id, company_id, provider, card_id, vehicle_id, driver_id,
			timestamp, liters, price_per_liter, total_amount, fuel_type,
			station_id, station_lat, station_lon, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, companyID, tx.Provider,
		tx.CardID, tx.VehicleID, tx.DriverID,
		tx.Timestamp, tx.Liters, tx.PricePerLiter,
		tx.TotalAmount, tx.FuelType,
		tx.StationID, tx.StationLat, tx.StationLon,
		tx.CreatedAt,
	)
	return err
}

// GetTransaction retrieves a transaction by ID with company isolation.
func (r *SQLRepository) GetTransaction(ctx context.Context, companyID string, txID string) (*domain.FuelTransaction, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, provider, card_id, vehicle_id, driver_id,
			   timestamp, liters, price_per_liter, total_amount, fuel_type,
			   station_id, station_lat, station_lon, created_at
		FROM transactions
		WHERE company_id = ? AND id = ?
	`

	var tx domain.FuelTransaction
	err := r.db.QueryRowContext(ctx, r.rebind(query), companyID, txID).Scan(
		&tx.ID, &tx.CompanyID, &tx.Provider,
		&tx.CardID, &tx.VehicleID, &tx.DriverID,
		&tx.Timestamp, &tx.Liters, &tx.PricePerLiter,
		&tx.TotalAmount, &tx.FuelType,
		&tx.StationID, &tx.StationLat, &tx.StationLon,
		&tx.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &tx, nil
}

// ListTransactions retrieves transactions matching the filter, newest first.
func (r *SQLRepository) ListTransactions(ctx context.Context, companyID string, filter domain.TransactionFilter) ([]*domain.FuelTransaction, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, provider, card_id, vehicle_id, driver_id,
			   timestamp, liters, price_per_liter, total_amount, fuel_type,
			   station_id, station_lat, station_lon, created_at
		FROM transactions
		WHERE company_id = ?
	`
	args := []any{companyID}

	if filter.VehicleID != "" {
		query += " AND vehicle_id = ?"
		args = append(args, filter.VehicleID)
	}
	if filter.DriverID != "" {
		query += " AND driver_id = ?"
		args = append(args, filter.DriverID)
	}
	if filter.Provider != "" {
		query += " AND provider = ?"
		args = append(args, filter.Provider)
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// RecentTransactions returns a vehicle's transactions since the given
// time, excluding excludeID, newest first.
func (r *SQLRepository) RecentTransactions(ctx context.Context, companyID string, vehicleID string, since time.Time, excludeID string) ([]*domain.FuelTransaction, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, provider, card_id, vehicle_id, driver_id,
			   timestamp, liters, price_per_liter, total_amount, fuel_type,
			   station_id, station_lat, station_lon, created_at
		FROM transactions
		WHERE company_id = ?
		  AND vehicle_id = ?
		  AND timestamp >= ?
	`
	args := []any{companyID, vehicleID, since}

	if excludeID != "" {
		query += " AND id != ?"
		args = append(args, excludeID)
	}

	query += " ORDER BY timestamp DESC"

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]*domain.FuelTransaction, error) {
	var transactions []*domain.FuelTransaction
	for rows.Next() {
		var tx domain.FuelTransaction
		if err := rows.Scan(
			&tx.ID, &tx.CompanyID, &tx.Provider,
			&tx.CardID, &tx.VehicleID, &tx.DriverID,
			&tx.Timestamp, &tx.Liters, &tx.PricePerLiter,
			&tx.TotalAmount, &tx.FuelType,
			&tx.StationID, &tx.StationLat, &tx.StationLon,
			&tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		transactions = append(transactions, &tx)
	}
	return transactions, rows.Err()
}

// SaveVehicle upserts a vehicle with company isolation.
func (r *SQLRepository) SaveVehicle(ctx context.Context, companyID string, v *domain.Vehicle) error {
	if companyID == "" {
		return fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now
	}
	v.UpdatedAt = now

	query := `
		INSERT INTO vehicles (
			id, company_id, type, tank_capacity_liters, reg_number,
			assigned_project_id, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, company_id) DO UPDATE SET
			type = excluded.type,
			tank_capacity_liters = excluded.tank_capacity_liters,
			reg_number = excluded.reg_number,
			assigned_project_id = excluded.assigned_project_id,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		v.ID, companyID, v.Type, v.TankCapacityLiters, v.RegNumber,
		v.AssignedProjectID, v.Status, v.CreatedAt, v.UpdatedAt,
	)
	return err
}

// GetVehicle retrieves a vehicle by ID with company isolation.
func (r *SQLRepository) GetVehicle(ctx context.Context, companyID string, id string) (*domain.Vehicle, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, type, tank_capacity_liters, reg_number,
			   assigned_project_id, status, created_at, updated_at
		FROM vehicles
		WHERE company_id = ? AND id = ?
	`

	var v domain.Vehicle
	err := r.db.QueryRowContext(ctx, r.rebind(query), companyID, id).Scan(
		&v.ID, &v.CompanyID, &v.Type, &v.TankCapacityLiters, &v.RegNumber,
		&v.AssignedProjectID, &v.Status, &v.CreatedAt, &v.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVehicles retrieves all vehicles for a company.
func (r *SQLRepository) ListVehicles(ctx context.Context, companyID string) ([]*domain.Vehicle, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, type, tank_capacity_liters, reg_number,
			   assigned_project_id, status, created_at, updated_at
		FROM vehicles
		WHERE company_id = ?
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []*domain.Vehicle
	for rows.Next() {
		var v domain.Vehicle
		if err := rows.Scan(
			&v.ID, &v.CompanyID, &v.Type, &v.TankCapacityLiters, &v.RegNumber,
			&v.AssignedProjectID, &v.Status, &v.CreatedAt, &v.UpdatedAt,
		); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, &v)
	}
	return vehicles, rows.Err()
}

// DeleteVehicle removes a vehicle with company isolation.
func (r *SQLRepository) DeleteVehicle(ctx context.Context, companyID string, id string) error {
	return r.deleteByID(ctx, "vehicles", companyID, id)
}

// SaveProject upserts a project with company isolation.
func (r *SQLRepository) SaveProject(ctx context.Context, companyID string, p *domain.Project) error {
	if companyID == "" {
		return fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	active := 0
	if p.Active {
		active = 1
	}

	query := `
		INSERT INTO projects (
			id, company_id, name, geofence_lat, geofence_lon,
			geofence_radius_km, active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, company_id) DO UPDATE SET
			name = excluded.name,
			geofence_lat = excluded.geofence_lat,
			geofence_lon = excluded.geofence_lon,
			geofence_radius_km = excluded.geofence_radius_km,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		p.ID, companyID, p.Name, p.GeofenceLat, p.GeofenceLon,
		p.GeofenceRadiusKm, active, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

// GetProject retrieves a project by ID with company isolation.
func (r *SQLRepository) GetProject(ctx context.Context, companyID string, id string) (*domain.Project, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, name, geofence_lat, geofence_lon,
			   geofence_radius_km, active, created_at, updated_at
		FROM projects
		WHERE company_id = ? AND id = ?
	`

	var p domain.Project
	var active int
	err := r.db.QueryRowContext(ctx, r.rebind(query), companyID, id).Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.GeofenceLat, &p.GeofenceLon,
		&p.GeofenceRadiusKm, &active, &p.CreatedAt, &p.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Active = active == 1
	return &p, nil
}

// ListProjects retrieves all projects for a company.
func (r *SQLRepository) ListProjects(ctx context.Context, companyID string) ([]*domain.Project, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, name, geofence_lat, geofence_lon,
			   geofence_radius_km, active, created_at, updated_at
		FROM projects
		WHERE company_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*domain.Project
	for rows.Next() {
		var p domain.Project
		var active int
		if err := rows.Scan(
			&p.ID, &p.CompanyID, &p.Name, &p.GeofenceLat, &p.GeofenceLon,
			&p.GeofenceRadiusKm, &active, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		p.Active = active == 1
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

// DeleteProject removes a project with company isolation.
func (r *SQLRepository) DeleteProject(ctx context.Context, companyID string, id string) error {
	return r.deleteByID(ctx, "projects", companyID, id)
}

// SaveWorker upserts a worker with company isolation.
func (r *SQLRepository) SaveWorker(ctx context.Context, companyID string, w *domain.Worker) error {
	if companyID == "" {
		return fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	now := time.Now().UTC()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now

	isActive := 0
	if w.IsActive {
		isActive = 1
	}

	query := `
		INSERT INTO workers (
			id, company_id, name, schedule_start, schedule_end,
			is_active, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, company_id) DO UPDATE SET
			name = excluded.name,
			schedule_start = excluded.schedule_start,
			schedule_end = excluded.schedule_end,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		w.ID, companyID, w.Name, w.ScheduleStart, w.ScheduleEnd,
		isActive, w.CreatedAt, w.UpdatedAt,
	)
	return err
}

// GetWorker retrieves a worker by ID with company isolation.
func (r *SQLRepository) GetWorker(ctx context.Context, companyID string, id string) (*domain.Worker, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, name, schedule_start, schedule_end,
			   is_active, created_at, updated_at
		FROM workers
		WHERE company_id = ? AND id = ?
	`

	var w domain.Worker
	var isActive int
	err := r.db.QueryRowContext(ctx, r.rebind(query), companyID, id).Scan(
		&w.ID, &w.CompanyID, &w.Name, &w.ScheduleStart, &w.ScheduleEnd,
		&isActive, &w.CreatedAt, &w.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	w.IsActive = isActive == 1
	return &w, nil
}

// ListWorkers retrieves all workers for a company.
func (r *SQLRepository) ListWorkers(ctx context.Context, companyID string) ([]*domain.Worker, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, name, schedule_start, schedule_end,
			   is_active, created_at, updated_at
		FROM workers
		WHERE company_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var workers []*domain.Worker
	for rows.Next() {
		var w domain.Worker
		var isActive int
		if err := rows.Scan(
			&w.ID, &w.CompanyID, &w.Name, &w.ScheduleStart, &w.ScheduleEnd,
			&isActive, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		w.IsActive = isActive == 1
		workers = append(workers, &w)
	}
	return workers, rows.Err()
}

// DeleteWorker removes a worker with company isolation.
func (r *SQLRepository) DeleteWorker(ctx context.Context, companyID string, id string) error {
	return r.deleteByID(ctx, "workers", companyID, id)
}

// SaveAnomaly stores an anomaly record with company isolation.
func (r *SQLRepository) SaveAnomaly(ctx context.Context, companyID string, rec *domain.AnomalyRecord) error {
	if companyID == "" {
		return fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	reasons, _ := json.Marshal(rec.Reasons)

	isAnomalous := 0
	if rec.IsAnomalous {
		isAnomalous = 1
	}
	reviewed := 0
	if rec.Reviewed {
		reviewed = 1
	}

	status := rec.Status
	if status == "" {
		status = domain.StatusPending
	}

	query := `
		INSERT INTO anomalies (
			id, company_id, transaction_id, is_anomalous, severity,
			risk_score, reasons, detected_at, reviewed, reviewed_at,
			review_notes, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rec.ID, companyID, rec.TransactionID, isAnomalous, string(rec.Severity),
		rec.RiskScore, string(reasons), rec.DetectedAt, reviewed, rec.ReviewedAt,
		rec.ReviewNotes, status,
	)
	return err
}

// GetAnomaly retrieves an anomaly record by ID with company isolation.
func (r *SQLRepository) GetAnomaly(ctx context.Context, companyID string, id string) (*domain.AnomalyRecord, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, transaction_id, is_anomalous, severity,
			   risk_score, reasons, detected_at, reviewed, reviewed_at,
			   review_notes, status
		FROM anomalies
		WHERE company_id = ? AND id = ?
	`

	rec, err := r.scanAnomalyRow(r.db.QueryRowContext(ctx, r.rebind(query), companyID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListAnomalies retrieves anomaly records matching the filter, newest first.
func (r *SQLRepository) ListAnomalies(ctx context.Context, companyID string, filter domain.AnomalyFilter) ([]*domain.AnomalyRecord, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, transaction_id, is_anomalous, severity,
			   risk_score, reasons, detected_at, reviewed, reviewed_at,
			   review_notes, status
		FROM anomalies
		WHERE company_id = ?
	`
	args := []any{companyID}

	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Reviewed != nil {
		reviewed := 0
		if *filter.Reviewed {
			reviewed = 1
		}
		query += " AND reviewed = ?"
		args = append(args, reviewed)
	}
	if !filter.StartDate.IsZero() {
		query += " AND detected_at >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND detected_at <= ?"
		args = append(args, filter.EndDate)
	}

	query += " ORDER BY detected_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.AnomalyRecord
	for rows.Next() {
		rec, err := r.scanAnomalyRow(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ReviewAnomaly applies a human review to an anomaly record.
func (r *SQLRepository) ReviewAnomaly(ctx context.Context, companyID string, id string, review domain.AnomalyReview) (*domain.AnomalyRecord, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	reviewed := 0
	var reviewedAt *time.Time
	if review.Reviewed {
		reviewed = 1
		now := time.Now().UTC()
		reviewedAt = &now
	}

	query := `
		UPDATE anomalies
		SET reviewed = ?, reviewed_at = ?, review_notes = ?, status = ?
		WHERE company_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		reviewed, reviewedAt, review.ReviewNotes, review.Status,
		companyID, id,
	)
	if err != nil {
		return nil, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrNotFound
	}

	return r.GetAnomaly(ctx, companyID, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) scanAnomalyRow(row rowScanner) (*domain.AnomalyRecord, error) {
	var rec domain.AnomalyRecord
	var reasons string
	var isAnomalous, reviewed int
	var reviewedAt sql.NullTime
	var reviewNotes sql.NullString

	if err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.TransactionID, &isAnomalous, &rec.Severity,
		&rec.RiskScore, &reasons, &rec.DetectedAt, &reviewed, &reviewedAt,
		&reviewNotes, &rec.Status,
	); err != nil {
		return nil, err
	}

	rec.IsAnomalous = isAnomalous == 1
	rec.Reviewed = reviewed == 1
	if reviewedAt.Valid {
		t := reviewedAt.Time
		rec.ReviewedAt = &t
	}
	rec.ReviewNotes = reviewNotes.String
	json.Unmarshal([]byte(reasons), &rec.Reasons)

	return &rec, nil
}

// SaveCustomRule upserts a custom screening rule with company isolation.
func (r *SQLRepository) SaveCustomRule(ctx context.Context, companyID string, rule *domain.CustomRuleConfig) error {
	if companyID == "" {
		return fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	enabled := 0
	if rule.Enabled {
		enabled = 1
	}

	now := time.Now().UTC()

	query := `
		INSERT INTO custom_rules (
			id, company_id, name, description, expression, reason,
			score, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, company_id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			reason = excluded.reason,
			score = excluded.score,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, companyID, rule.Name, rule.Description, rule.Expression,
		rule.Reason, rule.Score, enabled, now, now,
	)
	return err
}

// GetCustomRule retrieves a custom rule by ID with company isolation.
func (r *SQLRepository) GetCustomRule(ctx context.Context, companyID string, id string) (*domain.CustomRuleConfig, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, name, description, expression, reason, score, enabled
		FROM custom_rules
		WHERE company_id = ? AND id = ?
	`

	var rule domain.CustomRuleConfig
	var description sql.NullString
	var enabled int

	err := r.db.QueryRowContext(ctx, r.rebind(query), companyID, id).Scan(
		&rule.ID, &rule.CompanyID, &rule.Name, &description,
		&rule.Expression, &rule.Reason, &rule.Score, &enabled,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.Enabled = enabled == 1
	return &rule, nil
}

// ListCustomRules retrieves all custom rules for a company.
func (r *SQLRepository) ListCustomRules(ctx context.Context, companyID string) ([]*domain.CustomRuleConfig, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, company_id, name, description, expression, reason, score, enabled
		FROM custom_rules
		WHERE company_id = ?
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.CustomRuleConfig
	for rows.Next() {
		var rule domain.CustomRuleConfig
		var description sql.NullString
		var enabled int
		if err := rows.Scan(
			&rule.ID, &rule.CompanyID, &rule.Name, &description,
			&rule.Expression, &rule.Reason, &rule.Score, &enabled,
		); err != nil {
			return nil, err
		}
		rule.Description = description.String
		rule.Enabled = enabled == 1
		rules = append(rules, &rule)
	}
	return rules, rows.Err()
}

// Stats returns aggregate counts for a company.
func (r *SQLRepository) Stats(ctx context.Context, companyID string) (*domain.Stats, error) {
	if companyID == "" {
		return nil, fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	stats := &domain.Stats{}

	query := `SELECT COUNT(*) FROM transactions WHERE company_id = ?`
	if err := r.db.QueryRowContext(ctx, r.rebind(query), companyID).Scan(&stats.TotalTransactions); err != nil {
		return nil, err
	}

	query = `
		SELECT COUNT(*), COALESCE(AVG(risk_score), 0)
		FROM anomalies
		WHERE company_id = ? AND is_anomalous = 1
	`
	if err := r.db.QueryRowContext(ctx, r.rebind(query), companyID).Scan(&stats.TotalAnomalies, &stats.AverageRiskScore); err != nil {
		return nil, err
	}

	query = `
		SELECT severity, COUNT(*)
		FROM anomalies
		WHERE company_id = ? AND is_anomalous = 1
		GROUP BY severity
	`
	rows, err := r.db.QueryContext(ctx, r.rebind(query), companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var severity string
		var count int
		if err := rows.Scan(&severity, &count); err != nil {
			return nil, err
		}
		switch domain.Severity(severity) {
		case domain.SeverityCritical:
			stats.CriticalAnomalies = count
		case domain.SeverityHigh:
			stats.HighAnomalies = count
		case domain.SeverityMedium:
			stats.MediumAnomalies = count
		case domain.SeverityLow:
			stats.LowAnomalies = count
		}
	}
	return stats, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) deleteByID(ctx context.Context, table, companyID, id string) error {
	if companyID == "" {
		return fmt.Errorf("%w: companyID is required", ErrInvalidInput)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE company_id = ? AND id = ?", table)

	result, err := r.db.ExecContext(ctx, r.rebind(query), companyID, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
