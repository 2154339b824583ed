package repository

// Schema definitions for the FuelGuard database.
// Compatible with both SQLite and PostgreSQL.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    company_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    card_id TEXT NOT NULL,
    vehicle_id TEXT NOT NULL,
    driver_id TEXT,
    timestamp TIMESTAMP NOT NULL,
    liters REAL NOT NULL,
    price_per_liter REAL NOT NULL,
    total_amount REAL NOT NULL,
    fuel_type TEXT,
    station_id TEXT,
    station_lat REAL NOT NULL,
    station_lon REAL NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transactions_company ON transactions(company_id);
CREATE INDEX IF NOT EXISTS idx_transactions_vehicle ON transactions(company_id, vehicle_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_transactions_driver ON transactions(company_id, driver_id);
CREATE INDEX IF NOT EXISTS idx_transactions_timestamp ON transactions(company_id, timestamp);
`

const schemaVehicles = `
CREATE TABLE IF NOT EXISTS vehicles (
    id TEXT NOT NULL,
    company_id TEXT NOT NULL,
    type TEXT,
    tank_capacity_liters REAL NOT NULL DEFAULT 0,
    reg_number TEXT,
    assigned_project_id TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, company_id)
);

CREATE INDEX IF NOT EXISTS idx_vehicles_company ON vehicles(company_id);
`

const schemaProjects = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT NOT NULL,
    company_id TEXT NOT NULL,
    name TEXT NOT NULL,
    geofence_lat REAL NOT NULL,
    geofence_lon REAL NOT NULL,
    geofence_radius_km REAL NOT NULL,
    active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, company_id)
);

CREATE INDEX IF NOT EXISTS idx_projects_company ON projects(company_id);
`

const schemaWorkers = `
CREATE TABLE IF NOT EXISTS workers (
    id TEXT NOT NULL,
    company_id TEXT NOT NULL,
    name TEXT,
    schedule_start TEXT,
    schedule_end TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, company_id)
);

CREATE INDEX IF NOT EXISTS idx_workers_company ON workers(company_id);
`

const schemaAnomalies = `
CREATE TABLE IF NOT EXISTS anomalies (
    id TEXT PRIMARY KEY,
    company_id TEXT NOT NULL,
    transaction_id TEXT NOT NULL,
    is_anomalous INTEGER NOT NULL,
    severity TEXT NOT NULL,
    risk_score INTEGER NOT NULL,
    reasons TEXT NOT NULL,
    detected_at TIMESTAMP NOT NULL,
    reviewed INTEGER NOT NULL DEFAULT 0,
    reviewed_at TIMESTAMP,
    review_notes TEXT,
    status TEXT NOT NULL DEFAULT 'pending'
);

CREATE INDEX IF NOT EXISTS idx_anomalies_company ON anomalies(company_id);
CREATE INDEX IF NOT EXISTS idx_anomalies_tx ON anomalies(company_id, transaction_id);
CREATE INDEX IF NOT EXISTS idx_anomalies_severity ON anomalies(company_id, severity);
CREATE INDEX IF NOT EXISTS idx_anomalies_status ON anomalies(company_id, status);
CREATE INDEX IF NOT EXISTS idx_anomalies_detected ON anomalies(company_id, detected_at);
`

const schemaCustomRules = `
CREATE TABLE IF NOT EXISTS custom_rules (
    id TEXT NOT NULL,
    company_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    expression TEXT NOT NULL,
    reason TEXT NOT NULL,
    score INTEGER NOT NULL,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, company_id)
);

CREATE INDEX IF NOT EXISTS idx_custom_rules_company ON custom_rules(company_id);
CREATE INDEX IF NOT EXISTS idx_custom_rules_enabled ON custom_rules(company_id, enabled);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaVehicles,
		schemaProjects,
		schemaWorkers,
		schemaAnomalies,
		schemaCustomRules,
	}
}
