package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods take a companyID for company-scoped isolation.
type Repository interface {
	// Transaction operations
	SaveTransaction(ctx context.Context, companyID string, tx *FuelTransaction) error
	GetTransaction(ctx context.Context, companyID string, txID string) (*FuelTransaction, error)
	ListTransactions(ctx context.Context, companyID string, filter TransactionFilter) ([]*FuelTransaction, error)

	// RecentTransactions returns transactions for a vehicle since the
	// given time, excluding excludeID, ordered by descending timestamp.
	RecentTransactions(ctx context.Context, companyID string, vehicleID string, since time.Time, excludeID string) ([]*FuelTransaction, error)

	// Fleet entity operations (Save is an upsert)
	SaveVehicle(ctx context.Context, companyID string, v *Vehicle) error
	GetVehicle(ctx context.Context, companyID string, id string) (*Vehicle, error)
	ListVehicles(ctx context.Context, companyID string) ([]*Vehicle, error)
	DeleteVehicle(ctx context.Context, companyID string, id string) error

	SaveProject(ctx context.Context, companyID string, p *Project) error
	GetProject(ctx context.Context, companyID string, id string) (*Project, error)
	ListProjects(ctx context.Context, companyID string) ([]*Project, error)
	DeleteProject(ctx context.Context, companyID string, id string) error

	SaveWorker(ctx context.Context, companyID string, w *Worker) error
	GetWorker(ctx context.Context, companyID string, id string) (*Worker, error)
	ListWorkers(ctx context.Context, companyID string) ([]*Worker, error)
	DeleteWorker(ctx context.Context, companyID string, id string) error

	// Anomaly operations
	SaveAnomaly(ctx context.Context, companyID string, rec *AnomalyRecord) error
	GetAnomaly(ctx context.Context, companyID string, id string) (*AnomalyRecord, error)
	ListAnomalies(ctx context.Context, companyID string, filter AnomalyFilter) ([]*AnomalyRecord, error)
	ReviewAnomaly(ctx context.Context, companyID string, id string, review AnomalyReview) (*AnomalyRecord, error)

	// Custom screening rule configuration
	SaveCustomRule(ctx context.Context, companyID string, rule *CustomRuleConfig) error
	GetCustomRule(ctx context.Context, companyID string, id string) (*CustomRuleConfig, error)
	ListCustomRules(ctx context.Context, companyID string) ([]*CustomRuleConfig, error)

	// Aggregate statistics
	Stats(ctx context.Context, companyID string) (*Stats, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// CustomRuleConfig is an operator-defined screening rule evaluated
// after the fixed battery. The expression is a CEL predicate over
// transaction variables; Score is added when it holds.
type CustomRuleConfig struct {
	ID          string `json:"id"`
	CompanyID   string `json:"companyId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// CEL expression, e.g. "liters > 200.0 && fuel_type == 'Diesel'"
	Expression string `json:"expression"`

	// Reason reported when the rule triggers
	Reason string `json:"reason"`

	// Score contribution when triggered
	Score int `json:"score"`

	// Whether rule is active
	Enabled bool `json:"enabled"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
