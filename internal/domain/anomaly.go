package domain

import (
	"time"
)

// Severity is the coarse triage bucket for a risk score.
type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityMedium   Severity = "Medium"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Anomaly review status values.
const (
	StatusPending       = "pending"
	StatusConfirmed     = "confirmed"
	StatusFalsePositive = "false_positive"
	StatusResolved      = "resolved"
)

// AnomalyResult is the outcome of evaluating one transaction against
// the full rule battery. The reported RiskScore is clamped to [0, 100];
// severity and the anomaly flag derive from the unclamped raw total.
type AnomalyResult struct {
	TransactionID string    `json:"transactionId"`
	IsAnomalous   bool      `json:"isAnomalous"`
	Severity      Severity  `json:"severity"`
	RiskScore     int       `json:"riskScore"`
	Reasons       []string  `json:"reasons"`
	DetectedAt    time.Time `json:"detectedAt"`
}

// AnomalyRecord is a persisted AnomalyResult plus human review state.
// Review mutates these fields only; the engine is never re-run.
type AnomalyRecord struct {
	ID            string    `json:"id"`
	CompanyID     string    `json:"companyId,omitempty"`
	TransactionID string    `json:"transactionId"`
	IsAnomalous   bool      `json:"isAnomalous"`
	Severity      Severity  `json:"severity"`
	RiskScore     int       `json:"riskScore"`
	Reasons       []string  `json:"reasons"`
	DetectedAt    time.Time `json:"detectedAt"`

	Reviewed    bool       `json:"reviewed"`
	ReviewedAt  *time.Time `json:"reviewedAt,omitempty"`
	ReviewNotes string     `json:"reviewNotes,omitempty"`
	Status      string     `json:"status"`
}

// AnomalyReview is the mutable review payload applied to a record.
type AnomalyReview struct {
	Reviewed    bool   `json:"reviewed"`
	ReviewNotes string `json:"reviewNotes,omitempty"`
	Status      string `json:"status"`
}

// AnomalyFilter narrows anomaly listings.
type AnomalyFilter struct {
	Severity  Severity
	Status    string
	Reviewed  *bool
	StartDate time.Time
	EndDate   time.Time
	Offset    int
	Limit     int
}

// Stats is the aggregate fleet view served by GET /stats.
type Stats struct {
	TotalTransactions int     `json:"totalTransactions"`
	TotalAnomalies    int     `json:"totalAnomalies"`
	AverageRiskScore  float64 `json:"averageRiskScore"`
	CriticalAnomalies int     `json:"criticalAnomalies"`
	HighAnomalies     int     `json:"highAnomalies"`
	MediumAnomalies   int     `json:"mediumAnomalies"`
	LowAnomalies      int     `json:"lowAnomalies"`
}
