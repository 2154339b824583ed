package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fuelguard/fuelguard/internal/domain"
	"github.com/fuelguard/fuelguard/internal/engine"
	"github.com/fuelguard/fuelguard/internal/provider"
	"github.com/fuelguard/fuelguard/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engines *engine.Manager
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engines *engine.Manager, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engines: engines,
		version: version,
	}
}

// IngestRequest is the request body for POST /transactions.
type IngestRequest struct {
	ID            string    `json:"id,omitempty"`
	Provider      string    `json:"provider"`
	CardID        string    `json:"cardId"`
	VehicleID     string    `json:"vehicleId"`
	DriverID      string    `json:"driverId,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Liters        float64   `json:"liters"`
	PricePerLiter float64   `json:"pricePerLiter"`
	TotalAmount   float64   `json:"totalAmount,omitempty"`
	FuelType      string    `json:"fuelType,omitempty"`
	StationID     string    `json:"stationId,omitempty"`
	StationLat    float64   `json:"stationLat"`
	StationLon    float64   `json:"stationLon"`
}

func (r *IngestRequest) validate() string {
	switch {
	case !domain.KnownProvider(r.Provider):
		return "provider must be one of: okq8, preem, shell, circlek"
	case r.CardID == "":
		return "cardId is required"
	case r.VehicleID == "":
		return "vehicleId is required"
	case r.Liters <= 0:
		return "liters must be positive"
	case r.PricePerLiter <= 0:
		return "pricePerLiter must be positive"
	case r.StationLat < -90 || r.StationLat > 90:
		return "stationLat must be between -90 and 90"
	case r.StationLon < -180 || r.StationLon > 180:
		return "stationLon must be between -180 and 180"
	}
	return ""
}

// IngestResponse is the response for POST /transactions.
type IngestResponse struct {
	TransactionID string          `json:"transactionId"`
	IsAnomalous   bool            `json:"isAnomalous"`
	Severity      domain.Severity `json:"severity"`
	RiskScore     int             `json:"riskScore"`
	Reasons       []string        `json:"reasons"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// IngestTransaction handles POST /transactions: persist the purchase,
// run the rule battery synchronously and report the outcome.
func (h *Handler) IngestTransaction(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	traceID := GetTraceID(ctx)

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if msg := req.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": msg,
		})
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now().UTC()
	}
	if req.TotalAmount == 0 {
		req.TotalAmount = req.Liters * req.PricePerLiter
	}

	tx := &domain.FuelTransaction{
		ID:            req.ID,
		CompanyID:     companyID,
		Provider:      req.Provider,
		CardID:        req.CardID,
		VehicleID:     req.VehicleID,
		DriverID:      req.DriverID,
		Timestamp:     req.Timestamp,
		Liters:        req.Liters,
		PricePerLiter: req.PricePerLiter,
		TotalAmount:   req.TotalAmount,
		FuelType:      req.FuelType,
		StationID:     req.StationID,
		StationLat:    req.StationLat,
		StationLon:    req.StationLon,
		CreatedAt:     time.Now().UTC(),
	}

	if err := h.repo.SaveTransaction(ctx, companyID, tx); err != nil {
		slog.Error("failed to save transaction", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save transaction",
		})
		return
	}

	result, err := h.engines.Engine(companyID).Evaluate(ctx, tx)
	if err != nil {
		slog.Error("evaluation failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "evaluation failed",
		})
		return
	}

	if result.IsAnomalous {
		rec := &domain.AnomalyRecord{
			ID:            uuid.New().String(),
			TransactionID: result.TransactionID,
			IsAnomalous:   result.IsAnomalous,
			Severity:      result.Severity,
			RiskScore:     result.RiskScore,
			Reasons:       result.Reasons,
			DetectedAt:    result.DetectedAt,
			Status:        domain.StatusPending,
		}
		if err := h.repo.SaveAnomaly(ctx, companyID, rec); err != nil {
			slog.Error("failed to save anomaly", "tx_id", tx.ID, "error", err)
		}
	}

	if h.bus != nil {
		payload, _ := json.Marshal(result)
		if err := h.bus.Publish(ctx, companyID, domain.TopicDecision, payload); err != nil {
			slog.Error("failed to publish decision", "tx_id", tx.ID, "error", err)
		}
		if result.IsAnomalous {
			if err := h.bus.Publish(ctx, companyID, domain.TopicAnomalyDetected, payload); err != nil {
				slog.Error("failed to publish anomaly", "tx_id", tx.ID, "error", err)
			}
		}
	}

	resp := IngestResponse{
		TransactionID: result.TransactionID,
		IsAnomalous:   result.IsAnomalous,
		Severity:      result.Severity,
		RiskScore:     result.RiskScore,
		Reasons:       result.Reasons,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	txID := chi.URLParam(r, "id")

	tx, err := h.repo.GetTransaction(ctx, companyID, txID)
	if err != nil {
		writeLookupError(w, "transaction", txID, err)
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListTransactions returns transactions matching the query filters.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	q := r.URL.Query()

	filter := domain.TransactionFilter{
		VehicleID: q.Get("vehicleId"),
		DriverID:  q.Get("driverId"),
		Provider:  q.Get("provider"),
		StartDate: parseTime(q.Get("startDate")),
		EndDate:   parseTime(q.Get("endDate")),
		Offset:    parseInt(q.Get("offset"), 0),
		Limit:     parseInt(q.Get("limit"), 100),
	}

	txs, err := h.repo.ListTransactions(ctx, companyID, filter)
	if err != nil {
		slog.Error("failed to list transactions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}

// ListAnomalies returns anomalies matching the query filters.
func (h *Handler) ListAnomalies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	q := r.URL.Query()

	filter := domain.AnomalyFilter{
		Severity:  domain.Severity(q.Get("severity")),
		Status:    q.Get("status"),
		StartDate: parseTime(q.Get("startDate")),
		EndDate:   parseTime(q.Get("endDate")),
		Offset:    parseInt(q.Get("offset"), 0),
		Limit:     parseInt(q.Get("limit"), 100),
	}
	if v := q.Get("reviewed"); v != "" {
		reviewed := v == "true"
		filter.Reviewed = &reviewed
	}

	anomalies, err := h.repo.ListAnomalies(ctx, companyID, filter)
	if err != nil {
		slog.Error("failed to list anomalies", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list anomalies",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"anomalies": anomalies,
		"count":     len(anomalies),
	})
}

// GetAnomaly retrieves an anomaly record by ID.
func (h *Handler) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	rec, err := h.repo.GetAnomaly(ctx, companyID, id)
	if err != nil {
		writeLookupError(w, "anomaly", id, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ReviewAnomaly handles PATCH /anomalies/{id}: apply a human review
// decision to an anomaly record. The risk score is never recomputed.
func (h *Handler) ReviewAnomaly(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	var review domain.AnomalyReview
	if err := json.NewDecoder(r.Body).Decode(&review); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	switch review.Status {
	case domain.StatusPending, domain.StatusConfirmed, domain.StatusFalsePositive, domain.StatusResolved:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "status must be one of: pending, confirmed, false_positive, resolved",
		})
		return
	}

	rec, err := h.repo.ReviewAnomaly(ctx, companyID, id, review)
	if err != nil {
		writeLookupError(w, "anomaly", id, err)
		return
	}

	slog.Info("anomaly reviewed",
		"anomaly_id", id,
		"company_id", companyID,
		"status", review.Status,
	)
	writeJSON(w, http.StatusOK, rec)
}

// GetStats returns aggregate fleet statistics.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	stats, err := h.repo.Stats(ctx, companyID)
	if err != nil {
		slog.Error("failed to compute stats", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to compute stats",
		})
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// ListVehicles returns all vehicles for the company.
func (h *Handler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	vehicles, err := h.repo.ListVehicles(ctx, companyID)
	if err != nil {
		slog.Error("failed to list vehicles", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list vehicles",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicles": vehicles,
		"count":    len(vehicles),
	})
}

// GetVehicle retrieves a vehicle by ID.
func (h *Handler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	v, err := h.repo.GetVehicle(ctx, companyID, id)
	if err != nil {
		writeLookupError(w, "vehicle", id, err)
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// SaveVehicle creates or updates a vehicle.
func (h *Handler) SaveVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	var v domain.Vehicle
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if v.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}

	if err := h.repo.SaveVehicle(ctx, companyID, &v); err != nil {
		slog.Error("failed to save vehicle", "vehicle_id", v.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save vehicle",
		})
		return
	}

	h.engines.Invalidate(ctx, companyID, "vehicle", v.ID)
	writeJSON(w, http.StatusCreated, &v)
}

// DeleteVehicle removes a vehicle.
func (h *Handler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteVehicle(ctx, companyID, id); err != nil {
		writeLookupError(w, "vehicle", id, err)
		return
	}

	h.engines.Invalidate(ctx, companyID, "vehicle", id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// ListProjects returns all projects for the company.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	projects, err := h.repo.ListProjects(ctx, companyID)
	if err != nil {
		slog.Error("failed to list projects", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list projects",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"projects": projects,
		"count":    len(projects),
	})
}

// GetProject retrieves a project by ID.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	p, err := h.repo.GetProject(ctx, companyID, id)
	if err != nil {
		writeLookupError(w, "project", id, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// SaveProject creates or updates a project.
func (h *Handler) SaveProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	var p domain.Project
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if p.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}
	if p.GeofenceLat < -90 || p.GeofenceLat > 90 || p.GeofenceLon < -180 || p.GeofenceLon > 180 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "geofence coordinates out of range",
		})
		return
	}

	if err := h.repo.SaveProject(ctx, companyID, &p); err != nil {
		slog.Error("failed to save project", "project_id", p.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save project",
		})
		return
	}

	h.engines.Invalidate(ctx, companyID, "project", p.ID)
	writeJSON(w, http.StatusCreated, &p)
}

// DeleteProject removes a project.
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteProject(ctx, companyID, id); err != nil {
		writeLookupError(w, "project", id, err)
		return
	}

	h.engines.Invalidate(ctx, companyID, "project", id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// ListWorkers returns all workers for the company.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	workers, err := h.repo.ListWorkers(ctx, companyID)
	if err != nil {
		slog.Error("failed to list workers", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list workers",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workers": workers,
		"count":   len(workers),
	})
}

// GetWorker retrieves a worker by ID.
func (h *Handler) GetWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	wk, err := h.repo.GetWorker(ctx, companyID, id)
	if err != nil {
		writeLookupError(w, "worker", id, err)
		return
	}

	writeJSON(w, http.StatusOK, wk)
}

// SaveWorker creates or updates a worker.
func (h *Handler) SaveWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	var wk domain.Worker
	if err := json.NewDecoder(r.Body).Decode(&wk); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if wk.ID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id is required",
		})
		return
	}

	if err := h.repo.SaveWorker(ctx, companyID, &wk); err != nil {
		slog.Error("failed to save worker", "worker_id", wk.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save worker",
		})
		return
	}

	h.engines.Invalidate(ctx, companyID, "worker", wk.ID)
	writeJSON(w, http.StatusCreated, &wk)
}

// DeleteWorker removes a worker.
func (h *Handler) DeleteWorker(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	if err := h.repo.DeleteWorker(ctx, companyID, id); err != nil {
		writeLookupError(w, "worker", id, err)
		return
	}

	h.engines.Invalidate(ctx, companyID, "worker", id)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// ListRules returns the company's loaded custom rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	companyID := GetCompanyID(r.Context())

	var loaded []*domain.CustomRuleConfig
	if set := h.engines.CustomSet(companyID); set != nil {
		loaded = set.Loaded()
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule retrieves a custom rule by ID.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	id := chi.URLParam(r, "id")

	rule, err := h.repo.GetCustomRule(ctx, companyID, id)
	if err != nil {
		writeLookupError(w, "rule", id, err)
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// CreateRule validates and persists a custom rule, then loads it into
// the running rule set.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	var rule domain.CustomRuleConfig
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}
	if rule.Score <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "score must be positive",
		})
		return
	}
	rule.CompanyID = companyID

	set := h.engines.CustomSet(companyID)
	if set == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "rule engine not available",
		})
		return
	}
	if err := set.Validate(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid expression: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveCustomRule(ctx, companyID, &rule); err != nil {
		slog.Error("failed to save rule", "rule_id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	if err := set.Load(&rule); err != nil {
		slog.Error("failed to load rule", "rule_id", rule.ID, "error", err)
	}

	slog.Info("custom rule created", "rule_id", rule.ID, "company_id", companyID)
	writeJSON(w, http.StatusCreated, &rule)
}

// ReloadRules re-reads the company's custom rules from the database
// into the running rule set.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)

	count, err := h.engines.ReloadRules(ctx, companyID)
	if err != nil {
		slog.Error("failed to reload rules", "company_id", companyID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("custom rules reloaded", "company_id", companyID, "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

// SyncProviderRequest is the request body for POST /providers/{name}/sync.
type SyncProviderRequest struct {
	Credentials map[string]string `json:"credentials"`
	StartDate   string            `json:"startDate,omitempty"`
	EndDate     string            `json:"endDate,omitempty"`
	BaseURL     string            `json:"baseUrl,omitempty"`
}

// SyncProvider handles POST /providers/{name}/sync: pull the
// provider's transactions for the requested window and publish the
// unseen ones to the ingestion topic. The async worker persists and
// evaluates them, so synced purchases take the same path as API
// ingested ones.
func (h *Handler) SyncProvider(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := GetCompanyID(ctx)
	name := chi.URLParam(r, "name")

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus unavailable",
		})
		return
	}

	var req SyncProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	var opts []provider.Option
	if req.BaseURL != "" {
		opts = append(opts, provider.WithBaseURL(req.BaseURL))
	}

	client, err := provider.New(name, provider.Credentials(req.Credentials), opts...)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, provider.ErrAuthentication) {
			status = http.StatusUnauthorized
		}
		writeJSON(w, status, map[string]string{
			"error": err.Error(),
		})
		return
	}

	syncer := provider.NewSyncer(h.repo, h.bus)
	result, err := syncer.Sync(ctx, companyID, client, parseTime(req.StartDate), parseTime(req.EndDate))
	if err != nil {
		switch {
		case errors.Is(err, provider.ErrAuthentication):
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"error": err.Error(),
			})
		case errors.Is(err, provider.ErrProvider):
			writeJSON(w, http.StatusBadGateway, map[string]string{
				"error": err.Error(),
			})
		default:
			slog.Error("provider sync failed",
				"company_id", companyID,
				"provider", name,
				"error", err,
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "provider sync failed",
			})
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeLookupError maps repository errors to HTTP status codes.
func writeLookupError(w http.ResponseWriter, kind, id string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": kind + " not found",
		})
	case errors.Is(err, repository.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
	default:
		slog.Error("lookup failed", "kind", kind, "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal server error",
		})
	}
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
