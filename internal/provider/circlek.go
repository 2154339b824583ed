package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

const (
	circlekDefaultURL = "https://partner.circlek.com/api/v1"
	circlekTimeLayout = "2006-01-02T15:04:05"
)

// CircleKClient talks to the Circle K Partner API, authenticated with
// partner_id and api_token.
type CircleKClient struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
}

// NewCircleKClient creates a Circle K provider client.
func NewCircleKClient(creds Credentials, opts ...Option) *CircleKClient {
	cfg := newClientConfig(circlekDefaultURL, opts)
	return &CircleKClient{
		creds:      creds,
		baseURL:    cfg.baseURL,
		httpClient: cfg.httpClient,
	}
}

func (c *CircleKClient) Name() string { return domain.ProviderCircleK }

func (c *CircleKClient) ValidateCredentials(ctx context.Context) error {
	return requireKeys(c.creds, "partner_id", "api_token")
}

// circlekTransaction is Circle K's wire format. Timestamps carry no
// zone offset and are taken as UTC.
type circlekTransaction struct {
	TransactionID   string  `json:"transaction_id"`
	CardNumber      string  `json:"card_number"`
	VehicleLicense  string  `json:"vehicle_license"`
	TransactionDate string  `json:"transaction_date"`
	FuelGrade       string  `json:"fuel_grade"`
	VolumeLiters    float64 `json:"volume_liters"`
	PricePerUnit    float64 `json:"price_per_unit"`
	TotalPrice      float64 `json:"total_price"`
	SiteNumber      string  `json:"site_number"`
	Coordinates     struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`
}

func (c *CircleKClient) FetchTransactions(ctx context.Context, start, end time.Time) ([]*domain.FuelTransaction, error) {
	if err := c.ValidateCredentials(ctx); err != nil {
		return nil, err
	}

	query := url.Values{
		"start": {start.UTC().Format(circlekTimeLayout)},
		"end":   {end.UTC().Format(circlekTimeLayout)},
	}
	header := http.Header{}
	header.Set("X-Partner-ID", c.creds["partner_id"])
	header.Set("Authorization", "Token "+c.creds["api_token"])

	var raw []circlekTransaction
	if err := getJSON(ctx, c.httpClient, c.baseURL, "/transactions", query, header, &raw); err != nil {
		return nil, err
	}

	txs := make([]*domain.FuelTransaction, 0, len(raw))
	for _, r := range raw {
		tx, err := c.normalize(r)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func (c *CircleKClient) normalize(r circlekTransaction) (*domain.FuelTransaction, error) {
	ts, err := time.Parse(circlekTimeLayout, r.TransactionDate)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing transaction_date %q: %v", ErrProvider, r.TransactionDate, err)
	}

	total := r.TotalPrice
	if total == 0 {
		total = r.VolumeLiters * r.PricePerUnit
	}

	return &domain.FuelTransaction{
		ID:            r.TransactionID,
		Provider:      domain.ProviderCircleK,
		CardID:        r.CardNumber,
		VehicleID:     r.VehicleLicense,
		Timestamp:     ts,
		Liters:        r.VolumeLiters,
		PricePerLiter: r.PricePerUnit,
		TotalAmount:   total,
		FuelType:      r.FuelGrade,
		StationID:     r.SiteNumber,
		StationLat:    r.Coordinates.Latitude,
		StationLon:    r.Coordinates.Longitude,
	}, nil
}
