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
	preemDefaultURL = "https://partner.preem.se/api"
	preemTimeLayout = "2006-01-02 15:04:05"
)

// PreemClient talks to the Preem Partner API, authenticated with a
// single api_key.
type PreemClient struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
}

// NewPreemClient creates a Preem provider client.
func NewPreemClient(creds Credentials, opts ...Option) *PreemClient {
	cfg := newClientConfig(preemDefaultURL, opts)
	return &PreemClient{
		creds:      creds,
		baseURL:    cfg.baseURL,
		httpClient: cfg.httpClient,
	}
}

func (c *PreemClient) Name() string { return domain.ProviderPreem }

func (c *PreemClient) ValidateCredentials(ctx context.Context) error {
	return requireKeys(c.creds, "api_key")
}

// preemTransaction is Preem's wire format. Station coordinates are
// nested and dates are space-separated local time.
type preemTransaction struct {
	ID         string  `json:"id"`
	Card       string  `json:"card"`
	Vehicle    string  `json:"vehicle"`
	Driver     string  `json:"driver"`
	Date       string  `json:"date"`
	Product    string  `json:"product"`
	Liters     float64 `json:"liters"`
	PriceLiter float64 `json:"price_liter"`
	TotalSEK   float64 `json:"total_sek"`
	Station    struct {
		ID  string  `json:"id"`
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"station"`
}

func (c *PreemClient) FetchTransactions(ctx context.Context, start, end time.Time) ([]*domain.FuelTransaction, error) {
	if err := c.ValidateCredentials(ctx); err != nil {
		return nil, err
	}

	query := url.Values{
		"from": {start.UTC().Format(preemTimeLayout)},
		"to":   {end.UTC().Format(preemTimeLayout)},
	}
	header := http.Header{}
	header.Set("X-API-Key", c.creds["api_key"])

	var raw []preemTransaction
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

func (c *PreemClient) normalize(r preemTransaction) (*domain.FuelTransaction, error) {
	ts, err := time.Parse(preemTimeLayout, r.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing date %q: %v", ErrProvider, r.Date, err)
	}

	total := r.TotalSEK
	if total == 0 {
		total = r.Liters * r.PriceLiter
	}

	return &domain.FuelTransaction{
		ID:            r.ID,
		Provider:      domain.ProviderPreem,
		CardID:        r.Card,
		VehicleID:     r.Vehicle,
		DriverID:      r.Driver,
		Timestamp:     ts,
		Liters:        r.Liters,
		PricePerLiter: r.PriceLiter,
		TotalAmount:   total,
		FuelType:      r.Product,
		StationID:     r.Station.ID,
		StationLat:    r.Station.Lat,
		StationLon:    r.Station.Lon,
	}, nil
}
