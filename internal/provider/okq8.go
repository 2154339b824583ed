package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

const okq8DefaultURL = "https://api.okq8.se/v1"

// OKQ8Client talks to the OKQ8 fleet card API. Authentication uses
// OAuth2 client credentials passed as client_id and client_secret.
type OKQ8Client struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
}

// NewOKQ8Client creates an OKQ8 provider client.
func NewOKQ8Client(creds Credentials, opts ...Option) *OKQ8Client {
	cfg := newClientConfig(okq8DefaultURL, opts)
	return &OKQ8Client{
		creds:      creds,
		baseURL:    cfg.baseURL,
		httpClient: cfg.httpClient,
	}
}

func (c *OKQ8Client) Name() string { return domain.ProviderOKQ8 }

func (c *OKQ8Client) ValidateCredentials(ctx context.Context) error {
	return requireKeys(c.creds, "client_id", "client_secret")
}

// okq8Transaction is OKQ8's wire format.
type okq8Transaction struct {
	TransactionID string  `json:"transactionId"`
	CardNumber    string  `json:"cardNumber"`
	VehicleReg    string  `json:"vehicleReg"`
	DriverName    string  `json:"driverName"`
	DateTime      string  `json:"dateTime"`
	FuelType      string  `json:"fuelType"`
	Volume        float64 `json:"volume"`
	PricePerLiter float64 `json:"pricePerLiter"`
	TotalAmount   float64 `json:"totalAmount"`
	StationID     string  `json:"stationId"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}

func (c *OKQ8Client) FetchTransactions(ctx context.Context, start, end time.Time) ([]*domain.FuelTransaction, error) {
	if err := c.ValidateCredentials(ctx); err != nil {
		return nil, err
	}

	query := url.Values{
		"startDate": {start.UTC().Format(time.RFC3339)},
		"endDate":   {end.UTC().Format(time.RFC3339)},
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.creds["client_secret"])
	header.Set("X-Client-ID", c.creds["client_id"])

	var raw []okq8Transaction
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

func (c *OKQ8Client) normalize(r okq8Transaction) (*domain.FuelTransaction, error) {
	ts, err := time.Parse(time.RFC3339, r.DateTime)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing dateTime %q: %v", ErrProvider, r.DateTime, err)
	}

	total := r.TotalAmount
	if total == 0 {
		total = r.Volume * r.PricePerLiter
	}

	return &domain.FuelTransaction{
		ID:            r.TransactionID,
		Provider:      domain.ProviderOKQ8,
		CardID:        r.CardNumber,
		VehicleID:     r.VehicleReg,
		DriverID:      r.DriverName,
		Timestamp:     ts,
		Liters:        r.Volume,
		PricePerLiter: r.PricePerLiter,
		TotalAmount:   total,
		FuelType:      r.FuelType,
		StationID:     r.StationID,
		StationLat:    r.Latitude,
		StationLon:    r.Longitude,
	}, nil
}
