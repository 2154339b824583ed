package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/fuelguard/fuelguard/internal/domain"
)

const shellDefaultURL = "https://fleet.shell.com/api/v2"

// ShellClient talks to the Shell Fleet Card API using basic auth.
// Shell does not report the driver, only the card and vehicle.
type ShellClient struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
}

// NewShellClient creates a Shell provider client.
func NewShellClient(creds Credentials, opts ...Option) *ShellClient {
	cfg := newClientConfig(shellDefaultURL, opts)
	return &ShellClient{
		creds:      creds,
		baseURL:    cfg.baseURL,
		httpClient: cfg.httpClient,
	}
}

func (c *ShellClient) Name() string { return domain.ProviderShell }

func (c *ShellClient) ValidateCredentials(ctx context.Context) error {
	return requireKeys(c.creds, "username", "password")
}

// shellTransaction is Shell's wire format. productCode "DSL" means
// diesel; anything else is treated as unleaded.
type shellTransaction struct {
	TransID           string  `json:"transId"`
	CardNum           string  `json:"cardNum"`
	VehicleIdentifier string  `json:"vehicleIdentifier"`
	Timestamp         string  `json:"timestamp"`
	ProductCode       string  `json:"productCode"`
	Quantity          float64 `json:"quantity"`
	UnitPrice         float64 `json:"unitPrice"`
	GrossAmount       float64 `json:"grossAmount"`
	SiteCode          string  `json:"siteCode"`
	Location          struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"location"`
}

func (c *ShellClient) FetchTransactions(ctx context.Context, start, end time.Time) ([]*domain.FuelTransaction, error) {
	if err := c.ValidateCredentials(ctx); err != nil {
		return nil, err
	}

	query := url.Values{
		"startDate": {start.UTC().Format(time.RFC3339)},
		"endDate":   {end.UTC().Format(time.RFC3339)},
	}
	header := http.Header{}
	header.Set("Authorization", "Basic "+basicAuth(c.creds["username"], c.creds["password"]))

	var raw []shellTransaction
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

func (c *ShellClient) normalize(r shellTransaction) (*domain.FuelTransaction, error) {
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing timestamp %q: %v", ErrProvider, r.Timestamp, err)
	}

	fuelType := "Unleaded"
	if r.ProductCode == "DSL" {
		fuelType = "Diesel"
	}

	total := r.GrossAmount
	if total == 0 {
		total = r.Quantity * r.UnitPrice
	}

	return &domain.FuelTransaction{
		ID:            r.TransID,
		Provider:      domain.ProviderShell,
		CardID:        r.CardNum,
		VehicleID:     r.VehicleIdentifier,
		Timestamp:     ts,
		Liters:        r.Quantity,
		PricePerLiter: r.UnitPrice,
		TotalAmount:   total,
		FuelType:      fuelType,
		StationID:     r.SiteCode,
		StationLat:    r.Location.Lat,
		StationLon:    r.Location.Lng,
	}, nil
}
