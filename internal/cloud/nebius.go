package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/models"
)

const defaultNebiusEndpoint = "https://billing.api.nebius.cloud/billing/v1"

// NebiusClient reads the public SKU pricing catalog over HTTP.
type NebiusClient struct {
	httpClient *http.Client
	endpoint   string
	token      string
	logger     zerolog.Logger
}

// NebiusSKU is a catalog entry with its current hourly rate resolved.
type NebiusSKU struct {
	ID          string
	Name        string
	ServiceID   string
	PricingUnit string
	Price       float64
}

type nebiusSKUList struct {
	SKUs          []nebiusSKU `json:"skus"`
	NextPageToken string      `json:"nextPageToken"`
}

type nebiusSKU struct {
	ID              string                 `json:"id"`
	Name            string                 `json:"name"`
	ServiceID       string                 `json:"serviceId"`
	PricingUnit     string                 `json:"pricingUnit"`
	PricingVersions []nebiusPricingVersion `json:"pricingVersions"`
}

type nebiusPricingVersion struct {
	Type               string                    `json:"type"`
	EffectiveTime      time.Time                 `json:"effectiveTime"`
	PricingExpressions []nebiusPricingExpression `json:"pricingExpressions"`
}

type nebiusPricingExpression struct {
	Rates []nebiusRate `json:"rates"`
}

type nebiusRate struct {
	StartPricingQuantity string `json:"startPricingQuantity"`
	UnitPrice            string `json:"unitPrice"`
	Currency             string `json:"currency"`
}

// NewNebiusClient creates a catalog client. The endpoint override exists
// for tests; production uses the public billing API.
func NewNebiusClient(cfg *Config, logger zerolog.Logger) *NebiusClient {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	endpoint := cfg.NebiusEndpoint
	if endpoint == "" {
		endpoint = defaultNebiusEndpoint
	}
	return &NebiusClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		endpoint:   endpoint,
		token:      cfg.NebiusIAMToken,
		logger:     logger.With().Str("component", "nebius-client").Logger(),
	}
}

// ListSKUs pages through the pricing catalog and resolves the latest
// effective rate of every SKU. Entries without a usable rate are skipped
// with a warning.
func (c *NebiusClient) ListSKUs(ctx context.Context, currency string) ([]NebiusSKU, error) {
	if currency == "" {
		currency = "USD"
	}

	var out []NebiusSKU
	pageToken := ""
	now := time.Now()
	for {
		page, err := c.listSKUPage(ctx, currency, pageToken)
		if err != nil {
			return nil, err
		}
		for _, sku := range page.SKUs {
			price, ok := resolveNebiusPrice(sku, now)
			if !ok {
				c.logger.Warn().Str("sku", sku.ID).Str("name", sku.Name).
					Msg("skipping sku without usable rate")
				continue
			}
			out = append(out, NebiusSKU{
				ID:          sku.ID,
				Name:        sku.Name,
				ServiceID:   sku.ServiceID,
				PricingUnit: sku.PricingUnit,
				Price:       price,
			})
		}
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *NebiusClient) listSKUPage(ctx context.Context, currency, pageToken string) (*nebiusSKUList, error) {
	query := url.Values{}
	query.Set("currency", currency)
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}
	reqURL := c.endpoint + "/skus?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sku request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch sku catalog: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: sku catalog returned %d", models.ErrForbidden, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("sku catalog returned %d: %s", resp.StatusCode, body)
	}

	var page nebiusSKUList
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode sku catalog page: %w", err)
	}
	return &page, nil
}

// resolveNebiusPrice picks the most recent pricing version effective at
// now and returns its base rate.
func resolveNebiusPrice(sku nebiusSKU, now time.Time) (float64, bool) {
	var best *nebiusPricingVersion
	for i := range sku.PricingVersions {
		v := &sku.PricingVersions[i]
		if v.EffectiveTime.After(now) {
			continue
		}
		if best == nil || v.EffectiveTime.After(best.EffectiveTime) {
			best = v
		}
	}
	if best == nil || len(best.PricingExpressions) == 0 {
		return 0, false
	}
	rates := best.PricingExpressions[0].Rates
	if len(rates) == 0 {
		return 0, false
	}
	price, err := strconv.ParseFloat(rates[0].UnitPrice, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
