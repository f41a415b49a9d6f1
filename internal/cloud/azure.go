package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/compute/armcompute/v5"
	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/models"
)

const azureRetailPricesURL = "https://prices.azure.com/api/retail/prices"

// AzureClient talks to the public Azure Retail Prices API and, when
// credentials are configured, to ARM for VM size enumeration.
type AzureClient struct {
	httpClient  *http.Client
	endpoint    string
	sizesClient *armcompute.VirtualMachineSizesClient
	logger      zerolog.Logger
}

// RetailPrice is one item of the Azure Retail Prices API response.
type RetailPrice struct {
	ArmSkuName    string  `json:"armSkuName"`
	SkuName       string  `json:"skuName"`
	ProductName   string  `json:"productName"`
	MeterID       string  `json:"meterId"`
	MeterName     string  `json:"meterName"`
	Type          string  `json:"type"`
	ArmRegionName string  `json:"armRegionName"`
	RetailPrice   float64 `json:"retailPrice"`
	UnitPrice     float64 `json:"unitPrice"`
	UnitOfMeasure string  `json:"unitOfMeasure"`
}

// AzureVMSize is a provider-native VM size record.
type AzureVMSize struct {
	Name  string
	CPU   int
	RAMMB int32
}

// NewAzureClient creates an Azure pricing client. The retail prices API is
// public; ARM access is optional and only needed for size enumeration.
func NewAzureClient(cfg *Config, logger zerolog.Logger) (*AzureClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	endpoint := cfg.AzureRetailEndpoint
	if endpoint == "" {
		endpoint = azureRetailPricesURL
	}

	c := &AzureClient{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		endpoint:   endpoint,
		logger:     logger.With().Str("component", "azure-client").Logger(),
	}

	if cfg.AzureSubscriptionID != "" && cfg.AzureClientID != "" && cfg.AzureClientSecret != "" && cfg.AzureTenantID != "" {
		cred, err := azidentity.NewClientSecretCredential(
			cfg.AzureTenantID, cfg.AzureClientID, cfg.AzureClientSecret, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure credential: %w", err)
		}
		sizes, err := armcompute.NewVirtualMachineSizesClient(cfg.AzureSubscriptionID, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create vm sizes client: %w", err)
		}
		c.sizesClient = sizes
	}
	return c, nil
}

// ListPrices queries the retail prices API with an OData filter and follows
// pagination until the result set is exhausted.
func (c *AzureClient) ListPrices(ctx context.Context, filter string) ([]RetailPrice, error) {
	next := c.endpoint + "?$filter=" + url.QueryEscape(filter)

	var out []RetailPrice
	for next != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch azure pricing: %w", err)
		}

		var page struct {
			Items        []RetailPrice `json:"Items"`
			NextPageLink string        `json:"NextPageLink"`
		}
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if resp.StatusCode == http.StatusForbidden {
			return nil, fmt.Errorf("%w: azure retail prices returned 403", models.ErrForbidden)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("azure retail prices returned status %d", resp.StatusCode)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode azure pricing response: %w", err)
		}

		out = append(out, page.Items...)
		next = page.NextPageLink
	}
	return out, nil
}

// ListVMSizes enumerates VM sizes available in an Azure region. Requires
// ARM credentials.
func (c *AzureClient) ListVMSizes(ctx context.Context, region string) ([]AzureVMSize, error) {
	if c.sizesClient == nil {
		return nil, fmt.Errorf("%w: azure arm credentials not configured", models.ErrForbidden)
	}

	var out []AzureVMSize
	pager := c.sizesClient.NewListPager(region, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrRegionNotFound, err)
		}
		for _, size := range page.Value {
			if size.Name == nil {
				continue
			}
			s := AzureVMSize{Name: *size.Name}
			if size.NumberOfCores != nil {
				s.CPU = int(*size.NumberOfCores)
			}
			if size.MemoryInMB != nil {
				s.RAMMB = *size.MemoryInMB
			}
			out = append(out, s)
		}
	}
	return out, nil
}
