package cloud

import (
	"context"
	"fmt"
	"strings"

	billing "cloud.google.com/go/billing/apiv1"
	"cloud.google.com/go/billing/apiv1/billingpb"
	"github.com/rs/zerolog"
	compute "google.golang.org/api/compute/v1"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/optscale/flavorsearch/internal/models"
)

// computeServiceName is the Cloud Billing catalog entry for Compute Engine.
const computeServiceName = "services/6F81-5844-456A"

// GCPClient reads machine types from the Compute API and per-core/per-GB
// rates from the Cloud Billing catalog.
type GCPClient struct {
	catalogClient *billing.CloudCatalogClient
	computeSvc    *compute.Service
	project       string
	logger        zerolog.Logger
}

// GCPMachineType is a provider-native machine type record.
type GCPMachineType struct {
	Name      string
	GuestCpus int64
	MemoryMb  int64
}

// GCPRate holds the hourly unit prices of a machine family in a region.
type GCPRate struct {
	CorePrice float64
	RAMPrice  float64
}

// NewGCPClient creates a GCP pricing client. Credentials come from the
// JSON key in the config, falling back to application default credentials.
func NewGCPClient(ctx context.Context, cfg *Config, logger zerolog.Logger) (*GCPClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var opts []option.ClientOption
	if cfg.GCPCredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.GCPCredentialsJSON)))
	}

	catalogClient, err := billing.NewCloudCatalogClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create billing catalog client: %w", err)
	}
	computeSvc, err := compute.NewService(ctx, opts...)
	if err != nil {
		catalogClient.Close()
		return nil, fmt.Errorf("failed to create compute service: %w", err)
	}

	return &GCPClient{
		catalogClient: catalogClient,
		computeSvc:    computeSvc,
		project:       cfg.GCPProject,
		logger:        logger.With().Str("component", "gcp-client").Logger(),
	}, nil
}

// Close releases the underlying gRPC connection.
func (c *GCPClient) Close() error {
	return c.catalogClient.Close()
}

// ListMachineTypes enumerates the machine types available in a region by
// walking its zones.
func (c *GCPClient) ListMachineTypes(ctx context.Context, region string) (map[string]GCPMachineType, error) {
	zones, err := c.listRegionZones(ctx, region)
	if err != nil {
		return nil, err
	}
	if len(zones) == 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrRegionNotFound, region)
	}

	out := make(map[string]GCPMachineType)
	for _, zone := range zones {
		call := c.computeSvc.MachineTypes.List(c.project, zone).Context(ctx)
		err := call.Pages(ctx, func(page *compute.MachineTypeList) error {
			for _, mt := range page.Items {
				if _, ok := out[mt.Name]; ok {
					continue
				}
				out[mt.Name] = GCPMachineType{
					Name:      mt.Name,
					GuestCpus: mt.GuestCpus,
					MemoryMb:  mt.MemoryMb,
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list machine types in %s: %w", zone, err)
		}
	}
	return out, nil
}

func (c *GCPClient) listRegionZones(ctx context.Context, region string) ([]string, error) {
	var zones []string
	call := c.computeSvc.Zones.List(c.project).Context(ctx)
	err := call.Pages(ctx, func(page *compute.ZoneList) error {
		for _, zone := range page.Items {
			if strings.HasPrefix(zone.Name, region+"-") && zone.Status == "UP" {
				zones = append(zones, zone.Name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	return zones, nil
}

// ListFamilyRates walks the Compute Engine billing catalog and collects
// on-demand per-core and per-GB hourly rates per machine family in the
// given region. Keys are lowercase family prefixes, e.g. "n2", "e2".
func (c *GCPClient) ListFamilyRates(ctx context.Context, region string) (map[string]GCPRate, error) {
	rates := make(map[string]GCPRate)

	it := c.catalogClient.ListSkus(ctx, &billingpb.ListSkusRequest{
		Parent: computeServiceName,
	})
	for {
		sku, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list billing skus: %w", err)
		}
		if sku.Category == nil || sku.Category.ResourceFamily != "Compute" {
			continue
		}
		if sku.Category.UsageType != "OnDemand" {
			continue
		}
		if !containsRegion(sku.ServiceRegions, region) {
			continue
		}

		family, isRAM, ok := parseGCPSkuDescription(sku.Description)
		if !ok {
			continue
		}
		price, ok := gcpSkuHourlyPrice(sku)
		if !ok {
			continue
		}

		rate := rates[family]
		if isRAM {
			rate.RAMPrice = price
		} else {
			rate.CorePrice = price
		}
		rates[family] = rate
	}
	return rates, nil
}

// MachineTypePrice computes the hourly price of a machine type from its
// family's per-core and per-GB rates.
func MachineTypePrice(mt GCPMachineType, rates map[string]GCPRate) (float64, bool) {
	family := strings.ToLower(strings.SplitN(mt.Name, "-", 2)[0])
	rate, ok := rates[family]
	if !ok || rate.CorePrice == 0 {
		return 0, false
	}
	ramGB := float64(mt.MemoryMb) / 1024
	return float64(mt.GuestCpus)*rate.CorePrice + ramGB*rate.RAMPrice, true
}

// parseGCPSkuDescription classifies a compute SKU description into a
// machine family and a core/RAM component. Descriptions look like
// "N2 Instance Core running in Americas" or "E2 Instance Ram running in
// Frankfurt". Preemptible, custom and commitment SKUs are skipped.
func parseGCPSkuDescription(desc string) (family string, isRAM bool, ok bool) {
	lower := strings.ToLower(desc)
	if strings.Contains(lower, "preemptible") || strings.Contains(lower, "spot") ||
		strings.Contains(lower, "custom") || strings.Contains(lower, "commitment") ||
		strings.Contains(lower, "sole tenancy") {
		return "", false, false
	}
	fields := strings.Fields(lower)
	if len(fields) < 3 || fields[1] != "instance" {
		return "", false, false
	}
	switch fields[2] {
	case "core":
		return fields[0], false, true
	case "ram":
		return fields[0], true, true
	}
	return "", false, false
}

// gcpSkuHourlyPrice extracts the USD unit price from the current pricing
// expression of a SKU.
func gcpSkuHourlyPrice(sku *billingpb.Sku) (float64, bool) {
	if len(sku.PricingInfo) == 0 {
		return 0, false
	}
	expr := sku.PricingInfo[0].PricingExpression
	if expr == nil || len(expr.TieredRates) == 0 {
		return 0, false
	}
	// First tier carries the base on-demand rate.
	unit := expr.TieredRates[0].UnitPrice
	if unit == nil {
		return 0, false
	}
	return float64(unit.Units) + float64(unit.Nanos)/1e9, true
}

func containsRegion(regions []string, region string) bool {
	for _, r := range regions {
		if r == region || r == "global" {
			return true
		}
	}
	return false
}
