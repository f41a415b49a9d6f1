package cloud

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	pricingtypes "github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/models"
)

// AWSClient talks to the AWS Price List API and EC2.
type AWSClient struct {
	region        string
	ec2For        func(region string) ec2.DescribeInstanceTypesAPIClient
	pricingClient *pricing.Client
	logger        zerolog.Logger
}

// InstanceTypeInfo is a provider-native EC2 instance type record.
type InstanceTypeInfo struct {
	Name   string
	CPU    int
	RAMMiB int64
}

// NewAWSClient creates an AWS pricing client. Explicit credentials take
// precedence over the default credential chain.
func NewAWSClient(ctx context.Context, cfg *Config, logger zerolog.Logger) (*AWSClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	region := cfg.AWSRegion
	if region == "" {
		region = "us-east-1"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AWSAccessKeyID != "" && cfg.AWSSecretAccessKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKeyID,
				cfg.AWSSecretAccessKey,
				"",
			)),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// The Price List API lives in us-east-1 and ap-south-1 only.
	pricingCfg := awsCfg.Copy()
	pricingCfg.Region = "us-east-1"

	return &AWSClient{
		region: region,
		ec2For: func(region string) ec2.DescribeInstanceTypesAPIClient {
			return ec2.NewFromConfig(awsCfg, func(o *ec2.Options) { o.Region = region })
		},
		pricingClient: pricing.NewFromConfig(pricingCfg),
		logger:        logger.With().Str("component", "aws-client").Logger(),
	}, nil
}

// GetPricing queries the Price List API for AmazonEC2 products matching the
// term filters and returns one record per product with its on-demand price.
func (c *AWSClient) GetPricing(ctx context.Context, filters map[string]string) ([]models.CachedSKU, error) {
	termFilters := make([]pricingtypes.Filter, 0, len(filters))
	for field, value := range filters {
		termFilters = append(termFilters, pricingtypes.Filter{
			Type:  pricingtypes.FilterTypeTermMatch,
			Field: aws.String(field),
			Value: aws.String(value),
		})
	}

	input := &pricing.GetProductsInput{
		ServiceCode: aws.String("AmazonEC2"),
		Filters:     termFilters,
	}

	var out []models.CachedSKU
	paginator := pricing.NewGetProductsPaginator(c.pricingClient, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, normalizeAWSError(err)
		}
		for _, raw := range page.PriceList {
			sku, err := parsePriceListItem(raw)
			if err != nil {
				// A single malformed catalog entry must not fail the batch.
				c.logger.Warn().Err(err).Msg("skipping unparseable price list entry")
				continue
			}
			out = append(out, sku)
		}
	}
	return out, nil
}

// GetSimilarSKUPrices returns the price records for every SKU sharing the
// product configuration of sku, across all locations.
func (c *AWSClient) GetSimilarSKUPrices(ctx context.Context, sku string) ([]models.CachedSKU, error) {
	seed, err := c.GetPricing(ctx, map[string]string{"sku": sku})
	if err != nil {
		return nil, err
	}
	if len(seed) == 0 {
		return nil, nil
	}

	// Re-query with the configuration attributes only, leaving location
	// unconstrained so every region variant comes back.
	filters := map[string]string{
		"instanceType": seed[0].InstanceType,
	}
	for _, field := range []string{"operatingSystem", "tenancy", "preInstalledSw", "capacitystatus", "operation"} {
		if v, ok := seed[0].Attributes[field]; ok && v != "" {
			filters[field] = v
		}
	}
	return c.GetPricing(ctx, filters)
}

// GetAllInstanceTypes enumerates EC2 instance types offered in region. The
// DescribeInstanceTypes call runs against that region, not the client's
// home region.
func (c *AWSClient) GetAllInstanceTypes(ctx context.Context, region string) (map[string]InstanceTypeInfo, error) {
	if region == "" {
		region = c.region
	}
	out := make(map[string]InstanceTypeInfo)
	paginator := ec2.NewDescribeInstanceTypesPaginator(c.ec2For(region), &ec2.DescribeInstanceTypesInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, normalizeAWSError(err)
		}
		for _, it := range page.InstanceTypes {
			info := InstanceTypeInfo{Name: string(it.InstanceType)}
			if it.VCpuInfo != nil && it.VCpuInfo.DefaultVCpus != nil {
				info.CPU = int(*it.VCpuInfo.DefaultVCpus)
			}
			if it.MemoryInfo != nil && it.MemoryInfo.SizeInMiB != nil {
				info.RAMMiB = *it.MemoryInfo.SizeInMiB
			}
			out[info.Name] = info
		}
	}
	return out, nil
}

// parsePriceListItem extracts the SKU document from one GetProducts entry.
func parsePriceListItem(raw string) (models.CachedSKU, error) {
	var entry struct {
		Product struct {
			Sku        string            `json:"sku"`
			Attributes map[string]string `json:"attributes"`
		} `json:"product"`
		Terms struct {
			OnDemand map[string]struct {
				PriceDimensions map[string]struct {
					Unit         string            `json:"unit"`
					PricePerUnit map[string]string `json:"pricePerUnit"`
				} `json:"priceDimensions"`
			} `json:"OnDemand"`
		} `json:"terms"`
	}
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return models.CachedSKU{}, err
	}

	attrs := entry.Product.Attributes
	doc := models.CachedSKU{
		Sku:          entry.Product.Sku,
		Location:     attrs["location"],
		LocationType: attrs["locationType"],
		UsageType:    attrs["usagetype"],
		RegionCode:   attrs["regionCode"],
		InstanceType: attrs["instanceType"],
		Attributes:   attrs,
	}
	if doc.Sku == "" {
		return models.CachedSKU{}, fmt.Errorf("price list entry without sku")
	}

	for _, term := range entry.Terms.OnDemand {
		for _, dim := range term.PriceDimensions {
			usd, ok := dim.PricePerUnit["USD"]
			if !ok {
				continue
			}
			price, err := strconv.ParseFloat(usd, 64)
			if err != nil || price <= 0 {
				continue
			}
			doc.Price = price
			doc.PriceUnit = dim.Unit
			return doc, nil
		}
	}
	return models.CachedSKU{}, fmt.Errorf("no on-demand USD price for sku %s", doc.Sku)
}

// normalizeAWSError maps SDK failures to the standard error taxonomy so
// callers and the controller can classify them uniformly.
func normalizeAWSError(err error) error {
	var ae smithy.APIError
	if !errors.As(err, &ae) {
		return err
	}
	code := ae.ErrorCode()
	switch {
	case code == "UnauthorizedOperation" || code == "AccessDeniedException" ||
		code == "AuthFailure" || code == "UnrecognizedClientException" ||
		code == "InvalidClientTokenId":
		return fmt.Errorf("%w: %s", models.ErrForbidden, ae.ErrorMessage())
	case strings.HasPrefix(code, "InvalidParameter") || code == "ValidationException":
		return fmt.Errorf("%w: %s", models.ErrInvalidParameters, ae.ErrorMessage())
	case code == "UnknownEndpoint" || strings.Contains(strings.ToLower(ae.ErrorMessage()), "region"):
		return fmt.Errorf("%w: %s", models.ErrRegionNotFound, ae.ErrorMessage())
	}
	return err
}
