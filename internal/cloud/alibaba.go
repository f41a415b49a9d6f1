package cloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aliyun/alibaba-cloud-sdk-go/sdk/errors"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/bssopenapi"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/ecs"
	"github.com/aliyun/alibaba-cloud-sdk-go/services/rds"
	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/models"
)

// AlibabaClient talks to the Alibaba ECS, RDS and BSS pricing APIs.
type AlibabaClient struct {
	ecsClient *ecs.Client
	rdsClient *rds.Client
	bssClient *bssopenapi.Client
	logger    zerolog.Logger
}

// AlibabaFlavor is a provider-native instance type record.
type AlibabaFlavor struct {
	ID     string
	Family string
	CPU    int
	RAMGB  float64
}

// AlibabaRDSClass is a provider-native RDS instance class record.
type AlibabaRDSClass struct {
	Class string
	Group string
}

// NewAlibabaClient creates an Alibaba pricing client.
func NewAlibabaClient(cfg *Config, logger zerolog.Logger) (*AlibabaClient, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	region := cfg.AlibabaRegion
	if region == "" {
		region = "cn-hangzhou"
	}

	ecsClient, err := ecs.NewClientWithAccessKey(region, cfg.AlibabaAccessKeyID, cfg.AlibabaAccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create ecs client: %w", err)
	}
	rdsClient, err := rds.NewClientWithAccessKey(region, cfg.AlibabaAccessKeyID, cfg.AlibabaAccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create rds client: %w", err)
	}
	bssClient, err := bssopenapi.NewClientWithAccessKey(region, cfg.AlibabaAccessKeyID, cfg.AlibabaAccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create bss client: %w", err)
	}

	return &AlibabaClient{
		ecsClient: ecsClient,
		rdsClient: rdsClient,
		bssClient: bssClient,
		logger:    logger.With().Str("component", "alibaba-client").Logger(),
	}, nil
}

// GetAllFlavors enumerates every instance type known to ECS.
func (c *AlibabaClient) GetAllFlavors(ctx context.Context, region string) (map[string]AlibabaFlavor, error) {
	request := ecs.CreateDescribeInstanceTypesRequest()
	request.RegionId = region

	response, err := c.ecsClient.DescribeInstanceTypes(request)
	if err != nil {
		return nil, normalizeAlibabaError(err)
	}

	out := make(map[string]AlibabaFlavor, len(response.InstanceTypes.InstanceType))
	for _, it := range response.InstanceTypes.InstanceType {
		out[it.InstanceTypeId] = AlibabaFlavor{
			ID:     it.InstanceTypeId,
			Family: it.InstanceTypeFamily,
			CPU:    it.CpuCoreCount,
			RAMGB:  it.MemorySize,
		}
	}
	return out, nil
}

// GetAvailableFlavors returns the instance type IDs purchasable in region.
func (c *AlibabaClient) GetAvailableFlavors(ctx context.Context, region string) ([]string, error) {
	request := ecs.CreateDescribeAvailableResourceRequest()
	request.RegionId = region
	request.DestinationResource = "InstanceType"
	request.InstanceChargeType = "PostPaid"

	response, err := c.ecsClient.DescribeAvailableResource(request)
	if err != nil {
		return nil, normalizeAlibabaError(err)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, zone := range response.AvailableZones.AvailableZone {
		for _, res := range zone.AvailableResources.AvailableResource {
			for _, sup := range res.SupportedResources.SupportedResource {
				if sup.Status != "Available" {
					continue
				}
				if _, ok := seen[sup.Value]; ok {
					continue
				}
				seen[sup.Value] = struct{}{}
				out = append(out, sup.Value)
			}
		}
	}
	return out, nil
}

// GetFlavorPrices fetches hourly pay-as-you-go prices for a set of flavors
// in one bulk BSS request. A response that cannot be priced as a whole
// returns ErrPricingNotFound; callers fall back to GetFlavorPrice per item.
func (c *AlibabaClient) GetFlavorPrices(ctx context.Context, flavorIDs []string, region string) (map[string]float64, error) {
	if len(flavorIDs) == 0 {
		return map[string]float64{}, nil
	}

	request := bssopenapi.CreateGetPayAsYouGoPriceRequest()
	request.ProductCode = "ecs"
	request.SubscriptionType = "PayAsYouGo"
	request.Region = region

	moduleList := make([]bssopenapi.GetPayAsYouGoPriceModuleList, 0, len(flavorIDs))
	for _, id := range flavorIDs {
		moduleList = append(moduleList, bssopenapi.GetPayAsYouGoPriceModuleList{
			ModuleCode: "InstanceType",
			Config:     "InstanceType:" + id,
			PriceType:  "Hour",
		})
	}
	request.ModuleList = &moduleList

	response, err := c.bssClient.GetPayAsYouGoPrice(request)
	if err != nil {
		return nil, normalizeAlibabaError(err)
	}
	if !response.Success {
		return nil, fmt.Errorf("%w: %s", models.ErrPricingNotFound, response.Message)
	}

	details := response.Data.ModuleDetails.ModuleDetail
	if len(details) != len(flavorIDs) {
		return nil, fmt.Errorf("%w: priced %d of %d flavors", models.ErrPricingNotFound, len(details), len(flavorIDs))
	}
	out := make(map[string]float64, len(details))
	for i, d := range details {
		out[flavorIDs[i]] = d.CostAfterDiscount
	}
	return out, nil
}

// GetFlavorPrice fetches the hourly price of a single flavor.
func (c *AlibabaClient) GetFlavorPrice(ctx context.Context, flavorID, region string) (float64, error) {
	prices, err := c.GetFlavorPrices(ctx, []string{flavorID}, region)
	if err != nil {
		return 0, err
	}
	price, ok := prices[flavorID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrPricingNotFound, flavorID)
	}
	return price, nil
}

// GetAvailableRDSClasses enumerates RDS instance classes purchasable in a
// region for the given engine.
func (c *AlibabaClient) GetAvailableRDSClasses(ctx context.Context, region, zone, engine, engineVersion string) ([]AlibabaRDSClass, error) {
	request := rds.CreateDescribeAvailableClassesRequest()
	request.RegionId = region
	request.ZoneId = zone
	request.Engine = engine
	request.EngineVersion = engineVersion
	request.InstanceChargeType = "Postpaid"
	request.DBInstanceStorageType = "cloud_essd"

	response, err := c.rdsClient.DescribeAvailableClasses(request)
	if err != nil {
		return nil, normalizeAlibabaError(err)
	}

	out := make([]AlibabaRDSClass, 0, len(response.DBInstanceClasses))
	for _, class := range response.DBInstanceClasses {
		out = append(out, AlibabaRDSClass{
			Class: class.DBInstanceClass,
			Group: RDSClassGroup(class.DBInstanceClass),
		})
	}
	return out, nil
}

// GetRDSClassPrices fetches hourly prices for RDS instance classes.
func (c *AlibabaClient) GetRDSClassPrices(ctx context.Context, classIDs []string, region string) (map[string]float64, error) {
	if len(classIDs) == 0 {
		return map[string]float64{}, nil
	}

	request := bssopenapi.CreateGetPayAsYouGoPriceRequest()
	request.ProductCode = "rds"
	request.SubscriptionType = "PayAsYouGo"
	request.Region = region

	moduleList := make([]bssopenapi.GetPayAsYouGoPriceModuleList, 0, len(classIDs))
	for _, id := range classIDs {
		moduleList = append(moduleList, bssopenapi.GetPayAsYouGoPriceModuleList{
			ModuleCode: "DBInstanceClass",
			Config:     "DBInstanceClass:" + id,
			PriceType:  "Hour",
		})
	}
	request.ModuleList = &moduleList

	response, err := c.bssClient.GetPayAsYouGoPrice(request)
	if err != nil {
		return nil, normalizeAlibabaError(err)
	}
	if !response.Success {
		return nil, fmt.Errorf("%w: %s", models.ErrPricingNotFound, response.Message)
	}
	details := response.Data.ModuleDetails.ModuleDetail
	if len(details) != len(classIDs) {
		return nil, fmt.Errorf("%w: priced %d of %d classes", models.ErrPricingNotFound, len(details), len(classIDs))
	}
	out := make(map[string]float64, len(details))
	for i, d := range details {
		out[classIDs[i]] = d.CostAfterDiscount
	}
	return out, nil
}

// RDSClassGroup derives the class group by stripping the trailing size
// token, e.g. "rds.mysql.s2.large" belongs to group "rds.mysql.s2".
func RDSClassGroup(class string) string {
	idx := strings.LastIndex(class, ".")
	if idx <= 0 {
		return class
	}
	return class[:idx]
}

// normalizeAlibabaError maps SDK failures to the standard error taxonomy.
func normalizeAlibabaError(err error) error {
	serverErr, ok := err.(*errors.ServerError)
	if !ok {
		return err
	}
	code := serverErr.ErrorCode()
	switch {
	case code == "InvalidAccessKeyId.NotFound" || code == "Forbidden" ||
		strings.HasPrefix(code, "Forbidden."):
		return fmt.Errorf("%w: %s", models.ErrForbidden, serverErr.Message())
	case code == "InvalidRegionId.NotFound":
		return fmt.Errorf("%w: %s", models.ErrRegionNotFound, serverErr.Message())
	case strings.HasPrefix(code, "InvalidParameter") || strings.HasPrefix(code, "MissingParameter"):
		return fmt.Errorf("%w: %s", models.ErrInvalidParameters, serverErr.Message())
	case code == "PRICE.PRICING_PLAN_RESULT_NOT_FOUND" || strings.Contains(code, "PRICING"):
		return fmt.Errorf("%w: %s", models.ErrPricingNotFound, serverErr.Message())
	}
	return err
}
