package models

import "time"

// HoursInMonth converts hourly prices to monthly (30 * 24).
const HoursInMonth = 30 * 24

// SKUFreshness is how long a cached SKU document is trusted before it must
// be refreshed from the cloud.
const SKUFreshness = 60 * 24 * time.Hour

// CloudType identifies a supported cloud provider.
type CloudType string

const (
	CloudAWS     CloudType = "aws_cnr"
	CloudAzure   CloudType = "azure_cnr"
	CloudAlibaba CloudType = "alibaba_cnr"
	CloudGCP     CloudType = "gcp_cnr"
	CloudNebius  CloudType = "nebius"
)

// ResourceType identifies the kind of resource a flavor lookup targets.
type ResourceType string

const (
	ResourceInstance ResourceType = "instance"
	ResourceRDS      ResourceType = "rds_instance"
)

// MatchMode selects the flavor matching policy.
type MatchMode string

const (
	// ModeCurrent matches only the exact source flavor, used to re-price an
	// existing resource.
	ModeCurrent MatchMode = "current"
	// ModeSearchRelevant searches the flavor family for the best
	// same-or-larger flavor.
	ModeSearchRelevant MatchMode = "search_relevant"
)

// FlavorRequirements describes the flavor a caller already uses or bases the
// search on.
type FlavorRequirements struct {
	// SourceFlavorID is the instance/flavor the search starts from. Required.
	SourceFlavorID string
	// CPU is the requested vCPU count for search_relevant mode.
	CPU int
	// RAM is the requested memory in GB. Used by clouds whose catalogs
	// price CPU and memory separately (Nebius, GCP custom shapes).
	RAM float64
	// CoreFraction is the guaranteed vCPU share in percent (Nebius).
	// Zero means 100.
	CoreFraction int
	// OSType narrows Azure catalog matches ("Linux" or "Windows").
	OSType string
	// MeterID pins an Azure lookup to one exact meter in current mode.
	MeterID string
	// PreinstalledSoftware narrows AWS pricing filters ("NA" when empty).
	PreinstalledSoftware string
}

// FlavorPriceRecord is the normalized unit of comparison across clouds.
// Price units are consistent within one comparison batch; the AWS path
// converts hourly to monthly via HoursInMonth. Immutable once built.
type FlavorPriceRecord struct {
	FlavorID string  `json:"flavor"`
	CPU      int     `json:"cpu"`
	RAM      float64 `json:"ram"`
	Region   string  `json:"region"`
	Price    float64 `json:"price"`
}

// CachedSKU is a persisted AWS price catalog document keyed by Sku.
type CachedSKU struct {
	Sku          string            `json:"sku"`
	Location     string            `json:"location"`
	LocationType string            `json:"locationType"`
	UsageType    string            `json:"usagetype"`
	PriceUnit    string            `json:"price_unit"`
	Price        float64           `json:"price"`
	RegionCode   string            `json:"regionCode,omitempty"`
	InstanceType string            `json:"instanceType,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// SimilarityKey returns the product configuration shared by "similar" SKUs:
// every attribute except the per-location fields (location, locationType,
// usagetype, price_unit, price, sku, updated_at, regionCode). Two documents
// with equal keys describe the same configuration in different locations.
func (s CachedSKU) SimilarityKey() string {
	key := s.InstanceType
	for _, field := range similarityFields {
		key += "|" + s.Attributes[field]
	}
	return key
}

// similarityFields are the product attributes that define SKU similarity.
// The per-location uniqueSkuFields are intentionally absent.
var similarityFields = []string{
	"operatingSystem",
	"tenancy",
	"preInstalledSw",
	"capacitystatus",
	"operation",
	"licenseModel",
}

// MigrationRecommendation proposes moving an instance to a cheaper nearby
// region. Saving is current monthly cost minus recommended monthly cost and
// is always strictly positive.
type MigrationRecommendation struct {
	ID                string  `json:"id"`
	ResourceID        string  `json:"resource_id"`
	CloudResourceID   string  `json:"cloud_resource_id"`
	CloudAccountID    string  `json:"cloud_account_id"`
	Flavor            string  `json:"flavor"`
	CurrentRegion     string  `json:"current_region"`
	RecommendedRegion string  `json:"recommended_region"`
	Saving            float64 `json:"saving"`
	IsExcluded        bool    `json:"is_excluded"`
}

// DiscoveredInstance is a live instance reported by resource discovery.
type DiscoveredInstance struct {
	ResourceID      string    `json:"resource_id"`
	CloudResourceID string    `json:"cloud_resource_id"`
	CloudAccountID  string    `json:"cloud_account_id"`
	OrganizationID  string    `json:"organization_id"`
	CloudType       CloudType `json:"cloud_type"`
	Region          string    `json:"region"`
	Flavor          string    `json:"flavor"`
	Spotted         bool      `json:"spotted,omitempty"`
	PoolID          string    `json:"pool_id,omitempty"`
}

// RawExpense is one raw billing record of a resource. The most recent
// record's SKU identifies the pricing configuration the resource actually
// runs under.
type RawExpense struct {
	CloudAccountID  string    `json:"cloud_account_id"`
	CloudResourceID string    `json:"cloud_resource_id"`
	Sku             string    `json:"sku"`
	Date            time.Time `json:"date"`
	Cost            float64   `json:"cost"`
}
