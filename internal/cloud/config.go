// Package cloud provides pricing clients for the supported cloud providers.
// Each client talks to the provider's pricing/compute APIs and returns
// provider-native records; normalization into comparable shapes happens in
// the matcher layer.
package cloud

import (
	"time"
)

// Config holds credentials and common settings for the cloud clients.
// Credentials may come from the service-wide configuration or from a
// specific cloud account's stored credentials.
type Config struct {
	// AWS configuration
	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	// Azure configuration
	AzureSubscriptionID string
	AzureTenantID       string
	AzureClientID       string
	AzureClientSecret   string
	// AzureRetailEndpoint overrides the retail prices API base URL (tests).
	AzureRetailEndpoint string

	// Alibaba configuration
	AlibabaRegion          string
	AlibabaAccessKeyID     string
	AlibabaAccessKeySecret string

	// GCP configuration
	GCPProject         string
	GCPCredentialsJSON string

	// Nebius configuration
	NebiusEndpoint string
	NebiusIAMToken string

	// Common settings
	HTTPTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AWSRegion:   "us-east-1",
		HTTPTimeout: 30 * time.Second,
	}
}
