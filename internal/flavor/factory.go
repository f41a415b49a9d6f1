package flavor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/optscale/flavorsearch/internal/cloud"
	"github.com/optscale/flavorsearch/internal/matcher"
	"github.com/optscale/flavorsearch/internal/models"
)

// Factory builds one matcher per (cloud, resource type) pair on first use
// and reuses it afterwards. Cloud clients open network connections and
// read credentials, so construction is deferred until a lookup actually
// targets that cloud.
type Factory struct {
	cfg     *cloud.Config
	workers int
	logger  zerolog.Logger

	mu       sync.Mutex
	matchers map[factoryKey]matcher.Matcher
}

type factoryKey struct {
	cloudType    models.CloudType
	resourceType models.ResourceType
}

func NewFactory(cfg *cloud.Config, logger zerolog.Logger) *Factory {
	if cfg == nil {
		cfg = cloud.DefaultConfig()
	}
	return &Factory{
		cfg:      cfg,
		logger:   logger,
		matchers: make(map[factoryKey]matcher.Matcher),
	}
}

// SetWorkers bounds the per-lookup catalog fan-out of the matchers this
// factory builds. Zero keeps the matcher default.
func (f *Factory) SetWorkers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.workers = n
}

var _ MatcherSource = (*Factory)(nil)

// Matcher returns the matcher for the pair, constructing it on first use.
// Unsupported pairs yield (nil, nil).
func (f *Factory) Matcher(cloudType models.CloudType, resourceType models.ResourceType) (matcher.Matcher, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := factoryKey{cloudType, resourceType}
	if m, ok := f.matchers[key]; ok {
		return m, nil
	}

	m, err := f.build(cloudType, resourceType)
	if err != nil {
		return nil, err
	}
	if m != nil {
		f.matchers[key] = m
	}
	return m, nil
}

func (f *Factory) build(cloudType models.CloudType, resourceType models.ResourceType) (matcher.Matcher, error) {
	switch {
	case cloudType == models.CloudAWS && resourceType == models.ResourceInstance:
		client, err := cloud.NewAWSClient(context.Background(), f.cfg, f.logger)
		if err != nil {
			return nil, err
		}
		m := matcher.NewAWSMatcher(client, f.logger)
		m.SetWorkers(f.workers)
		return m, nil

	case cloudType == models.CloudAzure && resourceType == models.ResourceInstance:
		client, err := cloud.NewAzureClient(f.cfg, f.logger)
		if err != nil {
			return nil, err
		}
		m := matcher.NewAzureMatcher(client, f.logger)
		m.SetWorkers(f.workers)
		return m, nil

	case cloudType == models.CloudAlibaba && resourceType == models.ResourceInstance:
		client, err := cloud.NewAlibabaClient(f.cfg, f.logger)
		if err != nil {
			return nil, err
		}
		m := matcher.NewAlibabaMatcher(client, f.logger)
		m.SetWorkers(f.workers)
		return m, nil

	case cloudType == models.CloudAlibaba && resourceType == models.ResourceRDS:
		client, err := cloud.NewAlibabaClient(f.cfg, f.logger)
		if err != nil {
			return nil, err
		}
		return matcher.NewAlibabaRDSMatcher(client, "", "", "", f.logger), nil

	case cloudType == models.CloudGCP && resourceType == models.ResourceInstance:
		client, err := cloud.NewGCPClient(context.Background(), f.cfg, f.logger)
		if err != nil {
			return nil, err
		}
		m := matcher.NewGCPMatcher(client, f.logger)
		m.SetWorkers(f.workers)
		return m, nil

	case cloudType == models.CloudNebius && resourceType == models.ResourceInstance:
		return matcher.NewNebiusMatcher(cloud.NewNebiusClient(f.cfg, f.logger), f.logger), nil
	}
	return nil, nil
}
