package migration

import (
	"strings"

	"github.com/optscale/flavorsearch/internal/models"
)

// Region groups bound how far an instance may move: a recommendation never
// crosses a geographic group. Regions absent from the tables are not
// considered for migration.
var awsRegionGroups = map[string][]string{
	"us": {"us-east-1", "us-east-2", "us-west-1", "us-west-2"},
	"eu": {"eu-central-1", "eu-north-1", "eu-west-1", "eu-west-2", "eu-west-3", "eu-south-1"},
	"ap": {"ap-northeast-1", "ap-northeast-2", "ap-northeast-3", "ap-south-1", "ap-southeast-1", "ap-southeast-2", "ap-east-1"},
	"cn": {"cn-north-1", "cn-northwest-1"},
	"me": {"me-south-1"},
}

var alibabaRegionGroups = map[string][]string{
	"us": {"us-east-1", "us-west-1"},
	"eu": {"eu-central-1", "eu-west-1"},
	"ap": {"ap-northeast-1", "ap-south-1", "ap-southeast-1", "ap-southeast-2", "ap-southeast-3", "ap-southeast-5"},
	"cn": {"cn-hangzhou", "cn-shanghai", "cn-beijing", "cn-shenzhen", "cn-qingdao", "cn-zhangjiakou", "cn-huhehaote", "cn-chengdu", "cn-hongkong"},
	"me": {"me-east-1"},
}

func regionGroupsFor(cloudType models.CloudType) map[string][]string {
	switch cloudType {
	case models.CloudAWS:
		return awsRegionGroups
	case models.CloudAlibaba:
		return alibabaRegionGroups
	}
	return nil
}

// groupPeers returns the other regions of the group containing region, or
// nil when the region belongs to no group.
func groupPeers(groups map[string][]string, region string) []string {
	for _, members := range groups {
		for _, member := range members {
			if member != region {
				continue
			}
			peers := make([]string, 0, len(members)-1)
			for _, peer := range members {
				if peer != region {
					peers = append(peers, peer)
				}
			}
			return peers
		}
	}
	return nil
}

// resolveRegionCode maps a human-readable region name to its code using a
// name-to-code table. An exact hit wins; otherwise the name must be a
// substring of exactly one table key. Ambiguous names resolve to nothing,
// so "US East" never silently picks a region.
func resolveRegionCode(nameToCode map[string]string, name string) (string, bool) {
	if code, ok := nameToCode[name]; ok {
		return code, true
	}
	match, found := "", false
	for tableName, code := range nameToCode {
		if !strings.Contains(tableName, name) {
			continue
		}
		if found {
			return "", false
		}
		match, found = code, true
	}
	return match, found
}
