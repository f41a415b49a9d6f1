package cloud

import "strings"

// awsLocationsToCodes maps Price List API location names to region codes.
// Loaded once at process start; never mutated at runtime.
var awsLocationsToCodes = map[string]string{
	"US East (N. Virginia)":      "us-east-1",
	"US East (Ohio)":             "us-east-2",
	"US West (N. California)":    "us-west-1",
	"US West (Oregon)":           "us-west-2",
	"Canada (Central)":           "ca-central-1",
	"EU (Ireland)":               "eu-west-1",
	"EU (London)":                "eu-west-2",
	"EU (Paris)":                 "eu-west-3",
	"EU (Frankfurt)":             "eu-central-1",
	"EU (Stockholm)":             "eu-north-1",
	"EU (Milan)":                 "eu-south-1",
	"Asia Pacific (Singapore)":   "ap-southeast-1",
	"Asia Pacific (Sydney)":      "ap-southeast-2",
	"Asia Pacific (Tokyo)":       "ap-northeast-1",
	"Asia Pacific (Seoul)":       "ap-northeast-2",
	"Asia Pacific (Osaka)":       "ap-northeast-3",
	"Asia Pacific (Mumbai)":      "ap-south-1",
	"Asia Pacific (Hong Kong)":   "ap-east-1",
	"South America (Sao Paulo)":  "sa-east-1",
	"Middle East (Bahrain)":      "me-south-1",
	"Africa (Cape Town)":         "af-south-1",
	"China (Beijing)":            "cn-north-1",
	"China (Ningxia)":            "cn-northwest-1",
	"AWS GovCloud (US-East)":     "us-gov-east-1",
	"AWS GovCloud (US-West)":     "us-gov-west-1",
}

// AWSRegionCodeForLocation resolves a Price List location name to a region
// code. Exact matches win; otherwise a substring match is accepted only when
// exactly one table entry contains it. Ambiguous substrings resolve to
// nothing rather than to an iteration-order-dependent entry.
func AWSRegionCodeForLocation(location string) (string, bool) {
	if code, ok := awsLocationsToCodes[location]; ok {
		return code, true
	}
	var match string
	var hits int
	for name, code := range awsLocationsToCodes {
		if strings.Contains(name, location) {
			match = code
			hits++
		}
	}
	if hits == 1 {
		return match, true
	}
	return "", false
}

// AWSLocationForRegionCode resolves a region code back to the Price List
// location name.
func AWSLocationForRegionCode(code string) (string, bool) {
	for name, c := range awsLocationsToCodes {
		if c == code {
			return name, true
		}
	}
	return "", false
}

// AWSRegionNameCodeMap returns a copy of the location-to-code table.
func AWSRegionNameCodeMap() map[string]string {
	out := make(map[string]string, len(awsLocationsToCodes))
	for k, v := range awsLocationsToCodes {
		out[k] = v
	}
	return out
}
