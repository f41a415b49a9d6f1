// Package models defines the core data structures for the flavor search engine.
package models

import "errors"

// Common errors.
var (
	// ErrNotMatched means no flavor satisfied the matching constraints.
	// The flavor controller converts it to an empty result; it is never
	// surfaced to API callers as an error.
	ErrNotMatched = errors.New("no matching flavor")

	// ErrRegionNotFound means the requested region is unknown to the cloud.
	ErrRegionNotFound = errors.New("region not found")

	// ErrInvalidParameters means the cloud rejected the request arguments.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrForbidden means the cloud credentials lack permission for the call.
	ErrForbidden = errors.New("forbidden")

	// ErrPricingNotFound means a bulk pricing request could not be priced
	// as a whole; callers retry items individually.
	ErrPricingNotFound = errors.New("pricing not found")
)
