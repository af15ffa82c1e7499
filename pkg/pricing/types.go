// Package pricing estimates the monthly cost of EBS volumes so the
// status report can show what the unencrypted storage costs today.
// Prices come from the AWS Pricing API with a process-lifetime cache
// and a hardcoded fallback table.
package pricing

import (
	"sync"
)

// PricingSource represents where a price came from
type PricingSource string

const (
	// PricingSourceAPI indicates pricing data came from the AWS API
	PricingSourceAPI PricingSource = "API"

	// PricingSourceCache indicates pricing data came from the cache
	PricingSourceCache PricingSource = "Cache"

	// PricingSourceDefault indicates pricing data came from hardcoded defaults
	PricingSourceDefault PricingSource = "Default"

	// PricingSourceNA indicates pricing data is not available
	PricingSourceNA PricingSource = "N/A"
)

var (
	// apiStats tracks Pricing API calls by region: {success, failure, cache}
	apiStats     = make(map[string]map[string]int)
	apiStatsLock sync.RWMutex

	// ebsPriceCache caches per-GB-month prices by "volumeType:region"
	ebsPriceCache     = make(map[string]float64)
	ebsPriceCacheLock sync.RWMutex
)

// defaultEBSPrices holds fallback per-GB-month prices in USD, used when
// the Pricing API is unreachable.
var defaultEBSPrices = map[string]map[string]float64{
	"us-east-1": {
		"gp2":      0.10,
		"gp3":      0.08,
		"io1":      0.125,
		"io2":      0.125,
		"st1":      0.045,
		"sc1":      0.025,
		"standard": 0.05,
	},
	"ap-northeast-2": {
		"gp2":      0.114,
		"gp3":      0.092,
		"io1":      0.142,
		"io2":      0.142,
		"st1":      0.051,
		"sc1":      0.029,
		"standard": 0.057,
	},
}
