package pricing

import (
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"

	"github.com/k8sops/pvcrypt/pkg/utils"
)

// EBSMonthlyCostWithSource estimates the monthly cost in USD of an EBS
// volume, along with where the per-GB price came from.
func EBSMonthlyCostWithSource(volumeType string, sizeGB int, region string) (float64, string) {
	pricingInitOnce.Do(initPricingClient)

	cacheKey := fmt.Sprintf("%s:%s", volumeType, region)

	ebsPriceCacheLock.RLock()
	if price, found := ebsPriceCache[cacheKey]; found {
		ebsPriceCacheLock.RUnlock()
		recordStat(region, "cache")
		return float64(sizeGB) * price, string(PricingSourceCache)
	}
	ebsPriceCacheLock.RUnlock()

	if pricingClient != nil {
		price, err := ebsPriceFromAPI(volumeType, region)
		if err == nil {
			recordStat(region, "success")

			ebsPriceCacheLock.Lock()
			ebsPriceCache[cacheKey] = price
			ebsPriceCacheLock.Unlock()

			return float64(sizeGB) * price, string(PricingSourceAPI)
		}

		log.Printf("Error getting EBS price from API: %v for %s in %s.", err, volumeType, region)
	}

	recordStat(region, "failure")

	if price, ok := fallbackEBSPrice(volumeType, region); ok {
		return float64(sizeGB) * price, string(PricingSourceDefault)
	}

	return 0, string(PricingSourceNA)
}

// fallbackEBSPrice looks up the hardcoded price table, defaulting to gp2
// for unknown volume types and us-east-1 for unknown regions.
func fallbackEBSPrice(volumeType, region string) (float64, bool) {
	regionPrices, found := defaultEBSPrices[region]
	if !found {
		regionPrices = defaultEBSPrices["us-east-1"]
	}

	if price, ok := regionPrices[volumeType]; ok {
		return price, true
	}
	if price, ok := regionPrices["gp2"]; ok {
		return price, true
	}
	return 0, false
}

// ebsPriceFromAPI retrieves the per-GB-month price for a volume type
// from the AWS Pricing API.
func ebsPriceFromAPI(volumeType, region string) (float64, error) {
	ctx := context.TODO()

	filters := []types.Filter{
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("volumeType"),
			Value: aws.String(volumeTypeFamily(volumeType)),
		},
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("location"),
			Value: aws.String(utils.GetRegionDescriptiveName(region)),
		},
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("productFamily"),
			Value: aws.String("Storage"),
		},
		{
			Type:  types.FilterTypeTermMatch,
			Field: aws.String("regionCode"),
			Value: aws.String(region),
		},
	}

	products, err := getPricingProducts(ctx, "AmazonEC2", filters, volumeType, region)
	if err != nil {
		return 0, err
	}

	// The family filter can match several API names (gp2 and gp3 are
	// both "General Purpose"), so find the exact volume type.
	for _, product := range products {
		priceData, err := utils.ParseJSON(product)
		if err != nil {
			continue
		}

		apiName, err := utils.GetNestedString(priceData, "product", "attributes", "volumeApiName")
		if err != nil || apiName != volumeType {
			continue
		}

		return extractEBSPrice(priceData)
	}

	return 0, fmt.Errorf("no exact match found for EBS volume type %s in region %s", volumeType, region)
}

// volumeTypeFamily maps EBS volume types to the Pricing API's volumeType
// filter values.
func volumeTypeFamily(volumeType string) string {
	switch volumeType {
	case "gp2", "gp3":
		return "General Purpose"
	case "io1", "io2":
		return "Provisioned IOPS"
	case "st1":
		return "Throughput Optimized HDD"
	case "sc1":
		return "Cold HDD"
	case "standard":
		return "Magnetic"
	default:
		return "General Purpose"
	}
}

// extractEBSPrice digs the USD per-GB-month price out of a parsed
// Pricing API product document.
func extractEBSPrice(priceData map[string]interface{}) (float64, error) {
	terms, ok := priceData["terms"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("terms field not found or invalid")
	}

	onDemand, ok := terms["OnDemand"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("OnDemand field not found or invalid")
	}

	skuOffer, err := utils.GetFirstMapValue(onDemand)
	if err != nil {
		return 0, fmt.Errorf("no SKU offer found")
	}

	skuOfferMap, ok := skuOffer.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("SKU offer is not a map")
	}

	priceDimensions, ok := skuOfferMap["priceDimensions"].(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("priceDimensions field not found or invalid")
	}

	dimension, err := utils.GetFirstMapValue(priceDimensions)
	if err != nil {
		return 0, fmt.Errorf("no price dimension found")
	}

	dimensionMap, ok := dimension.(map[string]interface{})
	if !ok {
		return 0, fmt.Errorf("price dimension is not a map")
	}

	price, err := utils.GetNestedFloat(dimensionMap, "pricePerUnit", "USD")
	if err != nil {
		return 0, fmt.Errorf("error parsing price: %w", err)
	}

	return price, nil
}
