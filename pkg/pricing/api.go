package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/pricing"
	"github.com/aws/aws-sdk-go-v2/service/pricing/types"
	"github.com/briandowns/spinner"

	"github.com/k8sops/pvcrypt/pkg/utils"
)

var (
	// pricingClient is the AWS Pricing API client, initialized lazily
	pricingClient *pricing.Client

	// pricingInitOnce ensures the client is initialized only once
	pricingInitOnce sync.Once

	// lookupSpinner shows progress while a price lookup is in flight
	lookupSpinner *spinner.Spinner

	// initMessage stores the initialization message so it can be printed
	// after any active spinner has stopped
	initMessage string
)

// initPricingClient initializes the Pricing API client. The Pricing API
// is only served from us-east-1 and ap-south-1.
func initPricingClient() {
	const pricingRegion = "us-east-1"

	cfg, err := config.LoadDefaultConfig(context.TODO(), config.WithRegion(pricingRegion))
	if err != nil {
		initMessage = fmt.Sprintf("Error loading AWS config for pricing API: %v. Using fallback pricing.", err)
		return
	}

	pricingClient = pricing.NewFromConfig(cfg)
	initMessage = fmt.Sprintf("AWS Pricing API initialized in %s region (https://api.pricing.%s.amazonaws.com)", pricingRegion, pricingRegion)
}

// GetInitMessage returns the initialization message and clears it
func GetInitMessage() string {
	msg := initMessage
	initMessage = ""
	return msg
}

func startLookupSpinner(resourceType, region string) {
	if pricingClient == nil {
		return
	}
	if lookupSpinner == nil {
		lookupSpinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		lookupSpinner.Color("green")
	}
	lookupSpinner.Suffix = fmt.Sprintf(" Retrieving EBS pricing: %s in %s", resourceType, utils.GetRegionDescriptiveName(region))
	lookupSpinner.Start()
}

func stopLookupSpinner() {
	if lookupSpinner != nil {
		lookupSpinner.Stop()
	}
}

// getPricingProducts queries the Pricing API for matching products
func getPricingProducts(ctx context.Context, serviceCode string, filters []types.Filter, resourceType, region string) ([]string, error) {
	pricingInitOnce.Do(initPricingClient)

	if pricingClient == nil {
		return nil, fmt.Errorf("AWS pricing client not initialized")
	}

	startLookupSpinner(resourceType, region)
	defer stopLookupSpinner()

	input := &pricing.GetProductsInput{
		ServiceCode: aws.String(serviceCode),
		Filters:     filters,
		MaxResults:  aws.Int32(100),
	}

	resp, err := pricingClient.GetProducts(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("error calling AWS Pricing API: %w", err)
	}

	if len(resp.PriceList) == 0 {
		return nil, fmt.Errorf("no pricing found for %s in region %s", resourceType, region)
	}

	return resp.PriceList, nil
}
