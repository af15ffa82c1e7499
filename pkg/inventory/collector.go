package inventory

import (
	"context"
	"errors"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	corev1 "k8s.io/api/core/v1"

	"github.com/k8sops/pvcrypt/internal/models"
	awsx "github.com/k8sops/pvcrypt/pkg/aws"
	"github.com/k8sops/pvcrypt/pkg/kube"
	"github.com/k8sops/pvcrypt/pkg/pricing"
)

// PVLister is the slice of the cluster client the collector consumes
type PVLister interface {
	ListPersistentVolumes(ctx context.Context) ([]corev1.PersistentVolume, error)
}

// VolumeDescriber is the slice of the EBS client the collector consumes
type VolumeDescriber interface {
	DescribeVolume(ctx context.Context, volumeID string) (types.Volume, error)
	Region() string
}

// CostEstimator returns the estimated monthly cost in USD for a volume
// and the source of the price ("API", "Cache", or "Default").
type CostEstimator func(volumeType string, sizeGB int, region string) (float64, string)

// Collector joins the cluster's PersistentVolumes with their backing EBS
// volumes and classifies each one.
type Collector struct {
	kube PVLister
	ebs  VolumeDescriber

	// EstimateCost prices unencrypted volumes for the report. Tests
	// replace it to avoid the pricing API.
	EstimateCost CostEstimator
}

// NewCollector creates a collector over the two read-only clients
func NewCollector(kubeClient PVLister, ebsClient VolumeDescriber) *Collector {
	return &Collector{
		kube:         kubeClient,
		ebs:          ebsClient,
		EstimateCost: pricing.EBSMonthlyCostWithSource,
	}
}

// Collect lists every PersistentVolume and partitions the set into
// encrypted, unencrypted, and unresolvable. A failure to resolve one
// record degrades that record to unresolvable and the pass continues;
// only an unreachable Kubernetes API or a credentials-level AWS failure
// aborts the pass, as a *ConnectivityError.
func (c *Collector) Collect(ctx context.Context) (*models.ClassificationResult, error) {
	pvs, err := c.kube.ListPersistentVolumes(ctx)
	if err != nil {
		return nil, &ConnectivityError{System: "kubernetes", Err: err}
	}

	result := &models.ClassificationResult{}

	for i := range pvs {
		pv := &pvs[i]

		driver, volumeID, err := kube.EBSVolumeID(pv)
		if err != nil {
			reason := models.ReasonMalformedSpec
			detail := err.Error()
			if errors.Is(err, kube.ErrNotEBS) {
				reason = models.ReasonNonEBSBackend
				detail = kube.SourceName(pv)
			}
			result.Unresolvable = append(result.Unresolvable, models.UnresolvedVolume{
				PVName:   pv.Name,
				ClaimRef: kube.ClaimRef(pv),
				Reason:   reason,
				Detail:   detail,
			})
			continue
		}

		volume, err := c.ebs.DescribeVolume(ctx, volumeID)
		if err != nil {
			if awsx.IsAuthError(err) {
				return nil, &ConnectivityError{System: "aws", Err: err}
			}

			detail := err.Error()
			if awsx.IsVolumeNotFound(err) {
				detail = "volume not found in AWS"
			}
			result.Unresolvable = append(result.Unresolvable, models.UnresolvedVolume{
				PVName:   pv.Name,
				VolumeID: volumeID,
				ClaimRef: kube.ClaimRef(pv),
				Reason:   models.ReasonLookupFailed,
				Detail:   detail,
			})
			continue
		}

		record := models.VolumeRecord{
			PVName:           pv.Name,
			VolumeID:         volumeID,
			Encrypted:        awssdk.ToBool(volume.Encrypted),
			SizeGB:           awssdk.ToInt32(volume.Size),
			VolumeType:       string(volume.VolumeType),
			AvailabilityZone: awssdk.ToString(volume.AvailabilityZone),
			ClaimRef:         kube.ClaimRef(pv),
			Driver:           driver,
			CreateTime:       volume.CreateTime,
		}

		if record.Encrypted {
			result.Encrypted = append(result.Encrypted, record)
		} else {
			if c.EstimateCost != nil {
				record.EstimatedMonthlyCost, record.PricingSource = c.EstimateCost(
					record.VolumeType, int(record.SizeGB), c.ebs.Region())
			}
			result.Unencrypted = append(result.Unencrypted, record)
		}
	}

	sortResult(result)
	return result, nil
}

// sortResult orders every partition by PV name for stable output
func sortResult(result *models.ClassificationResult) {
	sort.Slice(result.Encrypted, func(i, j int) bool {
		return result.Encrypted[i].PVName < result.Encrypted[j].PVName
	})
	sort.Slice(result.Unencrypted, func(i, j int) bool {
		return result.Unencrypted[i].PVName < result.Unencrypted[j].PVName
	})
	sort.Slice(result.Unresolvable, func(i, j int) bool {
		return result.Unresolvable[i].PVName < result.Unresolvable[j].PVName
	})
}
