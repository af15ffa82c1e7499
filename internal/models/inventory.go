package models

import "time"

// SourceDriver identifies how a PersistentVolume references its EBS volume.
type SourceDriver string

const (
	// SourceDriverInTree is the legacy kubernetes.io/aws-ebs volume source
	SourceDriverInTree SourceDriver = "in-tree"

	// SourceDriverCSI is the ebs.csi.aws.com CSI driver
	SourceDriverCSI SourceDriver = "csi"
)

// UnresolvableReason tags why a PersistentVolume could not be classified
type UnresolvableReason string

const (
	// ReasonNonEBSBackend means the PV volume source is not an EBS volume
	ReasonNonEBSBackend UnresolvableReason = "non-EBS backend"

	// ReasonLookupFailed means the EBS volume could not be described in AWS
	ReasonLookupFailed UnresolvableReason = "AWS lookup failed"

	// ReasonMalformedSpec means the PV carries an EBS source without a usable volume id
	ReasonMalformedSpec UnresolvableReason = "malformed PV spec"
)

// VolumeRecord represents one PersistentVolume resolved to its backing EBS volume
type VolumeRecord struct {
	PVName           string
	VolumeID         string
	Encrypted        bool
	SizeGB           int32
	VolumeType       string
	AvailabilityZone string
	ClaimRef         string // "namespace/name", empty when unbound
	Driver           SourceDriver
	CreateTime       *time.Time

	// Cost estimate for unencrypted volumes, so operators can judge
	// how much storage a migration window has to move.
	EstimatedMonthlyCost float64
	PricingSource        string // "API", "Cache", or "Default"
}

// UnresolvedVolume represents one PersistentVolume that could not be classified
type UnresolvedVolume struct {
	PVName   string
	VolumeID string // empty when the PV never resolved to a volume id
	ClaimRef string
	Reason   UnresolvableReason
	Detail   string
}

// ClassificationResult partitions every PV from a single inventory pass
// into exactly one of three disjoint sets.
type ClassificationResult struct {
	Encrypted    []VolumeRecord
	Unencrypted  []VolumeRecord
	Unresolvable []UnresolvedVolume
}

// Total returns the number of PVs across all partitions
func (r *ClassificationResult) Total() int {
	return len(r.Encrypted) + len(r.Unencrypted) + len(r.Unresolvable)
}

// UnencryptedSizeGB returns the total size of all unencrypted volumes
func (r *ClassificationResult) UnencryptedSizeGB() int32 {
	var total int32
	for _, rec := range r.Unencrypted {
		total += rec.SizeGB
	}
	return total
}
