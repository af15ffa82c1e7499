package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// DescribeAPI is the read-only slice of the EC2 API the inventory pass
// consumes. Tests substitute a stub implementation.
type DescribeAPI interface {
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	DescribeSnapshots(ctx context.Context, params *ec2.DescribeSnapshotsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error)
}

// EBSClient is the read-only EBS client. It can describe volumes and
// snapshots but cannot create or modify anything.
type EBSClient struct {
	api    DescribeAPI
	region string
}

// NewEBSClient creates a read-only EBS client for a region
func NewEBSClient(ctx context.Context, region string) (*EBSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithEC2IMDSClientEnableState(imds.ClientEnabled),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	return &EBSClient{
		api:    ec2.NewFromConfig(cfg),
		region: region,
	}, nil
}

// NewEBSClientWithAPI wraps an existing EC2 API implementation
func NewEBSClientWithAPI(api DescribeAPI, region string) *EBSClient {
	return &EBSClient{api: api, region: region}
}

// Region returns the region the client operates in
func (c *EBSClient) Region() string {
	return c.region
}

// DescribeVolume returns the details of a single EBS volume. Volumes are
// described one at a time: a batched DescribeVolumes call fails as a
// whole when any id in it is unknown, which would let one deleted volume
// poison the rest of the pass.
func (c *EBSClient) DescribeVolume(ctx context.Context, volumeID string) (types.Volume, error) {
	out, err := c.api.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		VolumeIds: []string{volumeID},
	})
	if err != nil {
		return types.Volume{}, fmt.Errorf("error describing volume %s: %w", volumeID, err)
	}
	if len(out.Volumes) == 0 {
		return types.Volume{}, fmt.Errorf("volume %s not found in AWS", volumeID)
	}

	return out.Volumes[0], nil
}

// DescribeSnapshot returns the details of a single EBS snapshot
func (c *EBSClient) DescribeSnapshot(ctx context.Context, snapshotID string) (types.Snapshot, error) {
	out, err := c.api.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{
		SnapshotIds: []string{snapshotID},
	})
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("error describing snapshot %s: %w", snapshotID, err)
	}
	if len(out.Snapshots) == 0 {
		return types.Snapshot{}, fmt.Errorf("snapshot %s not found in AWS", snapshotID)
	}

	return out.Snapshots[0], nil
}
