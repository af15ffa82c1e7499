package aws

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/k8sops/pvcrypt/internal/models"
	"github.com/k8sops/pvcrypt/pkg/utils"
)

// Tag values stamped on every snapshot and volume the tool creates, so
// leftovers from an aborted run can be found and cleaned up.
const (
	ManagedByTagKey   = "created_by"
	ManagedByTagValue = "pvcrypt"
)

// MutateAPI extends the read-only EC2 surface with the calls the volume
// swap needs.
type MutateAPI interface {
	DescribeAPI
	CreateSnapshot(ctx context.Context, params *ec2.CreateSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error)
	CopySnapshot(ctx context.Context, params *ec2.CopySnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CopySnapshotOutput, error)
	CreateVolume(ctx context.Context, params *ec2.CreateVolumeInput, optFns ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error)
}

// EBSAdminClient is the privileged EBS client used by the encrypt flow.
// It embeds the read-only client; code that only needs to describe
// resources should take *EBSClient instead.
type EBSAdminClient struct {
	*EBSClient
	api MutateAPI
}

// NewEBSAdminClient creates a privileged EBS client for a region
func NewEBSAdminClient(ctx context.Context, region string) (*EBSAdminClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithEC2IMDSClientEnableState(imds.ClientEnabled),
	)
	if err != nil {
		return nil, fmt.Errorf("error loading AWS config: %w", err)
	}

	client := ec2.NewFromConfig(cfg)
	return &EBSAdminClient{
		EBSClient: NewEBSClientWithAPI(client, region),
		api:       client,
	}, nil
}

// NewEBSAdminClientWithAPI wraps an existing EC2 API implementation
func NewEBSAdminClientWithAPI(api MutateAPI, region string) *EBSAdminClient {
	return &EBSAdminClient{
		EBSClient: NewEBSClientWithAPI(api, region),
		api:       api,
	}
}

// CreateSnapshot snapshots a volume and returns the new snapshot id.
// The snapshot is unencrypted when the source volume is.
func (c *EBSAdminClient) CreateSnapshot(ctx context.Context, volumeID, note string) (string, error) {
	out, err := c.api.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
		VolumeId:    awssdk.String(volumeID),
		Description: awssdk.String(fmt.Sprintf("pvcrypt snapshot of volume %s. %s", volumeID, note)),
		TagSpecifications: []types.TagSpecification{
			managedTagSpec(types.ResourceTypeSnapshot, map[string]string{
				"source_function": "create_snapshot",
				"volume":          volumeID,
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("snapshot creation failed for volume %s: %w", volumeID, err)
	}

	return awssdk.ToString(out.SnapshotId), nil
}

// EncryptSnapshotCopy copies a snapshot with encryption enabled, in the
// same region, and returns the id of the encrypted copy.
func (c *EBSAdminClient) EncryptSnapshotCopy(ctx context.Context, snapshotID, note string) (string, error) {
	out, err := c.api.CopySnapshot(ctx, &ec2.CopySnapshotInput{
		SourceSnapshotId: awssdk.String(snapshotID),
		SourceRegion:     awssdk.String(c.region),
		Encrypted:        awssdk.Bool(true),
		Description:      awssdk.String(fmt.Sprintf("pvcrypt encrypted copy of snapshot %s. %s", snapshotID, note)),
		TagSpecifications: []types.TagSpecification{
			managedTagSpec(types.ResourceTypeSnapshot, map[string]string{
				"source_function": "encrypt_snapshot_copy",
				"snapshot":        snapshotID,
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("snapshot copy failed for snapshot %s: %w", snapshotID, err)
	}

	return awssdk.ToString(out.SnapshotId), nil
}

// CreateVolumeFromSnapshot creates a gp3 volume from an encrypted
// snapshot in the given availability zone. Encrypted is set explicitly
// even though a volume created from an encrypted snapshot is always
// encrypted.
func (c *EBSAdminClient) CreateVolumeFromSnapshot(ctx context.Context, snapshotID, availabilityZone string) (string, error) {
	out, err := c.api.CreateVolume(ctx, &ec2.CreateVolumeInput{
		SnapshotId:       awssdk.String(snapshotID),
		AvailabilityZone: awssdk.String(availabilityZone),
		Encrypted:        awssdk.Bool(true),
		VolumeType:       types.VolumeTypeGp3,
		TagSpecifications: []types.TagSpecification{
			managedTagSpec(types.ResourceTypeVolume, map[string]string{
				"source_function": "create_volume_from_snapshot",
				"snapshot":        snapshotID,
			}),
		},
	})
	if err != nil {
		return "", fmt.Errorf("volume creation failed for snapshot %s in %s: %w", snapshotID, availabilityZone, err)
	}

	return awssdk.ToString(out.VolumeId), nil
}

// VolumeExists checks whether a volume id still exists in EBS
func (c *EBSAdminClient) VolumeExists(ctx context.Context, volumeID string) (bool, error) {
	_, err := c.DescribeVolume(ctx, volumeID)
	if err != nil {
		if IsVolumeNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SnapshotSetProgress describes each snapshot in a set and aggregates
// how far along the whole set is.
func (c *EBSAdminClient) SnapshotSetProgress(ctx context.Context, snapshotIDs []string) (*models.SnapshotProgress, error) {
	progress := &models.SnapshotProgress{SnapshotIDs: snapshotIDs}

	var sum int
	for _, id := range snapshotIDs {
		snap, err := c.DescribeSnapshot(ctx, id)
		if err != nil {
			return nil, err
		}

		pct := parseProgress(awssdk.ToString(snap.Progress))
		progress.Percent = append(progress.Percent, pct)
		progress.States = append(progress.States, string(snap.State))
		sum += pct
	}

	if len(snapshotIDs) > 0 {
		progress.AvgPercent = float64(sum) / float64(len(snapshotIDs))
	}

	return progress, nil
}

// parseProgress converts the API's "87%" progress string to an int
func parseProgress(raw string) int {
	pct, err := strconv.Atoi(strings.TrimSuffix(raw, "%"))
	if err != nil {
		return 0
	}
	return pct
}

func managedTagSpec(resourceType types.ResourceType, extra map[string]string) types.TagSpecification {
	tags := map[string]string{ManagedByTagKey: ManagedByTagValue}
	for k, v := range extra {
		tags[k] = v
	}

	return types.TagSpecification{
		ResourceType: resourceType,
		Tags:         utils.ConvertToEC2Tags(tags),
	}
}
