package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k8sops/pvcrypt/pkg/utils"
)

// stubMutateAPI records the inputs of each mutating call
type stubMutateAPI struct {
	snapshotInput *ec2.CreateSnapshotInput
	copyInput     *ec2.CopySnapshotInput
	volumeInput   *ec2.CreateVolumeInput

	snapshots map[string]types.Snapshot
}

func (s *stubMutateAPI) DescribeVolumes(_ context.Context, _ *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	return &ec2.DescribeVolumesOutput{}, nil
}

func (s *stubMutateAPI) DescribeSnapshots(_ context.Context, params *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	out := &ec2.DescribeSnapshotsOutput{}
	for _, id := range params.SnapshotIds {
		if snap, ok := s.snapshots[id]; ok {
			out.Snapshots = append(out.Snapshots, snap)
		}
	}
	return out, nil
}

func (s *stubMutateAPI) CreateSnapshot(_ context.Context, params *ec2.CreateSnapshotInput, _ ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error) {
	s.snapshotInput = params
	return &ec2.CreateSnapshotOutput{SnapshotId: awssdk.String("snap-123")}, nil
}

func (s *stubMutateAPI) CopySnapshot(_ context.Context, params *ec2.CopySnapshotInput, _ ...func(*ec2.Options)) (*ec2.CopySnapshotOutput, error) {
	s.copyInput = params
	return &ec2.CopySnapshotOutput{SnapshotId: awssdk.String("snap-456")}, nil
}

func (s *stubMutateAPI) CreateVolume(_ context.Context, params *ec2.CreateVolumeInput, _ ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error) {
	s.volumeInput = params
	return &ec2.CreateVolumeOutput{VolumeId: awssdk.String("vol-789")}, nil
}

func TestCreateSnapshotTagsAndDescription(t *testing.T) {
	api := &stubMutateAPI{}
	client := NewEBSAdminClientWithAPI(api, "us-east-1")

	id, err := client.CreateSnapshot(context.Background(), "vol-abc", "pv=pv-a")
	require.NoError(t, err)
	assert.Equal(t, "snap-123", id)

	require.NotNil(t, api.snapshotInput)
	assert.Equal(t, "vol-abc", awssdk.ToString(api.snapshotInput.VolumeId))
	assert.Contains(t, awssdk.ToString(api.snapshotInput.Description), "vol-abc")

	require.Len(t, api.snapshotInput.TagSpecifications, 1)
	spec := api.snapshotInput.TagSpecifications[0]
	assert.Equal(t, types.ResourceTypeSnapshot, spec.ResourceType)
	assert.Equal(t, ManagedByTagValue, utils.GetTagValue(spec.Tags, ManagedByTagKey))
	assert.Equal(t, "vol-abc", utils.GetTagValue(spec.Tags, "volume"))
	assert.Equal(t, "create_snapshot", utils.GetTagValue(spec.Tags, "source_function"))
}

func TestEncryptSnapshotCopySetsEncryptionAndRegion(t *testing.T) {
	api := &stubMutateAPI{}
	client := NewEBSAdminClientWithAPI(api, "ap-northeast-2")

	id, err := client.EncryptSnapshotCopy(context.Background(), "snap-123", "pv=pv-a")
	require.NoError(t, err)
	assert.Equal(t, "snap-456", id)

	require.NotNil(t, api.copyInput)
	assert.True(t, awssdk.ToBool(api.copyInput.Encrypted))
	assert.Equal(t, "ap-northeast-2", awssdk.ToString(api.copyInput.SourceRegion))
	assert.Equal(t, "snap-123", awssdk.ToString(api.copyInput.SourceSnapshotId))
}

func TestCreateVolumeFromSnapshot(t *testing.T) {
	api := &stubMutateAPI{}
	client := NewEBSAdminClientWithAPI(api, "us-east-1")

	id, err := client.CreateVolumeFromSnapshot(context.Background(), "snap-456", "us-east-1a")
	require.NoError(t, err)
	assert.Equal(t, "vol-789", id)

	require.NotNil(t, api.volumeInput)
	assert.True(t, awssdk.ToBool(api.volumeInput.Encrypted))
	assert.Equal(t, types.VolumeTypeGp3, api.volumeInput.VolumeType)
	assert.Equal(t, "us-east-1a", awssdk.ToString(api.volumeInput.AvailabilityZone))
	assert.Equal(t, "snap-456", awssdk.ToString(api.volumeInput.SnapshotId))
}

func TestSnapshotSetProgress(t *testing.T) {
	api := &stubMutateAPI{
		snapshots: map[string]types.Snapshot{
			"snap-1": {
				SnapshotId: awssdk.String("snap-1"),
				Progress:   awssdk.String("100%"),
				State:      types.SnapshotStateCompleted,
			},
			"snap-2": {
				SnapshotId: awssdk.String("snap-2"),
				Progress:   awssdk.String("40%"),
				State:      types.SnapshotStatePending,
			},
		},
	}
	client := NewEBSAdminClientWithAPI(api, "us-east-1")

	progress, err := client.SnapshotSetProgress(context.Background(), []string{"snap-1", "snap-2"})
	require.NoError(t, err)

	assert.Equal(t, []int{100, 40}, progress.Percent)
	assert.Equal(t, []string{"completed", "pending"}, progress.States)
	assert.Equal(t, 70.0, progress.AvgPercent)
	assert.False(t, progress.Complete())
}

func TestParseProgress(t *testing.T) {
	assert.Equal(t, 87, parseProgress("87%"))
	assert.Equal(t, 100, parseProgress("100%"))
	assert.Equal(t, 0, parseProgress(""))
	assert.Equal(t, 0, parseProgress("pending"))
}
