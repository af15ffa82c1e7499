package aws

import (
	"context"
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDescribeAPI struct {
	lastVolumeIDs []string
	volumes       []types.Volume
}

func (s *stubDescribeAPI) DescribeVolumes(_ context.Context, params *ec2.DescribeVolumesInput, _ ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error) {
	s.lastVolumeIDs = params.VolumeIds
	return &ec2.DescribeVolumesOutput{Volumes: s.volumes}, nil
}

func (s *stubDescribeAPI) DescribeSnapshots(_ context.Context, _ *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	return &ec2.DescribeSnapshotsOutput{}, nil
}

func TestDescribeVolumeQueriesOneID(t *testing.T) {
	api := &stubDescribeAPI{
		volumes: []types.Volume{{VolumeId: awssdk.String("vol-1")}},
	}
	client := NewEBSClientWithAPI(api, "us-east-1")

	vol, err := client.DescribeVolume(context.Background(), "vol-1")
	require.NoError(t, err)
	assert.Equal(t, "vol-1", awssdk.ToString(vol.VolumeId))
	assert.Equal(t, []string{"vol-1"}, api.lastVolumeIDs)
}

func TestDescribeVolumeEmptyResult(t *testing.T) {
	client := NewEBSClientWithAPI(&stubDescribeAPI{}, "us-east-1")

	_, err := client.DescribeVolume(context.Background(), "vol-gone")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vol-gone")
}
