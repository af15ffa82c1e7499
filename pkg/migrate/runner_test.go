package migrate

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/k8sops/pvcrypt/internal/models"
)

// stubEBS issues sequential ids and completes every snapshot immediately
type stubEBS struct {
	snapshots int
	copies    int
	volumes   int

	// pollsUntilComplete delays completion to exercise the wait loop
	pollsUntilComplete int
	polls              int
}

func (s *stubEBS) CreateSnapshot(_ context.Context, volumeID, _ string) (string, error) {
	s.snapshots++
	return fmt.Sprintf("snap-%d", s.snapshots), nil
}

func (s *stubEBS) EncryptSnapshotCopy(_ context.Context, snapshotID, _ string) (string, error) {
	s.copies++
	return fmt.Sprintf("snap-enc-%d", s.copies), nil
}

func (s *stubEBS) CreateVolumeFromSnapshot(_ context.Context, snapshotID, az string) (string, error) {
	s.volumes++
	return fmt.Sprintf("vol-new-%d", s.volumes), nil
}

func (s *stubEBS) SnapshotSetProgress(_ context.Context, snapshotIDs []string) (*models.SnapshotProgress, error) {
	s.polls++
	if s.polls <= s.pollsUntilComplete {
		return &models.SnapshotProgress{
			SnapshotIDs: snapshotIDs,
			Percent:     []int{42},
			States:      []string{"pending"},
			AvgPercent:  42,
		}, nil
	}
	return &models.SnapshotProgress{
		SnapshotIDs: snapshotIDs,
		Percent:     []int{100},
		States:      []string{"completed"},
		AvgPercent:  100,
	}, nil
}

// stubCluster records mutations and serves PV/PVC objects from maps
type stubCluster struct {
	pvs  map[string]*corev1.PersistentVolume
	pvcs map[string]*corev1.PersistentVolumeClaim

	scaleCalls []string
	replicas   map[string]int32

	createdPVs  []*corev1.PersistentVolume
	createdPVCs []*corev1.PersistentVolumeClaim
	deletedPVs  []string
	deletedPVCs []string
}

func newStubCluster() *stubCluster {
	return &stubCluster{
		pvs:      map[string]*corev1.PersistentVolume{},
		pvcs:     map[string]*corev1.PersistentVolumeClaim{},
		replicas: map[string]int32{},
	}
}

func (s *stubCluster) GetPersistentVolume(_ context.Context, name string) (*corev1.PersistentVolume, error) {
	pv, ok := s.pvs[name]
	if !ok {
		return nil, fmt.Errorf("pv %s not found", name)
	}
	return pv, nil
}

func (s *stubCluster) GetPersistentVolumeClaim(_ context.Context, namespace, name string) (*corev1.PersistentVolumeClaim, error) {
	pvc, ok := s.pvcs[namespace+"/"+name]
	if !ok {
		return nil, fmt.Errorf("pvc %s/%s not found", namespace, name)
	}
	return pvc, nil
}

func (s *stubCluster) CreatePersistentVolume(_ context.Context, pv *corev1.PersistentVolume) error {
	s.createdPVs = append(s.createdPVs, pv)
	return nil
}

func (s *stubCluster) CreatePersistentVolumeClaim(_ context.Context, pvc *corev1.PersistentVolumeClaim) error {
	s.createdPVCs = append(s.createdPVCs, pvc)
	return nil
}

func (s *stubCluster) DeletePersistentVolume(_ context.Context, name string) error {
	s.deletedPVs = append(s.deletedPVs, name)
	return nil
}

func (s *stubCluster) DeletePersistentVolumeClaim(_ context.Context, namespace, name string) error {
	s.deletedPVCs = append(s.deletedPVCs, namespace+"/"+name)
	return nil
}

func (s *stubCluster) ScaleWorkload(_ context.Context, kind models.OwnerKind, namespace, name string, replicas int32) (int32, error) {
	key := fmt.Sprintf("%s/%s/%s", kind, namespace, name)
	s.scaleCalls = append(s.scaleCalls, fmt.Sprintf("%s=%d", key, replicas))
	previous, ok := s.replicas[key]
	if !ok {
		previous = 3
	}
	s.replicas[key] = replicas
	return previous, nil
}

// scriptedConfirmer answers prompts in order, defaulting to yes
type scriptedConfirmer struct {
	answers []bool
	asked   int
}

func (c *scriptedConfirmer) Confirm(string) bool {
	c.asked++
	if c.asked <= len(c.answers) {
		return c.answers[c.asked-1]
	}
	return true
}

func inTreePV(name, volumeID, claimNS, claimName string) *corev1.PersistentVolume {
	pv := &corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{
			Name:            name,
			UID:             types.UID(name + "-uid"),
			ResourceVersion: "100",
		},
		Spec: corev1.PersistentVolumeSpec{
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				AWSElasticBlockStore: &corev1.AWSElasticBlockStoreVolumeSource{
					VolumeID: "aws://us-east-1a/" + volumeID,
				},
			},
		},
	}
	if claimName != "" {
		pv.Spec.ClaimRef = &corev1.ObjectReference{
			Namespace:       claimNS,
			Name:            claimName,
			UID:             types.UID(claimName + "-uid"),
			ResourceVersion: "101",
		}
	}
	return pv
}

func newTestRunner(ebs *stubEBS, cluster *stubCluster, confirm Confirmer) *Runner {
	runner := NewRunner(ebs, cluster, confirm, &bytes.Buffer{})
	runner.PollInterval = time.Millisecond
	return runner
}

func TestSwapVolumeHappyPath(t *testing.T) {
	cluster := newStubCluster()
	cluster.pvs["pv-a"] = inTreePV("pv-a", "vol-old", "default", "data-a")
	cluster.pvcs["default/data-a"] = &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{
			Name:            "data-a",
			Namespace:       "default",
			UID:             types.UID("data-a-uid"),
			ResourceVersion: "101",
		},
		Spec: corev1.PersistentVolumeClaimSpec{VolumeName: "pv-a"},
	}

	ebs := &stubEBS{pollsUntilComplete: 2}
	runner := newTestRunner(ebs, cluster, &scriptedConfirmer{})

	rec := models.VolumeRecord{
		PVName:           "pv-a",
		VolumeID:         "vol-old",
		AvailabilityZone: "us-east-1a",
		ClaimRef:         "default/data-a",
		Driver:           models.SourceDriverInTree,
	}

	swap, err := runner.SwapVolume(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, "pv-a", swap.PVName)
	assert.Equal(t, "vol-old", swap.SourceVolumeID)
	assert.Equal(t, "snap-1", swap.SnapshotID)
	assert.Equal(t, "snap-enc-1", swap.EncryptedSnapshotID)
	assert.Equal(t, "vol-new-1", swap.NewVolumeID)

	// PVC deleted before the PV, both recreated
	assert.Equal(t, []string{"default/data-a"}, cluster.deletedPVCs)
	assert.Equal(t, []string{"pv-a"}, cluster.deletedPVs)
	require.Len(t, cluster.createdPVs, 1)
	require.Len(t, cluster.createdPVCs, 1)

	created := cluster.createdPVs[0]
	assert.Equal(t, "aws://us-east-1a/vol-new-1", created.Spec.AWSElasticBlockStore.VolumeID)
	assert.Empty(t, created.UID)

	createdPVC := cluster.createdPVCs[0]
	assert.Equal(t, "pv-a", createdPVC.Spec.VolumeName)
	assert.Empty(t, createdPVC.UID)
}

func TestSwapVolumeCSIRebind(t *testing.T) {
	cluster := newStubCluster()
	cluster.pvs["pv-csi"] = &corev1.PersistentVolume{
		ObjectMeta: metav1.ObjectMeta{Name: "pv-csi"},
		Spec: corev1.PersistentVolumeSpec{
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				CSI: &corev1.CSIPersistentVolumeSource{
					Driver:       "ebs.csi.aws.com",
					VolumeHandle: "vol-old",
				},
			},
		},
	}

	runner := newTestRunner(&stubEBS{}, cluster, &scriptedConfirmer{})

	rec := models.VolumeRecord{
		PVName:           "pv-csi",
		VolumeID:         "vol-old",
		AvailabilityZone: "us-east-1a",
		Driver:           models.SourceDriverCSI,
	}

	_, err := runner.SwapVolume(context.Background(), rec)
	require.NoError(t, err)

	require.Len(t, cluster.createdPVs, 1)
	assert.Equal(t, "vol-new-1", cluster.createdPVs[0].Spec.CSI.VolumeHandle)
	assert.Empty(t, cluster.deletedPVCs)
	assert.Empty(t, cluster.createdPVCs)
}

func TestSwapVolumeAbortBeforeSnapshot(t *testing.T) {
	runner := newTestRunner(&stubEBS{}, newStubCluster(), &scriptedConfirmer{answers: []bool{false}})

	_, err := runner.SwapVolume(context.Background(), models.VolumeRecord{
		PVName:   "pv-a",
		VolumeID: "vol-old",
	})
	require.ErrorIs(t, err, ErrAborted)
}

func TestSwapVolumeAbortAfterSnapshotNamesLeftovers(t *testing.T) {
	ebs := &stubEBS{}
	runner := newTestRunner(ebs, newStubCluster(), &scriptedConfirmer{answers: []bool{true, false}})

	_, err := runner.SwapVolume(context.Background(), models.VolumeRecord{
		PVName:   "pv-a",
		VolumeID: "vol-old",
	})
	require.ErrorIs(t, err, ErrAborted)
	assert.Contains(t, err.Error(), "snap-1")
	assert.Equal(t, 1, ebs.snapshots)
	assert.Equal(t, 0, ebs.copies)
}

func TestRunScalesDownAndRestores(t *testing.T) {
	cluster := newStubCluster()
	cluster.pvs["pv-web"] = inTreePV("pv-web", "vol-web", "", "")
	cluster.replicas["Deployment/default/web"] = 3

	runner := newTestRunner(&stubEBS{}, cluster, &scriptedConfirmer{})

	plan := &models.MigrationPlan{
		Owners: []models.WorkloadOwner{
			{
				Kind:      models.OwnerKindDeployment,
				Namespace: "default",
				Name:      "web",
				Pods: []models.AttachedPod{
					{PodName: "web-abc", Namespace: "default", PVCName: "data-web", PVName: "pv-web"},
				},
			},
		},
	}
	unencrypted := []models.VolumeRecord{
		{PVName: "pv-web", VolumeID: "vol-web", AvailabilityZone: "us-east-1a", Driver: models.SourceDriverInTree},
	}

	swaps, err := runner.Run(context.Background(), plan, unencrypted)
	require.NoError(t, err)
	require.Len(t, swaps, 1)

	assert.Equal(t, []string{
		"Deployment/default/web=0",
		"Deployment/default/web=3",
	}, cluster.scaleCalls)
}

func TestRunSkipsDeclinedWorkload(t *testing.T) {
	cluster := newStubCluster()
	cluster.pvs["pv-detached"] = inTreePV("pv-detached", "vol-d", "", "")

	// Decline the scale-down prompt, accept everything after it. The
	// detached volume must still be swapped.
	runner := newTestRunner(&stubEBS{}, cluster, &scriptedConfirmer{answers: []bool{false}})

	plan := &models.MigrationPlan{
		Owners: []models.WorkloadOwner{
			{
				Kind:      models.OwnerKindDeployment,
				Namespace: "default",
				Name:      "web",
				Pods: []models.AttachedPod{
					{PodName: "web-abc", Namespace: "default", PVCName: "data-web", PVName: "pv-web"},
				},
			},
		},
		DetachedPVs: []string{"pv-detached"},
	}
	unencrypted := []models.VolumeRecord{
		{PVName: "pv-web", VolumeID: "vol-web", AvailabilityZone: "us-east-1a", Driver: models.SourceDriverInTree},
		{PVName: "pv-detached", VolumeID: "vol-d", AvailabilityZone: "us-east-1a", Driver: models.SourceDriverInTree},
	}

	swaps, err := runner.Run(context.Background(), plan, unencrypted)
	require.NoError(t, err)

	require.Len(t, swaps, 1)
	assert.Equal(t, "pv-detached", swaps[0].PVName)
	assert.Empty(t, cluster.scaleCalls)
}
