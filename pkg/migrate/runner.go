package migrate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	corev1 "k8s.io/api/core/v1"

	"github.com/k8sops/pvcrypt/internal/models"
	"github.com/k8sops/pvcrypt/pkg/kube"
)

// ErrAborted is returned when the operator declines a confirmation
// prompt. Snapshots created before the abort are left in place; they
// are tagged and reported so they can be cleaned up or resumed.
var ErrAborted = errors.New("aborted by operator")

// SnapshotClient is the slice of the privileged EBS client the runner
// consumes.
type SnapshotClient interface {
	CreateSnapshot(ctx context.Context, volumeID, note string) (string, error)
	EncryptSnapshotCopy(ctx context.Context, snapshotID, note string) (string, error)
	CreateVolumeFromSnapshot(ctx context.Context, snapshotID, availabilityZone string) (string, error)
	SnapshotSetProgress(ctx context.Context, snapshotIDs []string) (*models.SnapshotProgress, error)
}

// ClusterAdmin is the slice of the privileged cluster client the runner
// consumes.
type ClusterAdmin interface {
	GetPersistentVolume(ctx context.Context, name string) (*corev1.PersistentVolume, error)
	GetPersistentVolumeClaim(ctx context.Context, namespace, name string) (*corev1.PersistentVolumeClaim, error)
	CreatePersistentVolume(ctx context.Context, pv *corev1.PersistentVolume) error
	CreatePersistentVolumeClaim(ctx context.Context, pvc *corev1.PersistentVolumeClaim) error
	DeletePersistentVolume(ctx context.Context, name string) error
	DeletePersistentVolumeClaim(ctx context.Context, namespace, name string) error
	ScaleWorkload(ctx context.Context, kind models.OwnerKind, namespace, name string, replicas int32) (int32, error)
}

// Runner executes the volume swap sequence, one confirmation per
// mutating step.
type Runner struct {
	ebs     SnapshotClient
	kube    ClusterAdmin
	confirm Confirmer

	// Out receives progress output
	Out io.Writer

	// PollInterval is how often snapshot progress is checked
	PollInterval time.Duration
}

// NewRunner creates a runner over the two privileged clients
func NewRunner(ebsClient SnapshotClient, kubeClient ClusterAdmin, confirm Confirmer, out io.Writer) *Runner {
	return &Runner{
		ebs:          ebsClient,
		kube:         kubeClient,
		confirm:      confirm,
		Out:          out,
		PollInterval: 15 * time.Second,
	}
}

// Run walks the migration plan: scale each workload down, swap its
// volumes, scale it back up, then swap the detached volumes. It returns
// the swaps completed so far even when a later step fails or is
// aborted.
func (r *Runner) Run(ctx context.Context, plan *models.MigrationPlan, unencrypted []models.VolumeRecord) ([]models.VolumeSwap, error) {
	records := make(map[string]models.VolumeRecord, len(unencrypted))
	for _, rec := range unencrypted {
		records[rec.PVName] = rec
	}

	var swaps []models.VolumeSwap

	for _, owner := range plan.Owners {
		if !r.confirm.Confirm(fmt.Sprintf("Scale %s %s/%s to 0 replicas", owner.Kind, owner.Namespace, owner.Name)) {
			fmt.Fprintf(r.Out, "Skipping %s %s/%s\n", owner.Kind, owner.Namespace, owner.Name)
			continue
		}

		previous, err := r.kube.ScaleWorkload(ctx, owner.Kind, owner.Namespace, owner.Name, 0)
		if err != nil {
			return swaps, err
		}

		for _, pvName := range owner.PVNames() {
			rec, ok := records[pvName]
			if !ok {
				continue
			}

			swap, err := r.SwapVolume(ctx, rec)
			if err != nil {
				return swaps, err
			}
			swaps = append(swaps, *swap)
		}

		if _, err := r.kube.ScaleWorkload(ctx, owner.Kind, owner.Namespace, owner.Name, previous); err != nil {
			return swaps, err
		}
		fmt.Fprintf(r.Out, "Restored %s %s/%s to %d replicas\n", owner.Kind, owner.Namespace, owner.Name, previous)
	}

	for _, pvName := range plan.DetachedPVs {
		rec, ok := records[pvName]
		if !ok {
			continue
		}

		swap, err := r.SwapVolume(ctx, rec)
		if err != nil {
			return swaps, err
		}
		swaps = append(swaps, *swap)
	}

	return swaps, nil
}

// SwapVolume replaces one unencrypted volume with an encrypted copy and
// rebinds the PV to it.
func (r *Runner) SwapVolume(ctx context.Context, rec models.VolumeRecord) (*models.VolumeSwap, error) {
	swap := &models.VolumeSwap{
		PVName:         rec.PVName,
		SourceVolumeID: rec.VolumeID,
	}
	note := fmt.Sprintf("pv=%s", rec.PVName)

	if !r.confirm.Confirm(fmt.Sprintf("Snapshot volume %s (pv %s)", rec.VolumeID, rec.PVName)) {
		return nil, ErrAborted
	}
	snapshotID, err := r.ebs.CreateSnapshot(ctx, rec.VolumeID, note)
	if err != nil {
		return nil, err
	}
	swap.SnapshotID = snapshotID
	if err := r.waitForSnapshot(ctx, snapshotID); err != nil {
		return nil, err
	}

	if !r.confirm.Confirm(fmt.Sprintf("Copy snapshot %s with encryption", snapshotID)) {
		return nil, fmt.Errorf("snapshot %s left in place: %w", snapshotID, ErrAborted)
	}
	encryptedID, err := r.ebs.EncryptSnapshotCopy(ctx, snapshotID, note)
	if err != nil {
		return nil, err
	}
	swap.EncryptedSnapshotID = encryptedID
	if err := r.waitForSnapshot(ctx, encryptedID); err != nil {
		return nil, err
	}

	if !r.confirm.Confirm(fmt.Sprintf("Create encrypted volume from %s in %s", encryptedID, rec.AvailabilityZone)) {
		return nil, fmt.Errorf("snapshots %s, %s left in place: %w", snapshotID, encryptedID, ErrAborted)
	}
	newVolumeID, err := r.ebs.CreateVolumeFromSnapshot(ctx, encryptedID, rec.AvailabilityZone)
	if err != nil {
		return nil, err
	}
	swap.NewVolumeID = newVolumeID

	if !r.confirm.Confirm(fmt.Sprintf("Rebind pv %s to volume %s", rec.PVName, newVolumeID)) {
		return nil, fmt.Errorf("encrypted volume %s left unbound: %w", newVolumeID, ErrAborted)
	}
	if err := r.rebind(ctx, rec, newVolumeID); err != nil {
		return nil, err
	}

	fmt.Fprintf(r.Out, "Swapped pv %s: %s -> %s\n", rec.PVName, rec.VolumeID, newVolumeID)
	return swap, nil
}

// waitForSnapshot polls snapshot progress until completion
func (r *Runner) waitForSnapshot(ctx context.Context, snapshotID string) error {
	s := spinner.New(spinner.CharSets[9], 200*time.Millisecond, spinner.WithWriter(r.Out))
	s.Suffix = fmt.Sprintf(" Waiting for snapshot %s ...", snapshotID)
	s.Start()
	defer s.Stop()

	for {
		progress, err := r.ebs.SnapshotSetProgress(ctx, []string{snapshotID})
		if err != nil {
			return err
		}
		if progress.Complete() {
			return nil
		}
		for _, state := range progress.States {
			if state == "error" {
				return fmt.Errorf("snapshot %s failed", snapshotID)
			}
		}

		s.Suffix = fmt.Sprintf(" Waiting for snapshot %s: %.0f%%", snapshotID, progress.AvgPercent)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.PollInterval):
		}
	}
}

// rebind recreates the PV (and its PVC, when bound) pointing at the new
// encrypted volume id. The objects keep their names so workloads rebind
// transparently when scaled back up.
func (r *Runner) rebind(ctx context.Context, rec models.VolumeRecord, newVolumeID string) error {
	pv, err := r.kube.GetPersistentVolume(ctx, rec.PVName)
	if err != nil {
		return err
	}

	var pvc *corev1.PersistentVolumeClaim
	if ref := pv.Spec.ClaimRef; ref != nil {
		pvc, err = r.kube.GetPersistentVolumeClaim(ctx, ref.Namespace, ref.Name)
		if err != nil {
			return err
		}
	}

	newPV := pv.DeepCopy()
	kube.StripPersistentVolume(newPV)
	switch {
	case newPV.Spec.AWSElasticBlockStore != nil:
		newPV.Spec.AWSElasticBlockStore.VolumeID = fmt.Sprintf("aws://%s/%s", rec.AvailabilityZone, newVolumeID)
	case newPV.Spec.CSI != nil:
		newPV.Spec.CSI.VolumeHandle = newVolumeID
	default:
		return fmt.Errorf("pv %s has no EBS volume source", rec.PVName)
	}

	if pvc != nil {
		if err := r.kube.DeletePersistentVolumeClaim(ctx, pvc.Namespace, pvc.Name); err != nil {
			return err
		}
	}
	if err := r.kube.DeletePersistentVolume(ctx, pv.Name); err != nil {
		return err
	}

	if err := r.kube.CreatePersistentVolume(ctx, newPV); err != nil {
		return err
	}

	if pvc != nil {
		newPVC := pvc.DeepCopy()
		kube.StripPersistentVolumeClaim(newPVC)
		newPVC.Spec.VolumeName = newPV.Name
		if err := r.kube.CreatePersistentVolumeClaim(ctx, newPVC); err != nil {
			return err
		}
	}

	return nil
}
