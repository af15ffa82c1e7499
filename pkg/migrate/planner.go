// Package migrate implements the privileged volume-replacement flow:
// snapshot each unencrypted volume, copy the snapshot with encryption,
// create a new volume from the copy, and rebind the PV/PVC pair to it.
// Every mutating step is gated on operator confirmation.
package migrate

import (
	"context"
	"fmt"
	"sort"

	corev1 "k8s.io/api/core/v1"

	"github.com/k8sops/pvcrypt/internal/models"
)

// ClusterReader is the slice of the cluster client the planner consumes
type ClusterReader interface {
	ListRunningPods(ctx context.Context) ([]corev1.Pod, error)
	ResolveWorkloadOwner(ctx context.Context, pod *corev1.Pod) (kind, name string, err error)
}

// Planner joins running pods to unencrypted PVs through their claim
// refs and groups them by the workload that has to be scaled down.
type Planner struct {
	kube ClusterReader
}

// NewPlanner creates a planner over a privileged cluster client
func NewPlanner(kubeClient ClusterReader) *Planner {
	return &Planner{kube: kubeClient}
}

// Plan builds the migration plan for a set of unencrypted volumes
func (p *Planner) Plan(ctx context.Context, unencrypted []models.VolumeRecord) (*models.MigrationPlan, error) {
	pods, err := p.kube.ListRunningPods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to plan migration: %w", err)
	}

	// Claim ref ("namespace/name") to PV name for the volumes in scope
	claimToPV := make(map[string]string, len(unencrypted))
	for _, rec := range unencrypted {
		if rec.ClaimRef != "" {
			claimToPV[rec.ClaimRef] = rec.PVName
		}
	}

	plan := &models.MigrationPlan{}
	owners := make(map[string]*models.WorkloadOwner)
	attachedPVs := make(map[string]bool)

	for i := range pods {
		pod := &pods[i]

		for _, volume := range pod.Spec.Volumes {
			if volume.PersistentVolumeClaim == nil {
				continue
			}

			claimRef := pod.Namespace + "/" + volume.PersistentVolumeClaim.ClaimName
			pvName, ok := claimToPV[claimRef]
			if !ok {
				continue
			}
			attachedPVs[pvName] = true

			attached := models.AttachedPod{
				PodName:   pod.Name,
				Namespace: pod.Namespace,
				PVCName:   volume.PersistentVolumeClaim.ClaimName,
				PVName:    pvName,
			}

			kind, name, err := p.kube.ResolveWorkloadOwner(ctx, pod)
			if err != nil || !supportedOwnerKind(kind) {
				// No unified way to scale anything else down; report it
				// and let the operator deal with it by hand.
				plan.UnsupportedPods = append(plan.UnsupportedPods, attached)
				continue
			}

			key := kind + "|" + pod.Namespace + "|" + name
			owner, ok := owners[key]
			if !ok {
				owner = &models.WorkloadOwner{
					Kind:      models.OwnerKind(kind),
					Namespace: pod.Namespace,
					Name:      name,
				}
				owners[key] = owner
			}
			owner.Pods = append(owner.Pods, attached)
		}
	}

	for _, rec := range unencrypted {
		if !attachedPVs[rec.PVName] {
			// Already scaled down (or never bound); can be swapped directly
			plan.DetachedPVs = append(plan.DetachedPVs, rec.PVName)
		}
	}
	sort.Strings(plan.DetachedPVs)

	keys := make([]string, 0, len(owners))
	for key := range owners {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		plan.Owners = append(plan.Owners, *owners[key])
	}

	return plan, nil
}

func supportedOwnerKind(kind string) bool {
	return kind == string(models.OwnerKindDeployment) || kind == string(models.OwnerKindStatefulSet)
}
