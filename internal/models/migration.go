package models

// OwnerKind is the controller kind that manages the pods attached to a PV
type OwnerKind string

const (
	OwnerKindDeployment  OwnerKind = "Deployment"
	OwnerKindStatefulSet OwnerKind = "StatefulSet"
)

// AttachedPod links a running pod to the unencrypted PV it mounts
type AttachedPod struct {
	PodName   string
	Namespace string
	PVCName   string
	PVName    string
}

// WorkloadOwner groups the pods of one Deployment or StatefulSet that
// mount unencrypted volumes. The owner must be scaled to zero before
// its volumes can be swapped.
type WorkloadOwner struct {
	Kind      OwnerKind
	Namespace string
	Name      string
	Pods      []AttachedPod
}

// PVNames returns the distinct PV names mounted by the owner's pods
func (o *WorkloadOwner) PVNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, pod := range o.Pods {
		if !seen[pod.PVName] {
			seen[pod.PVName] = true
			names = append(names, pod.PVName)
		}
	}
	return names
}

// MigrationPlan is the result of joining running pods to unencrypted PVs
type MigrationPlan struct {
	Owners []WorkloadOwner

	// Pods whose controller kind is not a Deployment or StatefulSet.
	// They are reported but never acted on; the operator has to scale
	// them down by hand.
	UnsupportedPods []AttachedPod

	// Unencrypted PVs with no running pod attached. Their workloads
	// are already scaled down, so they can be swapped directly.
	DetachedPVs []string
}

// SnapshotProgress aggregates the completion state of a set of snapshots
type SnapshotProgress struct {
	SnapshotIDs []string
	Percent     []int
	States      []string
	AvgPercent  float64
}

// Complete reports whether every snapshot in the set reached 100%
func (p *SnapshotProgress) Complete() bool {
	if len(p.Percent) == 0 {
		return false
	}
	for i, pct := range p.Percent {
		if pct < 100 || p.States[i] != "completed" {
			return false
		}
	}
	return true
}

// VolumeSwap records the artifacts created while replacing one volume
type VolumeSwap struct {
	PVName             string
	SourceVolumeID     string
	SnapshotID         string
	EncryptedSnapshotID string
	NewVolumeID        string
}
