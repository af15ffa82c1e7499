package kube

import (
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"

	"github.com/k8sops/pvcrypt/internal/models"
	"github.com/k8sops/pvcrypt/pkg/utils"
)

// EBSCSIDriver is the AWS EBS CSI driver name
const EBSCSIDriver = "ebs.csi.aws.com"

// ErrNotEBS marks a PersistentVolume whose source is not an EBS volume
var ErrNotEBS = errors.New("persistent volume is not backed by EBS")

// EBSVolumeID resolves a PersistentVolume to its backing EBS volume id.
// Both the legacy in-tree source and the EBS CSI driver are recognized;
// every other volume source returns ErrNotEBS.
func EBSVolumeID(pv *corev1.PersistentVolume) (models.SourceDriver, string, error) {
	if ebs := pv.Spec.AWSElasticBlockStore; ebs != nil {
		id, err := utils.ParseVolumeID(ebs.VolumeID)
		if err != nil {
			return models.SourceDriverInTree, "", fmt.Errorf("pv %s: %w", pv.Name, err)
		}
		return models.SourceDriverInTree, id, nil
	}

	if csi := pv.Spec.CSI; csi != nil && csi.Driver == EBSCSIDriver {
		id, err := utils.ParseVolumeID(csi.VolumeHandle)
		if err != nil {
			return models.SourceDriverCSI, "", fmt.Errorf("pv %s: %w", pv.Name, err)
		}
		return models.SourceDriverCSI, id, nil
	}

	return "", "", ErrNotEBS
}

// SourceName names a PV's volume source for reporting. Only the
// sources seen in practice on EKS clusters are spelled out.
func SourceName(pv *corev1.PersistentVolume) string {
	spec := pv.Spec
	switch {
	case spec.AWSElasticBlockStore != nil:
		return "awsElasticBlockStore"
	case spec.CSI != nil:
		return "csi/" + spec.CSI.Driver
	case spec.HostPath != nil:
		return "hostPath"
	case spec.NFS != nil:
		return "nfs"
	case spec.Local != nil:
		return "local"
	default:
		return "unknown"
	}
}

// ClaimRef renders a PV's claim reference as "namespace/name", or an
// empty string for unbound volumes.
func ClaimRef(pv *corev1.PersistentVolume) string {
	ref := pv.Spec.ClaimRef
	if ref == nil {
		return ""
	}
	return ref.Namespace + "/" + ref.Name
}
