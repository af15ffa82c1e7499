package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/k8sops/pvcrypt/internal/models"
)

// AdminClient extends the read-only client with the mutating operations
// the volume swap needs: scaling workloads and recreating PV/PVC pairs.
// Keeping it a separate type means read-only code paths can never reach
// a write operation.
type AdminClient struct {
	*Client
}

// NewAdminClient creates a privileged client from a kubeconfig path
func NewAdminClient(kubeconfig string) (*AdminClient, error) {
	client, err := NewClient(kubeconfig)
	if err != nil {
		return nil, err
	}
	return &AdminClient{Client: client}, nil
}

// NewAdminClientWithClientset wraps an existing clientset for tests
func NewAdminClientWithClientset(clientset kubernetes.Interface) *AdminClient {
	return &AdminClient{Client: NewClientWithClientset(clientset)}
}

// ResolveWorkloadOwner walks a pod's owner references up to the
// controller that manages it. Deployments are reached through the
// intermediate ReplicaSet; StatefulSets own their pods directly. Any
// other kind is returned as-is so the caller can report it as
// unsupported.
func (c *AdminClient) ResolveWorkloadOwner(ctx context.Context, pod *corev1.Pod) (kind, name string, err error) {
	if len(pod.OwnerReferences) == 0 {
		return "", "", fmt.Errorf("pod %s/%s has no owner", pod.Namespace, pod.Name)
	}

	owner := pod.OwnerReferences[0]
	if owner.Kind != "ReplicaSet" {
		return owner.Kind, owner.Name, nil
	}

	rs, err := c.clientset.AppsV1().ReplicaSets(pod.Namespace).Get(ctx, owner.Name, metav1.GetOptions{})
	if err != nil {
		return "", "", fmt.Errorf("failed to get replicaset %s/%s: %w", pod.Namespace, owner.Name, err)
	}
	if len(rs.OwnerReferences) == 0 {
		return "ReplicaSet", rs.Name, nil
	}

	return rs.OwnerReferences[0].Kind, rs.OwnerReferences[0].Name, nil
}

// ScaleWorkload scales a Deployment or StatefulSet to the given replica
// count through the scale subresource and returns the previous count,
// so the caller can restore it after the swap.
func (c *AdminClient) ScaleWorkload(ctx context.Context, kind models.OwnerKind, namespace, name string, replicas int32) (int32, error) {
	switch kind {
	case models.OwnerKindDeployment:
		scale, err := c.clientset.AppsV1().Deployments(namespace).GetScale(ctx, name, metav1.GetOptions{})
		if err != nil {
			return 0, fmt.Errorf("failed to get scale for deployment %s/%s: %w", namespace, name, err)
		}
		previous := scale.Spec.Replicas
		scale.Spec.Replicas = replicas
		if _, err := c.clientset.AppsV1().Deployments(namespace).UpdateScale(ctx, name, scale, metav1.UpdateOptions{}); err != nil {
			return 0, fmt.Errorf("failed to scale deployment %s/%s: %w", namespace, name, err)
		}
		return previous, nil

	case models.OwnerKindStatefulSet:
		scale, err := c.clientset.AppsV1().StatefulSets(namespace).GetScale(ctx, name, metav1.GetOptions{})
		if err != nil {
			return 0, fmt.Errorf("failed to get scale for statefulset %s/%s: %w", namespace, name, err)
		}
		previous := scale.Spec.Replicas
		scale.Spec.Replicas = replicas
		if _, err := c.clientset.AppsV1().StatefulSets(namespace).UpdateScale(ctx, name, scale, metav1.UpdateOptions{}); err != nil {
			return 0, fmt.Errorf("failed to scale statefulset %s/%s: %w", namespace, name, err)
		}
		return previous, nil
	}

	return 0, fmt.Errorf("unsupported workload kind %q", kind)
}

// CreatePersistentVolume recreates a PV, typically after StripClusterFields
func (c *AdminClient) CreatePersistentVolume(ctx context.Context, pv *corev1.PersistentVolume) error {
	if _, err := c.clientset.CoreV1().PersistentVolumes().Create(ctx, pv, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create pv %s: %w", pv.Name, err)
	}
	return nil
}

// CreatePersistentVolumeClaim recreates a PVC
func (c *AdminClient) CreatePersistentVolumeClaim(ctx context.Context, pvc *corev1.PersistentVolumeClaim) error {
	if _, err := c.clientset.CoreV1().PersistentVolumeClaims(pvc.Namespace).Create(ctx, pvc, metav1.CreateOptions{}); err != nil {
		return fmt.Errorf("failed to create pvc %s/%s: %w", pvc.Namespace, pvc.Name, err)
	}
	return nil
}

// DeletePersistentVolume deletes a PV by name
func (c *AdminClient) DeletePersistentVolume(ctx context.Context, name string) error {
	if err := c.clientset.CoreV1().PersistentVolumes().Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return fmt.Errorf("failed to delete pv %s: %w", name, err)
	}
	return nil
}

// DeletePersistentVolumeClaim deletes a PVC by namespace and name
func (c *AdminClient) DeletePersistentVolumeClaim(ctx context.Context, namespace, name string) error {
	if err := c.clientset.CoreV1().PersistentVolumeClaims(namespace).Delete(ctx, name, metav1.DeleteOptions{}); err != nil {
		return fmt.Errorf("failed to delete pvc %s/%s: %w", namespace, name, err)
	}
	return nil
}

// StripPersistentVolume clears the server-populated fields of a PV so the
// remaining manifest can be resubmitted to the API server.
func StripPersistentVolume(pv *corev1.PersistentVolume) {
	stripObjectMeta(&pv.ObjectMeta)
	pv.Status = corev1.PersistentVolumeStatus{}
	if pv.Spec.ClaimRef != nil {
		pv.Spec.ClaimRef.UID = ""
		pv.Spec.ClaimRef.ResourceVersion = ""
	}
}

// StripPersistentVolumeClaim clears the server-populated fields of a PVC
func StripPersistentVolumeClaim(pvc *corev1.PersistentVolumeClaim) {
	stripObjectMeta(&pvc.ObjectMeta)
	pvc.Status = corev1.PersistentVolumeClaimStatus{}
}

func stripObjectMeta(meta *metav1.ObjectMeta) {
	meta.Annotations = nil
	meta.CreationTimestamp = metav1.Time{}
	meta.ResourceVersion = ""
	meta.UID = ""
	meta.ManagedFields = nil
	meta.SelfLink = ""
}
