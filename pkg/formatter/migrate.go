package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/k8sops/pvcrypt/internal/models"
)

// PrintMigrationPlan prints the workloads that will be scaled down and
// the volumes that will be swapped.
func PrintMigrationPlan(w io.Writer, plan *models.MigrationPlan) {
	if len(plan.Owners) > 0 {
		fmt.Fprintln(w, "\n## Workloads to scale down")

		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "KIND\tNAMESPACE\tNAME\tPODS\tPV NAMES")
		for _, owner := range plan.Owners {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
				owner.Kind,
				owner.Namespace,
				owner.Name,
				len(owner.Pods),
				strings.Join(owner.PVNames(), ","),
			)
		}
		tw.Flush()
	}

	if len(plan.DetachedPVs) > 0 {
		fmt.Fprintf(w, "\nVolumes with no running pod attached (swapped directly): %s\n",
			strings.Join(plan.DetachedPVs, ", "))
	}

	if len(plan.UnsupportedPods) > 0 {
		fmt.Fprintln(w, "\n## Pods with unsupported owners (scale these down by hand)")

		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "POD\tNAMESPACE\tPVC\tPV")
		for _, pod := range plan.UnsupportedPods {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", pod.PodName, pod.Namespace, pod.PVCName, pod.PVName)
		}
		tw.Flush()
	}
}

// PrintSwapsTable prints the volume swaps completed in a run
func PrintSwapsTable(w io.Writer, swaps []models.VolumeSwap) {
	if len(swaps) == 0 {
		fmt.Fprintln(w, "No volumes were swapped.")
		return
	}

	fmt.Fprintln(w, "\n## Completed volume swaps")

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PV NAME\tOLD VOLUME\tSNAPSHOT\tENCRYPTED SNAPSHOT\tNEW VOLUME")
	for _, swap := range swaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			swap.PVName,
			swap.SourceVolumeID,
			swap.SnapshotID,
			swap.EncryptedSnapshotID,
			swap.NewVolumeID,
		)
	}
	tw.Flush()
}
