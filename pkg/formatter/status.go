package formatter

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"

	"github.com/k8sops/pvcrypt/internal/models"
)

// maxClaimWidth limits the CLAIM column so long namespace/name pairs
// don't blow up the table
const maxClaimWidth = 40

var (
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
)

// PrintClassification renders the full status report: one table per
// partition plus a summary. Purely presentational; it never touches a
// client.
func PrintClassification(w io.Writer, result *models.ClassificationResult, region string, scanStartTime time.Time, scanDuration time.Duration) {
	printTimestamp(w, scanStartTime, scanDuration)

	fmt.Fprintf(w, "\n## Unencrypted EBS volumes (%s)\n", region)
	PrintUnencryptedTable(w, result.Unencrypted)

	fmt.Fprintf(w, "\n## Encrypted EBS volumes (%s)\n", region)
	PrintEncryptedTable(w, result.Encrypted)

	if len(result.Unresolvable) > 0 {
		fmt.Fprintln(w, "\n## Unresolvable persistent volumes")
		PrintUnresolvableTable(w, result.Unresolvable)
	}

	PrintClassificationSummary(w, result)
}

// PrintUnencryptedTable prints the volumes that need the encryption swap
func PrintUnencryptedTable(w io.Writer, records []models.VolumeRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No unencrypted EBS volumes found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PV NAME\tVOLUME ID\tTYPE\tSIZE\tAZ\tCLAIM\tDRIVER\tAGE\tMONTHLY COST\tPRICING")

	var totalSize int32
	var totalCost float64

	for _, rec := range records {
		cost := "N/A"
		if rec.PricingSource != "N/A" && rec.PricingSource != "" {
			cost = fmt.Sprintf("$%.2f", rec.EstimatedMonthlyCost)
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%d GB\t%s\t%s\t%s\t%s\t%s\t%s\n",
			rec.PVName,
			rec.VolumeID,
			rec.VolumeType,
			rec.SizeGB,
			rec.AvailabilityZone,
			truncate(claimOrDash(rec.ClaimRef), maxClaimWidth),
			rec.Driver,
			age(rec.CreateTime),
			cost,
			pricingMarker(rec.PricingSource),
		)

		totalSize += rec.SizeGB
		totalCost += rec.EstimatedMonthlyCost
	}

	fmt.Fprintf(tw, "Total:\t\t\t%d GB\t\t\t\t\t$%.2f\t\n", totalSize, totalCost)
	tw.Flush()
}

// PrintEncryptedTable prints the already-encrypted volumes, condensed
func PrintEncryptedTable(w io.Writer, records []models.VolumeRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No encrypted EBS volumes found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PV NAME\tVOLUME ID\tTYPE\tSIZE\tAZ\tCLAIM\tDRIVER")

	for _, rec := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d GB\t%s\t%s\t%s\n",
			rec.PVName,
			rec.VolumeID,
			rec.VolumeType,
			rec.SizeGB,
			rec.AvailabilityZone,
			truncate(claimOrDash(rec.ClaimRef), maxClaimWidth),
			rec.Driver,
		)
	}

	tw.Flush()
}

// PrintUnresolvableTable prints the PVs that could not be classified,
// with the reason per record.
func PrintUnresolvableTable(w io.Writer, records []models.UnresolvedVolume) {
	if len(records) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "PV NAME\tVOLUME ID\tCLAIM\tREASON\tDETAIL")

	for _, rec := range records {
		volumeID := rec.VolumeID
		if volumeID == "" {
			volumeID = "-"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			rec.PVName,
			volumeID,
			truncate(claimOrDash(rec.ClaimRef), maxClaimWidth),
			rec.Reason,
			rec.Detail,
		)
	}

	tw.Flush()
}

// PrintClassificationSummary prints the per-partition counts
func PrintClassificationSummary(w io.Writer, result *models.ClassificationResult) {
	fmt.Fprintln(w, "\n## Summary")
	fmt.Fprintf(w, "Persistent volumes scanned: %d\n", result.Total())
	fmt.Fprintf(w, "  Encrypted:    %s\n", green(len(result.Encrypted)))
	fmt.Fprintf(w, "  Unencrypted:  %s (%d GB)\n", red(len(result.Unencrypted)), result.UnencryptedSizeGB())
	fmt.Fprintf(w, "  Unresolvable: %s\n", yellow(len(result.Unresolvable)))
}

// age renders a volume create time like "3 months ago", or "-" when the
// API returned none.
func age(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return humanize.Time(*t)
}

func claimOrDash(claimRef string) string {
	if claimRef == "" {
		return "-"
	}
	return claimRef
}

// pricingMarker returns a short marker for the pricing source column
func pricingMarker(source string) string {
	switch source {
	case "API":
		return "API"
	case "Cache":
		return "CACHE"
	case "Default":
		return "DEFAULT"
	case "N/A", "":
		return "N/A"
	default:
		return "-"
	}
}

// truncate limits a string to the given display width, accounting for
// wide CJK runes.
func truncate(s string, width int) string {
	if StringWidth(s) <= width {
		return s
	}

	truncated := ""
	currentWidth := 0
	for _, r := range s {
		charWidth := RuneWidth(r)
		if currentWidth+charWidth > width-2 { // -2 for ".."
			break
		}
		truncated += string(r)
		currentWidth += charWidth
	}

	return truncated + ".."
}
