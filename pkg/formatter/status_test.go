package formatter

import (
	"bytes"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/k8sops/pvcrypt/internal/models"
)

func init() {
	color.NoColor = true
}

func sampleResult() *models.ClassificationResult {
	created := time.Now().Add(-90 * 24 * time.Hour)
	return &models.ClassificationResult{
		Encrypted: []models.VolumeRecord{
			{
				PVName:           "pv-enc",
				VolumeID:         "vol-enc",
				VolumeType:       "gp3",
				SizeGB:           50,
				AvailabilityZone: "us-east-1a",
				ClaimRef:         "default/data-enc",
				Driver:           models.SourceDriverCSI,
			},
		},
		Unencrypted: []models.VolumeRecord{
			{
				PVName:               "pv-plain",
				VolumeID:             "vol-plain",
				VolumeType:           "gp2",
				SizeGB:               100,
				AvailabilityZone:     "us-east-1b",
				ClaimRef:             "default/data-plain",
				Driver:               models.SourceDriverInTree,
				CreateTime:           &created,
				EstimatedMonthlyCost: 10.0,
				PricingSource:        "Default",
			},
		},
		Unresolvable: []models.UnresolvedVolume{
			{
				PVName: "pv-local",
				Reason: models.ReasonNonEBSBackend,
				Detail: "hostPath",
			},
		},
	}
}

func TestPrintClassification(t *testing.T) {
	var buf bytes.Buffer
	PrintClassification(&buf, sampleResult(), "us-east-1", time.Now(), 2*time.Second)
	out := buf.String()

	assert.Contains(t, out, "## Unencrypted EBS volumes (us-east-1)")
	assert.Contains(t, out, "pv-plain")
	assert.Contains(t, out, "vol-plain")
	assert.Contains(t, out, "$10.00")
	assert.Contains(t, out, "DEFAULT")

	assert.Contains(t, out, "## Encrypted EBS volumes (us-east-1)")
	assert.Contains(t, out, "pv-enc")

	assert.Contains(t, out, "## Unresolvable persistent volumes")
	assert.Contains(t, out, "pv-local")
	assert.Contains(t, out, "non-EBS backend")

	assert.Contains(t, out, "Persistent volumes scanned: 3")
}

func TestPrintUnencryptedTableTotals(t *testing.T) {
	var buf bytes.Buffer
	PrintUnencryptedTable(&buf, []models.VolumeRecord{
		{PVName: "pv-1", VolumeID: "vol-1", VolumeType: "gp2", SizeGB: 30, EstimatedMonthlyCost: 3.0, PricingSource: "API"},
		{PVName: "pv-2", VolumeID: "vol-2", VolumeType: "gp2", SizeGB: 70, EstimatedMonthlyCost: 7.0, PricingSource: "API"},
	})
	out := buf.String()

	assert.Contains(t, out, "100 GB")
	assert.Contains(t, out, "$10.00")
}

func TestPrintUnencryptedTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	PrintUnencryptedTable(&buf, nil)
	assert.Contains(t, buf.String(), "No unencrypted EBS volumes found.")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a-very-l..", truncate("a-very-long-claim-name", 10))
}
