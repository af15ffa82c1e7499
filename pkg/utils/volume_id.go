package utils

import (
	"fmt"
	"strings"
)

// ParseVolumeID extracts the bare EBS volume id from the value stored in a
// PersistentVolume source. In-tree PVs record the id with an
// "aws://<availability-zone>/" prefix (for example
// "aws://us-east-1a/vol-0abc123"), while CSI PVs store the bare id.
func ParseVolumeID(raw string) (string, error) {
	idx := strings.Index(raw, "vol-")
	if idx < 0 {
		return "", fmt.Errorf("no EBS volume id in %q", raw)
	}

	id := raw[idx:]
	if id == "vol-" {
		return "", fmt.Errorf("empty EBS volume id in %q", raw)
	}

	return id, nil
}
