package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVolumeID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "in-tree prefix",
			raw:  "aws://us-east-1a/vol-0123456789abcdef0",
			want: "vol-0123456789abcdef0",
		},
		{
			name: "bare CSI volume handle",
			raw:  "vol-0123456789abcdef0",
			want: "vol-0123456789abcdef0",
		},
		{
			name:    "no volume id",
			raw:     "aws://us-east-1a/",
			wantErr: true,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "prefix without id suffix",
			raw:     "aws://us-east-1a/vol-",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVolumeID(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
