package aws

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func apiError(code string) error {
	return fmt.Errorf("operation error EC2: DescribeVolumes: %w",
		&smithy.GenericAPIError{Code: code, Message: "test"})
}

func TestIsVolumeNotFound(t *testing.T) {
	assert.True(t, IsVolumeNotFound(apiError("InvalidVolume.NotFound")))
	assert.False(t, IsVolumeNotFound(apiError("AuthFailure")))
	assert.False(t, IsVolumeNotFound(errors.New("connection reset")))
	assert.False(t, IsVolumeNotFound(nil))
}

func TestIsAuthError(t *testing.T) {
	for _, code := range []string{
		"AuthFailure",
		"UnauthorizedOperation",
		"ExpiredToken",
		"RequestExpired",
		"InvalidClientTokenId",
		"SignatureDoesNotMatch",
	} {
		assert.True(t, IsAuthError(apiError(code)), code)
	}

	assert.False(t, IsAuthError(apiError("InvalidVolume.NotFound")))
	assert.False(t, IsAuthError(errors.New("connection reset")))
	assert.False(t, IsAuthError(nil))
}
