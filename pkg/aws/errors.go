package aws

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Error codes returned by the EC2 API when credentials are missing,
// expired, or lack the required permissions. These abort the whole pass
// instead of degrading a single record.
var authErrorCodes = map[string]bool{
	"AuthFailure":           true,
	"UnauthorizedOperation": true,
	"ExpiredToken":          true,
	"RequestExpired":        true,
	"InvalidClientTokenId":  true,
	"SignatureDoesNotMatch": true,
}

// IsVolumeNotFound reports whether err means the volume id no longer
// exists in AWS.
func IsVolumeNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "InvalidVolume.NotFound"
	}
	return false
}

// IsAuthError reports whether err is a credentials-level failure rather
// than a problem with one resource.
func IsAuthError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return authErrorCodes[apiErr.ErrorCode()]
	}
	return false
}
