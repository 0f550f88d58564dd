package helpers

import (
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/eventbridge"
	"github.com/aws/aws-sdk-go/service/lambda"
)

func awsError(err error) awserr.Error {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr
	}
	return nil
}

func errorCode(err error) string {
	if aerr := awsError(err); aerr != nil {
		return aerr.Code()
	}
	return ""
}

// IsNotFound reports whether err is an AWS "resource not found" error.
// Lambda and EventBridge share the code.
func IsNotFound(err error) bool {
	return errorCode(err) == eventbridge.ErrCodeResourceNotFoundException
}

// IsAlreadyExists reports whether err says the resource is already there.
// Lambda uses ResourceConflictException both for a duplicate statement id and
// for an update in progress, so only the duplicate message counts.
func IsAlreadyExists(err error) bool {
	aerr := awsError(err)
	if aerr == nil {
		return false
	}
	switch aerr.Code() {
	case eventbridge.ErrCodeResourceAlreadyExistsException:
		return true
	case lambda.ErrCodeResourceConflictException:
		return strings.Contains(aerr.Message(), "already exists")
	}
	return false
}
