package shared

import (
	"errors"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"github.com/alsamasu/airgapped-rpm-repo-lite/internal/types"
)

// KindOf classifies err into the operator-facing failure taxonomy.
func KindOf(err error) types.ErrorKind {
	switch errbuilder.CodeOf(err) {
	case errbuilder.CodeInvalidArgument, errbuilder.CodeNotFound, errbuilder.CodeAlreadyExists:
		return types.ErrorKindValidation
	case errbuilder.CodeDataLoss:
		return types.ErrorKindIntegrity
	case errbuilder.CodeUnavailable:
		return types.ErrorKindResolution
	case errbuilder.CodeFailedPrecondition:
		return types.ErrorKindState
	case errbuilder.CodeResourceExhausted, errbuilder.CodePermissionDenied:
		return types.ErrorKindEnvironment
	default:
		return types.ErrorKindInternal
	}
}

// ErrorMessage returns the operator message of an errbuilder error, or the
// plain error text.
func ErrorMessage(err error) string {
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) && strings.TrimSpace(builder.Msg) != "" {
		return builder.Msg
	}
	return err.Error()
}
