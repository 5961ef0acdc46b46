package apierrors

import (
	"errors"

	"voice-server/internal/voicecall/processor"
)

// MapError converts domain/processor errors to APIErrors.
//
// If the error is already an APIError, it returns it as-is.
// If the error is unknown, it returns a sanitized InternalError (500).
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, processor.ErrMissingDestination):
		return BadRequest(CodeMissingDestination, "Destination phone number is required")

	case errors.Is(err, processor.ErrMissingCallSid):
		return BadRequest(CodeMissingCallSid, "CallSid is required")

	case errors.Is(err, processor.ErrCallPlacementFailed):
		return BadGateway(CodeTelephonyError, "The telephony provider rejected the call. Please try again later.", err)

	default:
		return InternalError(err)
	}
}
