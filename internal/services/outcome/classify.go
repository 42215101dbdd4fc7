package outcome

import (
	"time"

	"github.com/BearBump/ClaimBox/internal/integrations/cargo"
)

// TransportFailure classifies a failed call: dropped connections are
// transient, everything else is a plain transport error.
func TransportFailure(op Op, token, claimID string, err error) Outcome {
	kind := KindTransport
	if cargo.IsTransient(err) {
		kind = KindTransientNetwork
	}
	o := Failure(op, token, kind, err)
	if claimID != "" {
		o.ClaimID = claimID
	}
	return o
}

// RemoteFailure records an error the platform returned in the response body.
func RemoteFailure(op Op, token, claimID string, apiErr *cargo.APIError) Outcome {
	return Outcome{
		Op:      op,
		Token:   token,
		ClaimID: claimID,
		Code:    apiErr.Code,
		Message: apiErr.Message,
		Kind:    KindRemoteAPI,
		At:      time.Now().UTC(),
	}
}

// CancelledFailure marks token as not processed because the batch was stopped.
func CancelledFailure(op Op, token string) Outcome {
	return Failure(op, token, KindCancelled, ErrCancelled)
}
