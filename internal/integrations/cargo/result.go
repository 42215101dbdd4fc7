package cargo

import (
	"encoding/json"
	"fmt"

	"github.com/BearBump/ClaimBox/internal/models"
	"github.com/pkg/errors"
)

// Result is a response of the claims API. Body is set when the response is a
// JSON object; otherwise only Raw is available.
type Result struct {
	ClaimID    string
	StatusCode int
	Body       map[string]json.RawMessage
	Raw        []byte
}

func newResult(claimID string, code int, raw []byte) Result {
	r := Result{ClaimID: claimID, StatusCode: code, Raw: raw}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err == nil && body != nil {
		r.Body = body
	}
	if r.ClaimID == "" {
		if id, ok := r.String("claim_id"); ok {
			r.ClaimID = id
		}
	}
	return r
}

func (r Result) IsRaw() bool { return r.Body == nil }

func (r Result) Has(field string) bool {
	_, ok := r.Body[field]
	return ok
}

func (r Result) String(field string) (string, bool) {
	raw, ok := r.Body[field]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (r Result) Status() (models.ClaimStatus, bool) {
	s, ok := r.String("status")
	return models.ClaimStatus(s), ok
}

func (r Result) Decode(v any) error {
	if r.IsRaw() {
		return errors.Errorf("response is not a json object: %q", truncate(r.Raw, 200))
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

// APIError returns the remote error carried by the response, if any.
func (r Result) APIError() (*APIError, bool) {
	if !r.Has("code") {
		return nil, false
	}
	code, _ := r.String("code")
	msg, _ := r.String("message")
	return &APIError{Code: code, Message: msg, HTTPStatus: r.StatusCode}, true
}

// APIError is an error reported by the platform in the response body.
type APIError struct {
	Code       string
	Message    string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cargo api %s: %s", e.Code, e.Message)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
