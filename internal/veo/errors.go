package veo

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind buckets API failures so callers can react to the class of fault
// without parsing service-specific messages.
type Kind string

const (
	// KindAuth covers missing or rejected credentials.
	KindAuth Kind = "auth"
	// KindQuota covers rate limits and exhausted quota.
	KindQuota Kind = "quota"
	// KindInvalid covers requests the service refused as malformed,
	// including prompts rejected by safety filtering.
	KindInvalid Kind = "invalid"
	// KindUnavailable covers server-side failures worth retrying later.
	KindUnavailable Kind = "unavailable"
	// KindNetwork covers transport failures before any response arrived.
	KindNetwork Kind = "network"
)

// APIError is a classified failure from the generative video service.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("veo: %s error: %s: %v", e.Kind, e.Message, e.Err)
	case e.Message != "" && e.StatusCode > 0:
		return fmt.Sprintf("veo: %s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	case e.Message != "":
		return fmt.Sprintf("veo: %s error: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("veo: %s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("veo: %s error", e.Kind)
	}
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// KindOf reports the classification of err, or the empty Kind when err does
// not originate from the service client.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return ""
}

func classifyStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindQuota
	case status >= 400 && status < 500:
		return KindInvalid
	default:
		return KindUnavailable
	}
}

// classifyOperationStatus maps the gRPC-style status string carried by a
// failed long-running operation onto an error kind.
func classifyOperationStatus(status string) Kind {
	switch status {
	case "UNAUTHENTICATED", "PERMISSION_DENIED":
		return KindAuth
	case "RESOURCE_EXHAUSTED":
		return KindQuota
	case "INVALID_ARGUMENT", "FAILED_PRECONDITION", "OUT_OF_RANGE":
		return KindInvalid
	default:
		return KindUnavailable
	}
}
