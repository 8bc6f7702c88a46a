package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/sercha-vision/internal/core/domain"
)

// ServiceName labels upstream errors raised by Drive calls.
const ServiceName = "drive"

// IsUnauthorized returns true if the error indicates invalid credentials.
func IsUnauthorized(err error) bool {
	return hasCode(err, http.StatusUnauthorized)
}

// IsForbidden returns true if the error indicates insufficient permissions.
func IsForbidden(err error) bool {
	return hasCode(err, http.StatusForbidden)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	if errors.Is(err, domain.ErrNotFound) {
		return true
	}
	return hasCode(err, http.StatusNotFound)
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return hasCode(err, http.StatusTooManyRequests)
}

func hasCode(err error, code int) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == code
	}
	var uerr *domain.UpstreamError
	if errors.As(err, &uerr) {
		return uerr.Status == code
	}
	return false
}

// WrapError converts a Google API error into the domain taxonomy.
// A 404 becomes domain.ErrNotFound naming the resource; every other API
// error becomes a *domain.UpstreamError carrying the status and message.
// Transport errors without an API status are returned wrapped but unchanged.
func WrapError(err error, resource string) error {
	if err == nil {
		return nil
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%s: %w", resource, err)
	}

	if gerr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, resource)
	}

	detail := gerr.Message
	if detail == "" {
		detail = gerr.Body
	}
	return domain.NewUpstreamError(ServiceName, gerr.Code, fmt.Sprintf("%s: %s", resource, detail))
}
