package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aussiebroadwan/clientauth/pkg/httpx"
)

// Error codes carried in ErrorResponse.Error.
const (
	ErrorCodeValidation     = "validation_error"
	ErrorCodeConflict       = "conflict"
	ErrorCodeAuthentication = "authentication_error"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeInvalidToken   = "invalid_token"
	ErrorCodeRateLimited    = "rate_limit_exceeded"
	ErrorCodeServerError    = "server_error"
)

// ErrMFARequired is returned by Authenticate when the account has a second
// factor; finish with VerifyCode.
var ErrMFARequired = errors.New("authsdk: second factor required")

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
	Details     map[string]string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes e as a JSON error response.
func (e *APIError) WriteError(w http.ResponseWriter) {
	if len(e.Details) > 0 {
		httpx.WriteJSON(w, e.StatusCode, ValidationErrorResponse{
			Error:            e.Code,
			ErrorDescription: e.Description,
			Details:          e.Details,
		})
		return
	}
	httpx.WriteError(w, e.StatusCode, e.Code, e.Description)
}

func NewAPIError(statusCode int, code, description string) *APIError {
	return &APIError{StatusCode: statusCode, Code: code, Description: description}
}

var (
	ErrInvalidBody  = NewAPIError(http.StatusBadRequest, ErrorCodeValidation, "request body is not valid JSON")
	ErrServerError  = NewAPIError(http.StatusInternalServerError, ErrorCodeServerError, "internal server error")
	ErrInvalidToken = NewAPIError(http.StatusUnauthorized, ErrorCodeInvalidToken, "the token is missing, invalid, expired or revoked")
)

// IsCode reports whether err is an APIError with the given code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// parseErrorResponse turns a non-2xx answer into an *APIError. Bodiless
// answers, such as a rejected refresh, get a code derived from the status.
func parseErrorResponse(resp *http.Response, body []byte) error {
	var errResp ValidationErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
			Details:     errResp.Details,
		}
	}

	code := ErrorCodeServerError
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		code = ErrorCodeInvalidToken
	case http.StatusTooManyRequests:
		code = ErrorCodeRateLimited
	}
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        code,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
