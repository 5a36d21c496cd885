package authsdk

import "time"

// ErrorResponse is the body of every JSON error answer.
type ErrorResponse struct {
	Error            string `json:"error" example:"authentication_error"`
	ErrorDescription string `json:"error_description,omitempty" example:"invalid credentials"`
}

// ValidationErrorResponse adds per-field messages to a validation failure.
type ValidationErrorResponse struct {
	Error            string            `json:"error" example:"validation_error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Details          map[string]string `json:"details,omitempty"`
}

// RegisterRequest is the body of POST /v1/auth/register.
type RegisterRequest struct {
	FirstName  string `json:"first_name" validate:"required,max=100" example:"Ada"`
	LastName   string `json:"last_name" validate:"required,max=100" example:"Lovelace"`
	Email      string `json:"email" validate:"required,email,max=254" example:"ada@example.com"`
	Password   string `json:"password" validate:"required,min=8,max=128" example:"correct horse battery staple"`
	MFAEnabled bool   `json:"mfa_enabled" example:"false"`
}

// AuthenticateRequest is the body of POST /v1/auth/authenticate.
type AuthenticateRequest struct {
	Email    string `json:"email" validate:"required,email" example:"ada@example.com"`
	Password string `json:"password" validate:"required" example:"correct horse battery staple"`
}

// VerificationRequest is the body of POST /v1/auth/verify.
type VerificationRequest struct {
	Email string `json:"email" validate:"required,email" example:"ada@example.com"`
	Code  string `json:"code" validate:"required,numeric,len=6" example:"123456"`
}

// AuthResponse is returned by every credential exchange. Empty tokens with
// MFAEnabled set mean the second factor is still outstanding.
type AuthResponse struct {
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
	MFAEnabled     bool   `json:"mfa_enabled"`
	SecretImageURI string `json:"secret_image_uri,omitempty" example:"data:image/png;base64,iVBORw0KGgo..."`
}

// AccountResponse is returned by GET /v1/account.
type AccountResponse struct {
	ID         string    `json:"id" example:"01HZX3Q9K7V2N8M4P6R5T1W0YA"`
	FirstName  string    `json:"first_name" example:"Ada"`
	LastName   string    `json:"last_name" example:"Lovelace"`
	Email      string    `json:"email" example:"ada@example.com"`
	Role       string    `json:"role" example:"USER"`
	MFAEnabled bool      `json:"mfa_enabled"`
	CreatedAt  time.Time `json:"created_at"`
}

// HealthResponse is returned by /livez and /readyz; only readyz sets Checks.
type HealthResponse struct {
	Status  string        `json:"status" example:"ok"`
	Uptime  string        `json:"uptime,omitempty" example:"1h23m45s"`
	Version string        `json:"version,omitempty" example:"0.1.0"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency as "ok" or "error: ...".
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
	Lock     string `json:"lock,omitempty"`
}
