package models

// ErrorResponse единый формат ошибки API
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// Машиночитаемые коды ошибок
const (
	CodeRateLimited      = "rate_limited"
	CodeNotFound         = "not_found"
	CodeInvalidURL       = "invalid_url"
	CodeInvalidTargetURL = "invalid_target_url"
	CodeInvalidSlug      = "invalid_slug"
	CodeConflict         = "conflict"
	CodeInvalidRequest   = "invalid_request"
	CodeHMACRequired     = "hmac_required"
	CodeHMACInvalid      = "hmac_invalid"
	CodeForbidden        = "forbidden"
	CodeInternal         = "internal_error"
)
