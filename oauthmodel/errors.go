package oauthmodel

// OAuth2 error codes returned in the error parameter of a callback (RFC 6749 §4.1.2.1).
const (
	ErrorAccessDenied            = "access_denied"
	ErrorInvalidRequest          = "invalid_request"
	ErrorInvalidClient           = "invalid_client"
	ErrorUnauthorizedClient      = "unauthorized_client"
	ErrorInvalidScope            = "invalid_scope"
	ErrorUnsupportedResponseType = "unsupported_response_type"
	ErrorServerError             = "server_error"
	ErrorTemporarilyUnavailable  = "temporarily_unavailable"
)

// Token endpoint error codes (RFC 6749 §5.2).
const (
	ErrorInvalidGrant         = "invalid_grant"
	ErrorUnsupportedGrantType = "unsupported_grant_type"
)

// IsMalformedRequestError reports whether the code means the request itself was rejected,
// i.e. a bad client_id, redirect_uri, scope or response type.
func IsMalformedRequestError(code string) bool {
	switch code {
	case ErrorInvalidRequest, ErrorInvalidClient, ErrorUnauthorizedClient,
		ErrorInvalidScope, ErrorUnsupportedResponseType:
		return true
	}
	return false
}
