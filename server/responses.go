package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/jrsteele09/minu-sso/flow"
	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/services"
	"github.com/jrsteele09/minu-sso/sessions"
	"github.com/rs/zerolog/log"
)

const (
	mimeJSON        = "application/json"
	contentTypeJSON = "application/json; charset=utf-8"
)

type sessionResponse struct {
	Service       services.ID `json:"service"`
	Authenticated bool        `json:"authenticated"`
	Phase         flow.Phase  `json:"phase"`
	UserID        string      `json:"user_id,omitempty"`
	Plan          string      `json:"plan,omitempty"`
	Status        string      `json:"status,omitempty"`
	ExpiresAt     *time.Time  `json:"expires_at,omitempty"`
	Refreshable   bool        `json:"refreshable,omitempty"`
}

func newSessionResponse(r *sessions.Record) sessionResponse {
	expires := r.ExpiresAt
	return sessionResponse{
		Service:       r.Service,
		Authenticated: true,
		Phase:         flow.PhaseAuthenticated,
		UserID:        r.UserID,
		Plan:          r.Plan,
		Status:        r.Status,
		ExpiresAt:     &expires,
		Refreshable:   r.HasRefreshToken(),
	}
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	// OAuthError is the error code returned by the Minu service, if any
	OAuthError string      `json:"oauth_error,omitempty"`
	Message    string      `json:"message,omitempty"`
	Service    services.ID `json:"service,omitempty"`
	RetryURL   string      `json:"retry_url,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

// writeJSONError writes err as a JSON error with the status of its category
func writeJSONError(w http.ResponseWriter, err error) {
	category := apperrors.Classify(err)
	writeJSON(w, apiStatus(category), errorResponse{
		Error:            string(category),
		ErrorDescription: apiMessage(category),
	})
}

// apiStatus maps an error category onto the status of the JSON endpoints
func apiStatus(category apperrors.Category) int {
	switch category {
	case apperrors.CategoryMalformedRequest:
		return http.StatusBadRequest
	case apperrors.CategoryExpiredSession:
		return http.StatusUnauthorized
	case apperrors.CategoryDenied, apperrors.CategoryCSRF:
		return http.StatusForbidden
	case apperrors.CategoryNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func apiMessage(category apperrors.Category) string {
	switch category {
	case apperrors.CategoryMalformedRequest:
		return "The request was invalid."
	case apperrors.CategoryExpiredSession:
		return "Your session has expired. Please sign in again."
	case apperrors.CategoryDenied:
		return "Access was denied."
	case apperrors.CategoryCSRF:
		return "The request could not be verified."
	case apperrors.CategoryNetwork:
		return "The Minu service could not be reached. Please try again."
	}
	return "An internal error occurred."
}

// callbackPage is what the browser sees when the callback does not sign it in
type callbackPage struct {
	Status    int
	Category  apperrors.Category
	Title     string
	Message   string
	RetryURL  string
	HomeURL   string
	Reference string
	// Detail is the error_description sent by the service
	Detail string
}

// newCallbackPage decides how a failed callback is shown. A declined consent is
// informational, a request that cannot be verified offers no retry, and an
// unreachable service can be retried.
func newCallbackPage(out *flow.Outcome, err error, returnTo string) callbackPage {
	var service services.ID
	if out != nil {
		service = out.Service
	}

	page := callbackPage{
		Category: apperrors.Classify(err),
		HomeURL:  returnTo,
	}
	retry := ""
	if service.Valid() {
		retry = RouteMinuLogin + "?" + url.Values{"service": {string(service)}, "return_to": {returnTo}}.Encode()
	}

	switch page.Category {
	case apperrors.CategoryDenied:
		page.Status = http.StatusOK
		page.Title = "Sign in cancelled"
		page.Message = "You chose not to sign in with Minu. Nothing was shared with this application."
		page.RetryURL = retry
	case apperrors.CategoryMalformedRequest:
		page.Status = http.StatusBadRequest
		page.Title = "Sign in failed"
		page.Message = "The sign in request could not be completed."
	case apperrors.CategoryCSRF:
		page.Status = http.StatusForbidden
		page.Title = "Sign in could not be verified"
		page.Message = "This sign in response does not match a sign in started from this browser. Start again from the application."
	case apperrors.CategoryNetwork:
		page.Status = http.StatusBadGateway
		page.Title = "Minu is unavailable"
		page.Message = "The Minu service could not be reached to finish signing you in."
		page.RetryURL = retry
	default:
		page.Status = http.StatusInternalServerError
		page.Title = "Something went wrong"
		page.Message = "An unexpected error occurred while signing you in."
		page.RetryURL = retry
	}

	if out != nil && out.Failure != nil {
		page.Reference = out.Failure.Error
		page.Detail = out.Failure.ErrorDescription
	}
	return page
}

func (s *Server) renderCallbackFailure(w http.ResponseWriter, r *http.Request, page callbackPage, service services.ID) {
	if wantsJSON(r) {
		description := page.Detail
		if description == "" {
			description = page.Message
		}
		writeJSON(w, page.Status, errorResponse{
			Error:            string(page.Category),
			ErrorDescription: description,
			OAuthError:       page.Reference,
			Message:          page.Message,
			Service:          service,
			RetryURL:         page.RetryURL,
		})
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(page.Status)
	if err := callbackResultTemplate.Execute(w, page); err != nil {
		log.Err(err).Msg("failed to render callback page")
	}
}
