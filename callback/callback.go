// Package callback interprets the query string a Minu service redirects the browser back with.
package callback

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/oauthmodel"
	"github.com/jrsteele09/minu-sso/pkce"
	"github.com/jrsteele09/minu-sso/services"
)

// Kind is the shape of an interpreted callback.
type Kind int

const (
	// KindSuccess carries an access token and the account details directly.
	KindSuccess Kind = iota + 1
	// KindCode carries an authorization code still to be exchanged.
	KindCode
	// KindError carries an OAuth error code.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindCode:
		return "code"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Success is the account returned by a successful callback.
type Success struct {
	AccessToken string      `json:"access_token"`
	Service     services.ID `json:"service"`
	UserID      string      `json:"user_id"`
	Plan        string      `json:"plan"`
	Status      string      `json:"status"`
}

// Failure is the error returned by the authorization server.
type Failure struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Err maps the OAuth error code onto the error catalogue.
func (f *Failure) Err() error {
	var base error
	switch {
	case f.Error == oauthmodel.ErrorAccessDenied:
		base = apperrors.ErrAccessDenied
	case oauthmodel.IsMalformedRequestError(f.Error):
		base = apperrors.ErrMalformedRequest
	default:
		base = apperrors.ErrAuthorizationFailed
	}
	if f.ErrorDescription != "" {
		return apperrors.Wrapf(base, "%s: %s", f.Error, f.ErrorDescription)
	}
	return apperrors.Wrapf(base, "%s", f.Error)
}

// Result is an interpreted callback. Exactly one of Success, Code or Failure is set,
// according to Kind.
type Result struct {
	Kind    Kind
	Service services.ID
	State   *pkce.State
	Success *Success
	Code    string
	Failure *Failure
}

// ParseURL extracts the callback parameters from a full redirect URL.
func ParseURL(rawURL string) (url.Values, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedCallback, "[ParseURL] %v", err)
	}
	return u.Query(), nil
}

// Interpret validates the callback query against sentState, the state value that went
// out with the authorization request. An OAuth error is returned as a KindError result
// with a nil error; state violations and malformed success callbacks return an error.
func Interpret(query url.Values, sentState string) (*Result, error) {
	returnedState := query.Get(oauthmodel.ParamState)

	if code := query.Get(oauthmodel.ParamError); code != "" {
		if returnedState != "" && !sameState(returnedState, sentState) {
			return nil, apperrors.Wrapf(apperrors.ErrStateMismatch, "[Interpret] error callback %q", code)
		}
		res := &Result{
			Kind: KindError,
			Failure: &Failure{
				Error:            code,
				ErrorDescription: query.Get(oauthmodel.ParamErrorDescription),
			},
		}
		// The state only names the service here; a failure is reported either way
		if st, err := pkce.DecodeState(returnedState); returnedState != "" && err == nil {
			res.State, res.Service = st, st.Service
		}
		return res, nil
	}

	if sentState == "" {
		return nil, apperrors.Wrapf(apperrors.ErrNoPendingAuthorization, "[Interpret]")
	}
	if !sameState(returnedState, sentState) {
		return nil, apperrors.Wrapf(apperrors.ErrStateMismatch, "[Interpret]")
	}
	state, err := pkce.DecodeState(returnedState)
	if err != nil {
		return nil, fmt.Errorf("[Interpret] %w", err)
	}

	if query.Has(oauthmodel.ParamAccessToken) {
		success, err := parseSuccess(query)
		if err != nil {
			return nil, err
		}
		if success.Service != state.Service {
			return nil, apperrors.Wrapf(apperrors.ErrStateMismatch, "[Interpret] callback service %s, state service %s", success.Service, state.Service)
		}
		return &Result{
			Kind:    KindSuccess,
			Service: success.Service,
			State:   state,
			Success: success,
		}, nil
	}

	if code := query.Get(oauthmodel.ParamCode); code != "" {
		if svc := query.Get(oauthmodel.ParamService); svc != "" && services.ID(svc) != state.Service {
			return nil, apperrors.Wrapf(apperrors.ErrStateMismatch, "[Interpret] callback service %q, state service %s", svc, state.Service)
		}
		return &Result{
			Kind:    KindCode,
			Service: state.Service,
			State:   state,
			Code:    code,
		}, nil
	}

	return nil, apperrors.Wrapf(apperrors.ErrMalformedCallback, "[Interpret] neither access_token, code nor error present")
}

func parseSuccess(query url.Values) (*Success, error) {
	var missing []string
	get := func(name string) string {
		v := query.Get(name)
		if v == "" {
			missing = append(missing, name)
		}
		return v
	}

	s := &Success{
		AccessToken: get(oauthmodel.ParamAccessToken),
		UserID:      get(oauthmodel.ParamUserID),
		Plan:        get(oauthmodel.ParamPlan),
		Status:      get(oauthmodel.ParamStatus),
	}
	rawService := get(oauthmodel.ParamService)
	if len(missing) > 0 {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedCallback, "[Interpret] missing %s", strings.Join(missing, ", "))
	}

	id, err := services.Parse(rawService)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedCallback, "[Interpret] %v", err)
	}
	s.Service = id
	return s, nil
}

func sameState(returned, sent string) bool {
	return subtle.ConstantTimeCompare([]byte(returned), []byte(sent)) == 1
}
