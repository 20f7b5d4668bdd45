package pkce

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/services"
)

// StateVersion is the schema version written into every state token.
const StateVersion = 1

// State is the payload carried through the authorization redirect in the state parameter.
type State struct {
	Version     int         `json:"v,omitempty"`
	CSRF        string      `json:"csrf"`
	Service     services.ID `json:"service"`
	RedirectURI string      `json:"redirect_uri"`
}

// NewState builds a state with a fresh random CSRF token.
func NewState(service services.ID, redirectURI string) (State, error) {
	csrf, err := uuid.NewRandom()
	if err != nil {
		return State{}, fmt.Errorf("[NewState] failed to generate csrf token: %w", err)
	}
	return State{
		Version:     StateVersion,
		CSRF:        csrf.String(),
		Service:     service,
		RedirectURI: redirectURI,
	}, nil
}

// GenerateState returns the wire form of a new state for service and redirectURI.
func GenerateState(service services.ID, redirectURI string) (string, error) {
	s, err := NewState(service, redirectURI)
	if err != nil {
		return "", err
	}
	return s.Encode()
}

// Encode returns base64(JSON(state)).
func (s State) Encode() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("[State Encode] %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeState parses the wire form produced by Encode. Tokens without a version
// decode as version 1; newer versions are rejected.
func DecodeState(encoded string) (*State, error) {
	data, err := decodeBase64(encoded)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidState, "[DecodeState] base64")
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidState, "[DecodeState] json")
	}

	if s.Version == 0 {
		s.Version = 1
	}
	if s.Version > StateVersion {
		return nil, apperrors.Wrapf(apperrors.ErrUnsupportedStateVersion, "[DecodeState] v%d", s.Version)
	}
	if s.CSRF == "" || !s.Service.Valid() {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidState, "[DecodeState] incomplete payload")
	}
	return &s, nil
}

// decodeBase64 accepts the standard alphabet as well as the URL-safe one, with or
// without padding, since some proxies rewrite "+" and "/" in query strings.
func decodeBase64(s string) ([]byte, error) {
	var lastErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		data, err := enc.DecodeString(s)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
