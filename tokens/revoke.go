package tokens

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/oauthmodel"
	"github.com/jrsteele09/minu-sso/services"
)

// Revoke asks svc to revoke token (RFC 7009).
func (c *Client) Revoke(ctx context.Context, svc *services.Service, token string, hint oauthmodel.TokenTypeHint) error {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", string(hint))
	form.Set(oauthmodel.ParamClientID, svc.ClientID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.RevokeURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("[Client revoke] %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(opRevoke, start, err)
		return fmt.Errorf("[Client revoke] %w: %w", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	err = checkResponse(opRevoke, resp)
	c.record(opRevoke, start, err)
	return err
}

// checkResponse converts a non-2xx answer into an EndpointError, reading the
// {error, error_description} body when there is one.
func checkResponse(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	ee := &EndpointError{Operation: op, StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var er oauthmodel.ErrorResponse
	if json.Unmarshal(body, &er) == nil {
		ee.Code = er.Error
		ee.Description = er.ErrorDescription
	}
	return fmt.Errorf("[Client %s] %w", op, ee)
}
