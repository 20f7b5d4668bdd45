package tokens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/minu-sso/internal/errors"
	"github.com/jrsteele09/minu-sso/oauthmodel"
	"github.com/jrsteele09/minu-sso/services"
)

// WorkersExchangePath is appended to the Workers API base URL.
const WorkersExchangePath = "/minu/token/exchange"

type workersExchangeRequest struct {
	MinuAccessToken string      `json:"minu_access_token"`
	Service         services.ID `json:"service"`
}

// ExchangeForWorkers swaps a Minu access token for a Workers API token.
func (c *Client) ExchangeForWorkers(ctx context.Context, service services.ID, minuAccessToken string) (*oauthmodel.TokenResponse, error) {
	if c.workersURL == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "[Client workers_exchange] workers api url not configured")
	}

	body, err := json.Marshal(workersExchangeRequest{
		MinuAccessToken: minuAccessToken,
		Service:         service,
	})
	if err != nil {
		return nil, fmt.Errorf("[Client workers_exchange] %w", err)
	}

	endpoint := strings.TrimRight(c.workersURL, "/") + WorkersExchangePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("[Client workers_exchange] %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := c.now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.record(opWorkers, start, err)
		return nil, fmt.Errorf("[Client workers_exchange] %w: %w", apperrors.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := checkResponse(opWorkers, resp); err != nil {
		c.record(opWorkers, start, err)
		return nil, err
	}

	var out oauthmodel.TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		err = apperrors.Wrapf(apperrors.ErrTokenEndpoint, "[Client workers_exchange] decode: %v", err)
		c.record(opWorkers, start, err)
		return nil, err
	}
	if out.Token() == "" {
		err = apperrors.Wrapf(apperrors.ErrTokenEndpoint, "[Client workers_exchange] response has no access_token")
		c.record(opWorkers, start, err)
		return nil, err
	}

	c.record(opWorkers, start, nil)
	return &out, nil
}
