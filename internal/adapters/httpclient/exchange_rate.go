package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"fxconverter/internal/domain"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const unknownErrorType = "unknown_error"

type ExchangeRateClient struct {
	http    *http.Client
	baseURL string
}

type apiResponse struct {
	Result             string             `json:"result"`
	BaseCode           string             `json:"base_code"`
	Rates              map[string]float64 `json:"rates"`
	TimeLastUpdateUnix int64              `json:"time_last_update_unix"`
	ErrorType          string             `json:"error-type"`
}

// GetExchangeRates returns the rates quoted against base. Every failure is
// wrapped in domain.ErrFetchFailed.
func (c *ExchangeRateClient) GetExchangeRates(ctx context.Context, base string) (domain.FetchResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("%w: failed to parse base URL: %w", domain.ErrFetchFailed, err)
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + url.PathEscape(base)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("%w: failed to create request for currency %q: %w", domain.ErrFetchFailed, base, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.FetchResult{}, fmt.Errorf("%w: failed to execute request for currency %q: %w", domain.ErrFetchFailed, base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.FetchResult{}, fmt.Errorf("%w: unexpected status code %d for currency %q", domain.ErrFetchFailed, resp.StatusCode, base)
	}

	var body apiResponse
	if err = json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.FetchResult{}, fmt.Errorf("%w: failed to decode response for currency %q: %w", domain.ErrFetchFailed, base, err)
	}

	if body.Result != "success" {
		reason := body.ErrorType
		if reason == "" {
			reason = unknownErrorType
		}
		return domain.FetchResult{}, fmt.Errorf("%w: api returned non-success result for currency %q: %s", domain.ErrFetchFailed, base, reason)
	}

	if len(body.Rates) == 0 {
		return domain.FetchResult{}, fmt.Errorf("%w: api returned no rates for currency %q", domain.ErrFetchFailed, base)
	}

	res := domain.FetchResult{Rates: body.Rates}
	if body.TimeLastUpdateUnix > 0 {
		res.UpdatedAt = time.Unix(body.TimeLastUpdateUnix, 0).UTC()
	}
	return res, nil
}

func NewExchangeRateClient(httpClient *http.Client, baseURL string) *ExchangeRateClient {
	return &ExchangeRateClient{http: httpClient, baseURL: baseURL}
}

// NewHTTPClient bounds the connect phase with connectTimeout and the wait for
// response headers and body with readTimeout.
func NewHTTPClient(connectTimeout, readTimeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: connectTimeout}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = readTimeout
	return &http.Client{
		Transport: transport,
		Timeout:   connectTimeout + readTimeout,
	}
}
