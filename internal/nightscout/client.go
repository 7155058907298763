// Package nightscout provides a client for interacting with the Nightscout API
package nightscout

import (
	"context"
	"crypto/sha1" //nolint:gosec // Required for Nightscout API secret hashing (legacy API requirement)
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/nightscout-engine/internal/apperrors"
	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/profile"
)

// defaultTimeout bounds every request unless overridden
const defaultTimeout = 30 * time.Second

// ServerStatus is the subset of /api/v1/status the engine uses
type ServerStatus struct {
	Status     string         `json:"status"`
	Name       string         `json:"name"`
	Version    string         `json:"version"`
	ServerTime string         `json:"serverTime"`
	APIEnabled bool           `json:"apiEnabled"`
	Settings   StatusSettings `json:"settings"`
}

// StatusSettings carries the server's display preferences
type StatusSettings struct {
	Units string `json:"units"`
}

// Client handles communication with the Nightscout API
type Client struct {
	baseURL    string
	apiSecret  string
	apiToken   string
	useToken   bool
	httpClient *http.Client
}

// NewClient creates a new Nightscout client
func NewClient(baseURL, apiSecret, apiToken string, useToken bool) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiSecret: apiSecret,
		apiToken:  apiToken,
		useToken:  useToken,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// SetTimeout changes the per-request timeout
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// hashSecret generates SHA1 hash of the API secret
// Note: SHA1 is required for Nightscout API compatibility
func hashSecret(secret string) string {
	hasher := sha1.New() //nolint:gosec // Required for Nightscout API
	hasher.Write([]byte(secret))
	return hex.EncodeToString(hasher.Sum(nil))
}

// buildRequest creates an HTTP request with proper authentication
func (c *Client) buildRequest(ctx context.Context, method, endpoint string, params url.Values) (*http.Request, error) {
	fullURL := c.baseURL + endpoint
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "building request", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	if c.useToken && c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	} else if c.apiSecret != "" {
		req.Header.Set("API-SECRET", hashSecret(c.apiSecret))
	}

	return req, nil
}

// doRequest executes an HTTP request and returns the response body
func (c *Client) doRequest(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstreamError, "request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstreamError, "reading response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.Wrap(apperrors.CodeUpstreamError, fmt.Sprintf("API error %d: %s", resp.StatusCode, string(body)), nil)
	}

	return body, nil
}

// get fetches endpoint and returns the raw body
func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	req, err := c.buildRequest(ctx, http.MethodGet, endpoint, params)
	if err != nil {
		return nil, err
	}
	return c.doRequest(req)
}

// getJSON fetches endpoint and decodes it into out
func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, what string, out any) error {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(apperrors.CodeUpstreamError, "parsing "+what, err)
	}
	return nil
}

// GetStatus retrieves the Nightscout server status
func (c *Client) GetStatus(ctx context.Context) (*ServerStatus, error) {
	var status ServerStatus
	if err := c.getJSON(ctx, "/api/v1/status", nil, "status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetEntries retrieves glucose entries for a time range, newest first
func (c *Client) GetEntries(ctx context.Context, from, to time.Time, count int) ([]models.Entry, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("find[date][$gte]", strconv.FormatInt(from.UnixMilli(), 10))
	}
	if !to.IsZero() {
		params.Set("find[date][$lte]", strconv.FormatInt(to.UnixMilli(), 10))
	}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}

	var entries []models.Entry
	if err := c.getJSON(ctx, "/api/v1/entries/sgv", params, "entries", &entries); err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Normalize()
	}
	return entries, nil
}

// GetTreatments retrieves treatments created inside a time range
func (c *Client) GetTreatments(ctx context.Context, from, to time.Time, count int) ([]models.Treatment, error) {
	params := url.Values{}
	if !from.IsZero() {
		params.Set("find[created_at][$gte]", from.UTC().Format(time.RFC3339))
	}
	if !to.IsZero() {
		params.Set("find[created_at][$lte]", to.UTC().Format(time.RFC3339))
	}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}

	var treatments []models.Treatment
	if err := c.getJSON(ctx, "/api/v1/treatments", params, "treatments", &treatments); err != nil {
		return nil, err
	}
	return treatments, nil
}

// GetDeviceStatus retrieves the most recent N device status uploads
func (c *Client) GetDeviceStatus(ctx context.Context, count int) ([]models.DeviceStatus, error) {
	params := url.Values{}
	if count > 0 {
		params.Set("count", strconv.Itoa(count))
	}

	var statuses []models.DeviceStatus
	if err := c.getJSON(ctx, "/api/v1/devicestatus", params, "device status", &statuses); err != nil {
		return nil, err
	}
	for i := range statuses {
		statuses[i].Normalize()
	}
	return statuses, nil
}

// GetProfiles retrieves the stored profile records
func (c *Client) GetProfiles(ctx context.Context) ([]profile.Record, error) {
	body, err := c.get(ctx, "/api/v1/profile", nil)
	if err != nil {
		return nil, err
	}
	records, err := profile.FromNightscout(body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUpstreamError, "parsing profile", err)
	}
	return records, nil
}
