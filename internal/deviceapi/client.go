package deviceapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nwstad/overlayctl/internal/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultContext is the context tag echoed back by the device in every
	// response, used to correlate requests when debugging traffic captures
	DefaultContext = "overlayctl"

	// maxResponseBody caps how much of a response body is read. Entity lists
	// and capability descriptors are small; anything larger is not ours.
	maxResponseBody = 1 << 20
)

// Endpoint identifies a device CGI channel and the API version it speaks.
type Endpoint struct {
	// Path is the CGI path on the device (e.g. "/config/cgi/overlays.cgi")
	Path string

	// APIVersion is the protocol version sent in every request body
	APIVersion string
}

// Request is the JSON body posted to a device endpoint.
type Request struct {
	APIVersion string `json:"apiVersion"`
	Context    string `json:"context,omitempty"`
	Method     string `json:"method"`
	Params     any    `json:"params,omitempty"`
}

// Response is the JSON body returned by a device endpoint. Exactly one of
// Data and Error is populated.
type Response struct {
	APIVersion string          `json:"apiVersion"`
	Context    string          `json:"context"`
	Method     string          `json:"method"`
	Data       json.RawMessage `json:"data"`
	Error      *APIError       `json:"error"`
}

// APIError is a business-level error returned by the device inside a
// well-formed response body.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Client is an HTTP client for a device's JSON CGI endpoints.
type Client struct {
	// BaseURL is the base URL for the device (e.g. "http://192.168.0.90")
	BaseURL string

	// Username and Password for HTTP Basic Auth
	Username string
	Password string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// ContextTag is sent as the request context field
	ContextTag string
}

// NewClient creates a new device API client.
// ip: device IP address (e.g. "192.168.0.90")
// port: device HTTP port (typically 80)
func NewClient(ip string, port int) *Client {
	return NewClientWithURL(fmt.Sprintf("http://%s:%d", ip, port))
}

// NewClientWithURL creates a new client with a full base URL.
func NewClientWithURL(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		ContextTag: DefaultContext,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// SetAuth sets HTTP Basic Auth credentials
func (c *Client) SetAuth(username, password string) {
	c.Username = username
	c.Password = password
}

// Call posts a versioned JSON request to the endpoint and returns the data
// payload of the response.
//
// The error taxonomy matters to callers:
//   - a business error (well-formed {error} body) is returned as a
//     *DeviceError with Type ErrTypeAPI; the feature stays usable
//   - a transport failure (unreachable device, non-JSON body, unexpected
//     status) is returned as a *DeviceError for which IsTransportFailure
//     reports true; callers treat the endpoint as unsupported
//
// Call never retries. Recovery from transport failures is user-initiated.
func (c *Client) Call(ctx context.Context, endpoint Endpoint, method string, params any) (json.RawMessage, error) {
	data, err := c.call(ctx, endpoint, method, params)
	logging.LogAPICall(endpoint.Path, method, err)
	return data, err
}

func (c *Client) call(ctx context.Context, endpoint Endpoint, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(Request{
		APIVersion: endpoint.APIVersion,
		Context:    c.ContextTag,
		Method:     method,
		Params:     params,
	})
	if err != nil {
		return nil, NewValidationError(fmt.Sprintf("cannot encode %s params: %v", method, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+endpoint.Path, bytes.NewReader(body))
	if err != nil {
		return nil, NewTransportError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, NewTransportError("device unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, NewAuthError("authentication failed (check credentials)")
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, NewTransportError("failed to read response body", err)
	}

	var decoded Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// A non-JSON body means the endpoint does not exist on this device
		// (older firmware serves an HTML error page). Same bucket as an
		// unreachable endpoint.
		return nil, NewParseError(fmt.Sprintf("malformed response from %s", endpoint.Path), err)
	}

	if decoded.Error != nil {
		return nil, NewAPIError(decoded.Error.Code, decoded.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, endpoint.Path))
	}

	return decoded.Data, nil
}

// Ping performs a plain GET against the device root to check reachability
// and credentials. It does not touch any CGI endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return NewTransportError("failed to create ping request", err)
	}
	if c.Username != "" {
		req.SetBasicAuth(c.Username, c.Password)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return NewTransportError("device unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusUnauthorized {
		return NewAuthError("authentication failed (check credentials)")
	}
	if resp.StatusCode >= 500 {
		return NewHTTPError(resp.StatusCode, fmt.Sprintf("unexpected status code: %d", resp.StatusCode))
	}

	return nil
}
