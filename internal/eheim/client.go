package eheim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/logging"
)

const (
	// DefaultTimeout is the total per-request budget: connect, send and
	// body read together. The hub answers on the local network within
	// milliseconds or not at all, so the budget stays short.
	DefaultTimeout = 2 * time.Second

	// DefaultUsername and DefaultPassword are the hub firmware's fixed
	// local API account.
	DefaultUsername = "api"
	DefaultPassword = "admin"
)

// Document is a raw hub payload: an open-ended JSON object whose keys are
// endpoint-specific. Status documents are carried around undecoded because
// each firmware dialect has its own schema; consumers pick out the keys
// they know.
type Document map[string]any

// Config holds the hub connection settings.
type Config struct {
	// Host is the hub address (IP or hostname, optionally with port).
	Host string

	// Username and Password authenticate against the hub's local API.
	// Empty values fall back to the firmware's fixed account.
	Username string
	Password string

	// Timeout is the total per-request budget. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Client is a typed REST client for an EHEIM Digital hub.
//
// The hub (the "master" device) fronts every device on the aquarium
// network: discovery, status reads and commands all go through it over
// plain HTTP. The one exception is userdata during a device-list fetch,
// which the hub delegates to each device's own address.
//
// Thread Safety:
//   - All methods are safe for concurrent use; the underlying
//     http.Client pools connections across goroutines.
type Client struct {
	host     string
	username string
	password string

	httpClient *http.Client
	logger     *logging.Logger

	closeOnce sync.Once
}

// New creates a hub client. A nil logger falls back to the default logger.
func New(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}

	username := cfg.Username
	if username == "" {
		username = DefaultUsername
	}
	password := cfg.Password
	if password == "" {
		password = DefaultPassword
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		host:     cfg.Host,
		username: username,
		password: password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger.With("component", "hub"),
	}
}

// Host returns the hub address the client was configured with.
func (c *Client) Host() string {
	return c.host
}

// Close releases the client's pooled connections. Calls after the first
// are no-ops.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.httpClient.CloseIdleConnections()
	})
}

// FetchDevices asks the hub for its device list and loads each listed
// device's userdata, preserving the hub's ordering.
//
// The device list carries addresses, not devices; userdata is then fetched
// from each address in turn. Any failure aborts the whole fetch — a
// partial device list is never returned.
func (c *Client) FetchDevices(ctx context.Context) ([]Device, error) {
	res, err := c.get(ctx, c.host, endpointDeviceList, nil)
	if err != nil {
		return nil, err
	}
	doc, err := asDocument(endpointDeviceList, res)
	if err != nil {
		return nil, err
	}

	addrs, err := clientIPList(doc)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, len(addrs))
	for _, addr := range addrs {
		res, err := c.get(ctx, addr, endpointUserData, nil)
		if err != nil {
			return nil, err
		}
		userdata, err := asDocument(endpointUserData, res)
		if err != nil {
			return nil, err
		}
		devices = append(devices, ParseDevice(userdata, addr))
	}

	c.logger.Debug("fetched device list", "count", len(devices))

	return devices, nil
}

// ValidateConnection performs the setup check: the hub must be reachable
// and report at least one device, otherwise ErrNoDevices. The devices are
// returned on success so setup can reuse them without a second round trip.
func (c *Client) ValidateConnection(ctx context.Context) ([]Device, error) {
	devices, err := c.FetchDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDevices, c.host)
	}
	return devices, nil
}

// GetDeviceData fetches a device's current status document.
//
// The status endpoint depends on the device's firmware version; versions
// missing from the table fail with ErrUnknownVersion before any network
// I/O happens. The request always goes to the hub with the device MAC as
// a routing parameter — devices are never queried directly for status.
func (c *Client) GetDeviceData(ctx context.Context, device Device) (Document, error) {
	endpoint, ok := StatusEndpoint(device.Version)
	if !ok {
		return nil, fmt.Errorf("%w: %q (device %s)", ErrUnknownVersion, device.Version, device.MAC)
	}

	params := url.Values{}
	params.Set("to", device.MAC)

	res, err := c.get(ctx, c.host, endpoint, params)
	if err != nil {
		return nil, err
	}
	return asDocument(endpoint, res)
}

// SetFilterState switches a filter pump on or off.
func (c *Client) SetFilterState(ctx context.Context, device Device, active bool) error {
	return c.setActive(ctx, endpointFilterActive, device, active)
}

// SetPHControlState switches a pH controller on or off.
func (c *Client) SetPHControlState(ctx context.Context, device Device, active bool) error {
	return c.setActive(ctx, endpointPHControlActive, device, active)
}

// activeCommand is the body shared by the capability command endpoints.
// The hub expects 0/1, not booleans.
type activeCommand struct {
	To     string `json:"to"`
	Active int    `json:"active"`
}

func (c *Client) setActive(ctx context.Context, endpoint string, device Device, active bool) error {
	cmd := activeCommand{To: device.MAC}
	if active {
		cmd.Active = 1
	}

	if _, err := c.post(ctx, c.host, endpoint, cmd); err != nil {
		return err
	}

	c.logger.Debug("command accepted",
		"endpoint", endpoint, "mac", device.MAC, "active", cmd.Active)

	return nil
}

// get issues a GET against host's API and decodes the reply.
func (c *Client) get(ctx context.Context, host, endpoint string, params url.Values) (any, error) {
	return c.send(ctx, http.MethodGet, host, endpoint, params, nil)
}

// post issues a POST with a JSON body against host's API and decodes the reply.
func (c *Client) post(ctx context.Context, host, endpoint string, body any) (any, error) {
	return c.send(ctx, http.MethodPost, host, endpoint, nil, body)
}

// send issues one request and decodes the response: a Document for
// JSON-labelled bodies, the raw body as a string for anything else.
func (c *Client) send(ctx context.Context, method, host, endpoint string, params url.Values, body any) (any, error) {
	u := url.URL{Scheme: "http", Host: host, Path: "/api/" + endpoint}
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("hub request", "method", method, "host", host, "endpoint", endpoint)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportError(endpoint, err)
	}
	defer resp.Body.Close() //nolint:errcheck // nothing useful to do with a close failure

	if err := statusError(endpoint, resp.StatusCode); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(endpoint, err)
	}

	c.logger.Debug("hub response",
		"endpoint", endpoint, "status", resp.StatusCode, "bytes", len(data))

	return decodeBody(endpoint, resp.Header.Get("Content-Type"), data)
}

// transportError maps low-level request failures onto the error taxonomy.
// http.Client surfaces its total timeout as a *url.Error whose Timeout()
// reports true; context deadlines arrive as context.DeadlineExceeded.
func transportError(endpoint string, err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrTimeout, endpoint, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrConnection, endpoint, err)
}

// statusError maps HTTP statuses onto the error taxonomy. Auth failures
// and missing endpoints get their own sentinels; every other non-2xx is a
// connection-level failure as far as callers are concerned.
func statusError(endpoint string, status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s: HTTP %d", ErrAuth, endpoint, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, endpoint)
	case status < http.StatusOK || status >= http.StatusMultipleChoices:
		return fmt.Errorf("%w: %s: HTTP %d", ErrConnection, endpoint, status)
	default:
		return nil
	}
}

// isJSONContentType reports whether a Content-Type header labels the body
// as JSON. The hub mislabels JSON replies as text/json, so both that and
// the correct application/json must be accepted; parameters (charset) are
// ignored.
func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(contentType))
	}
	return mediaType == "application/json" || mediaType == "text/json"
}

// decodeBody decodes a response body according to its content-type label.
// JSON labels decode strictly (a parse failure is ErrPayload, never a
// silent fall-through to text); any other label returns the raw text.
func decodeBody(endpoint, contentType string, data []byte) (any, error) {
	if !isJSONContentType(contentType) {
		return string(data), nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPayload, endpoint, err)
	}
	return v, nil
}

// asDocument asserts that a decoded response is a JSON object.
func asDocument(endpoint string, v any) (Document, error) {
	switch doc := v.(type) {
	case map[string]any:
		return Document(doc), nil
	case Document:
		return doc, nil
	default:
		return nil, fmt.Errorf("%w: %s: expected JSON object, got %T", ErrPayload, endpoint, v)
	}
}

// clientIPList extracts the device address list from a devicelist document.
func clientIPList(doc Document) ([]string, error) {
	v, ok := doc["clientIPList"]
	if !ok {
		return nil, fmt.Errorf("%w: devicelist missing clientIPList", ErrPayload)
	}
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: clientIPList is not a list", ErrPayload)
	}

	addrs := make([]string, 0, len(items))
	for _, item := range items {
		addr, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%w: clientIPList entry is not a string", ErrPayload)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}
