package wurm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
)

const (
	opGetStatus = "getStatus"

	statusCheckFailed = "Status check error, problem with response"
	noMessageProvided = "[no message provided]"

	// maxBodySize bounds how much of a response body is read
	maxBodySize = 1 << 20
)

// Client is a Wurm REST API status client
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new Wurm API client. The config is copied; later
// changes made by the caller have no effect on the client.
func NewClient(config *ClientConfig) *Client {
	cfg := withDefaults(config)
	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}
}

// NewClientWithHTTPClient creates a new Wurm API client with a custom HTTP client
func NewClientWithHTTPClient(config *ClientConfig, httpClient *http.Client) *Client {
	cfg := withDefaults(config)
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

func withDefaults(config *ClientConfig) ClientConfig {
	var cfg ClientConfig
	if config != nil {
		cfg = *config
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// Options returns a copy of the client's connection options
func (c *Client) Options() ClientConfig {
	return c.config
}

// BaseURL returns the API root, e.g. http://localhost:8080/.
// The port is omitted when it is the default HTTP port.
func (c *Client) BaseURL() string {
	host := c.config.Host
	if c.config.Port != DefaultPort {
		host = net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(c.config.Port))
	} else if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}
	return "http://" + host + "/"
}

// StatusURL returns the full URL of the status endpoint
func (c *Client) StatusURL() string {
	return c.url(StatusPath)
}

func (c *Client) url(path string) string {
	return strings.TrimSuffix(c.BaseURL(), "/") + "/" + strings.TrimPrefix(path, "/")
}

// GetStatus checks whether the game server is running and the API is connected
func (c *Client) GetStatus(ctx context.Context) (*StatusResult, error) {
	resp, err := c.get(ctx, StatusPath)
	if err == nil {
		var status *StatusResult
		status, err = c.validateResponse(opGetStatus, resp)
		if err == nil {
			return status, nil
		}
	}

	c.logger.Warn(statusCheckFailed, "url", c.StatusURL(), "error", err)

	inner, _ := err.(*APIError)
	outer := newAPIError(kindOf(inner), statusCheckFailed, inner)
	outer.URL = c.StatusURL()
	outer.Err = err
	if inner != nil {
		outer.StatusCode = inner.StatusCode
		outer.RemoteMessage = inner.RemoteMessage
	}
	return nil, outer
}

// GetStatusAsync runs GetStatus in its own goroutine. The returned channel
// receives exactly one Outcome and is then closed.
func (c *Client) GetStatusAsync(ctx context.Context) <-chan Outcome {
	ch := make(chan Outcome, 1)
	go func() {
		defer close(ch)
		status, err := c.GetStatus(ctx)
		if err != nil {
			ch <- Outcome{Err: err}
			return
		}
		ch <- Outcome{Status: status}
	}()
	return ch
}

func kindOf(e *APIError) ErrorKind {
	if e == nil {
		return KindTransport
	}
	return e.Kind
}

// get performs a JSON GET request. Transport failures are returned as
// *APIError with KindTransport.
func (c *Client) get(ctx context.Context, path string) (*Response, error) {
	url := c.url(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, c.transportError("Unable to contact API provider at "+url, url, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKeyHeader != "" && c.config.APIKey != "" {
		req.Header.Set(c.config.APIKeyHeader, c.config.APIKey)
	}

	c.logger.Debug(path+" requested", "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError("Unable to contact API provider at "+url, url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.transportError("Unable to read response from API provider at "+url, url, err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func (c *Client) transportError(message, url string, cause error) *APIError {
	c.logger.Error(message, "error", cause)
	apiErr := newAPIError(KindTransport, message, map[string]any{"cause": cause.Error()})
	apiErr.URL = url
	apiErr.Err = cause
	return apiErr
}

// validateResponse checks the status code and the entity of a response.
// responseType names the API call in messages and logs.
func (c *Client) validateResponse(responseType string, resp *Response) (*StatusResult, error) {
	c.logger.Debug(responseType + " returned")

	var apiErr *APIError
	if resp.StatusCode != http.StatusOK {
		apiErr = newAPIError(KindHTTPStatus,
			fmt.Sprintf("%s not ok, status code: %d", responseType, resp.StatusCode), resp)
		apiErr.StatusCode = resp.StatusCode
	} else {
		status, kind, remote := parseEntity(resp.Body)
		switch kind {
		case "":
			c.logger.Debug(responseType + " returned without error")
			return status, nil
		case KindEmptyBody:
			apiErr = newAPIError(kind, responseType+" response entity is falsey", resp)
		case KindMalformedBody:
			apiErr = newAPIError(kind, responseType+" response entity is malformed", resp)
		case KindRemoteError:
			apiErr = newAPIError(kind, responseType+" returned error: "+remote, resp)
			apiErr.RemoteMessage = remote
		}
		apiErr.StatusCode = resp.StatusCode
	}

	c.logger.Warn(apiErr.Message)
	return nil, apiErr
}

// parseEntity classifies a 200 response body. An empty kind means the body
// decoded into a StatusResult.
func parseEntity(body []byte) (*StatusResult, ErrorKind, string) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, KindEmptyBody, ""
	}

	var entity any
	if err := json.Unmarshal(body, &entity); err != nil {
		return nil, KindMalformedBody, ""
	}
	if !truthy(entity) {
		return nil, KindEmptyBody, ""
	}

	fields, ok := entity.(map[string]any)
	if !ok {
		return nil, KindMalformedBody, ""
	}
	if truthy(fields["error"]) {
		return nil, KindRemoteError, remoteMessage(fields)
	}

	var status StatusResult
	if err := json.Unmarshal(body, &status); err != nil {
		return nil, KindMalformedBody, ""
	}
	return &status, "", ""
}

func remoteMessage(fields map[string]any) string {
	switch msg := fields["message"].(type) {
	case string, float64, bool:
		if truthy(msg) {
			return fmt.Sprint(msg)
		}
	}
	if msg, ok := fields["error"].(string); ok && msg != "" {
		return msg
	}
	return noMessageProvided
}

// truthy reports whether a decoded JSON value would be truthy in the
// JavaScript sense, which is how the Wurm API flags errors.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
