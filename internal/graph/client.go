// Package graph is the client for the Graph API catalog endpoints.
//
// Every call goes through Client.Call, which retries while the API answers
// with the rate-limit error code and classifies everything else into the
// tagged errors of the models package:
//
//   - network-unreachable: the request never reached the server
//   - upstream-error: any error answer or a timed-out request, including a
//     rate limit that outlived its retries
//
// Backoff doubles on each retry (B, 2B, 4B, ...) without jitter, and retries
// are strictly sequential.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/pauljones0/wa-catalog-uploader/internal/models"
	"github.com/pauljones0/wa-catalog-uploader/internal/util"
)

// RateLimitCode is the Graph error code for "user request limit reached".
const RateLimitCode = 80014

// NetworkGuidance is shown when a request cannot reach the API at all.
const NetworkGuidance = "Network error: the request did not reach the Graph API. " +
	"This is usually caused by an ad or content blocker (AdBlock, uBlock and similar) " +
	"or a firewall blocking graph.facebook.com. Disable it for this host and try again."

// HTTPClient lets tests replace the transport.
// *http.Client implements it.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Options struct {
	// BaseURL is the versioned API root, e.g. https://graph.facebook.com/v20.0.
	BaseURL           string
	Retries           int
	InitialBackoff    time.Duration
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 means unlimited
}

type Client struct {
	baseURL     string
	httpClient  HTTPClient
	backoff     util.Backoff
	rateLimiter *rate.Limiter
}

func New(opts Options) *Client {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: opts.Timeout},
		backoff:     util.Backoff{Retries: opts.Retries, Initial: opts.InitialBackoff},
		rateLimiter: limiter,
	}
}

// APIError is the error object of a Graph API response.
type APIError struct {
	Message      string `json:"message"`
	Type         string `json:"type,omitempty"`
	Code         int    `json:"code"`
	ErrorSubcode int    `json:"error_subcode,omitempty"`
	UserTitle    string `json:"error_user_title,omitempty"`
	UserMessage  string `json:"error_user_msg,omitempty"`
	FBTraceID    string `json:"fbtrace_id,omitempty"`
	StatusCode   int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("graph api error %d (%s): %s", e.Code, e.Type, e.Message)
	}
	return fmt.Sprintf("graph api error %d: %s", e.Code, e.Message)
}

// RateLimited reports whether the error asks the caller to back off.
func (e *APIError) RateLimited() bool {
	return e.Code == RateLimitCode
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// Call performs one logical request, retrying on the rate-limit code.
// path is relative to the base URL. body is JSON-encoded when non-nil and
// the response is decoded into dest when dest is non-nil.
func (c *Client) Call(ctx context.Context, method, path string, query url.Values, body, dest any) error {
	u, err := url.Parse(c.baseURL + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	err = util.RetryWithBackoff(ctx, c.backoff, isRateLimited, func(attempt int) error {
		callErr := c.do(ctx, method, u.String(), payload, dest)
		if isRateLimited(callErr) && attempt < c.backoff.Retries {
			slog.Warn("Graph rate limit hit, backing off", "path", path, "attempt", attempt+1)
		}
		return callErr
	})
	if err == nil {
		return nil
	}
	if models.KindOf(err) == models.KindRateLimited {
		return &models.Error{
			Kind:    models.KindUpstream,
			Message: fmt.Sprintf("rate limit persisted after %d retries", c.backoff.Retries),
			Err:     err,
		}
	}
	return err
}

func (c *Client) do(ctx context.Context, method, rawURL string, payload []byte, dest any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait: %w", err)
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return transportError(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return transportError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := parseAPIError(resp, bodyBytes)
		kind := models.KindUpstream
		if apiErr.RateLimited() {
			kind = models.KindRateLimited
		}
		return &models.Error{Kind: kind, Err: apiErr}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, dest); err != nil {
		return &models.Error{Kind: models.KindUpstream, Message: "unreadable response", Err: err}
	}
	return nil
}

func parseAPIError(resp *http.Response, body []byte) *APIError {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil {
		envelope.Error.StatusCode = resp.StatusCode
		return envelope.Error
	}
	return &APIError{Message: "API Error: " + resp.Status, StatusCode: resp.StatusCode}
}

func isRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.RateLimited()
}

// redactURL drops the request URL (which carries the access token) from
// transport errors.
// transportError classifies a failure below HTTP. A client timeout means
// the server was reached but did not answer in time.
func transportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &models.Error{Kind: models.KindUpstream, Message: "Request timed out", Err: redactURL(err)}
	}
	return &models.Error{Kind: models.KindNetworkUnreachable, Message: NetworkGuidance, Err: redactURL(err)}
}

func redactURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request failed: %w", urlErr.Op, urlErr.Err)
	}
	return err
}

// ErrorMessage extracts the operator-facing message from an error
// returned by the client.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if apiErr.UserMessage != "" {
			msg += " (" + apiErr.UserMessage + ")"
		}
		if msg == "" {
			msg = apiErr.Error()
		}
		return msg
	}
	var tagged *models.Error
	if errors.As(err, &tagged) && tagged.Message != "" {
		return tagged.Message
	}
	return err.Error()
}
