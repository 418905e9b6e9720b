package microsoft

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// defaultBaseURL is the production Graph endpoint.
const defaultBaseURL = "https://graph.microsoft.com/v1.0"

// Graph throttles per app per mailbox; stay comfortably below.
const (
	requestsPerSecond = 4.0
	burstSize         = 8
)

// client is a thin Microsoft Graph HTTP client. It owns authentication,
// throttling and error classification; resource semantics live in the
// Directory.
type client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

func newClient(ts oauth2.TokenSource, baseURL string) *client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &client{
		http:    oauth2.NewClient(context.Background(), ts),
		baseURL: baseURL,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
	}
}

// get issues a GET and decodes the JSON response into out.
func (c *client) get(ctx context.Context, url string, out any) error {
	return c.do(ctx, http.MethodGet, url, nil, out)
}

// do issues a request with an optional JSON body. A nil out discards
// the response body.
func (c *client) do(ctx context.Context, method, url string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return driven.Transient(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return classifyStatus(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// statusError carries the Graph HTTP status for classification checks.
type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("graph: status %d: %s", e.Code, e.Message)
}

// classifyStatus maps a Graph error response onto the engine's retry
// policy. 410 Gone means the delta token expired and is reported as
// domain.ErrInvalidCursor.
func classifyStatus(resp *http.Response) error {
	message := readGraphError(resp.Body)
	serr := &statusError{Code: resp.StatusCode, Message: message}

	switch resp.StatusCode {
	case http.StatusGone:
		return fmt.Errorf("%w: delta token expired", domain.ErrInvalidCursor)
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return driven.Transient(retryAfterError(serr, resp.Header.Get("Retry-After")))
	case http.StatusUnauthorized,
		http.StatusForbidden,
		http.StatusBadRequest,
		http.StatusNotFound,
		http.StatusConflict:
		return driven.Permanent(serr)
	default:
		return serr
	}
}

// readGraphError pulls the message out of a Graph error envelope.
func readGraphError(body io.Reader) string {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return string(data)
	}
	if envelope.Error.Code != "" {
		return envelope.Error.Code + ": " + envelope.Error.Message
	}
	return envelope.Error.Message
}

// retryAfterError annotates a throttled response with the server's
// requested backoff.
func retryAfterError(err *statusError, retryAfter string) error {
	if retryAfter == "" {
		return err
	}
	if secs, perr := strconv.Atoi(retryAfter); perr == nil {
		return fmt.Errorf("%w (retry after %s)", err, time.Duration(secs)*time.Second)
	}
	return err
}

// isGone reports whether the provider no longer has the resource.
func isGone(err error) bool {
	var serr *statusError
	if errors.As(err, &serr) {
		return serr.Code == http.StatusNotFound || serr.Code == http.StatusGone
	}
	return false
}
