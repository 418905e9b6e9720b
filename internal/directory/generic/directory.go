package generic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// Account config keys.
const (
	cfgBaseURL  = "base_url"
	cfgAPIToken = "api_token"
)

// Gateways are self-hosted and usually uncontended; be polite anyway.
const (
	requestsPerSecond = 10.0
	burstSize         = 20
)

// Ensure Directory implements the interface.
var _ driven.RemoteDirectory = (*Directory)(nil)

// Directory talks to a generic JSON sync gateway.
type Directory struct {
	http    *http.Client
	baseURL string
	kind    domain.RecordKind
	limiter *rate.Limiter
}

// NewDirectory creates a directory for one account/kind pair. The
// account must carry a base_url; api_token is optional and sent as a
// bearer token when present.
func NewDirectory(account domain.Account, kind domain.RecordKind) (*Directory, error) {
	baseURL := account.Config[cfgBaseURL]
	if baseURL == "" {
		return nil, fmt.Errorf("%w: account %s has no base_url", domain.ErrInvalidInput, account.ID)
	}

	httpClient := http.DefaultClient
	if token := account.Config[cfgAPIToken]; token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	return &Directory{
		http:    httpClient,
		baseURL: baseURL,
		kind:    kind,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burstSize),
	}, nil
}

// Provider returns the provider identifier.
func (d *Directory) Provider() string { return domain.ProviderGeneric }

// Kind returns the record kind this directory serves.
func (d *Directory) Kind() domain.RecordKind { return d.kind }

// Validate checks that the gateway is reachable and the token accepted.
func (d *Directory) Validate(ctx context.Context) error {
	return d.do(ctx, http.MethodGet, d.baseURL+"/v1/ping", nil, nil)
}

// Close releases client resources. The HTTP client has none to free.
func (d *Directory) Close() error { return nil }

// ==================== Changes ====================

type wireChange struct {
	RemoteID  string         `json:"remote_id"`
	Fields    map[string]any `json:"fields"`
	UpdatedAt time.Time      `json:"updated_at"`
	Deleted   bool           `json:"deleted"`
}

type wirePage struct {
	Changes    []wireChange `json:"changes"`
	NextCursor string       `json:"next_cursor"`
	HasMore    bool         `json:"has_more"`
	Total      int          `json:"total"`
}

// ListChanges fetches one page of changes since the cursor. An empty
// cursor asks the gateway for a full enumeration.
func (d *Directory) ListChanges(ctx context.Context, cursor string) (*driven.ChangePage, error) {
	u := d.collectionURL() + "/changes"
	if cursor != "" {
		u += "?cursor=" + url.QueryEscape(cursor)
	}

	var page wirePage
	if err := d.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, err
	}

	changes := make([]driven.RemoteChange, 0, len(page.Changes))
	for _, wc := range page.Changes {
		change := driven.RemoteChange{
			RemoteID:        wc.RemoteID,
			RemoteUpdatedAt: wc.UpdatedAt,
			Deleted:         wc.Deleted,
		}
		if !wc.Deleted {
			change.Fields = wc.Fields
		}
		changes = append(changes, change)
	}

	return &driven.ChangePage{
		Changes:       changes,
		NextCursor:    page.NextCursor,
		HasMore:       page.HasMore,
		TotalEstimate: page.Total,
	}, nil
}

// ==================== Push / Remove ====================

type wireRecord struct {
	Fields map[string]any `json:"fields"`
}

type wirePushResult struct {
	RemoteID  string    `json:"remote_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Push creates or updates a record on the gateway.
func (d *Directory) Push(ctx context.Context, rec *domain.Record) (*driven.PushResult, error) {
	method := http.MethodPost
	u := d.collectionURL()
	if rec.RemoteID != "" {
		method = http.MethodPut
		u += "/" + url.PathEscape(rec.RemoteID)
	}

	var result wirePushResult
	if err := d.do(ctx, method, u, wireRecord{Fields: rec.Fields}, &result); err != nil {
		return nil, err
	}
	return &driven.PushResult{RemoteID: result.RemoteID, RemoteUpdatedAt: result.UpdatedAt}, nil
}

// Remove deletes a record on the gateway. Deleting a record the
// gateway no longer has is a success.
func (d *Directory) Remove(ctx context.Context, remoteID string) error {
	u := d.collectionURL() + "/" + url.PathEscape(remoteID)
	err := d.do(ctx, http.MethodDelete, u, nil, nil)
	if isGone(err) {
		return nil
	}
	return err
}

func (d *Directory) collectionURL() string {
	return d.baseURL + "/v1/" + string(d.kind) + "s"
}

// ==================== Transport ====================

func (d *Directory) do(ctx context.Context, method, u string, body, out any) error {
	if err := d.limiter.Wait(ctx); err != nil {
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

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.http.Do(req)
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

// statusError carries the gateway HTTP status for classification checks.
type statusError struct {
	Code    int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway: status %d: %s", e.Code, e.Message)
}

func classifyStatus(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	serr := &statusError{Code: resp.StatusCode, Message: string(bytes.TrimSpace(data))}

	switch resp.StatusCode {
	case http.StatusGone:
		return fmt.Errorf("%w: gateway cannot serve cursor", domain.ErrInvalidCursor)
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return driven.Transient(serr)
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

func isGone(err error) bool {
	var serr *statusError
	if errors.As(err, &serr) {
		return serr.Code == http.StatusNotFound || serr.Code == http.StatusGone
	}
	return false
}
