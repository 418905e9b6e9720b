package microsoft

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// Account config keys understood by this provider.
const (
	cfgAccessToken  = "access_token"
	cfgRefreshToken = "refresh_token"
	cfgBaseURL      = "graph_base_url"
)

// calendarWindow bounds the calendarView delta query on either side of
// now. Graph requires an explicit window for calendar deltas.
const calendarWindow = 365 * 24 * time.Hour

// Ensure Directory implements the interface.
var _ driven.RemoteDirectory = (*Directory)(nil)

// Directory syncs contacts or events through Microsoft Graph. One
// instance serves one (account, kind) pair.
type Directory struct {
	client *client
	kind   domain.RecordKind
}

// NewDirectory creates a Graph directory for the account and kind.
func NewDirectory(account domain.Account, kind domain.RecordKind) (*Directory, error) {
	access := account.Config[cfgAccessToken]
	refresh := account.Config[cfgRefreshToken]
	if access == "" && refresh == "" {
		return nil, fmt.Errorf("%w: account %s has no microsoft credentials", domain.ErrInvalidInput, account.ID)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
	})

	return &Directory{
		client: newClient(ts, account.Config[cfgBaseURL]),
		kind:   kind,
	}, nil
}

// Provider returns the provider identifier.
func (d *Directory) Provider() string { return domain.ProviderMicrosoft }

// Kind returns the record kind this directory serves.
func (d *Directory) Kind() domain.RecordKind { return d.kind }

// Validate checks credentials with a minimal profile read.
func (d *Directory) Validate(ctx context.Context) error {
	return d.client.get(ctx, d.client.baseURL+"/me", nil)
}

// deltaResponse is the shared Graph delta page envelope.
type deltaResponse struct {
	Value     []json.RawMessage `json:"value"`
	NextLink  string            `json:"@odata.nextLink"`
	DeltaLink string            `json:"@odata.deltaLink"`
}

// ListChanges returns one page of the delta stream. The cursor is the
// @odata link of the previous page, or empty to start a new delta.
func (d *Directory) ListChanges(ctx context.Context, cursor string) (*driven.ChangePage, error) {
	requestURL := cursor
	if requestURL == "" {
		requestURL = d.deltaStartURL()
	} else if !strings.HasPrefix(requestURL, "http") {
		return nil, fmt.Errorf("%w: not a graph delta link", domain.ErrInvalidCursor)
	}

	var resp deltaResponse
	if err := d.client.get(ctx, requestURL, &resp); err != nil {
		return nil, err
	}

	changes := make([]driven.RemoteChange, 0, len(resp.Value))
	for _, raw := range resp.Value {
		change, err := d.itemToChange(raw)
		if err != nil {
			continue // Skip unparseable items rather than failing the page
		}
		changes = append(changes, change)
	}

	page := &driven.ChangePage{Changes: changes}
	if resp.NextLink != "" {
		page.HasMore = true
		page.NextCursor = resp.NextLink
	} else {
		page.NextCursor = resp.DeltaLink
	}
	return page, nil
}

// Push creates or updates the record remotely.
func (d *Directory) Push(ctx context.Context, rec *domain.Record) (*driven.PushResult, error) {
	body := d.fieldsToItem(rec.Fields)

	var out struct {
		ID           string `json:"id"`
		LastModified string `json:"lastModifiedDateTime"`
	}

	var err error
	if rec.RemoteID == "" {
		err = d.client.do(ctx, "POST", d.collectionURL(), body, &out)
	} else {
		err = d.client.do(ctx, "PATCH", d.collectionURL()+"/"+url.PathEscape(rec.RemoteID), body, &out)
	}
	if err != nil {
		return nil, err
	}

	return &driven.PushResult{
		RemoteID:        out.ID,
		RemoteUpdatedAt: parseGraphTime(out.LastModified),
	}, nil
}

// Remove deletes the record remotely. Already-gone is success.
func (d *Directory) Remove(ctx context.Context, remoteID string) error {
	err := d.client.do(ctx, "DELETE", d.collectionURL()+"/"+url.PathEscape(remoteID), nil, nil)
	if err != nil && isGone(err) {
		return nil
	}
	return err
}

// Close releases resources.
func (d *Directory) Close() error { return nil }

// collectionURL is the CRUD endpoint for this kind.
func (d *Directory) collectionURL() string {
	if d.kind == domain.KindContact {
		return d.client.baseURL + "/me/contacts"
	}
	return d.client.baseURL + "/me/events"
}

// deltaStartURL begins a fresh delta enumeration.
func (d *Directory) deltaStartURL() string {
	if d.kind == domain.KindContact {
		return d.client.baseURL + "/me/contacts/delta"
	}
	now := time.Now().UTC()
	return fmt.Sprintf("%s/me/calendarView/delta?startDateTime=%s&endDateTime=%s",
		d.client.baseURL,
		url.QueryEscape(now.Add(-calendarWindow).Format(time.RFC3339)),
		url.QueryEscape(now.Add(calendarWindow).Format(time.RFC3339)))
}

func (d *Directory) itemToChange(raw json.RawMessage) (driven.RemoteChange, error) {
	if d.kind == domain.KindContact {
		var contact graphContact
		if err := json.Unmarshal(raw, &contact); err != nil {
			return driven.RemoteChange{}, err
		}
		return contactToChange(&contact), nil
	}
	var event graphEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return driven.RemoteChange{}, err
	}
	return eventToChange(&event), nil
}

func (d *Directory) fieldsToItem(fields map[string]any) any {
	if d.kind == domain.KindContact {
		return fieldsToContact(fields)
	}
	return fieldsToEvent(fields)
}

// ==================== Contact Mapping ====================

type graphRemoved struct {
	Reason string `json:"reason"`
}

type graphEmail struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type graphContact struct {
	ID             string        `json:"id,omitempty"`
	DisplayName    string        `json:"displayName,omitempty"`
	GivenName      string        `json:"givenName,omitempty"`
	Surname        string        `json:"surname,omitempty"`
	EmailAddresses []graphEmail  `json:"emailAddresses,omitempty"`
	BusinessPhones []string      `json:"businessPhones,omitempty"`
	CompanyName    string        `json:"companyName,omitempty"`
	JobTitle       string        `json:"jobTitle,omitempty"`
	LastModified   string        `json:"lastModifiedDateTime,omitempty"`
	Removed        *graphRemoved `json:"@removed,omitempty"`
}

func contactToChange(contact *graphContact) driven.RemoteChange {
	change := driven.RemoteChange{
		RemoteID:        contact.ID,
		RemoteUpdatedAt: parseGraphTime(contact.LastModified),
	}
	if contact.Removed != nil {
		change.Deleted = true
		return change
	}
	change.Fields = contactToFields(contact)
	return change
}

func contactToFields(contact *graphContact) map[string]any {
	fields := make(map[string]any)

	if contact.DisplayName != "" {
		fields["display_name"] = contact.DisplayName
	}
	if contact.GivenName != "" {
		fields["given_name"] = contact.GivenName
	}
	if contact.Surname != "" {
		fields["family_name"] = contact.Surname
	}
	if len(contact.EmailAddresses) > 0 {
		emails := make([]string, 0, len(contact.EmailAddresses))
		for _, email := range contact.EmailAddresses {
			if email.Address != "" {
				emails = append(emails, email.Address)
			}
		}
		if len(emails) > 0 {
			fields["emails"] = emails
		}
	}
	if len(contact.BusinessPhones) > 0 {
		fields["phones"] = contact.BusinessPhones
	}
	if contact.CompanyName != "" {
		fields["organization"] = contact.CompanyName
	}
	if contact.JobTitle != "" {
		fields["job_title"] = contact.JobTitle
	}

	return fields
}

func fieldsToContact(fields map[string]any) *graphContact {
	contact := &graphContact{}

	if v, ok := fields["display_name"].(string); ok {
		contact.DisplayName = v
	}
	if v, ok := fields["given_name"].(string); ok {
		contact.GivenName = v
	}
	if v, ok := fields["family_name"].(string); ok {
		contact.Surname = v
	}
	for _, email := range stringSlice(fields["emails"]) {
		contact.EmailAddresses = append(contact.EmailAddresses, graphEmail{Address: email})
	}
	contact.BusinessPhones = stringSlice(fields["phones"])
	if v, ok := fields["organization"].(string); ok {
		contact.CompanyName = v
	}
	if v, ok := fields["job_title"].(string); ok {
		contact.JobTitle = v
	}

	return contact
}

// ==================== Event Mapping ====================

type graphItemBody struct {
	ContentType string `json:"contentType,omitempty"`
	Content     string `json:"content,omitempty"`
}

type graphLocation struct {
	DisplayName string `json:"displayName,omitempty"`
}

type graphDateTimeZone struct {
	DateTime string `json:"dateTime,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type graphEvent struct {
	ID           string             `json:"id,omitempty"`
	Subject      string             `json:"subject,omitempty"`
	Body         *graphItemBody     `json:"body,omitempty"`
	Location     *graphLocation     `json:"location,omitempty"`
	Start        *graphDateTimeZone `json:"start,omitempty"`
	End          *graphDateTimeZone `json:"end,omitempty"`
	IsAllDay     bool               `json:"isAllDay,omitempty"`
	LastModified string             `json:"lastModifiedDateTime,omitempty"`
	Removed      *graphRemoved      `json:"@removed,omitempty"`
}

func eventToChange(event *graphEvent) driven.RemoteChange {
	change := driven.RemoteChange{
		RemoteID:        event.ID,
		RemoteUpdatedAt: parseGraphTime(event.LastModified),
	}
	if event.Removed != nil {
		change.Deleted = true
		return change
	}
	change.Fields = eventToFields(event)
	return change
}

func eventToFields(event *graphEvent) map[string]any {
	fields := make(map[string]any)

	if event.Subject != "" {
		fields["title"] = event.Subject
	}
	if event.Body != nil && event.Body.Content != "" {
		fields["description"] = event.Body.Content
	}
	if event.Location != nil && event.Location.DisplayName != "" {
		fields["location"] = event.Location.DisplayName
	}
	if event.Start != nil && event.Start.DateTime != "" {
		fields["start"] = event.Start.DateTime
	}
	if event.End != nil && event.End.DateTime != "" {
		fields["end"] = event.End.DateTime
	}
	if event.IsAllDay {
		fields["all_day"] = true
	}

	return fields
}

func fieldsToEvent(fields map[string]any) *graphEvent {
	event := &graphEvent{}

	if v, ok := fields["title"].(string); ok {
		event.Subject = v
	}
	if v, ok := fields["description"].(string); ok && v != "" {
		event.Body = &graphItemBody{ContentType: "text", Content: v}
	}
	if v, ok := fields["location"].(string); ok && v != "" {
		event.Location = &graphLocation{DisplayName: v}
	}
	if v, ok := fields["start"].(string); ok && v != "" {
		event.Start = &graphDateTimeZone{DateTime: v, TimeZone: "UTC"}
	}
	if v, ok := fields["end"].(string); ok && v != "" {
		event.End = &graphDateTimeZone{DateTime: v, TimeZone: "UTC"}
	}
	if v, ok := fields["all_day"].(bool); ok {
		event.IsAllDay = v
	}

	return event
}

// ==================== Helpers ====================

func parseGraphTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
