package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/people/v1"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

// personFields selects the contact attributes we read from the People API.
const personFields = "names,emailAddresses,phoneNumbers,organizations,metadata"

// updateFields selects the attributes a push is allowed to overwrite.
const updateFields = "names,emailAddresses,phoneNumbers,organizations"

// Ensure ContactDirectory implements the interface.
var _ driven.RemoteDirectory = (*ContactDirectory)(nil)

// ContactDirectory syncs contacts through the Google People API.
type ContactDirectory struct {
	svc     *people.Service
	limiter *RateLimiter
}

// NewContactDirectory creates a contact directory using the token source.
func NewContactDirectory(ctx context.Context, ts oauth2.TokenSource) (*ContactDirectory, error) {
	svc, err := people.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating people service: %w", err)
	}
	return &ContactDirectory{
		svc:     svc,
		limiter: NewRateLimiter(ServicePeople),
	}, nil
}

// Provider returns the provider identifier.
func (d *ContactDirectory) Provider() string { return domain.ProviderGoogle }

// Kind returns the record kind this directory serves.
func (d *ContactDirectory) Kind() domain.RecordKind { return domain.KindContact }

// Validate checks credentials with a minimal profile read.
func (d *ContactDirectory) Validate(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.svc.People.Get("people/me").PersonFields("names").Context(ctx).Do()
	return classify(d.limiter, err)
}

// ListChanges returns one page of the connections listing. An empty
// cursor starts a full enumeration; a cursor holding a sync token
// replays changes since the last completed pass, deletions included.
func (d *ContactDirectory) ListChanges(ctx context.Context, cursor string) (*driven.ChangePage, error) {
	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	call := d.svc.People.Connections.List("people/me").
		PersonFields(personFields).
		PageSize(pageSize).
		RequestSyncToken(true).
		Context(ctx)
	if cur.SyncToken != "" {
		call = call.SyncToken(cur.SyncToken)
	}
	if cur.PageToken != "" {
		call = call.PageToken(cur.PageToken)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, classify(d.limiter, err)
	}

	changes := make([]driven.RemoteChange, 0, len(resp.Connections))
	for _, person := range resp.Connections {
		changes = append(changes, personToChange(person))
	}

	page := &driven.ChangePage{
		Changes:       changes,
		TotalEstimate: int(resp.TotalItems),
	}
	if resp.NextPageToken != "" {
		page.HasMore = true
		page.NextCursor = (&Cursor{Version: CursorVersion, SyncToken: cur.SyncToken, PageToken: resp.NextPageToken}).Encode()
	} else {
		page.NextCursor = (&Cursor{Version: CursorVersion, SyncToken: resp.NextSyncToken}).Encode()
	}
	return page, nil
}

// Push creates or updates the contact remotely.
func (d *ContactDirectory) Push(ctx context.Context, rec *domain.Record) (*driven.PushResult, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	person := fieldsToPerson(rec.Fields)

	var pushed *people.Person
	var err error
	if rec.RemoteID == "" {
		pushed, err = d.svc.People.CreateContact(person).Context(ctx).Do()
	} else {
		// UpdateContact needs the current etag for its own concurrency check.
		current, gerr := d.svc.People.Get(rec.RemoteID).PersonFields(personFields).Context(ctx).Do()
		if gerr != nil {
			return nil, classify(d.limiter, gerr)
		}
		person.Etag = current.Etag
		pushed, err = d.svc.People.UpdateContact(rec.RemoteID, person).
			UpdatePersonFields(updateFields).
			Context(ctx).Do()
	}
	if err != nil {
		return nil, classify(d.limiter, err)
	}

	return &driven.PushResult{
		RemoteID:        pushed.ResourceName,
		RemoteUpdatedAt: personUpdateTime(pushed),
	}, nil
}

// Remove deletes the contact remotely. Already-gone is success.
func (d *ContactDirectory) Remove(ctx context.Context, remoteID string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := d.svc.People.DeleteContact(remoteID).Context(ctx).Do()
	if err != nil {
		if isGone(err) {
			return nil
		}
		return classify(d.limiter, err)
	}
	return nil
}

// Close releases resources.
func (d *ContactDirectory) Close() error { return nil }

// personToChange maps a People API person onto a RemoteChange.
func personToChange(person *people.Person) driven.RemoteChange {
	change := driven.RemoteChange{
		RemoteID:        person.ResourceName,
		RemoteUpdatedAt: personUpdateTime(person),
	}
	if person.Metadata != nil && person.Metadata.Deleted {
		change.Deleted = true
		return change
	}
	change.Fields = personToFields(person)
	return change
}

// personToFields maps person attributes onto the engine's flat field map.
func personToFields(person *people.Person) map[string]any {
	fields := make(map[string]any)

	if len(person.Names) > 0 {
		name := person.Names[0]
		if name.DisplayName != "" {
			fields["display_name"] = name.DisplayName
		}
		if name.GivenName != "" {
			fields["given_name"] = name.GivenName
		}
		if name.FamilyName != "" {
			fields["family_name"] = name.FamilyName
		}
	}

	if len(person.EmailAddresses) > 0 {
		emails := make([]string, 0, len(person.EmailAddresses))
		for _, email := range person.EmailAddresses {
			if email.Value != "" {
				emails = append(emails, email.Value)
			}
		}
		if len(emails) > 0 {
			fields["emails"] = emails
		}
	}

	if len(person.PhoneNumbers) > 0 {
		phones := make([]string, 0, len(person.PhoneNumbers))
		for _, phone := range person.PhoneNumbers {
			if phone.Value != "" {
				phones = append(phones, phone.Value)
			}
		}
		if len(phones) > 0 {
			fields["phones"] = phones
		}
	}

	if len(person.Organizations) > 0 {
		org := person.Organizations[0]
		if org.Name != "" {
			fields["organization"] = org.Name
		}
		if org.Title != "" {
			fields["job_title"] = org.Title
		}
	}

	return fields
}

// fieldsToPerson maps the engine's field map back onto a People API person.
func fieldsToPerson(fields map[string]any) *people.Person {
	person := &people.Person{}

	name := &people.Name{}
	if v, ok := fields["given_name"].(string); ok {
		name.GivenName = v
	}
	if v, ok := fields["family_name"].(string); ok {
		name.FamilyName = v
	}
	if name.GivenName == "" && name.FamilyName == "" {
		if v, ok := fields["display_name"].(string); ok {
			name.UnstructuredName = v
		}
	}
	if name.GivenName != "" || name.FamilyName != "" || name.UnstructuredName != "" {
		person.Names = []*people.Name{name}
	}

	for _, email := range stringSlice(fields["emails"]) {
		person.EmailAddresses = append(person.EmailAddresses, &people.EmailAddress{Value: email})
	}
	for _, phone := range stringSlice(fields["phones"]) {
		person.PhoneNumbers = append(person.PhoneNumbers, &people.PhoneNumber{Value: phone})
	}

	org := &people.Organization{}
	if v, ok := fields["organization"].(string); ok {
		org.Name = v
	}
	if v, ok := fields["job_title"].(string); ok {
		org.Title = v
	}
	if org.Name != "" || org.Title != "" {
		person.Organizations = []*people.Organization{org}
	}

	return person
}

// personUpdateTime extracts the provider modification timestamp.
func personUpdateTime(person *people.Person) time.Time {
	if person.Metadata == nil {
		return time.Time{}
	}
	var latest time.Time
	for _, source := range person.Metadata.Sources {
		if source.UpdateTime == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, source.UpdateTime); err == nil && t.After(latest) {
			latest = t
		}
	}
	return latest
}

// stringSlice converts the loosely typed field values (JSON round-trips
// produce []any) into []string.
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
