package microsoft

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/relaysync/internal/core/domain"
	"github.com/custodia-labs/relaysync/internal/core/ports/driven"
)

func testAccount(baseURL string) domain.Account {
	return domain.Account{
		ID:       "acc-ms",
		Provider: domain.ProviderMicrosoft,
		Config: map[string]string{
			cfgAccessToken: "test-token",
			cfgBaseURL:     baseURL,
		},
	}
}

func TestNewDirectory_RequiresCredentials(t *testing.T) {
	_, err := NewDirectory(domain.Account{ID: "acc-ms", Provider: domain.ProviderMicrosoft}, domain.KindContact)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDirectory_ListChanges_ContactsDelta(t *testing.T) {
	var deltaCalls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		switch r.URL.Path {
		case "/me/contacts/delta":
			deltaCalls++
			page := map[string]any{
				"value": []map[string]any{
					{
						"id":                   "ct-1",
						"displayName":          "Ann Barker",
						"givenName":            "Ann",
						"surname":              "Barker",
						"emailAddresses":       []map[string]any{{"address": "ann@example.com"}},
						"businessPhones":       []string{"+44 20 1234 5678"},
						"lastModifiedDateTime": "2026-05-01T10:00:00Z",
					},
					{
						"id":       "ct-2",
						"@removed": map[string]any{"reason": "deleted"},
					},
				},
				"@odata.nextLink": "http://" + r.Host + "/me/contacts/delta/page2",
			}
			json.NewEncoder(w).Encode(page)
		case "/me/contacts/delta/page2":
			json.NewEncoder(w).Encode(map[string]any{
				"value":            []map[string]any{},
				"@odata.deltaLink": "http://" + r.Host + "/me/contacts/delta?token=final",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindContact)
	require.NoError(t, err)
	defer dir.Close()

	page, err := dir.ListChanges(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Changes, 2)

	assert.Equal(t, "ct-1", page.Changes[0].RemoteID)
	assert.Equal(t, "Ann Barker", page.Changes[0].Fields["display_name"])
	assert.Equal(t, []string{"ann@example.com"}, page.Changes[0].Fields["emails"])
	assert.False(t, page.Changes[0].Deleted)

	assert.Equal(t, "ct-2", page.Changes[1].RemoteID)
	assert.True(t, page.Changes[1].Deleted)

	require.True(t, page.HasMore)

	// Second page resumes at the nextLink and ends with the deltaLink.
	final, err := dir.ListChanges(context.Background(), page.NextCursor)
	require.NoError(t, err)
	assert.False(t, final.HasMore)
	assert.Contains(t, final.NextCursor, "token=final")
	assert.Equal(t, 1, deltaCalls)
}

func TestDirectory_ListChanges_ExpiredDeltaToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusGone)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "syncStateNotFound", "message": "resync required"},
		})
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindContact)
	require.NoError(t, err)

	_, err = dir.ListChanges(context.Background(), server.URL+"/me/contacts/delta?token=old")
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestDirectory_ListChanges_MalformedCursor(t *testing.T) {
	dir, err := NewDirectory(testAccount("http://unused"), domain.KindContact)
	require.NoError(t, err)

	_, err = dir.ListChanges(context.Background(), "not-a-url")
	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestDirectory_Push_CreateContact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/me/contacts", r.URL.Path)

		var body graphContact
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Ann", body.GivenName)

		json.NewEncoder(w).Encode(map[string]any{
			"id":                   "ct-new",
			"lastModifiedDateTime": "2026-05-01T10:00:00Z",
		})
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindContact)
	require.NoError(t, err)

	res, err := dir.Push(context.Background(), &domain.Record{
		Fields: map[string]any{"given_name": "Ann", "family_name": "Barker"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ct-new", res.RemoteID)
	assert.Equal(t, 2026, res.RemoteUpdatedAt.Year())
}

func TestDirectory_Push_UpdateEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/me/events/ev-1", r.URL.Path)

		var body graphEvent
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Standup", body.Subject)
		require.NotNil(t, body.Start)
		assert.Equal(t, "2026-05-01T09:00:00Z", body.Start.DateTime)

		json.NewEncoder(w).Encode(map[string]any{
			"id":                   "ev-1",
			"lastModifiedDateTime": "2026-05-01T09:30:00Z",
		})
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindEvent)
	require.NoError(t, err)

	res, err := dir.Push(context.Background(), &domain.Record{
		RemoteID: "ev-1",
		Fields: map[string]any{
			"title": "Standup",
			"start": "2026-05-01T09:00:00Z",
			"end":   "2026-05-01T09:15:00Z",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ev-1", res.RemoteID)
}

func TestDirectory_Push_PermanentRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "invalidRequest", "message": "bad field"},
		})
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindContact)
	require.NoError(t, err)

	_, err = dir.Push(context.Background(), &domain.Record{Fields: map[string]any{"given_name": "Ann"}})
	assert.True(t, driven.IsPermanent(err))
	assert.Contains(t, err.Error(), "invalidRequest")
}

func TestDirectory_Push_ThrottledIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindContact)
	require.NoError(t, err)

	_, err = dir.Push(context.Background(), &domain.Record{Fields: map[string]any{"given_name": "Ann"}})
	assert.True(t, driven.IsTransient(err))
}

func TestDirectory_Remove_AlreadyGoneIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "ErrorItemNotFound", "message": "gone"},
		})
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindContact)
	require.NoError(t, err)

	assert.NoError(t, dir.Remove(context.Background(), "ct-gone"))
}

func TestDirectory_Validate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/me" {
			json.NewEncoder(w).Encode(map[string]any{"id": "user-1"})
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindContact)
	require.NoError(t, err)
	assert.NoError(t, dir.Validate(context.Background()))
}

func TestDirectory_Validate_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	dir, err := NewDirectory(testAccount(server.URL), domain.KindContact)
	require.NoError(t, err)

	err = dir.Validate(context.Background())
	assert.True(t, driven.IsPermanent(err))
}

func TestDirectory_KindAndProvider(t *testing.T) {
	dir, err := NewDirectory(testAccount("http://unused"), domain.KindEvent)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderMicrosoft, dir.Provider())
	assert.Equal(t, domain.KindEvent, dir.Kind())
}
