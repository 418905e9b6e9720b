// Package microsoft implements the RemoteDirectory port against the
// Microsoft Graph API: /me/contacts for contacts and /me/calendarView
// for events.
//
// Incremental sync uses Graph delta queries. The cursor stored between
// passes is the opaque @odata.nextLink or @odata.deltaLink URL, so an
// interrupted enumeration resumes exactly where the last page ended.
// Deleted items arrive as @removed entries in the delta stream. An
// expired delta token (410 Gone) surfaces as domain.ErrInvalidCursor.
package microsoft
