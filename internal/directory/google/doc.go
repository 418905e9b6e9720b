// Package google implements the RemoteDirectory port against Google
// APIs: the People API for contacts and the Calendar API for events.
//
// Both services support server-side incremental sync through sync
// tokens. The cursor stored between passes carries the sync token plus
// the in-flight page token, so an interrupted enumeration resumes at a
// page boundary. An expired sync token (410 Gone) surfaces as
// domain.ErrInvalidCursor, which the engine answers with a full resync.
//
// Requests are throttled with a token bucket per service, well below
// Google's published quotas.
package google
